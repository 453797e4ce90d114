package pipeline

import (
	"sync"

	"github.com/ajitpratap0/seaflow/internal/engine"
	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// TableRegistry maps result table names to the streams that produce them.
// It lives for one planning pass; downstream stages look inputs up by name.
type TableRegistry struct {
	mu     sync.RWMutex
	tables map[string]*engine.DataStream
	order  []string
}

// NewTableRegistry creates an empty registry
func NewTableRegistry() *TableRegistry {
	return &TableRegistry{tables: make(map[string]*engine.DataStream)}
}

// Register adds name. A taken name fails with duplicate_table_name and
// leaves the existing entry in place.
func (r *TableRegistry) Register(name string, stream *engine.DataStream) error {
	if name == "" {
		return errors.New(errors.ErrorTypeValidation, "table name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tables[name]; ok {
		return errors.Newf(errors.ErrorTypeDuplicateTable, "result table %q is already produced by %s", name, existing.Name()).
			WithDetail(errors.DetailTable, name)
	}
	r.tables[name] = stream
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the stream registered under name
func (r *TableRegistry) Lookup(name string) (*engine.DataStream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stream, ok := r.tables[name]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "result table %q is not registered", name).
			WithDetail(errors.DetailTable, name)
	}
	return stream, nil
}

// Names returns the registered names in registration order
func (r *TableRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tables
func (r *TableRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Reset drops every entry
func (r *TableRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables = make(map[string]*engine.DataStream)
	r.order = nil
}
