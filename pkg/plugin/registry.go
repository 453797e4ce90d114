package plugin

import (
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/seaflow/pkg/errors"
	"github.com/ajitpratap0/seaflow/pkg/logger"
)

// Info describes a registered plugin for listings and documentation
type Info struct {
	Name         string                 `json:"name"`
	Kind         Kind                   `json:"kind"`
	Description  string                 `json:"description"`
	Capabilities []string               `json:"capabilities"`
	ConfigSchema map[string]interface{} `json:"config_schema"`
}

type registration[T any] struct {
	factory      Factory[T]
	dependencies []string
	info         *Info
}

// Registry is an in-memory Discovery keyed by Identifier
type Registry[T any] struct {
	engineKind string
	kind       Kind
	plugins    map[Identifier]*registration[T]
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewRegistry creates an empty registry for one engine and plugin kind
func NewRegistry[T any](engineKind string, kind Kind) *Registry[T] {
	return &Registry[T]{
		engineKind: engineKind,
		kind:       kind,
		plugins:    make(map[Identifier]*registration[T]),
		logger:     logger.Get().With(zap.String("component", "plugin_registry"), zap.String("kind", string(kind))),
	}
}

// Kind returns the plugin kind this registry serves
func (r *Registry[T]) Kind() Kind {
	return r.kind
}

// Register adds a factory under name together with its dependency locations
func (r *Registry[T]) Register(name string, factory Factory[T], dependencies ...string) error {
	if name == "" || factory == nil {
		return errors.New(errors.ErrorTypeValidation, "plugin name and factory are required")
	}
	id := NewIdentifier(r.engineKind, r.kind, name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[id]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "%s plugin %s already registered", r.kind, name)
	}
	r.plugins[id] = &registration[T]{
		factory:      factory,
		dependencies: append([]string(nil), dependencies...),
		info:         &Info{Name: name, Kind: r.kind},
	}
	r.logger.Debug("plugin registered", zap.String("name", name))
	return nil
}

// MustRegister is Register for init functions; a conflict is a programming error
func (r *Registry[T]) MustRegister(name string, factory Factory[T], dependencies ...string) {
	if err := r.Register(name, factory, dependencies...); err != nil {
		panic(err)
	}
}

// SetInfo attaches descriptive metadata to a registered plugin
func (r *Registry[T]) SetInfo(info *Info) error {
	id := NewIdentifier(r.engineKind, r.kind, info.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.plugins[id]
	if !ok {
		return errors.Newf(errors.ErrorTypePluginNotFound, "%s plugin %s not registered", r.kind, info.Name)
	}
	info.Kind = r.kind
	reg.info = info
	return nil
}

// Info returns the metadata of a registered plugin
func (r *Registry[T]) Info(name string) (*Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.plugins[NewIdentifier(r.engineKind, r.kind, name)]
	if !ok {
		return nil, false
	}
	return reg.info, true
}

// Resolve implements Discovery
func (r *Registry[T]) Resolve(id Identifier) (Factory[T], []string, error) {
	r.mu.RLock()
	reg, ok := r.plugins[id]
	r.mu.RUnlock()

	if !ok {
		return nil, nil, errors.Newf(errors.ErrorTypePluginNotFound, "plugin %s not found", id).
			WithDetail(errors.DetailPlugin, id.Name)
	}
	return reg.factory, append([]string(nil), reg.dependencies...), nil
}

// Instantiate implements Discovery
func (r *Registry[T]) Instantiate(factory Factory[T]) (T, error) {
	var zero T
	if factory == nil {
		return zero, errors.New(errors.ErrorTypePluginConfig, "nil plugin factory")
	}
	instance, err := factory()
	if err != nil {
		return zero, errors.Wrap(err, errors.ErrorTypePluginConfig, "failed to instantiate plugin")
	}
	if isNil(instance) {
		return zero, errors.New(errors.ErrorTypePluginConfig, "plugin factory returned no instance")
	}
	return instance, nil
}

// Has reports whether name is registered
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.plugins[NewIdentifier(r.engineKind, r.kind, name)]
	return ok
}

// List returns the registered plugin names in sorted order
func (r *Registry[T]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.plugins))
	for id := range r.plugins {
		names = append(names, id.Name)
	}
	sort.Strings(names)
	return names
}

// Clear removes all registered plugins (mainly for testing)
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = make(map[Identifier]*registration[T])
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
