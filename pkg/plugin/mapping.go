package plugin

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// MappingDiscovery adds on-disk plugin libraries to another Discovery. For a
// plugin it lists every regular file under <root>/<kind>/<name>/, so an
// operator can drop driver files or UDF bundles next to the binary:
//
//	plugins/
//	  source/
//	    Jdbc/
//	      ojdbc-shim.so
//
// A plugin without a folder simply contributes no extra locations.
type MappingDiscovery[T any] struct {
	inner Discovery[T]
	root  string
}

// NewMappingDiscovery wraps inner with the plugin folder rooted at root
func NewMappingDiscovery[T any](inner Discovery[T], root string) *MappingDiscovery[T] {
	return &MappingDiscovery[T]{inner: inner, root: root}
}

// Resolve implements Discovery
func (m *MappingDiscovery[T]) Resolve(id Identifier) (Factory[T], []string, error) {
	factory, deps, err := m.inner.Resolve(id)
	if err != nil {
		return nil, nil, err
	}
	if m.root == "" {
		return factory, deps, nil
	}

	dir := filepath.Join(m.root, string(id.PluginKind), id.Name)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return factory, deps, nil
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeDependency, "failed to read plugin folder").
			WithDetail(errors.DetailPlugin, id.Name).
			WithDetail(errors.DetailLocation, dir)
	}

	local := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrorTypeDependency, "failed to resolve plugin library").
				WithDetail(errors.DetailPlugin, id.Name)
		}
		local = append(local, path)
	}
	sort.Strings(local)
	return factory, append(deps, local...), nil
}

// Instantiate implements Discovery
func (m *MappingDiscovery[T]) Instantiate(factory Factory[T]) (T, error) {
	return m.inner.Instantiate(factory)
}
