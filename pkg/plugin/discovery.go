package plugin

// Factory builds a fresh, unconfigured plugin instance
type Factory[T any] func() (T, error)

// Discovery resolves identifiers to factories. Implementations must be
// idempotent for the same identifier within one process run.
type Discovery[T any] interface {
	// Resolve returns the factory for id and the locations of everything the
	// plugin needs at runtime. Unknown identifiers fail with plugin_not_found.
	Resolve(id Identifier) (Factory[T], []string, error)
	// Instantiate runs the factory
	Instantiate(factory Factory[T]) (T, error)
}
