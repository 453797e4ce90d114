// Package plugin locates connector implementations.
//
// A plugin is named by an Identifier triple and resolved through a Discovery,
// which yields an instantiable Factory plus the dependency locations the host
// engine must be able to load before the job graph runs. Registry is the
// in-memory Discovery connectors register into; MappingDiscovery layers on-disk
// dependency folders on top of any other Discovery.
package plugin

import "fmt"

// EngineKind is the engine every seaflow plugin is built for
const EngineKind = "seaflow"

// Kind is the role a plugin plays in a job
type Kind string

const (
	KindSource    Kind = "source"
	KindTransform Kind = "transform"
	KindSink      Kind = "sink"
)

// Identifier names a plugin. It is comparable and used as a map key.
type Identifier struct {
	EngineKind string
	PluginKind Kind
	Name       string
}

// NewIdentifier builds an Identifier
func NewIdentifier(engineKind string, kind Kind, name string) Identifier {
	return Identifier{EngineKind: engineKind, PluginKind: kind, Name: name}
}

// SourceID is the identifier of a seaflow source plugin
func SourceID(name string) Identifier {
	return NewIdentifier(EngineKind, KindSource, name)
}

// TransformID is the identifier of a seaflow transform plugin
func TransformID(name string) Identifier {
	return NewIdentifier(EngineKind, KindTransform, name)
}

// SinkID is the identifier of a seaflow sink plugin
func SinkID(name string) Identifier {
	return NewIdentifier(EngineKind, KindSink, name)
}

// String renders engine/kind/name
func (id Identifier) String() string {
	return fmt.Sprintf("%s/%s/%s", id.EngineKind, id.PluginKind, id.Name)
}
