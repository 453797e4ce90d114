// Package registry holds the process-wide plugin registries connectors add
// themselves to from init functions.
package registry

import (
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/plugin"
)

// SourceFactory builds an unconfigured source instance
type SourceFactory = plugin.Factory[core.Source]

// TransformFactory builds an unconfigured transform instance
type TransformFactory = plugin.Factory[core.Transform]

// SinkFactory builds an unconfigured sink instance
type SinkFactory = plugin.Factory[core.Sink]

// Global registries
var (
	Sources    = plugin.NewRegistry[core.Source](plugin.EngineKind, plugin.KindSource)
	Transforms = plugin.NewRegistry[core.Transform](plugin.EngineKind, plugin.KindTransform)
	Sinks      = plugin.NewRegistry[core.Sink](plugin.EngineKind, plugin.KindSink)
)

// RegisterSource registers a source connector in the global registry.
// Dependencies are runtime locations the engine must load for the plugin.
func RegisterSource(name string, factory SourceFactory, dependencies ...string) {
	Sources.MustRegister(name, factory, dependencies...)
}

// RegisterTransform registers a transform in the global registry
func RegisterTransform(name string, factory TransformFactory, dependencies ...string) {
	Transforms.MustRegister(name, factory, dependencies...)
}

// RegisterSink registers a sink connector in the global registry
func RegisterSink(name string, factory SinkFactory, dependencies ...string) {
	Sinks.MustRegister(name, factory, dependencies...)
}

// Describe attaches catalog metadata to an already registered plugin
func Describe(kind plugin.Kind, info *plugin.Info) error {
	switch kind {
	case plugin.KindSource:
		return Sources.SetInfo(info)
	case plugin.KindTransform:
		return Transforms.SetInfo(info)
	default:
		return Sinks.SetInfo(info)
	}
}

// Catalog returns the metadata of every registered plugin of a kind, sorted by name
func Catalog(kind plugin.Kind) []*plugin.Info {
	var (
		names []string
		info  func(string) (*plugin.Info, bool)
	)
	switch kind {
	case plugin.KindSource:
		names, info = Sources.List(), Sources.Info
	case plugin.KindTransform:
		names, info = Transforms.List(), Transforms.Info
	default:
		names, info = Sinks.List(), Sinks.Info
	}

	infos := make([]*plugin.Info, 0, len(names))
	for _, name := range names {
		if i, ok := info(name); ok {
			infos = append(infos, i)
		}
	}
	return infos
}
