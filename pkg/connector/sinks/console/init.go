package console

import (
	"github.com/ajitpratap0/seaflow/pkg/connector/registry"
	"github.com/ajitpratap0/seaflow/pkg/plugin"
)

func init() {
	registry.RegisterSink(PluginName, NewSink)

	_ = registry.Describe(plugin.KindSink, &plugin.Info{
		Name:        PluginName,
		Description: "Prints rows to stdout",
		ConfigSchema: map[string]interface{}{
			"format": map[string]interface{}{"type": "string", "enum": []string{"text", "json"}, "default": "text"},
			"limit":  map[string]interface{}{"type": "integer", "default": 0},
		},
	})
}
