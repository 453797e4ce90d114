package filter

import (
	"github.com/ajitpratap0/seaflow/pkg/connector/registry"
	"github.com/ajitpratap0/seaflow/pkg/plugin"
)

func init() {
	registry.RegisterTransform(PluginName, NewTransform)

	_ = registry.Describe(plugin.KindTransform, &plugin.Info{
		Name:        PluginName,
		Description: "Keeps rows whose field matches a regular expression and projects columns",
		ConfigSchema: map[string]interface{}{
			"field":   map[string]interface{}{"type": "string"},
			"pattern": map[string]interface{}{"type": "string", "description": "RE2 regular expression"},
			"invert":  map[string]interface{}{"type": "boolean", "default": false},
			"fields":  map[string]interface{}{"type": "array", "description": "Output columns"},
		},
	})
}
