package fake

import (
	"github.com/ajitpratap0/seaflow/pkg/connector/registry"
	"github.com/ajitpratap0/seaflow/pkg/plugin"
)

func init() {
	registry.RegisterSource(PluginName, NewSource)

	_ = registry.Describe(plugin.KindSource, &plugin.Info{
		Name:         PluginName,
		Description:  "Bounded source of generated rows",
		Capabilities: []string{"bounded", "parallel"},
		ConfigSchema: map[string]interface{}{
			"row.num":             map[string]interface{}{"type": "integer", "default": 5, "description": "Rows per split"},
			"split.num":           map[string]interface{}{"type": "integer", "default": 1, "description": "Number of splits"},
			"seed":                map[string]interface{}{"type": "integer", "description": "Seed for reproducible data"},
			"split.read-interval": map[string]interface{}{"type": "duration", "description": "Pause between splits"},
			"schema":              map[string]interface{}{"type": "object", "description": "schema.fields lists name and type of each column"},
		},
	})
}
