package mongodb

import (
	"github.com/ajitpratap0/seaflow/pkg/connector/registry"
	"github.com/ajitpratap0/seaflow/pkg/plugin"
)

func init() {
	registry.RegisterSource(PluginName, NewSource)

	_ = registry.Describe(plugin.KindSource, &plugin.Info{
		Name:         PluginName,
		Description:  "Reads MongoDB collections with find cursors, one split per collection",
		Capabilities: []string{"bounded", "parallel"},
		ConfigSchema: map[string]interface{}{
			"uri":        map[string]interface{}{"type": "string", "required": true},
			"database":   map[string]interface{}{"type": "string", "required": true},
			"collection": map[string]interface{}{"type": "string", "required": true, "description": "Comma separated collections"},
			"match":      map[string]interface{}{"type": "string", "description": "Filter document in extended JSON"},
			"batch_size": map[string]interface{}{"type": "integer", "default": 1024},
			"schema":     map[string]interface{}{"type": "object", "required": true},
		},
	})
}
