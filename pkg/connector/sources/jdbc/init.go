package jdbc

import (
	"github.com/ajitpratap0/seaflow/pkg/connector/registry"
	"github.com/ajitpratap0/seaflow/pkg/plugin"
)

func init() {
	registry.RegisterSource(PluginName, NewSource)

	_ = registry.Describe(plugin.KindSource, &plugin.Info{
		Name:         PluginName,
		Description:  "Reads a PostgreSQL or MySQL query, range partitioned on a numeric column",
		Capabilities: []string{"bounded", "coordinated", "schema-discovery"},
		ConfigSchema: map[string]interface{}{
			"url":                      map[string]interface{}{"type": "string", "required": true},
			"driver":                   map[string]interface{}{"type": "string", "enum": []string{"postgres", "mysql"}},
			"query":                    map[string]interface{}{"type": "string"},
			"table":                    map[string]interface{}{"type": "string"},
			"partition_column":         map[string]interface{}{"type": "string"},
			"partition_num":            map[string]interface{}{"type": "integer", "description": "Defaults to the source parallelism"},
			"partition_lower_bound":    map[string]interface{}{"type": "integer"},
			"partition_upper_bound":    map[string]interface{}{"type": "integer"},
			"fetch_size":               map[string]interface{}{"type": "integer", "default": 1024},
			"connection_check_timeout": map[string]interface{}{"type": "duration", "default": "30s"},
		},
	})
}
