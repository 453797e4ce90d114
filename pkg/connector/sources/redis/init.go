package redis

import (
	"github.com/ajitpratap0/seaflow/pkg/connector/registry"
	"github.com/ajitpratap0/seaflow/pkg/plugin"
)

func init() {
	registry.RegisterSource(PluginName, NewSource)

	_ = registry.Describe(plugin.KindSource, &plugin.Info{
		Name:         PluginName,
		Description:  "Scans Redis keys matching patterns, one split per pattern",
		Capabilities: []string{"bounded", "parallel"},
		ConfigSchema: map[string]interface{}{
			"host":       map[string]interface{}{"type": "string", "default": "localhost"},
			"port":       map[string]interface{}{"type": "integer", "default": 6379},
			"user":       map[string]interface{}{"type": "string"},
			"auth":       map[string]interface{}{"type": "string"},
			"db_num":     map[string]interface{}{"type": "integer", "default": 0},
			"keys":       map[string]interface{}{"type": "string", "required": true, "description": "Comma separated SCAN patterns"},
			"data_type":  map[string]interface{}{"type": "string", "enum": []string{"key", "hash", "list", "set", "zset"}, "default": "key"},
			"format":     map[string]interface{}{"type": "string", "enum": []string{"text", "json"}, "default": "text"},
			"batch_size": map[string]interface{}{"type": "integer", "default": 100},
		},
	})
}
