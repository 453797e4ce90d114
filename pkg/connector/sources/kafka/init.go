package kafka

import (
	"github.com/ajitpratap0/seaflow/pkg/connector/registry"
	"github.com/ajitpratap0/seaflow/pkg/plugin"
)

func init() {
	registry.RegisterSource(PluginName, NewSource)

	_ = registry.Describe(plugin.KindSource, &plugin.Info{
		Name:         PluginName,
		Description:  "Consumes Kafka topics; partitions are pinned to readers by one coordinator",
		Capabilities: []string{"unbounded", "coordinated", "partition-discovery"},
		ConfigSchema: map[string]interface{}{
			"topic":                        map[string]interface{}{"type": "string", "required": true, "description": "Comma separated topics, or a regex with pattern"},
			"pattern":                      map[string]interface{}{"type": "boolean", "default": false},
			"bootstrap.servers":            map[string]interface{}{"type": "string", "required": true},
			"consumer.group":               map[string]interface{}{"type": "string"},
			"commit_on_checkpoint":         map[string]interface{}{"type": "boolean", "default": false, "description": "Commit offsets when readers close instead of periodically"},
			"start_mode":                   map[string]interface{}{"type": "string", "enum": []string{"earliest", "latest", "group_offsets"}, "default": "group_offsets"},
			"format":                       map[string]interface{}{"type": "string", "enum": []string{"json", "text"}, "default": "json"},
			"partition-discovery.interval": map[string]interface{}{"type": "duration"},
			"max.poll.records":             map[string]interface{}{"type": "integer", "default": 500},
			"kafka.config":                 map[string]interface{}{"type": "object", "description": "client.id, version, security.protocol, sasl.*, session.timeout.ms, fetch.*"},
		},
	})
}
