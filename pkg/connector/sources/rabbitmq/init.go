package rabbitmq

import (
	"github.com/ajitpratap0/seaflow/pkg/connector/registry"
	"github.com/ajitpratap0/seaflow/pkg/plugin"
)

func init() {
	registry.RegisterSource(PluginName, NewSource)

	_ = registry.Describe(plugin.KindSource, &plugin.Info{
		Name:         PluginName,
		Description:  "Consumes a RabbitMQ queue with one competing consumer per reader",
		Capabilities: []string{"unbounded", "parallel", "at-least-once"},
		ConfigSchema: map[string]interface{}{
			"url":              map[string]interface{}{"type": "string", "description": "amqp:// URI, overrides host and credentials"},
			"host":             map[string]interface{}{"type": "string", "default": "localhost"},
			"port":             map[string]interface{}{"type": "integer", "default": 5672},
			"virtual_host":     map[string]interface{}{"type": "string", "default": "/"},
			"username":         map[string]interface{}{"type": "string", "default": "guest"},
			"password":         map[string]interface{}{"type": "string", "default": "guest"},
			"queue_name":       map[string]interface{}{"type": "string", "required": true},
			"declare":          map[string]interface{}{"type": "boolean", "default": false},
			"durable":          map[string]interface{}{"type": "boolean", "default": false},
			"auto_delete":      map[string]interface{}{"type": "boolean", "default": false},
			"prefetch_count":   map[string]interface{}{"type": "integer", "default": 100},
			"requeue_on_error": map[string]interface{}{"type": "boolean", "default": false},
			"format":           map[string]interface{}{"type": "string", "enum": []string{"text", "json"}, "default": "text"},
		},
	})
}
