package file

import (
	"github.com/ajitpratap0/seaflow/pkg/connector/registry"
	"github.com/ajitpratap0/seaflow/pkg/plugin"
)

func init() {
	registry.RegisterSink(PluginName, NewSink)

	_ = registry.Describe(plugin.KindSink, &plugin.Info{
		Name:         PluginName,
		Description:  "Writes JSON lines, text, Avro container files or Arrow streams to local files",
		Capabilities: []string{"compression"},
		ConfigSchema: map[string]interface{}{
			"path":             map[string]interface{}{"type": "string", "required": true},
			"file_format_type": map[string]interface{}{"type": "string", "enum": []string{"json", "text", "avro", "arrow"}, "default": "json"},
			"compress_codec":   map[string]interface{}{"type": "string", "enum": []string{"none", "gzip", "zstd", "lz4", "snappy"}},
			"compress_level":   map[string]interface{}{"type": "string", "enum": []string{"fastest", "default", "best"}},
			"avro_codec":       map[string]interface{}{"type": "string", "enum": []string{"null", "deflate", "snappy"}, "default": "null"},
			"file_name_prefix": map[string]interface{}{"type": "string"},
		},
	})
}
