package file

import (
	"github.com/ajitpratap0/seaflow/pkg/connector/registry"
	"github.com/ajitpratap0/seaflow/pkg/plugin"
)

func init() {
	registry.RegisterSource(PluginName, NewSource)

	_ = registry.Describe(plugin.KindSource, &plugin.Info{
		Name:         PluginName,
		Description:  "Reads JSON lines, text, Avro container files or Arrow streams, one split per file",
		Capabilities: []string{"bounded", "parallel", "compression"},
		ConfigSchema: map[string]interface{}{
			"path":                   map[string]interface{}{"type": "string", "required": true, "description": "File, directory or glob"},
			"file_format_type":       map[string]interface{}{"type": "string", "enum": []string{"json", "text", "avro", "arrow"}, "default": "json"},
			"compress_codec":         map[string]interface{}{"type": "string", "description": "Overrides detection by extension"},
			"batch_size":             map[string]interface{}{"type": "integer", "default": 1024},
			"skip_header_row_number": map[string]interface{}{"type": "integer", "default": 0},
			"schema":                 map[string]interface{}{"type": "object", "required": true, "description": "Required for json, read from the file header for avro and arrow"},
		},
	})
}
