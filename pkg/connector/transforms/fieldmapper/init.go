package fieldmapper

import (
	"github.com/ajitpratap0/seaflow/pkg/connector/registry"
	"github.com/ajitpratap0/seaflow/pkg/plugin"
)

func init() {
	registry.RegisterTransform(PluginName, NewTransform)

	_ = registry.Describe(plugin.KindTransform, &plugin.Info{
		Name:        PluginName,
		Description: "Renames columns and drops unmapped ones",
		ConfigSchema: map[string]interface{}{
			KeyFieldMapper: map[string]interface{}{"type": "object", "required": true, "description": "source column to output column"},
		},
	})
}
