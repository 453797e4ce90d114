package fieldmapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
)

var input = core.NewRowType(
	core.Field{Name: "id", Type: core.FieldTypeBigInt},
	core.Field{Name: "name", Type: core.FieldTypeString},
	core.Field{Name: "age", Type: core.FieldTypeInt},
)

func cfg(mapping map[string]interface{}) *config.PluginConfig {
	return config.MustPluginConfig(map[string]interface{}{
		"plugin_name":       PluginName,
		"result_table_name": "renamed",
		KeyFieldMapper:      mapping,
	})
}

func TestRenameAndDrop(t *testing.T) {
	tr, _ := NewTransform()
	require.NoError(t, tr.Prepare(cfg(map[string]interface{}{"age": "years", "id": "user_id"})))
	require.NoError(t, tr.SetInputType(input))

	out := tr.ProducedType()
	assert.Equal(t, []string{"user_id", "years"}, out.FieldNames())
	assert.Equal(t, core.FieldTypeInt, out.Fields[1].Type)

	row, keep, err := tr.Map(core.NewRow("people", int64(7), "ann", int32(31)))
	require.NoError(t, err)
	assert.True(t, keep)
	assert.Equal(t, []interface{}{int64(7), int32(31)}, row.Values)
	assert.Equal(t, "renamed", row.Table)

	_, _, err = tr.Map(core.NewRow("people", int64(7)))
	assert.Error(t, err)
}

func TestMappingErrors(t *testing.T) {
	for name, mapping := range map[string]map[string]interface{}{
		"empty":        {},
		"not a name":   {"id": 3},
		"same target":  {"id": "x", "name": "x"},
		"empty target": {"id": ""},
	} {
		t.Run(name, func(t *testing.T) {
			tr, _ := NewTransform()
			assert.Error(t, tr.Prepare(cfg(mapping)))
		})
	}

	tr, _ := NewTransform()
	require.NoError(t, tr.Prepare(cfg(map[string]interface{}{"zip": "code"})))
	assert.Error(t, tr.SetInputType(input))
}
