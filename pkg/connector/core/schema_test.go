package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/seaflow/pkg/config"
)

func TestParseSchemaList(t *testing.T) {
	opts := config.Options{
		"schema": map[string]interface{}{
			"fields": []interface{}{
				map[string]interface{}{"name": "id", "type": "bigint"},
				map[string]interface{}{"name": "name", "type": "string"},
			},
		},
	}
	rt, err := ParseSchema(opts, nil)
	require.NoError(t, err)
	assert.Equal(t, []Field{{"id", FieldTypeBigInt}, {"name", FieldTypeString}}, rt.Fields)
}

func TestParseSchemaMapping(t *testing.T) {
	opts := config.Options{
		"schema": map[string]interface{}{
			"fields": map[string]interface{}{"z": "int", "a": "boolean"},
		},
	}
	rt, err := ParseSchema(opts, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "z"}, rt.FieldNames())
}

func TestParseSchemaDefaultAndErrors(t *testing.T) {
	def := NewRowType(Field{Name: "x", Type: FieldTypeString})
	rt, err := ParseSchema(config.Options{}, def)
	require.NoError(t, err)
	assert.Same(t, def, rt)

	bad := []config.Options{
		{"schema": "nope"},
		{"schema": map[string]interface{}{"fields": 3}},
		{"schema": map[string]interface{}{"fields": []interface{}{"id"}}},
		{"schema": map[string]interface{}{"fields": map[string]interface{}{"id": "geometry"}}},
		{"schema": map[string]interface{}{"fields": []interface{}{}}},
	}
	for _, opts := range bad {
		_, err := ParseSchema(opts, def)
		assert.Error(t, err, "%v", opts)
	}
}

func TestRowFromMap(t *testing.T) {
	rt := NewRowType(
		Field{Name: "id", Type: FieldTypeBigInt},
		Field{Name: "score", Type: FieldTypeDouble},
		Field{Name: "active", Type: FieldTypeBoolean},
		Field{Name: "at", Type: FieldTypeTimestamp},
		Field{Name: "age", Type: FieldTypeInt},
		Field{Name: "missing", Type: FieldTypeString},
	)
	row, err := RowFromMap("users", rt, map[string]interface{}{
		"id":     float64(7),
		"score":  "1.5",
		"active": "true",
		"at":     "2024-05-01T10:00:00Z",
		"age":    "41",
	})
	require.NoError(t, err)
	assert.Equal(t, "users", row.Table)
	assert.Equal(t, int64(7), row.Values[0])
	assert.Equal(t, 1.5, row.Values[1])
	assert.Equal(t, true, row.Values[2])
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), row.Values[3])
	assert.Equal(t, int32(41), row.Values[4])
	assert.Nil(t, row.Values[5])

	_, err = RowFromMap("users", rt, map[string]interface{}{"id": "seven"})
	assert.Error(t, err)
}
