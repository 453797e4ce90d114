package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/connector/registry"
)

type sliceCollector struct{ rows []core.Row }

func (c *sliceCollector) Collect(row core.Row) error {
	c.rows = append(c.rows, row)
	return nil
}

type singleReader struct {
	parallelism int
	reader      core.SplitReader
}

func (c *singleReader) Parallelism() int { return c.parallelism }
func (c *singleReader) RegisteredReaders() []int { return []int{0} }
func (c *singleReader) SignalNoMoreSplits(int) { c.reader.HandleNoMoreSplits() }

func (c *singleReader) AssignSplits(_ int, splits ...core.Split) error {
	c.reader.AddSplits(splits)
	return nil
}

func prepared(t *testing.T, raw map[string]interface{}) *Source {
	t.Helper()
	raw["plugin_name"] = PluginName
	raw["result_table_name"] = "fake"
	src, err := NewSource()
	require.NoError(t, err)
	require.NoError(t, src.Prepare(config.MustPluginConfig(raw)))
	return src.(*Source)
}

func drain(t *testing.T, src *Source) []core.Row {
	t.Helper()
	reader, err := src.CreateReader(core.ReaderContext{Parallelism: 1})
	require.NoError(t, err)
	enum, err := src.CreateEnumerator(&singleReader{parallelism: 1, reader: reader})
	require.NoError(t, err)
	require.NoError(t, enum.Run(context.Background()))

	out := &sliceCollector{}
	for {
		err := reader.PollNext(context.Background(), out)
		if err == core.ErrEndOfInput {
			return out.rows
		}
		require.NoError(t, err)
	}
}

func TestFakeSourceDefaults(t *testing.T) {
	src := prepared(t, map[string]interface{}{})
	assert.Equal(t, core.Bounded, src.Boundedness())
	assert.Equal(t, []string{"name", "age"}, src.ProducedType().FieldNames())
	assert.Equal(t, core.StrategyParallel, core.StrategyOf(src))

	rows := drain(t, src)
	require.Len(t, rows, 5)
	assert.IsType(t, "", rows[0].Values[0])
	assert.IsType(t, int32(0), rows[0].Values[1])
	assert.Equal(t, "fake", rows[0].Table)
}

func TestFakeSourceSchemaAndSplits(t *testing.T) {
	src := prepared(t, map[string]interface{}{
		"row.num":   "3",
		"split.num": 4,
		"seed":      42,
		"schema": map[string]interface{}{
			"fields": []interface{}{
				map[string]interface{}{"name": "id", "type": "bigint"},
				map[string]interface{}{"name": "ok", "type": "boolean"},
			},
		},
	})
	rows := drain(t, src)
	require.Len(t, rows, 12)
	assert.IsType(t, int64(0), rows[0].Values[0])
	assert.IsType(t, true, rows[0].Values[1])

	// Seeded output is reproducible
	again := drain(t, prepared(t, map[string]interface{}{
		"row.num": 3, "split.num": 4, "seed": 42,
		"schema": map[string]interface{}{"fields": map[string]interface{}{"id": "bigint", "ok": "boolean"}},
	}))
	assert.Equal(t, rows, again)
}

func TestFakeSourceInvalidOptions(t *testing.T) {
	src, _ := NewSource()
	err := src.Prepare(config.MustPluginConfig(map[string]interface{}{"plugin_name": PluginName, "split.num": 0}))
	assert.Error(t, err)

	err = src.Prepare(config.MustPluginConfig(map[string]interface{}{"plugin_name": PluginName, "row.num": "many"}))
	assert.Error(t, err)
}

func TestFakeSourceRegistered(t *testing.T) {
	assert.True(t, registry.Sources.Has(PluginName))
	info, ok := registry.Sources.Info(PluginName)
	require.True(t, ok)
	assert.Contains(t, info.Capabilities, "bounded")
}
