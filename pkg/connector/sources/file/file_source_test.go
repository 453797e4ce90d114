package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/seaflow/pkg/compression"
	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
	"github.com/ajitpratap0/seaflow/pkg/formats/avro"
	"github.com/ajitpratap0/seaflow/pkg/formats/columnar"
)

type rows []core.Row

func (r *rows) Collect(row core.Row) error {
	*r = append(*r, row)
	return nil
}

type oneReader struct{ reader core.SplitReader }

func (c *oneReader) Parallelism() int { return 1 }
func (c *oneReader) RegisteredReaders() []int { return []int{0} }
func (c *oneReader) SignalNoMoreSplits(int) { c.reader.HandleNoMoreSplits() }

func (c *oneReader) AssignSplits(_ int, splits ...core.Split) error {
	c.reader.AddSplits(splits)
	return nil
}

func writeFile(t *testing.T, path string, alg compression.Algorithm, content string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := compression.NewWriter(f, alg, compression.Default)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func newSource(t *testing.T, raw map[string]interface{}) (*Source, error) {
	t.Helper()
	raw["plugin_name"] = PluginName
	raw["result_table_name"] = "orders"
	src, _ := NewSource()
	err := src.Prepare(config.MustPluginConfig(raw))
	return src.(*Source), err
}

func readAll(t *testing.T, src *Source) []core.Row {
	t.Helper()
	reader, err := src.CreateReader(core.ReaderContext{Parallelism: 1})
	require.NoError(t, err)
	defer reader.Close()
	enum, err := src.CreateEnumerator(&oneReader{reader: reader})
	require.NoError(t, err)
	require.NoError(t, enum.Run(context.Background()))

	var out rows
	for {
		err := reader.PollNext(context.Background(), &out)
		if err == core.ErrEndOfInput {
			return out
		}
		require.NoError(t, err)
	}
}

var ordersSchema = map[string]interface{}{
	"fields": []interface{}{
		map[string]interface{}{"name": "id", "type": "bigint"},
		map[string]interface{}{"name": "item", "type": "string"},
		map[string]interface{}{"name": "at", "type": "timestamp"},
	},
}

func TestReadJSONLinesAcrossCodecs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jsonl"), compression.None,
		`{"id": 1, "item": "tea", "at": "2024-01-02T03:04:05Z"}`+"\n\n"+`{"id": 2, "item": "milk"}`+"\n")
	writeFile(t, filepath.Join(dir, "b.jsonl.gz"), compression.Gzip, `{"id": 3, "item": "jam"}`+"\n")
	writeFile(t, filepath.Join(dir, "c.jsonl.zst"), compression.Zstd, `{"id": 4}`+"\n")
	writeFile(t, filepath.Join(dir, ".hidden"), compression.None, "ignored\n")

	src, err := newSource(t, map[string]interface{}{"path": dir, "schema": ordersSchema, "batch_size": 1})
	require.NoError(t, err)
	assert.Len(t, src.Files(), 3)
	assert.Equal(t, core.StrategyParallel, core.StrategyOf(src))

	got := readAll(t, src)
	require.Len(t, got, 4)
	assert.Equal(t, []interface{}{int64(1), "tea", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}, got[0].Values)
	assert.Equal(t, []interface{}{int64(2), "milk", nil}, got[1].Values)
	assert.Equal(t, int64(3), got[2].Values[0])
	assert.Equal(t, []interface{}{int64(4), nil, nil}, got[3].Values)
	assert.Equal(t, "orders", got[0].Table)
}

func TestReadTextWithHeaderAndGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "x.log.lz4"), compression.LZ4, "header\nfirst\nsecond\n")
	writeFile(t, filepath.Join(dir, "y.txt"), compression.None, "other\n")

	src, err := newSource(t, map[string]interface{}{
		"path":                   filepath.Join(dir, "*.lz4"),
		"file_format_type":       "TEXT",
		"skip_header_row_number": 1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{TextField}, src.ProducedType().FieldNames())

	got := readAll(t, src)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Values[0])
	assert.Equal(t, "second", got[1].Values[0])
}

func TestPrepareErrors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]map[string]interface{}{
		"no path":          {},
		"json w/o schema":  {"path": dir},
		"bad format":       {"path": dir, "file_format_type": "xml"},
		"bad codec":        {"path": dir, "file_format_type": "text", "compress_codec": "rar"},
		"nothing matching": {"path": filepath.Join(dir, "*.csv"), "file_format_type": "text"},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newSource(t, raw)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestInvalidRecordReportsLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.jsonl")
	writeFile(t, path, compression.None, `{"id": 1}`+"\n"+`{"id": "x"}`+"\n")

	src, err := newSource(t, map[string]interface{}{"path": path, "schema": ordersSchema})
	require.NoError(t, err)
	reader, _ := src.CreateReader(core.ReaderContext{})
	reader.AddSplits([]core.Split{{ID: path, Payload: path}})

	var out rows
	err = reader.PollNext(context.Background(), &out)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	line, _ := errors.DetailOf(err, "line")
	assert.Equal(t, 2, line)
	assert.Len(t, out, 1)
	assert.NoError(t, reader.Close())
}

func writeAvro(t *testing.T, path string, rt *core.RowType, data ...[]interface{}) {
	t.Helper()
	codec, err := avro.NewCodec("orders", rt)
	require.NoError(t, err)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w, err := goavro.NewOCFWriter(goavro.OCFConfig{W: f, Codec: codec, CompressionName: avro.CodecDeflate})
	require.NoError(t, err)
	for _, values := range data {
		datum, err := avro.Native(rt, core.Row{Values: values})
		require.NoError(t, err)
		require.NoError(t, w.Append([]interface{}{datum}))
	}
}

func TestReadAvroUsesHeaderSchema(t *testing.T) {
	dir := t.TempDir()
	rt, err := core.ParseSchema(config.Options{"schema": ordersSchema}, nil)
	require.NoError(t, err)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	writeAvro(t, filepath.Join(dir, "a.avro"), rt, []interface{}{int64(1), "tea", at}, []interface{}{int64(2), nil, nil})
	writeAvro(t, filepath.Join(dir, "b.avro"), rt, []interface{}{int64(3), "jam", nil})

	src, err := newSource(t, map[string]interface{}{"path": dir, "file_format_type": "avro", "batch_size": 1})
	require.NoError(t, err)
	assert.True(t, rt.Equal(src.ProducedType()))

	got := readAll(t, src)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].Values[0])
	assert.Equal(t, "tea", got[0].Values[1])
	ts, ok := got[0].Values[2].(time.Time)
	require.True(t, ok)
	assert.True(t, at.Equal(ts))
	assert.Equal(t, []interface{}{int64(2), nil, nil}, got[1].Values)
	assert.Equal(t, "jam", got[2].Values[1])
}

func TestReadAvroWithSchemaProjection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.avro")
	rt, err := core.ParseSchema(config.Options{"schema": ordersSchema}, nil)
	require.NoError(t, err)
	writeAvro(t, path, rt, []interface{}{int64(7), "tea", nil})

	src, err := newSource(t, map[string]interface{}{
		"path":             path,
		"file_format_type": "avro",
		"schema": map[string]interface{}{
			"fields": []interface{}{map[string]interface{}{"name": "item", "type": "string"}},
		},
	})
	require.NoError(t, err)
	got := readAll(t, src)
	require.Len(t, got, 1)
	assert.Equal(t, []interface{}{"tea"}, got[0].Values)
}

func TestReadAvroRejectsOtherFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.avro")
	writeFile(t, path, compression.None, "not avro\n")

	_, err := newSource(t, map[string]interface{}{"path": path, "file_format_type": "avro"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
	detail, _ := errors.DetailOf(err, "path")
	assert.Equal(t, path, detail)
}

// writeArrow writes one record batch per group of rows
func writeArrow(t *testing.T, path string, rt *core.RowType, batches ...[][]interface{}) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := compression.NewWriter(f, compression.FromPath(path), compression.Default)
	require.NoError(t, err)
	iw := ipc.NewWriter(w, ipc.WithSchema(columnar.Schema(rt)))
	b := columnar.NewBuilder(rt)
	defer b.Release()
	for _, batch := range batches {
		for _, values := range batch {
			require.NoError(t, b.Append(core.Row{Values: values}))
		}
		rec := b.NewRecord()
		require.NoError(t, iw.Write(rec))
		rec.Release()
	}
	require.NoError(t, iw.Close())
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func TestReadArrowAcrossBatches(t *testing.T) {
	dir := t.TempDir()
	rt, err := core.ParseSchema(config.Options{"schema": ordersSchema}, nil)
	require.NoError(t, err)
	writeArrow(t, filepath.Join(dir, "a.arrows.gz"), rt,
		[][]interface{}{{int64(1), "tea", nil}, {int64(2), "milk", nil}, {int64(3), nil, nil}},
		[][]interface{}{{int64(4), "jam", nil}},
	)

	src, err := newSource(t, map[string]interface{}{"path": dir, "file_format_type": "arrow", "batch_size": 2})
	require.NoError(t, err)
	assert.True(t, rt.Equal(src.ProducedType()))

	got := readAll(t, src)
	require.Len(t, got, 4)
	assert.Equal(t, []interface{}{int64(1), "tea", nil}, got[0].Values)
	assert.Equal(t, []interface{}{int64(3), nil, nil}, got[2].Values)
	assert.Equal(t, []interface{}{int64(4), "jam", nil}, got[3].Values)
}

func TestReadArrowRejectsOtherFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.arrows")
	writeFile(t, path, compression.None, "not arrow\n")

	_, err := newSource(t, map[string]interface{}{"path": path, "file_format_type": "arrow"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}
