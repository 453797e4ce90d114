package file

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	gojson "github.com/goccy/go-json"
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

var people = core.NewRowType(
	core.Field{Name: "name", Type: core.FieldTypeString},
	core.Field{Name: "age", Type: core.FieldTypeInt},
)

func prepared(t *testing.T, raw map[string]interface{}) *Sink {
	t.Helper()
	raw["plugin_name"] = PluginName
	raw["source_table_name"] = "people"
	s, _ := NewSink()
	require.NoError(t, s.Prepare(config.MustPluginConfig(raw)))
	require.NoError(t, s.SetInputType(people))
	return s.(*Sink)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := compression.NewReader(f, compression.FromPath(path))
	require.NoError(t, err)
	defer r.Close()

	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestWriteJSONLines(t *testing.T) {
	for _, codec := range []string{"none", "gzip", "zstd", "lz4", "snappy"} {
		t.Run(codec, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out")
			s := prepared(t, map[string]interface{}{"path": dir, "compress_codec": codec, "compress_level": "fastest"})

			w, err := s.CreateWriter(core.WriterContext{SubtaskIndex: 1, Parallelism: 2})
			require.NoError(t, err)
			require.NoError(t, w.Write(context.Background(), core.NewRow("people", "ann", int32(31))))
			require.NoError(t, w.Write(context.Background(), core.NewRow("people", "bob", nil)))
			require.NoError(t, w.Close())

			path := s.FileName(1)
			assert.Equal(t, "people-1.jsonl"+compression.Algorithm(codec).Extension(), filepath.Base(path))
			lines := readLines(t, path)
			require.Len(t, lines, 2)

			var first map[string]interface{}
			require.NoError(t, gojson.Unmarshal([]byte(lines[0]), &first))
			assert.Equal(t, map[string]interface{}{"name": "ann", "age": float64(31)}, first)
			assert.JSONEq(t, `{"name":"bob","age":null}`, lines[1])
		})
	}
}

func TestWriteText(t *testing.T) {
	dir := t.TempDir()
	s := prepared(t, map[string]interface{}{"path": dir, "file_format_type": "text", "file_name_prefix": "dump"})
	w, err := s.CreateWriter(core.WriterContext{})
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), core.NewRow("people", "ann", int32(31))))
	require.NoError(t, w.Close())

	assert.Equal(t, []string{"ann\t31"}, readLines(t, filepath.Join(dir, "dump-0.txt")))
}

func TestSinkPrepareErrors(t *testing.T) {
	for name, raw := range map[string]map[string]interface{}{
		"no path": {},
		"format":  {"path": "x", "file_format_type": "parquet"},
		"codec":   {"path": "x", "compress_codec": "brotli"},
		"level":   {"path": "x", "compress_level": "max"},
		"avro":    {"path": "x", "file_format_type": "avro", "avro_codec": "bzip2"},
	} {
		t.Run(name, func(t *testing.T) {
			raw["plugin_name"] = PluginName
			s, _ := NewSink()
			assert.Error(t, s.Prepare(config.MustPluginConfig(raw)))
		})
	}

	s, _ := NewSink()
	assert.Error(t, s.SetInputType(core.NewRowType()))
}

func readAvro(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := compression.NewReader(f, compression.FromPath(path))
	require.NoError(t, err)
	defer r.Close()
	ocf, err := goavro.NewOCFReader(r)
	require.NoError(t, err)

	var records []map[string]interface{}
	for ocf.Scan() {
		datum, err := ocf.Read()
		require.NoError(t, err)
		rec, err := avro.Record(datum)
		require.NoError(t, err)
		records = append(records, rec)
	}
	require.NoError(t, ocf.Err())
	return records
}

func TestWriteAvro(t *testing.T) {
	for _, codec := range []string{"null", "deflate", "snappy"} {
		t.Run(codec, func(t *testing.T) {
			dir := t.TempDir()
			s := prepared(t, map[string]interface{}{"path": dir, "file_format_type": "avro", "avro_codec": codec, "compress_codec": "gzip"})
			path := s.FileName(0)
			assert.Equal(t, filepath.Join(dir, "people-0.avro.gz"), path)

			w, err := s.CreateWriter(core.WriterContext{})
			require.NoError(t, err)
			for i := 0; i < blockRows+1; i++ {
				require.NoError(t, w.Write(context.Background(), core.NewRow("people", "ann", int32(i))))
			}
			require.NoError(t, w.Write(context.Background(), core.NewRow("people", nil, int32(40))))
			require.NoError(t, w.Close())

			records := readAvro(t, path)
			require.Len(t, records, blockRows+2)
			assert.Equal(t, map[string]interface{}{"name": "ann", "age": int32(0)}, records[0])
			assert.Equal(t, map[string]interface{}{"name": nil, "age": int32(40)}, records[blockRows+1])
		})
	}
}

func TestAvroRejectsInvalidFieldNames(t *testing.T) {
	s, _ := NewSink()
	require.NoError(t, s.Prepare(config.MustPluginConfig(map[string]interface{}{
		"plugin_name":      PluginName,
		"path":             t.TempDir(),
		"file_format_type": "avro",
	})))
	err := s.SetInputType(core.NewRowType(core.Field{Name: "user id", Type: core.FieldTypeString}))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestWriteArrowStream(t *testing.T) {
	dir := t.TempDir()
	s := prepared(t, map[string]interface{}{"path": dir, "file_format_type": "arrow", "compress_codec": "zstd"})
	path := s.FileName(2)
	assert.Equal(t, filepath.Join(dir, "people-2.arrows.zst"), path)

	w, err := s.CreateWriter(core.WriterContext{SubtaskIndex: 2, Parallelism: 3})
	require.NoError(t, err)
	for i := 0; i < blockRows+3; i++ {
		require.NoError(t, w.Write(context.Background(), core.NewRow("people", "ann", int32(i))))
	}
	require.NoError(t, w.Write(context.Background(), core.NewRow("people", nil, int32(40))))
	assert.Error(t, w.Write(context.Background(), core.NewRow("people", "bob", "forty")))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := compression.NewReader(f, compression.FromPath(path))
	require.NoError(t, err)
	defer zr.Close()
	r, err := ipc.NewReader(zr)
	require.NoError(t, err)
	defer r.Release()

	var got []map[string]interface{}
	batches := 0
	for r.Next() {
		batches++
		rec := r.Record()
		for i := 0; i < int(rec.NumRows()); i++ {
			got = append(got, columnar.Values(rec, i))
		}
	}
	require.NoError(t, r.Err())
	assert.Equal(t, 2, batches)
	require.Len(t, got, blockRows+4)
	assert.Equal(t, map[string]interface{}{"name": "ann", "age": int32(0)}, got[0])
	assert.Equal(t, map[string]interface{}{"name": nil, "age": int32(40)}, got[blockRows+3])
}
