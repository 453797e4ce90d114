// Package file provides the LocalFile sink. Each writer owns one output
// file named <table>-<subtask>.<format>[.<codec>] under the configured
// directory. The avro format writes object container files and the arrow
// format writes Arrow IPC streams, both with a schema that follows the
// input row type.
package file

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	gojson "github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/seaflow/pkg/compression"
	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
	"github.com/ajitpratap0/seaflow/pkg/formats/avro"
	"github.com/ajitpratap0/seaflow/pkg/formats/columnar"
)

// PluginName is the registered name
const PluginName = "LocalFile"

// Options configure the LocalFile sink
type Options struct {
	// Path is the output directory, created when missing
	Path string `config:"path"`
	// Format is json (one object per line), text (tab separated values),
	// avro or arrow
	Format string `config:"file_format_type"`
	// Compression is none, gzip, zstd, lz4 or snappy
	Compression string `config:"compress_codec"`
	// Level is fastest, default or best
	Level string `config:"compress_level"`
	// AvroCodec is the block codec of avro files: null, deflate or snappy
	AvroCodec string `config:"avro_codec"`
	// Prefix replaces the table name in file names
	Prefix string `config:"file_name_prefix"`
}

// blockRows is the number of rows per avro block or arrow record batch
const blockRows = 512

// Sink writes rows to local files
type Sink struct {
	opts    Options
	codec   compression.Algorithm
	level   compression.Level
	table   string
	rowType *core.RowType
	schema  *goavro.Codec
	columns *arrow.Schema
}

// NewSink creates an unconfigured LocalFile sink
func NewSink() (core.Sink, error) {
	return &Sink{}, nil
}

func (s *Sink) PluginName() string { return PluginName }

// Prepare implements core.Sink
func (s *Sink) Prepare(cfg *config.PluginConfig) error {
	opts := Options{Format: "json"}
	if err := cfg.Options.Decode(&opts); err != nil {
		return err
	}
	if opts.Path == "" {
		return errors.New(errors.ErrorTypeConfig, "path is required")
	}
	opts.Format = strings.ToLower(opts.Format)
	switch opts.Format {
	case "json", "text", "avro", "arrow":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported file_format_type %q", opts.Format)
	}
	blockCodec, err := avro.ParseCodec(opts.AvroCodec)
	if err != nil {
		return err
	}
	opts.AvroCodec = blockCodec
	codec, err := compression.Parse(opts.Compression)
	if err != nil {
		return err
	}
	level := compression.Default
	switch strings.ToLower(opts.Level) {
	case "fastest":
		level = compression.Fastest
	case "best":
		level = compression.Best
	case "", "default":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported compress_level %q", opts.Level)
	}

	s.opts = opts
	s.codec = codec
	s.level = level
	s.table = opts.Prefix
	if s.table == "" && len(cfg.SourceTableNames) > 0 {
		s.table = cfg.SourceTableNames[0]
	}
	if s.table == "" {
		s.table = "part"
	}
	return nil
}

func (s *Sink) SetJobContext(core.JobContext) {}

func (s *Sink) SetInputType(t *core.RowType) error {
	if t.Len() == 0 {
		return errors.New(errors.ErrorTypeConfig, "LocalFile sink needs an input with at least one field")
	}
	if s.opts.Format == "avro" {
		schema, err := avro.NewCodec(s.table, t)
		if err != nil {
			return err
		}
		s.schema = schema
	}
	if s.opts.Format == "arrow" {
		s.columns = columnar.Schema(t)
	}
	s.rowType = t
	return nil
}

// FileName returns the output file of a subtask
func (s *Sink) FileName(subtask int) string {
	name := fmt.Sprintf("%s-%d.%s", s.table, subtask, s.ext())
	return filepath.Join(s.opts.Path, name+s.codec.Extension())
}

func (s *Sink) ext() string {
	switch s.opts.Format {
	case "text":
		return "txt"
	case "avro":
		return "avro"
	case "arrow":
		return "arrows"
	}
	return "jsonl"
}

// CreateWriter implements core.Sink
func (s *Sink) CreateWriter(ctx core.WriterContext) (core.Writer, error) {
	if err := os.MkdirAll(s.opts.Path, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create "+s.opts.Path)
	}
	path := s.FileName(ctx.SubtaskIndex)
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create "+path).WithDetail("path", path)
	}
	stream, err := compression.NewWriter(f, s.codec, s.level)
	if err != nil {
		f.Close()
		return nil, err
	}
	w := &writer{sink: s, file: f, stream: stream, buf: bufio.NewWriterSize(stream, 64*1024)}
	if s.schema != nil {
		w.ocf, err = goavro.NewOCFWriter(goavro.OCFConfig{W: w.buf, Codec: s.schema, CompressionName: s.opts.AvroCodec})
		if err != nil {
			stream.Close()
			f.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to start "+path).WithDetail("path", path)
		}
	}
	if s.columns != nil {
		w.arrows = ipc.NewWriter(w.buf, ipc.WithSchema(s.columns))
		w.batch = columnar.NewBuilder(s.rowType)
	}
	return w, nil
}

type writer struct {
	sink    *Sink
	file    *os.File
	stream  io.WriteCloser
	buf     *bufio.Writer
	ocf     *goavro.OCFWriter
	pending []interface{}
	arrows  *ipc.Writer
	batch   *columnar.Builder
}

func (w *writer) Write(_ context.Context, row core.Row) error {
	if w.ocf != nil {
		datum, err := avro.Native(w.sink.rowType, row)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to encode row")
		}
		w.pending = append(w.pending, datum)
		if len(w.pending) < blockRows {
			return nil
		}
		return w.appendBlock()
	}
	if w.arrows != nil {
		if err := w.batch.Append(row); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to encode row")
		}
		if w.batch.Len() < blockRows {
			return nil
		}
		return w.writeBatch()
	}
	if w.sink.opts.Format == "text" {
		for i, v := range row.Values {
			if i > 0 {
				w.buf.WriteByte('\t')
			}
			fmt.Fprint(w.buf, v)
		}
		return w.buf.WriteByte('\n')
	}

	line, err := gojson.Marshal(row.Map(w.sink.rowType))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode row")
	}
	if _, err := w.buf.Write(line); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write "+w.file.Name())
	}
	return w.buf.WriteByte('\n')
}

func (w *writer) appendBlock() error {
	if len(w.pending) == 0 {
		return nil
	}
	err := w.ocf.Append(w.pending)
	w.pending = w.pending[:0]
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to append avro block to "+w.file.Name())
	}
	return nil
}

func (w *writer) writeBatch() error {
	if w.batch.Len() == 0 {
		return nil
	}
	rec := w.batch.NewRecord()
	defer rec.Release()
	if err := w.arrows.Write(rec); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write arrow batch to "+w.file.Name())
	}
	return nil
}

// Close flushes pending records, the buffer and the codec before closing
// the file
func (w *writer) Close() error {
	var err error
	if w.ocf != nil {
		err = w.appendBlock()
	}
	if w.arrows != nil {
		if berr := w.writeBatch(); err == nil {
			err = berr
		}
		if cerr := w.arrows.Close(); err == nil {
			err = cerr
		}
		w.batch.Release()
	}
	if ferr := w.buf.Flush(); err == nil {
		err = ferr
	}
	if cerr := w.stream.Close(); err == nil {
		err = cerr
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close "+w.file.Name())
	}
	return nil
}
