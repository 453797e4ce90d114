// Package file provides the LocalFile source, which reads newline-delimited
// JSON, plain text, Avro object container files or Arrow IPC streams from
// local files. Every file is one split; compressed files are detected by
// extension.
package file

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
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

// Format is the layout of each file
type Format string

const (
	FormatJSON  Format = "json"
	FormatText  Format = "text"
	FormatAvro  Format = "avro"
	FormatArrow Format = "arrow"
)

// TextField is the single column produced by the text format
const TextField = "content"

// Options configure the LocalFile source
type Options struct {
	// Path is a file, a directory or a glob pattern
	Path string `config:"path"`
	// Format is json (one object per line), text, avro or arrow
	Format Format `config:"file_format_type"`
	// Compression overrides detection by file extension
	Compression string `config:"compress_codec"`
	// BatchSize bounds the lines or records read per poll
	BatchSize int `config:"batch_size"`
	// SkipHeaderRows skips leading lines of every file
	SkipHeaderRows int `config:"skip_header_row_number"`
}

// Source reads local files
type Source struct {
	opts    Options
	codec   compression.Algorithm
	files   []string
	rowType *core.RowType
	table   string
}

// NewSource creates an unconfigured LocalFile source
func NewSource() (core.Source, error) {
	return &Source{}, nil
}

func (s *Source) PluginName() string { return PluginName }

// Prepare implements core.Source. The file list is resolved here so a
// missing path fails before the job graph is built.
func (s *Source) Prepare(cfg *config.PluginConfig) error {
	opts := Options{Format: FormatJSON, BatchSize: 1024}
	if err := cfg.Options.Decode(&opts); err != nil {
		return err
	}
	if opts.Path == "" {
		return errors.New(errors.ErrorTypeConfig, "path is required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1024
	}
	opts.Format = Format(strings.ToLower(string(opts.Format)))

	var def *core.RowType
	switch opts.Format {
	case FormatText:
		def = core.NewRowType(core.Field{Name: TextField, Type: core.FieldTypeString})
	case FormatJSON, FormatAvro, FormatArrow:
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported file_format_type %q", opts.Format)
	}
	rt, err := core.ParseSchema(cfg.Options, def)
	if err != nil {
		return err
	}
	if rt == nil && opts.Format == FormatJSON {
		return errors.New(errors.ErrorTypeConfig, "schema is required for the json format")
	}

	codec := compression.None
	if opts.Compression != "" {
		if codec, err = compression.Parse(opts.Compression); err != nil {
			return err
		}
	}

	files, err := listFiles(opts.Path)
	if err != nil {
		return err
	}
	if rt == nil {
		// Avro and Arrow files carry their writer schema; the first file
		// decides
		if rt, err = headerRowType(files[0], codec, opts.Format); err != nil {
			return err
		}
	}

	s.opts = opts
	s.codec = codec
	s.files = files
	s.rowType = rt
	s.table = cfg.ResultTableName
	return nil
}

func (s *Source) SetJobContext(core.JobContext) {}

func (s *Source) Boundedness() core.Boundedness { return core.Bounded }

func (s *Source) ProducedType() *core.RowType { return s.rowType }

// Files returns the resolved input files
func (s *Source) Files() []string { return s.files }

// CreateEnumerator implements core.Source
func (s *Source) CreateEnumerator(ctx core.EnumeratorContext) (core.SplitEnumerator, error) {
	splits := make([]core.Split, len(s.files))
	for i, path := range s.files {
		splits[i] = core.Split{ID: path, Payload: path}
	}
	return core.NewStaticEnumerator(ctx, splits), nil
}

// CreateReader implements core.Source
func (s *Source) CreateReader(core.ReaderContext) (core.SplitReader, error) {
	return &reader{src: s}, nil
}

func openStream(path string, codec compression.Algorithm) (*os.File, io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open "+path).WithDetail("path", path)
	}
	if codec == compression.None {
		codec = compression.FromPath(path)
	}
	stream, err := compression.NewReader(f, codec)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, stream, nil
}

// headerRowType reads the writer schema of an Avro container file or an
// Arrow stream
func headerRowType(path string, codec compression.Algorithm, format Format) (*core.RowType, error) {
	f, stream, err := openStream(path, codec)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	defer stream.Close()

	if format == FormatArrow {
		rdr, err := ipc.NewReader(stream)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "not an arrow stream").WithDetail("path", path)
		}
		defer rdr.Release()
		return columnar.RowType(rdr.Schema()), nil
	}
	ocf, err := goavro.NewOCFReader(stream)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "not an avro container file").WithDetail("path", path)
	}
	rt, err := avro.RowType(ocf.Codec().Schema())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "unusable avro schema").WithDetail("path", path)
	}
	return rt, nil
}

func listFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to list "+path)
		}
		var files []string
		for _, e := range entries {
			if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
		return files, nil
	case err == nil:
		return []string{path}, nil
	}

	files, globErr := filepath.Glob(path)
	if globErr != nil {
		return nil, errors.Wrap(globErr, errors.ErrorTypeConfig, "invalid path pattern "+path)
	}
	if len(files) == 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "no files match %s", path).
			WithDetail("path", path)
	}
	sort.Strings(files)
	return files, nil
}

type reader struct {
	core.SplitQueue
	src *Source

	current string
	file    *os.File
	stream  io.ReadCloser
	scanner *bufio.Scanner
	ocf     *goavro.OCFReader
	arrows  *ipc.Reader
	batch   arrow.Record
	offset  int
	line    int
}

func (r *reader) Open(context.Context) error { return nil }

// PollNext emits up to batch_size lines or records of the current file
func (r *reader) PollNext(ctx context.Context, out core.Collector) error {
	if r.scanner == nil && r.ocf == nil && r.arrows == nil {
		split, ok, err := r.Next()
		if err != nil || !ok {
			return err
		}
		if err := r.openFile(split.Payload.(string)); err != nil {
			return err
		}
	}
	if r.ocf != nil {
		return r.pollAvro(ctx, out)
	}
	if r.arrows != nil {
		return r.pollArrow(ctx, out)
	}

	for i := 0; i < r.src.opts.BatchSize; i++ {
		if !r.scanner.Scan() {
			err := r.scanner.Err()
			r.closeFile()
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeFile, "failed to read "+r.current)
			}
			return nil
		}
		r.line++
		if r.line <= r.src.opts.SkipHeaderRows {
			continue
		}
		text := r.scanner.Bytes()
		if len(bytes.TrimSpace(text)) == 0 {
			continue
		}
		row, err := r.decode(text)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "invalid record").
				WithDetail("path", r.current).
				WithDetail("line", r.line)
		}
		if err := out.Collect(row); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (r *reader) pollAvro(ctx context.Context, out core.Collector) error {
	for i := 0; i < r.src.opts.BatchSize; i++ {
		if !r.ocf.Scan() {
			err := r.ocf.Err()
			r.closeFile()
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeFile, "failed to read "+r.current)
			}
			return nil
		}
		r.line++
		row, err := r.decodeAvro()
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "invalid record").
				WithDetail("path", r.current).
				WithDetail("record", r.line)
		}
		if err := out.Collect(row); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// pollArrow emits up to batch_size rows, crossing record batches
func (r *reader) pollArrow(ctx context.Context, out core.Collector) error {
	for i := 0; i < r.src.opts.BatchSize; {
		if r.batch == nil || int64(r.offset) >= r.batch.NumRows() {
			if !r.arrows.Next() {
				err := r.arrows.Err()
				r.closeFile()
				if err != nil {
					return errors.Wrap(err, errors.ErrorTypeFile, "failed to read "+r.current)
				}
				return nil
			}
			r.batch, r.offset = r.arrows.Record(), 0
			continue
		}
		r.line++
		row, err := core.RowFromMap(r.src.table, r.src.rowType, columnar.Values(r.batch, r.offset))
		r.offset++
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "invalid record").
				WithDetail("path", r.current).
				WithDetail("record", r.line)
		}
		if err := out.Collect(row); err != nil {
			return err
		}
		i++
	}
	return ctx.Err()
}

func (r *reader) decodeAvro() (core.Row, error) {
	datum, err := r.ocf.Read()
	if err != nil {
		return core.Row{}, err
	}
	rec, err := avro.Record(datum)
	if err != nil {
		return core.Row{}, err
	}
	return core.RowFromMap(r.src.table, r.src.rowType, rec)
}

func (r *reader) decode(line []byte) (core.Row, error) {
	if r.src.opts.Format == FormatText {
		return core.RowFromMap(r.src.table, r.src.rowType, map[string]interface{}{TextField: string(line)})
	}
	var data map[string]interface{}
	if err := gojson.Unmarshal(line, &data); err != nil {
		return core.Row{}, err
	}
	return core.RowFromMap(r.src.table, r.src.rowType, data)
}

func (r *reader) openFile(path string) error {
	f, stream, err := openStream(path, r.src.codec)
	if err != nil {
		return err
	}
	r.current = path
	r.file = f
	r.stream = stream
	r.line = 0
	switch r.src.opts.Format {
	case FormatAvro:
		if r.ocf, err = goavro.NewOCFReader(stream); err != nil {
			r.closeFile()
			return errors.Wrap(err, errors.ErrorTypeFile, "not an avro container file").WithDetail("path", path)
		}
		return nil
	case FormatArrow:
		if r.arrows, err = ipc.NewReader(stream); err != nil {
			r.closeFile()
			return errors.Wrap(err, errors.ErrorTypeFile, "not an arrow stream").WithDetail("path", path)
		}
		return nil
	}
	r.scanner = bufio.NewScanner(stream)
	r.scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return nil
}

func (r *reader) closeFile() {
	if r.stream != nil {
		r.stream.Close()
	}
	if r.file != nil {
		r.file.Close()
	}
	if r.arrows != nil {
		r.arrows.Release()
	}
	r.file, r.stream, r.scanner, r.ocf = nil, nil, nil, nil
	r.arrows, r.batch = nil, nil
}

func (r *reader) Close() error {
	r.closeFile()
	return nil
}
