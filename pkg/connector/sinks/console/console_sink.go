// Package console provides the Console sink, which prints rows for
// debugging jobs.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
	"github.com/ajitpratap0/seaflow/pkg/logger"
)

// PluginName is the registered name
const PluginName = "Console"

// Options configure the Console sink
type Options struct {
	// Format is text (kind and values) or json
	Format string `config:"format"`
	// Limit stops printing after this many rows per writer; zero prints everything
	Limit int `config:"limit"`
}

// Sink prints rows to an io.Writer
type Sink struct {
	opts    Options
	out     io.Writer
	mu      *sync.Mutex
	rowType *core.RowType
	jobName string
}

// NewSink creates a Console sink writing to stdout
func NewSink() (core.Sink, error) {
	return NewSinkTo(os.Stdout), nil
}

// NewSinkTo creates a Console sink writing to out. Writers of one sink
// share a lock so lines never interleave.
func NewSinkTo(out io.Writer) *Sink {
	return &Sink{out: out, mu: &sync.Mutex{}}
}

func (s *Sink) PluginName() string { return PluginName }

// Prepare implements core.Sink
func (s *Sink) Prepare(cfg *config.PluginConfig) error {
	opts := Options{Format: "text"}
	if err := cfg.Options.Decode(&opts); err != nil {
		return err
	}
	opts.Format = strings.ToLower(opts.Format)
	if opts.Format != "text" && opts.Format != "json" {
		return errors.Newf(errors.ErrorTypeConfig, "unsupported format %q", opts.Format)
	}
	s.opts = opts
	return nil
}

func (s *Sink) SetJobContext(jobCtx core.JobContext) { s.jobName = jobCtx.JobName }

func (s *Sink) SetInputType(t *core.RowType) error {
	s.rowType = t
	return nil
}

// CreateWriter implements core.Sink
func (s *Sink) CreateWriter(ctx core.WriterContext) (core.Writer, error) {
	return &writer{sink: s, subtask: ctx.SubtaskIndex, parallelism: ctx.Parallelism}, nil
}

type writer struct {
	sink        *Sink
	subtask     int
	parallelism int
	written     int
}

func (w *writer) Write(_ context.Context, row core.Row) error {
	if w.sink.opts.Limit > 0 && w.written >= w.sink.opts.Limit {
		return nil
	}
	w.written++

	var line string
	if w.sink.opts.Format == "json" {
		b, err := gojson.Marshal(row.Map(w.sink.rowType))
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to encode row")
		}
		line = string(b)
	} else {
		values := make([]string, len(row.Values))
		for i, v := range row.Values {
			values[i] = fmt.Sprint(v)
		}
		line = fmt.Sprintf("%s[%s]", row.Kind, strings.Join(values, ", "))
	}

	w.sink.mu.Lock()
	defer w.sink.mu.Unlock()
	_, err := fmt.Fprintf(w.sink.out, "subtask %d/%d row %d: %s\n", w.subtask+1, w.parallelism, w.written, line)
	return err
}

func (w *writer) Close() error {
	logger.Get().Debug("console writer closed",
		zap.String("job", w.sink.jobName),
		zap.Int("subtask", w.subtask),
		zap.Int("rows", w.written))
	return nil
}
