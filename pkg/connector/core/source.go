package core

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// ErrEndOfInput is returned by SplitReader.PollNext once a reader has been
// told there are no more splits and has drained the ones it holds.
var ErrEndOfInput = stderrors.New("end of input")

// Boundedness tells whether a source eventually ends
type Boundedness int

const (
	Bounded Boundedness = iota
	Unbounded
)

func (b Boundedness) String() string {
	if b == Unbounded {
		return "UNBOUNDED"
	}
	return "BOUNDED"
}

// JobMode is the execution mode of a job
type JobMode string

const (
	JobModeBatch     JobMode = "BATCH"
	JobModeStreaming JobMode = "STREAMING"
)

// ParseJobMode parses a job mode, ignoring case
func ParseJobMode(s string) (JobMode, error) {
	switch JobMode(strings.ToUpper(strings.TrimSpace(s))) {
	case JobModeBatch:
		return JobModeBatch, nil
	case JobModeStreaming:
		return JobModeStreaming, nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "unknown job mode %q (expected BATCH or STREAMING)", s)
}

// JobContext is handed to every plugin instance after Prepare
type JobContext struct {
	JobID    string
	JobName  string
	Mode     JobMode
	Metadata map[string]string
}

// Split is a unit of work an enumerator hands to a reader
type Split struct {
	ID      string
	Payload interface{}
}

// EnumeratorContext is the engine side of a SplitEnumerator
type EnumeratorContext interface {
	// Parallelism is the total number of readers of the source
	Parallelism() int
	// RegisteredReaders lists the reader indices this enumerator may assign
	// to. A parallel task sees only its own reader.
	RegisteredReaders() []int
	// AssignSplits queues splits for a reader
	AssignSplits(reader int, splits ...Split) error
	// SignalNoMoreSplits tells a reader it will get nothing else
	SignalNoMoreSplits(reader int)
}

// SplitEnumerator discovers splits and assigns them to readers
type SplitEnumerator interface {
	Open(ctx context.Context) error
	// Run assigns splits. Bounded enumerators return once every reader has
	// been signalled; unbounded ones may keep discovering until ctx is done.
	Run(ctx context.Context) error
	Close() error
}

// ReaderContext identifies one reader of a source
type ReaderContext struct {
	SubtaskIndex int
	Parallelism  int
	Boundedness  Boundedness
}

// Collector receives the rows a reader emits
type Collector interface {
	Collect(row Row) error
}

// CollectorFunc adapts a function to Collector
type CollectorFunc func(row Row) error

// Collect implements Collector
func (f CollectorFunc) Collect(row Row) error { return f(row) }

// SplitReader reads the splits assigned to it. All calls on one reader
// happen on a single goroutine.
type SplitReader interface {
	Open(ctx context.Context) error
	AddSplits(splits []Split)
	HandleNoMoreSplits()
	// PollNext emits zero or more rows. Emitting nothing while splits may
	// still arrive is not an error.
	PollNext(ctx context.Context, out Collector) error
	Close() error
}

// Source is the interface that all source connectors must implement
type Source interface {
	PluginName() string
	// Prepare validates and stores the plugin configuration. Long-lived
	// connections belong in readers and enumerators, not here.
	Prepare(cfg *config.PluginConfig) error
	SetJobContext(jobCtx JobContext)
	Boundedness() Boundedness
	ProducedType() *RowType
	CreateEnumerator(ctx EnumeratorContext) (SplitEnumerator, error)
	CreateReader(ctx ReaderContext) (SplitReader, error)
}
