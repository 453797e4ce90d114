package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
)

var seqType = core.NewRowType(core.Field{Name: "split", Type: core.FieldTypeString}, core.Field{Name: "n", Type: core.FieldTypeInt})

// seqSource emits rowsPerSplit rows for each of its splits
type seqSource struct {
	splits       int
	rowsPerSplit int
	coordinated  bool
	unbounded    bool
	failReader   bool

	enumerators atomic.Int32
	readers     atomic.Int32
}

func (s *seqSource) PluginName() string { return "Seq" }
func (s *seqSource) Prepare(*config.PluginConfig) error { return nil }
func (s *seqSource) SetJobContext(core.JobContext) {}
func (s *seqSource) ProducedType() *core.RowType { return seqType }
func (s *seqSource) SupportsCoordination() bool { return s.coordinated }

func (s *seqSource) Boundedness() core.Boundedness {
	if s.unbounded {
		return core.Unbounded
	}
	return core.Bounded
}

func (s *seqSource) CreateEnumerator(ctx core.EnumeratorContext) (core.SplitEnumerator, error) {
	s.enumerators.Add(1)
	splits := make([]core.Split, s.splits)
	for i := range splits {
		splits[i] = core.Split{ID: fmt.Sprintf("s%d", i)}
	}
	return core.NewStaticEnumerator(ctx, splits), nil
}

func (s *seqSource) CreateReader(ctx core.ReaderContext) (core.SplitReader, error) {
	s.readers.Add(1)
	return &seqReader{src: s}, nil
}

type seqReader struct {
	core.SplitQueue
	src *seqSource
}

func (r *seqReader) Open(context.Context) error { return nil }
func (r *seqReader) Close() error { return nil }

func (r *seqReader) PollNext(ctx context.Context, out core.Collector) error {
	if r.src.failReader {
		return fmt.Errorf("reader exploded")
	}
	split, ok, err := r.Next()
	if err != nil {
		if r.src.unbounded {
			// Keep polling forever once drained
			return nil
		}
		return err
	}
	if !ok {
		return nil
	}
	for i := 0; i < r.src.rowsPerSplit; i++ {
		if err := out.Collect(core.NewRow("seq", split.ID, i)); err != nil {
			return err
		}
	}
	return nil
}

type memorySink struct {
	mu     sync.Mutex
	rows   []core.Row
	closed atomic.Int32
}

func (s *memorySink) PluginName() string { return "Memory" }
func (s *memorySink) Prepare(*config.PluginConfig) error { return nil }
func (s *memorySink) SetJobContext(core.JobContext) {}
func (s *memorySink) SetInputType(*core.RowType) error { return nil }

func (s *memorySink) CreateWriter(core.WriterContext) (core.Writer, error) {
	return &memoryWriter{sink: s}, nil
}

func (s *memorySink) Rows() []core.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Row(nil), s.rows...)
}

type memoryWriter struct {
	sink *memorySink
}

func (w *memoryWriter) Write(_ context.Context, row core.Row) error {
	w.sink.mu.Lock()
	defer w.sink.mu.Unlock()
	w.sink.rows = append(w.sink.rows, row)
	return nil
}

func (w *memoryWriter) Close() error {
	w.sink.closed.Add(1)
	return nil
}

// evenFilter keeps rows whose n is even
type evenFilter struct{}

func (evenFilter) PluginName() string { return "Even" }
func (evenFilter) Prepare(*config.PluginConfig) error { return nil }
func (evenFilter) SetJobContext(core.JobContext) {}
func (evenFilter) SetInputType(*core.RowType) error { return nil }
func (evenFilter) ProducedType() *core.RowType { return seqType }

func (evenFilter) Map(row core.Row) (core.Row, bool, error) {
	return row, row.Values[1].(int)%2 == 0, nil
}
