package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/ajitpratap0/seaflow/internal/engine"
	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/plugin"
)

var numberType = core.NewRowType(core.Field{Name: "n", Type: core.FieldTypeInt})

// stubSource is a configurable in-memory source. Rows are 0..rows-1 split
// across one split per 10 rows.
type stubSource struct {
	name        string
	boundedness core.Boundedness
	coordinated bool
	prepareErr  error
	rows        int

	cfg    *config.PluginConfig
	jobCtx core.JobContext
}

func (s *stubSource) PluginName() string { return s.name }

func (s *stubSource) Prepare(cfg *config.PluginConfig) error {
	if s.prepareErr != nil {
		return s.prepareErr
	}
	s.cfg = cfg
	return nil
}

func (s *stubSource) SetJobContext(jobCtx core.JobContext) { s.jobCtx = jobCtx }
func (s *stubSource) Boundedness() core.Boundedness { return s.boundedness }
func (s *stubSource) ProducedType() *core.RowType { return numberType }
func (s *stubSource) SupportsCoordination() bool { return s.coordinated }

func (s *stubSource) CreateEnumerator(ctx core.EnumeratorContext) (core.SplitEnumerator, error) {
	var splits []core.Split
	for start := 0; start < s.rows; start += 10 {
		splits = append(splits, core.Split{ID: fmt.Sprintf("%d", start), Payload: start})
	}
	return core.NewStaticEnumerator(ctx, splits), nil
}

func (s *stubSource) CreateReader(core.ReaderContext) (core.SplitReader, error) {
	return &stubReader{total: s.rows}, nil
}

type stubReader struct {
	core.SplitQueue
	total int
}

func (r *stubReader) Open(context.Context) error { return nil }
func (r *stubReader) Close() error { return nil }

func (r *stubReader) PollNext(_ context.Context, out core.Collector) error {
	split, ok, err := r.Next()
	if err != nil || !ok {
		return err
	}
	start := split.Payload.(int)
	for n := start; n < start+10 && n < r.total; n++ {
		if err := out.Collect(core.NewRow("numbers", n)); err != nil {
			return err
		}
	}
	return nil
}

// sourceRegistry builds a registry where each name maps to a template
// copied into a fresh instance per Instantiate
func sourceRegistry(templates map[string]stubSource, deps map[string][]string) (*plugin.Registry[core.Source], *instances) {
	reg := plugin.NewRegistry[core.Source](plugin.EngineKind, plugin.KindSource)
	made := &instances{}
	for name, tmpl := range templates {
		tmpl := tmpl
		tmpl.name = name
		reg.MustRegister(name, func() (core.Source, error) {
			s := tmpl
			made.add(&s)
			return &s, nil
		}, deps[name]...)
	}
	return reg, made
}

type instances struct {
	mu      sync.Mutex
	sources []*stubSource
}

func (i *instances) add(s *stubSource) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sources = append(i.sources, s)
}

func (i *instances) all() []*stubSource {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]*stubSource(nil), i.sources...)
}

// recordingBuilder is a GraphBuilder that only records calls
type recordingBuilder struct {
	engine.GraphBuilder
	env        *engine.Environment
	depCalls   [][]string
	depErr     error
	rolledBack []*engine.DataStream
}

func newRecordingBuilder() *recordingBuilder {
	env := engine.NewEnvironment()
	return &recordingBuilder{GraphBuilder: env, env: env}
}

func (b *recordingBuilder) RegisterDependencies(locations []string) error {
	b.depCalls = append(b.depCalls, append([]string(nil), locations...))
	return b.depErr
}

func (b *recordingBuilder) Rollback(streams ...*engine.DataStream) {
	b.rolledBack = append(b.rolledBack, streams...)
	b.GraphBuilder.Rollback(streams...)
}

func sourceConfig(name, table string) *config.PluginConfig {
	raw := map[string]interface{}{config.KeyPluginName: name}
	if table != "" {
		raw[config.KeyResultTableName] = table
	}
	return config.MustPluginConfig(raw)
}

// passTransform passes rows through, dropping odd numbers when asked
type passTransform struct {
	dropOdd   bool
	inputType *core.RowType
}

func (t *passTransform) PluginName() string { return "Pass" }
func (t *passTransform) Prepare(*config.PluginConfig) error { return nil }
func (t *passTransform) SetJobContext(core.JobContext) {}
func (t *passTransform) ProducedType() *core.RowType { return t.inputType }

func (t *passTransform) SetInputType(rt *core.RowType) error {
	t.inputType = rt
	return nil
}

func (t *passTransform) Map(row core.Row) (core.Row, bool, error) {
	if t.dropOdd && row.Values[0].(int)%2 == 1 {
		return row, false, nil
	}
	return row, true, nil
}

type collectSink struct {
	mu   sync.Mutex
	rows []core.Row
}

func (s *collectSink) PluginName() string { return "Collect" }
func (s *collectSink) Prepare(*config.PluginConfig) error { return nil }
func (s *collectSink) SetJobContext(core.JobContext) {}
func (s *collectSink) SetInputType(*core.RowType) error { return nil }

func (s *collectSink) CreateWriter(core.WriterContext) (core.Writer, error) {
	return s, nil
}

func (s *collectSink) Write(_ context.Context, row core.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return nil
}

func (s *collectSink) Close() error { return nil }

func (s *collectSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
