// Package fake provides FakeSource, a bounded source of generated rows for
// trying out jobs and testing sinks.
package fake

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// PluginName is the registered name
const PluginName = "FakeSource"

var defaultType = core.NewRowType(
	core.Field{Name: "name", Type: core.FieldTypeString},
	core.Field{Name: "age", Type: core.FieldTypeInt},
)

// Options configure FakeSource
type Options struct {
	// RowNum is the number of rows per split
	RowNum int `config:"row.num"`
	// SplitNum is the number of splits
	SplitNum int `config:"split.num"`
	// Seed makes the generated data reproducible when non-zero
	Seed int64 `config:"seed"`
	// ReadInterval pauses between splits
	ReadInterval time.Duration `config:"split.read-interval"`
}

// Source generates rows
type Source struct {
	opts    Options
	rowType *core.RowType
	table   string
	jobCtx  core.JobContext
}

// NewSource creates an unconfigured FakeSource
func NewSource() (core.Source, error) {
	return &Source{}, nil
}

func (s *Source) PluginName() string { return PluginName }

// Prepare implements core.Source
func (s *Source) Prepare(cfg *config.PluginConfig) error {
	opts := Options{RowNum: 5, SplitNum: 1}
	if err := cfg.Options.Decode(&opts); err != nil {
		return err
	}
	if opts.RowNum < 0 || opts.SplitNum < 1 {
		return errors.New(errors.ErrorTypeConfig, "row.num must be >= 0 and split.num >= 1")
	}
	rt, err := core.ParseSchema(cfg.Options, defaultType)
	if err != nil {
		return err
	}
	s.opts = opts
	s.rowType = rt
	s.table = cfg.ResultTableName
	return nil
}

func (s *Source) SetJobContext(jobCtx core.JobContext) { s.jobCtx = jobCtx }

func (s *Source) Boundedness() core.Boundedness { return core.Bounded }

func (s *Source) ProducedType() *core.RowType { return s.rowType }

// CreateEnumerator implements core.Source
func (s *Source) CreateEnumerator(ctx core.EnumeratorContext) (core.SplitEnumerator, error) {
	splits := make([]core.Split, s.opts.SplitNum)
	for i := range splits {
		splits[i] = core.Split{ID: fmt.Sprintf("fake-%d", i), Payload: i}
	}
	return core.NewStaticEnumerator(ctx, splits), nil
}

// CreateReader implements core.Source
func (s *Source) CreateReader(core.ReaderContext) (core.SplitReader, error) {
	return &reader{src: s}, nil
}

type reader struct {
	core.SplitQueue
	src  *Source
	read int
}

func (r *reader) Open(context.Context) error { return nil }
func (r *reader) Close() error { return nil }

// PollNext emits one whole split per call
func (r *reader) PollNext(ctx context.Context, out core.Collector) error {
	split, ok, err := r.Next()
	if err != nil || !ok {
		return err
	}
	if r.read > 0 && r.src.opts.ReadInterval > 0 {
		select {
		case <-time.After(r.src.opts.ReadInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.read++

	index := split.Payload.(int)
	seed := r.src.opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed + int64(index)))

	for i := 0; i < r.src.opts.RowNum; i++ {
		values := make([]interface{}, r.src.rowType.Len())
		for j, f := range r.src.rowType.Fields {
			values[j] = generate(rng, f.Type)
		}
		if err := out.Collect(core.NewRow(r.src.table, values...)); err != nil {
			return err
		}
	}
	return nil
}

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func generate(rng *rand.Rand, t core.FieldType) interface{} {
	switch t {
	case core.FieldTypeString:
		b := make([]byte, 8)
		for i := range b {
			b[i] = letters[rng.Intn(len(letters))]
		}
		return string(b)
	case core.FieldTypeInt:
		return rng.Int31()
	case core.FieldTypeBigInt:
		return rng.Int63()
	case core.FieldTypeDouble:
		return rng.Float64() * 1000
	case core.FieldTypeBoolean:
		return rng.Intn(2) == 1
	case core.FieldTypeTimestamp:
		return time.Unix(1_600_000_000+rng.Int63n(100_000_000), 0).UTC()
	case core.FieldTypeBytes:
		b := make([]byte, 8)
		rng.Read(b)
		return b
	}
	return nil
}
