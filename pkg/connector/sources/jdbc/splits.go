package jdbc

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// querySplit is the payload of a Jdbc split
type querySplit struct {
	Query string
	Args  []interface{}
}

// Range is an inclusive slice of the partition column
type Range struct {
	Lower, Upper int64
}

// Ranges divides [lower, upper] into at most n contiguous ranges of
// near-equal width. Widths are computed in uint64 so the full int64 domain
// can be split.
func Ranges(lower, upper int64, n int) []Range {
	if upper < lower {
		return nil
	}
	if n < 1 {
		n = 1
	}
	// diff is one less than the number of values and always fits in uint64
	diff := uint64(upper) - uint64(lower)
	if diff < uint64(n-1) {
		n = int(diff) + 1
	}
	q, r := diff/uint64(n), diff%uint64(n)
	step, extra := q, r+1
	if extra == uint64(n) {
		step, extra = q+1, 0
	}

	out := make([]Range, 0, n)
	start := uint64(lower)
	for i := 0; i < n; i++ {
		width := step
		if uint64(i) < extra {
			width++
		}
		out = append(out, Range{Lower: int64(start), Upper: int64(start + width - 1)})
		start += width
	}
	return out
}

// buildSplits renders one query per range. The first split also picks up
// NULL partition values.
func (s *Source) buildSplits(ranges []Range) []core.Split {
	if s.opts.PartitionColumn == "" || len(ranges) == 0 {
		return []core.Split{{ID: "jdbc-0", Payload: querySplit{Query: s.query}}}
	}

	col := s.dialect.quote(s.opts.PartitionColumn)
	splits := make([]core.Split, len(ranges))
	for i, r := range ranges {
		where := fmt.Sprintf("%s >= %s AND %s <= %s", col, s.dialect.placeholder(1), col, s.dialect.placeholder(2))
		if i == 0 {
			where = fmt.Sprintf("(%s) OR %s IS NULL", where, col)
		}
		splits[i] = core.Split{
			ID: fmt.Sprintf("jdbc-%d", i),
			Payload: querySplit{
				Query: fmt.Sprintf("SELECT * FROM (%s) seaflow_q WHERE %s", s.query, where),
				Args:  []interface{}{r.Lower, r.Upper},
			},
		}
	}
	return splits
}

// enumerator computes the splits once and hands them out round robin
type enumerator struct {
	src    *Source
	ctx    core.EnumeratorContext
	splits []core.Split
}

func (e *enumerator) Open(ctx context.Context) error {
	n := e.src.opts.PartitionNum
	if n == 0 {
		n = e.ctx.Parallelism()
	}
	if e.src.opts.PartitionColumn == "" {
		e.splits = e.src.buildSplits(nil)
		return nil
	}

	if e.src.opts.LowerBound != nil {
		e.splits = e.src.buildSplits(Ranges(*e.src.opts.LowerBound, *e.src.opts.UpperBound, n))
		return nil
	}
	lower, upper, ok, err := e.src.bounds(ctx)
	if err != nil {
		return err
	}
	if !ok {
		// empty table or only NULLs
		e.splits = e.src.buildSplits(nil)
		return nil
	}
	e.splits = e.src.buildSplits(Ranges(lower, upper, n))
	e.src.logger.Info("partitioned query",
		zap.String("column", e.src.opts.PartitionColumn),
		zap.Int64("lower", lower),
		zap.Int64("upper", upper),
		zap.Int("splits", len(e.splits)))
	return nil
}

func (e *enumerator) Run(ctx context.Context) error {
	return core.NewStaticEnumerator(e.ctx, e.splits).Run(ctx)
}

func (e *enumerator) Close() error { return nil }

func (s *Source) bounds(ctx context.Context) (lower, upper int64, ok bool, err error) {
	db, err := s.connect(ctx)
	if err != nil {
		return 0, 0, false, err
	}
	defer db.Close()

	col := s.dialect.quote(s.opts.PartitionColumn)
	q := fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM (%s) seaflow_q", col, col, s.query)
	var lo, hi sql.NullInt64
	if err := db.QueryRowContext(ctx, q).Scan(&lo, &hi); err != nil {
		return 0, 0, false, errors.Wrap(err, errors.ErrorTypeData, "failed to read partition bounds").
			WithDetail("column", s.opts.PartitionColumn)
	}
	if !lo.Valid || !hi.Valid {
		return 0, 0, false, nil
	}
	return lo.Int64, hi.Int64, true, nil
}
