package core

import (
	"context"
)

// StaticEnumerator assigns a fixed split list and signals the end. Split i
// belongs to reader i % parallelism; splits owned by readers this
// enumerator is not registered for are skipped, which lets the same
// enumerator serve both strategies.
type StaticEnumerator struct {
	ctx    EnumeratorContext
	splits []Split
}

// NewStaticEnumerator creates an enumerator over splits
func NewStaticEnumerator(ctx EnumeratorContext, splits []Split) *StaticEnumerator {
	return &StaticEnumerator{ctx: ctx, splits: splits}
}

// Open implements SplitEnumerator
func (e *StaticEnumerator) Open(context.Context) error { return nil }

// Run implements SplitEnumerator
func (e *StaticEnumerator) Run(ctx context.Context) error {
	parallelism := e.ctx.Parallelism()
	if parallelism < 1 {
		parallelism = 1
	}
	readers := e.ctx.RegisteredReaders()
	owned := make(map[int][]Split, len(readers))
	for i, split := range e.splits {
		owned[i%parallelism] = append(owned[i%parallelism], split)
	}

	for _, reader := range readers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if splits := owned[reader]; len(splits) > 0 {
			if err := e.ctx.AssignSplits(reader, splits...); err != nil {
				return err
			}
		}
		e.ctx.SignalNoMoreSplits(reader)
	}
	return nil
}

// Close implements SplitEnumerator
func (e *StaticEnumerator) Close() error { return nil }

// SplitQueue is the split bookkeeping most readers share. Embed it and
// call Next from PollNext.
type SplitQueue struct {
	pending []Split
	noMore  bool
}

// AddSplits implements SplitReader
func (q *SplitQueue) AddSplits(splits []Split) {
	q.pending = append(q.pending, splits...)
}

// HandleNoMoreSplits implements SplitReader
func (q *SplitQueue) HandleNoMoreSplits() {
	q.noMore = true
}

// Next pops the next split. When nothing is pending it returns
// ErrEndOfInput after HandleNoMoreSplits, and ok=false otherwise.
func (q *SplitQueue) Next() (split Split, ok bool, err error) {
	if len(q.pending) == 0 {
		if q.noMore {
			return Split{}, false, ErrEndOfInput
		}
		return Split{}, false, nil
	}
	split = q.pending[0]
	q.pending = q.pending[1:]
	return split, true, nil
}

// Pending returns the number of queued splits
func (q *SplitQueue) Pending() int {
	return len(q.pending)
}
