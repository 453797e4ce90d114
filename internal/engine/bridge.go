package engine

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
	"github.com/ajitpratap0/seaflow/pkg/metrics"
)

// inbox holds the splits assigned to one reader until its goroutine picks
// them up, so readers are only ever touched from their own goroutine.
type inbox struct {
	mu     sync.Mutex
	splits []core.Split
	noMore bool
	notify chan struct{}
}

func newInbox() *inbox {
	return &inbox{notify: make(chan struct{}, 1)}
}

func (b *inbox) push(splits []core.Split) {
	b.mu.Lock()
	b.splits = append(b.splits, splits...)
	b.mu.Unlock()
	b.wake()
}

func (b *inbox) finish() {
	b.mu.Lock()
	b.noMore = true
	b.mu.Unlock()
	b.wake()
}

func (b *inbox) wake() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *inbox) take() ([]core.Split, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	splits := b.splits
	b.splits = nil
	return splits, b.noMore
}

// splitRouter is the EnumeratorContext the engine hands to enumerators. A
// parallel task's router knows one reader; the coordinated router knows all.
type splitRouter struct {
	plugin      string
	strategy    core.Strategy
	parallelism int
	inboxes     map[int]*inbox

	mu          sync.Mutex
	assignments map[int][]string
}

func newSplitRouter(plugin string, strategy core.Strategy, parallelism int, readers []int) *splitRouter {
	r := &splitRouter{
		plugin:      plugin,
		strategy:    strategy,
		parallelism: parallelism,
		inboxes:     make(map[int]*inbox, len(readers)),
		assignments: make(map[int][]string, len(readers)),
	}
	for _, idx := range readers {
		r.inboxes[idx] = newInbox()
	}
	return r
}

func (r *splitRouter) Parallelism() int { return r.parallelism }

func (r *splitRouter) RegisteredReaders() []int {
	readers := make([]int, 0, len(r.inboxes))
	for idx := range r.inboxes {
		readers = append(readers, idx)
	}
	sort.Ints(readers)
	return readers
}

func (r *splitRouter) AssignSplits(reader int, splits ...core.Split) error {
	box, ok := r.inboxes[reader]
	if !ok {
		return errors.Newf(errors.ErrorTypeInternal, "%s: reader %d is not registered with this enumerator", r.plugin, reader)
	}
	r.mu.Lock()
	for _, s := range splits {
		r.assignments[reader] = append(r.assignments[reader], s.ID)
	}
	r.mu.Unlock()

	box.push(splits)
	metrics.SplitsAssigned.WithLabelValues(r.plugin, r.strategy.String()).Add(float64(len(splits)))
	return nil
}

func (r *splitRouter) SignalNoMoreSplits(reader int) {
	if box, ok := r.inboxes[reader]; ok {
		box.finish()
	}
}

// Assignments returns the split IDs assigned so far, per reader
func (r *splitRouter) Assignments() map[int][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int][]string, len(r.assignments))
	for k, v := range r.assignments {
		out[k] = append([]string(nil), v...)
	}
	return out
}

type countingCollector struct {
	out core.Collector
	n   int
}

func (c *countingCollector) Collect(row core.Row) error {
	c.n++
	return c.out.Collect(row)
}

// runReader drives one reader until it reports end of input or ctx ends
func runReader(ctx context.Context, reader core.SplitReader, box *inbox, out core.Collector, idle time.Duration) error {
	timer := time.NewTimer(idle)
	defer timer.Stop()

	signalled := false
	for {
		splits, noMore := box.take()
		if len(splits) > 0 {
			reader.AddSplits(splits)
		}
		if noMore && !signalled {
			reader.HandleNoMoreSplits()
			signalled = true
		}

		counter := &countingCollector{out: out}
		err := reader.PollNext(ctx, counter)
		if stderrors.Is(err, core.ErrEndOfInput) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if counter.n > 0 {
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(idle)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-box.notify:
		case <-timer.C:
		}
	}
}

func (e *Environment) runEnumerator(ctx context.Context, src core.Source, router *splitRouter) (core.SplitEnumerator, func() error, error) {
	enumerator, err := src.CreateEnumerator(router)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create split enumerator").
			WithDetail(errors.DetailPlugin, src.PluginName())
	}
	if err := enumerator.Open(ctx); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open split enumerator").
			WithDetail(errors.DetailPlugin, src.PluginName())
	}
	run := func() error {
		if err := enumerator.Run(ctx); err != nil && !isShutdown(ctx, err) {
			return errors.Wrap(err, errors.ErrorTypeInternal, "split enumerator failed").
				WithDetail(errors.DetailPlugin, src.PluginName())
		}
		return nil
	}
	return enumerator, run, nil
}

func (e *Environment) openReader(ctx context.Context, src core.Source, index, parallelism int) (core.SplitReader, error) {
	reader, err := src.CreateReader(core.ReaderContext{
		SubtaskIndex: index,
		Parallelism:  parallelism,
		Boundedness:  src.Boundedness(),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create split reader").
			WithDetail(errors.DetailPlugin, src.PluginName())
	}
	if err := reader.Open(ctx); err != nil {
		_ = reader.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open split reader").
			WithDetail(errors.DetailPlugin, src.PluginName())
	}
	return reader, nil
}

// runParallel runs parallelism independent tasks, each owning an
// enumerator scoped to its own reader
func (e *Environment) runParallel(ctx context.Context, n *node, out core.Collector) error {
	src := n.source
	parallelism := n.stream.parallelism
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < parallelism; i++ {
		index := i
		g.Go(func() error {
			router := newSplitRouter(src.PluginName(), core.StrategyParallel, parallelism, []int{index})
			return e.runTask(gctx, n, router, []int{index}, out)
		})
	}
	return g.Wait()
}

// runCoordinated runs one enumerator distributing splits over all readers
func (e *Environment) runCoordinated(ctx context.Context, n *node, out core.Collector) error {
	parallelism := n.stream.parallelism
	readers := make([]int, parallelism)
	for i := range readers {
		readers[i] = i
	}
	router := newSplitRouter(n.source.PluginName(), core.StrategyCoordinated, parallelism, readers)
	return e.runTask(ctx, n, router, readers, out)
}

// runTask opens one enumerator and the given readers and runs them to completion
func (e *Environment) runTask(ctx context.Context, n *node, router *splitRouter, readers []int, out core.Collector) error {
	src := n.source
	log := e.logger.With(zap.String("node", n.stream.name), zap.Ints("readers", readers))
	e.trackRouter(n.stream.id, router)
	g, gctx := errgroup.WithContext(ctx)

	enumerator, run, err := e.runEnumerator(gctx, src, router)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := enumerator.Close(); cerr != nil {
			log.Warn("failed to close split enumerator", zap.Error(cerr))
		}
	}()
	g.Go(run)

	for _, idx := range readers {
		index := idx
		g.Go(func() error {
			reader, err := e.openReader(gctx, src, index, router.parallelism)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := reader.Close(); cerr != nil {
					log.Warn("failed to close split reader", zap.Int("reader", index), zap.Error(cerr))
				}
			}()

			metrics.ActiveTasks.WithLabelValues(string(NodeSource)).Inc()
			defer metrics.ActiveTasks.WithLabelValues(string(NodeSource)).Dec()

			if err := runReader(gctx, reader, router.inboxes[index], out, e.idleInterval); err != nil {
				if isShutdown(gctx, err) {
					return err
				}
				return errors.Wrap(err, errors.ErrorTypeData, "split reader failed").
					WithDetail(errors.DetailPlugin, src.PluginName())
			}
			log.Debug("reader finished", zap.Int("reader", index))
			return nil
		})
	}
	return g.Wait()
}

func (e *Environment) trackRouter(id int, r *splitRouter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.routers[id] = append(e.routers[id], r)
}

// Assignments returns the split IDs each reader of a source stream was
// given during the last Execute
func (e *Environment) Assignments(stream *DataStream) map[int][]string {
	e.mu.Lock()
	routers := append([]*splitRouter(nil), e.routers[stream.id]...)
	e.mu.Unlock()

	out := make(map[int][]string)
	for _, r := range routers {
		for reader, ids := range r.Assignments() {
			out[reader] = append(out[reader], ids...)
		}
	}
	return out
}

// isShutdown reports whether err is just ctx ending
func isShutdown(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded))
}
