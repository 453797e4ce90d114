package engine

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
	"github.com/ajitpratap0/seaflow/pkg/metrics"
)

// broadcaster fans every collected row out to each downstream consumer
type broadcaster struct {
	ctx     context.Context
	outs    []chan core.Row
	counter prometheus.Counter
}

func newBroadcaster(ctx context.Context, outs []chan core.Row, counter prometheus.Counter) *broadcaster {
	return &broadcaster{ctx: ctx, outs: outs, counter: counter}
}

func (b *broadcaster) Collect(row core.Row) error {
	for _, ch := range b.outs {
		select {
		case ch <- row:
		case <-b.ctx.Done():
			return b.ctx.Err()
		}
	}
	b.counter.Inc()
	return nil
}

func (b *broadcaster) close() {
	for _, ch := range b.outs {
		close(ch)
	}
}

// Execute runs the job graph. It returns once every node has finished,
// which for graphs with unbounded sources means once ctx is done. Ending
// through ctx is a normal shutdown and returns nil; the first node failure
// cancels all other nodes and is returned.
func (e *Environment) Execute(ctx context.Context) error {
	e.mu.Lock()
	nodes := append([]*node(nil), e.nodes...)
	e.routers = make(map[int][]*splitRouter)
	e.mu.Unlock()

	if len(nodes) == 0 {
		return errors.New(errors.ErrorTypeValidation, "job graph is empty")
	}

	outs := make(map[int][]chan core.Row)
	ins := make(map[int][]chan core.Row)
	for _, n := range nodes {
		for _, in := range n.inputs {
			ch := make(chan core.Row, e.bufferSize)
			outs[in.id] = append(outs[in.id], ch)
			ins[n.stream.id] = append(ins[n.stream.id], ch)
		}
	}

	e.logger.Info("starting job", zap.Int("nodes", len(nodes)), zap.Int("parallelism", e.parallelism))
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range nodes {
		n := n
		id := n.stream.id
		switch n.stream.kind {
		case NodeSource:
			g.Go(func() error { return e.executeSource(gctx, n, outs[id]) })
		case NodeTransform:
			g.Go(func() error { return e.executeTransform(gctx, n, ins[id][0], outs[id]) })
		case NodeSink:
			g.Go(func() error { return e.executeSink(gctx, n, ins[id]) })
		}
	}

	err := g.Wait()
	if err != nil && isShutdown(ctx, err) {
		e.logger.Info("job stopped", zap.Error(ctx.Err()))
		return nil
	}
	if err != nil {
		e.logger.Error("job failed", zap.Error(err))
		return err
	}
	e.logger.Info("job finished")
	return nil
}

func (e *Environment) executeSource(ctx context.Context, n *node, outs []chan core.Row) error {
	out := newBroadcaster(ctx, outs, metrics.RowsEmitted.WithLabelValues(n.stream.plugin))
	defer out.close()

	log := e.logger.With(zap.String("node", n.stream.name))
	log.Debug("source starting",
		zap.String("strategy", n.stream.strategy.String()),
		zap.Int("parallelism", n.stream.parallelism))

	var err error
	if n.stream.strategy == core.StrategyCoordinated {
		err = e.runCoordinated(ctx, n, out)
	} else {
		err = e.runParallel(ctx, n, out)
	}
	if err != nil {
		return err
	}

	if n.stream.boundedness == core.Unbounded {
		// Unbounded streams stay open until the job is stopped
		log.Info("unbounded source has no more input, waiting for shutdown")
		<-ctx.Done()
		return ctx.Err()
	}
	log.Debug("source finished")
	return nil
}

func (e *Environment) executeTransform(ctx context.Context, n *node, in <-chan core.Row, outs []chan core.Row) error {
	out := newBroadcaster(ctx, outs, metrics.RowsEmitted.WithLabelValues(n.stream.plugin))
	defer out.close()

	metrics.ActiveTasks.WithLabelValues(string(NodeTransform)).Inc()
	defer metrics.ActiveTasks.WithLabelValues(string(NodeTransform)).Dec()
	filtered := metrics.RowsFiltered.WithLabelValues(n.stream.plugin)

	for {
		select {
		case row, ok := <-in:
			if !ok {
				return nil
			}
			mapped, keep, err := n.transform.Map(row)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeData, "transform failed").
					WithDetail(errors.DetailPlugin, n.stream.plugin).
					WithDetail(errors.DetailStage, n.stream.name)
			}
			if !keep {
				filtered.Inc()
				continue
			}
			if err := out.Collect(mapped); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Environment) executeSink(ctx context.Context, n *node, ins []chan core.Row) error {
	g, gctx := errgroup.WithContext(ctx)

	var rows <-chan core.Row = ins[0]
	if len(ins) > 1 {
		merged := make(chan core.Row, e.bufferSize)
		var wg sync.WaitGroup
		for _, in := range ins {
			in := in
			wg.Add(1)
			g.Go(func() error {
				defer wg.Done()
				for row := range in {
					select {
					case merged <- row:
					case <-gctx.Done():
						return gctx.Err()
					}
				}
				return nil
			})
		}
		go func() {
			wg.Wait()
			close(merged)
		}()
		rows = merged
	}

	written := metrics.RowsWritten.WithLabelValues(n.stream.plugin)
	parallelism := n.stream.parallelism
	for i := 0; i < parallelism; i++ {
		index := i
		g.Go(func() error {
			writer, err := n.sink.CreateWriter(core.WriterContext{SubtaskIndex: index, Parallelism: parallelism})
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeInternal, "failed to create sink writer").
					WithDetail(errors.DetailPlugin, n.stream.plugin)
			}

			metrics.ActiveTasks.WithLabelValues(string(NodeSink)).Inc()
			defer metrics.ActiveTasks.WithLabelValues(string(NodeSink)).Dec()

			for {
				select {
				case row, ok := <-rows:
					if !ok {
						if err := writer.Close(); err != nil {
							return errors.Wrap(err, errors.ErrorTypeData, "failed to close sink writer").
								WithDetail(errors.DetailPlugin, n.stream.plugin)
						}
						return nil
					}
					if err := writer.Write(gctx, row); err != nil {
						_ = writer.Close()
						return errors.Wrap(err, errors.ErrorTypeData, "sink write failed").
							WithDetail(errors.DetailPlugin, n.stream.plugin)
					}
					written.Inc()
				case <-gctx.Done():
					if err := writer.Close(); err != nil {
						e.logger.Warn("failed to close sink writer", zap.String("node", n.stream.name), zap.Error(err))
					}
					return gctx.Err()
				}
			}
		})
	}
	return g.Wait()
}
