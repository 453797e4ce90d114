package pipeline

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/seaflow/internal/engine"
	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
	"github.com/ajitpratap0/seaflow/pkg/metrics"
	"github.com/ajitpratap0/seaflow/pkg/observability"
	"github.com/ajitpratap0/seaflow/pkg/plugin"
)

// SourceExecuteProcessor turns the declared sources of a job into source
// streams of the engine graph
type SourceExecuteProcessor struct {
	jobCtx    core.JobContext
	configs   []*config.PluginConfig
	discovery plugin.Discovery[core.Source]
	logger    *zap.Logger
	// deps holds the locations registered by the last Execute
	deps []string
}

// NewSourceExecuteProcessor creates a processor over configs in declaration order
func NewSourceExecuteProcessor(
	jobCtx core.JobContext,
	configs []*config.PluginConfig,
	discovery plugin.Discovery[core.Source],
	opts ...ProcessorOption,
) *SourceExecuteProcessor {
	o := buildOptions("source_processor", opts)
	return &SourceExecuteProcessor{
		jobCtx:    jobCtx,
		configs:   configs,
		discovery: discovery,
		logger:    o.logger,
	}
}

type preparedSource struct {
	cfg    *config.PluginConfig
	source core.Source
}

// Execute adds one stream per configured source, in order, and registers
// each under its result table name. Plugin dependencies are registered with
// the builder once, before the first stream is added. On failure every
// stream added by this call is rolled back and the first error is returned.
func (p *SourceExecuteProcessor) Execute(ctx context.Context, builder engine.GraphBuilder, tables *TableRegistry) ([]*engine.DataStream, error) {
	timer := metrics.NewTimer()
	ctx, span := observability.StartSpan(ctx, "source.execute",
		attribute.Int("sources", len(p.configs)),
		attribute.String("job.mode", string(p.jobCtx.Mode)))

	streams, err := p.execute(ctx, builder, tables)
	metrics.PlanningLatency.WithLabelValues(StageSource).Observe(timer.Stop().Seconds())
	span.End(err)
	if err != nil {
		recordFailure(StageSource, err)
		p.logger.Error("source planning failed", zap.Error(err))
		return nil, err
	}
	return streams, nil
}

func (p *SourceExecuteProcessor) execute(ctx context.Context, builder engine.GraphBuilder, tables *TableRegistry) ([]*engine.DataStream, error) {
	p.deps = nil
	prepared, deps, err := p.initialize(ctx)
	if err != nil {
		return nil, err
	}
	registered, err := registerDependencies(builder, deps)
	if err != nil {
		return nil, err
	}
	p.deps = registered

	streams := make([]*engine.DataStream, 0, len(prepared))
	for i, entry := range prepared {
		stream, err := p.bridge(i, entry, builder, tables)
		if stream != nil {
			streams = append(streams, stream)
		}
		if err != nil {
			rollbackPass(builder, streams, p.deps)
			p.deps = nil
			return nil, err
		}
	}
	return streams, nil
}

// initialize runs discovery, preparation and mode validation for every
// entry before anything touches the graph
func (p *SourceExecuteProcessor) initialize(ctx context.Context) ([]preparedSource, map[string]struct{}, error) {
	deps := make(map[string]struct{})
	prepared := make([]preparedSource, 0, len(p.configs))

	for i, cfg := range p.configs {
		if cfg.ResultTableName == "" {
			return nil, nil, entryError(StageSource, i, cfg.PluginName, errors.ErrorTypePluginConfig,
				errors.New(errors.ErrorTypePluginConfig, "result_table_name is required for sources"))
		}

		src, err := preparePlugin(ctx, StageSource, i, cfg, plugin.SourceID(cfg.PluginName), p.discovery, p.jobCtx, deps)
		if err != nil {
			return nil, nil, err
		}

		if p.jobCtx.Mode == core.JobModeBatch && src.Boundedness() == core.Unbounded {
			return nil, nil, entryError(StageSource, i, cfg.PluginName, errors.ErrorTypeUnsupportedMode,
				errors.Newf(errors.ErrorTypeUnsupportedMode,
					"source %s is unbounded and cannot run in a %s job", cfg.PluginName, core.JobModeBatch))
		}

		p.logger.Debug("source prepared",
			zap.Int("index", i),
			zap.String("plugin", cfg.PluginName),
			zap.String("boundedness", src.Boundedness().String()))
		prepared = append(prepared, preparedSource{cfg: cfg, source: src})
	}
	return prepared, deps, nil
}

// bridge adds the stream of one entry and registers its table. A stream is
// returned even when registration fails so the caller can roll it back.
func (p *SourceExecuteProcessor) bridge(index int, entry preparedSource, builder engine.GraphBuilder, tables *TableRegistry) (*engine.DataStream, error) {
	name := entry.source.PluginName()
	strategy := core.StrategyOf(entry.source)

	stream, err := builder.AddSource(engine.SourceSpec{
		Name:         displayName(StageSource, index, name),
		Source:       entry.source,
		Strategy:     strategy,
		Boundedness:  entry.source.Boundedness(),
		ProducedType: entry.source.ProducedType(),
		Parallelism:  entry.cfg.Parallelism,
	})
	if err != nil {
		return nil, entryError(StageSource, index, entry.cfg.PluginName, errors.ErrorTypePluginConfig, err)
	}

	if err := tables.Register(entry.cfg.ResultTableName, stream); err != nil {
		return stream, entryError(StageSource, index, entry.cfg.PluginName, errors.ErrorTypeDuplicateTable, err)
	}

	metrics.SourcesBridged.WithLabelValues(name, strategy.String()).Inc()
	p.logger.Info("source bridged",
		zap.String("stream", stream.Name()),
		zap.String("table", entry.cfg.ResultTableName),
		zap.String("strategy", strategy.String()),
		zap.Int("parallelism", stream.Parallelism()))
	return stream, nil
}

// Dependencies returns the locations registered by the last successful call
// to Execute
func (p *SourceExecuteProcessor) Dependencies() []string {
	return p.deps
}
