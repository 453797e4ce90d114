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

// TransformExecuteProcessor adds the declared transforms to the graph
type TransformExecuteProcessor struct {
	jobCtx    core.JobContext
	configs   []*config.PluginConfig
	discovery plugin.Discovery[core.Transform]
	logger    *zap.Logger
	// deps holds the locations registered by the last Execute
	deps []string
}

// NewTransformExecuteProcessor creates a processor over configs in declaration order
func NewTransformExecuteProcessor(
	jobCtx core.JobContext,
	configs []*config.PluginConfig,
	discovery plugin.Discovery[core.Transform],
	opts ...ProcessorOption,
) *TransformExecuteProcessor {
	o := buildOptions("transform_processor", opts)
	return &TransformExecuteProcessor{jobCtx: jobCtx, configs: configs, discovery: discovery, logger: o.logger}
}

// Execute adds one transform stream per entry. Each entry reads the tables
// named by source_table_name (exactly one) or else the first upstream
// stream, and registers result_table_name when it is set.
func (p *TransformExecuteProcessor) Execute(ctx context.Context, builder engine.GraphBuilder, tables *TableRegistry, upstream []*engine.DataStream) ([]*engine.DataStream, error) {
	if len(p.configs) == 0 {
		return nil, nil
	}

	timer := metrics.NewTimer()
	ctx, span := observability.StartSpan(ctx, "transform.execute", attribute.Int("transforms", len(p.configs)))

	streams, err := p.execute(ctx, builder, tables, upstream)
	metrics.PlanningLatency.WithLabelValues(StageTransform).Observe(timer.Stop().Seconds())
	span.End(err)
	if err != nil {
		recordFailure(StageTransform, err)
		p.logger.Error("transform planning failed", zap.Error(err))
		return nil, err
	}
	return streams, nil
}

func (p *TransformExecuteProcessor) execute(ctx context.Context, builder engine.GraphBuilder, tables *TableRegistry, upstream []*engine.DataStream) ([]*engine.DataStream, error) {
	p.deps = nil
	deps := make(map[string]struct{})
	transforms := make([]core.Transform, len(p.configs))
	for i, cfg := range p.configs {
		t, err := preparePlugin(ctx, StageTransform, i, cfg, plugin.TransformID(cfg.PluginName), p.discovery, p.jobCtx, deps)
		if err != nil {
			return nil, err
		}
		transforms[i] = t
	}
	registered, err := registerDependencies(builder, deps)
	if err != nil {
		return nil, err
	}
	p.deps = registered

	var streams []*engine.DataStream
	fail := func(err error) ([]*engine.DataStream, error) {
		rollbackPass(builder, streams, p.deps)
		p.deps = nil
		return nil, err
	}

	for i, cfg := range p.configs {
		t := transforms[i]
		inputs, err := resolveInputs(cfg, tables, upstream)
		if err != nil {
			return fail(entryError(StageTransform, i, cfg.PluginName, errors.ErrorTypePluginConfig, err))
		}
		if len(inputs) != 1 {
			return fail(entryError(StageTransform, i, cfg.PluginName, errors.ErrorTypePluginConfig,
				errors.Newf(errors.ErrorTypePluginConfig, "a transform consumes exactly one table, got %d", len(inputs))))
		}
		if err := t.SetInputType(inputs[0].ProducedType()); err != nil {
			return fail(entryError(StageTransform, i, cfg.PluginName, errors.ErrorTypePluginConfig, err))
		}

		stream, err := builder.AddTransform(engine.TransformSpec{
			Name:         displayName(StageTransform, i, t.PluginName()),
			Transform:    t,
			Input:        inputs[0],
			ProducedType: t.ProducedType(),
		})
		if err != nil {
			return fail(entryError(StageTransform, i, cfg.PluginName, errors.ErrorTypePluginConfig, err))
		}
		streams = append(streams, stream)

		if cfg.ResultTableName != "" {
			if err := tables.Register(cfg.ResultTableName, stream); err != nil {
				return fail(entryError(StageTransform, i, cfg.PluginName, errors.ErrorTypeDuplicateTable, err))
			}
		}
		p.logger.Info("transform added",
			zap.String("stream", stream.Name()),
			zap.String("input", inputs[0].Name()),
			zap.String("table", cfg.ResultTableName))
	}
	return streams, nil
}

// Dependencies returns the locations registered by the last successful call
// to Execute
func (p *TransformExecuteProcessor) Dependencies() []string {
	return p.deps
}
