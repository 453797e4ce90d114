package pipeline

import (
	"context"
	"strings"

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

// SinkExecuteProcessor adds the declared sinks to the graph
type SinkExecuteProcessor struct {
	jobCtx    core.JobContext
	configs   []*config.PluginConfig
	discovery plugin.Discovery[core.Sink]
	logger    *zap.Logger
	// deps holds the locations registered by the last Execute
	deps []string
}

// NewSinkExecuteProcessor creates a processor over configs in declaration order
func NewSinkExecuteProcessor(
	jobCtx core.JobContext,
	configs []*config.PluginConfig,
	discovery plugin.Discovery[core.Sink],
	opts ...ProcessorOption,
) *SinkExecuteProcessor {
	o := buildOptions("sink_processor", opts)
	return &SinkExecuteProcessor{jobCtx: jobCtx, configs: configs, discovery: discovery, logger: o.logger}
}

// Execute adds one sink node per entry, consuming the tables named by
// source_table_name or else the first upstream stream
func (p *SinkExecuteProcessor) Execute(ctx context.Context, builder engine.GraphBuilder, tables *TableRegistry, upstream []*engine.DataStream) ([]*engine.DataStream, error) {
	if len(p.configs) == 0 {
		return nil, nil
	}

	timer := metrics.NewTimer()
	ctx, span := observability.StartSpan(ctx, "sink.execute", attribute.Int("sinks", len(p.configs)))

	streams, err := p.execute(ctx, builder, tables, upstream)
	metrics.PlanningLatency.WithLabelValues(StageSink).Observe(timer.Stop().Seconds())
	span.End(err)
	if err != nil {
		recordFailure(StageSink, err)
		p.logger.Error("sink planning failed", zap.Error(err))
		return nil, err
	}
	return streams, nil
}

func (p *SinkExecuteProcessor) execute(ctx context.Context, builder engine.GraphBuilder, tables *TableRegistry, upstream []*engine.DataStream) ([]*engine.DataStream, error) {
	p.deps = nil
	deps := make(map[string]struct{})
	sinks := make([]core.Sink, len(p.configs))
	for i, cfg := range p.configs {
		s, err := preparePlugin(ctx, StageSink, i, cfg, plugin.SinkID(cfg.PluginName), p.discovery, p.jobCtx, deps)
		if err != nil {
			return nil, err
		}
		sinks[i] = s
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
		s := sinks[i]
		inputs, err := resolveInputs(cfg, tables, upstream)
		if err != nil {
			return fail(entryError(StageSink, i, cfg.PluginName, errors.ErrorTypePluginConfig, err))
		}
		if err := sameInputType(inputs); err != nil {
			return fail(entryError(StageSink, i, cfg.PluginName, errors.ErrorTypePluginConfig, err))
		}
		if err := s.SetInputType(inputs[0].ProducedType()); err != nil {
			return fail(entryError(StageSink, i, cfg.PluginName, errors.ErrorTypePluginConfig, err))
		}

		stream, err := builder.AddSink(engine.SinkSpec{
			Name:        displayName(StageSink, i, s.PluginName()),
			Sink:        s,
			Inputs:      inputs,
			Parallelism: cfg.Parallelism,
		})
		if err != nil {
			return fail(entryError(StageSink, i, cfg.PluginName, errors.ErrorTypePluginConfig, err))
		}
		streams = append(streams, stream)
		p.logger.Info("sink added", zap.String("stream", stream.Name()), zap.Int("inputs", len(inputs)))
	}
	return streams, nil
}

// Dependencies returns the locations registered by the last successful call
// to Execute
func (p *SinkExecuteProcessor) Dependencies() []string {
	return p.deps
}

// sameInputType checks that every merged input carries the row type of the
// first one, which is the type the sink is configured with
func sameInputType(inputs []*engine.DataStream) error {
	first := inputs[0].ProducedType()
	for _, in := range inputs[1:] {
		if !first.Equal(in.ProducedType()) {
			return errors.Newf(errors.ErrorTypePluginConfig, "input %s has fields [%s], expected [%s] like %s",
				in.Name(), strings.Join(in.ProducedType().FieldNames(), ", "),
				strings.Join(first.FieldNames(), ", "), inputs[0].Name())
		}
	}
	return nil
}
