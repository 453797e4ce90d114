package pipeline

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/seaflow/internal/engine"
	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
	"github.com/ajitpratap0/seaflow/pkg/logger"
	"github.com/ajitpratap0/seaflow/pkg/metrics"
	"github.com/ajitpratap0/seaflow/pkg/observability"
	"github.com/ajitpratap0/seaflow/pkg/plugin"
)

// Stage names used in diagnostics
const (
	StageSource    = "Source"
	StageTransform = "Transform"
	StageSink      = "Sink"
)

// lifecycle is what every plugin kind shares before it is bridged
type lifecycle interface {
	PluginName() string
	Prepare(cfg *config.PluginConfig) error
	SetJobContext(jobCtx core.JobContext)
}

// ProcessorOption configures a processor
type ProcessorOption func(*processorOptions)

type processorOptions struct {
	logger *zap.Logger
}

// WithLogger sets the processor logger
func WithLogger(l *zap.Logger) ProcessorOption {
	return func(o *processorOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(component string, opts []ProcessorOption) processorOptions {
	o := processorOptions{logger: logger.Get().With(zap.String("component", component))}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// displayName is the node name shown in the graph, e.g. "Source[0] FakeSource"
func displayName(stage string, index int, pluginName string) string {
	return fmt.Sprintf("%s[%d] %s", stage, index, pluginName)
}

var orchestrationTypes = map[errors.ErrorType]bool{
	errors.ErrorTypePluginNotFound:  true,
	errors.ErrorTypePluginConfig:    true,
	errors.ErrorTypeUnsupportedMode: true,
	errors.ErrorTypeDuplicateTable:  true,
	errors.ErrorTypeDependency:      true,
}

// entryError tags err with the failing entry. Orchestration error types
// raised further down are kept; anything else becomes fallback.
func entryError(stage string, index int, pluginName string, fallback errors.ErrorType, err error) error {
	errType := fallback
	if t := errors.TypeOf(err); orchestrationTypes[t] {
		errType = t
	}
	return errors.Wrap(err, errType, displayName(stage, index, pluginName)).
		WithDetail(errors.DetailStage, stage).
		WithDetail(errors.DetailSourceIndex, index).
		WithDetail(errors.DetailPlugin, pluginName)
}

// preparePlugin resolves, instantiates and configures the plugin of one
// entry, adding its dependency locations to deps
func preparePlugin[T lifecycle](
	ctx context.Context,
	stage string,
	index int,
	cfg *config.PluginConfig,
	id plugin.Identifier,
	discovery plugin.Discovery[T],
	jobCtx core.JobContext,
	deps map[string]struct{},
) (T, error) {
	var zero T
	_, span := observability.StartSpan(ctx, "plugin.prepare",
		attribute.String("stage", stage),
		attribute.Int("index", index),
		attribute.String("plugin", cfg.PluginName))

	factory, locations, err := discovery.Resolve(id)
	if err != nil {
		err = entryError(stage, index, cfg.PluginName, errors.ErrorTypePluginNotFound, err)
		span.End(err)
		return zero, err
	}
	for _, loc := range locations {
		deps[loc] = struct{}{}
	}

	instance, err := discovery.Instantiate(factory)
	if err != nil {
		err = entryError(stage, index, cfg.PluginName, errors.ErrorTypePluginConfig, err)
		span.End(err)
		return zero, err
	}
	if err := instance.Prepare(cfg); err != nil {
		err = entryError(stage, index, cfg.PluginName, errors.ErrorTypePluginConfig, err)
		span.End(err)
		return zero, err
	}
	instance.SetJobContext(jobCtx)

	span.End(nil)
	return instance, nil
}

// registerDependencies hands the deduplicated union to the engine in one
// call and returns the registered locations
func registerDependencies(builder engine.GraphBuilder, deps map[string]struct{}) ([]string, error) {
	locations := make([]string, 0, len(deps))
	for loc := range deps {
		locations = append(locations, loc)
	}
	sort.Strings(locations)

	if err := builder.RegisterDependencies(locations); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDependency, "failed to register plugin dependencies")
	}
	metrics.DependenciesRegistered.Set(float64(len(locations)))
	return locations, nil
}

// rollbackPass removes the streams and releases the dependencies of a
// failed pass
func rollbackPass(builder engine.GraphBuilder, streams []*engine.DataStream, deps []string) {
	builder.Rollback(streams...)
	if len(deps) > 0 {
		builder.UnregisterDependencies(deps)
	}
}

// resolveInputs finds the streams an entry consumes. Without
// source_table_name the first upstream stream is used.
func resolveInputs(cfg *config.PluginConfig, tables *TableRegistry, upstream []*engine.DataStream) ([]*engine.DataStream, error) {
	if len(cfg.SourceTableNames) == 0 {
		if len(upstream) == 0 {
			return nil, errors.New(errors.ErrorTypeConfig, "no upstream stream to consume; set source_table_name")
		}
		return upstream[:1], nil
	}

	inputs := make([]*engine.DataStream, 0, len(cfg.SourceTableNames))
	for _, name := range cfg.SourceTableNames {
		stream, err := tables.Lookup(name)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, stream)
	}
	return inputs, nil
}

func recordFailure(stage string, err error) {
	metrics.OrchestrationFailures.WithLabelValues(stage, string(errors.TypeOf(err))).Inc()
}
