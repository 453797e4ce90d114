// Package pipeline plans seaflow jobs: it runs the source, transform and
// sink processors over a job definition and leaves a complete graph in an
// engine.GraphBuilder, or nothing at all when any stage fails.
//
//	planner := pipeline.NewPlanner(jobCtx, job)
//	env := engine.NewEnvironment(engine.WithParallelism(job.Env.Parallelism))
//	if err := planner.Execute(ctx, env); err != nil {
//	    return err
//	}
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/seaflow/internal/engine"
	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/connector/registry"
	"github.com/ajitpratap0/seaflow/pkg/logger"
	"github.com/ajitpratap0/seaflow/pkg/plugin"
)

// Plan is the outcome of a successful planning pass
type Plan struct {
	Sources    []*engine.DataStream
	Transforms []*engine.DataStream
	Sinks      []*engine.DataStream
	// Tables lists the result tables in registration order
	Tables []string
}

// Planner builds a job graph from a JobConfig
type Planner struct {
	jobCtx     core.JobContext
	job        *config.JobConfig
	sources    plugin.Discovery[core.Source]
	transforms plugin.Discovery[core.Transform]
	sinks      plugin.Discovery[core.Sink]
	pluginDir  string
	tables     *TableRegistry
	logger     *zap.Logger
}

// PlannerOption configures a Planner
type PlannerOption func(*Planner)

// WithSourceDiscovery replaces the global source registry
func WithSourceDiscovery(d plugin.Discovery[core.Source]) PlannerOption {
	return func(p *Planner) { p.sources = d }
}

// WithTransformDiscovery replaces the global transform registry
func WithTransformDiscovery(d plugin.Discovery[core.Transform]) PlannerOption {
	return func(p *Planner) { p.transforms = d }
}

// WithSinkDiscovery replaces the global sink registry
func WithSinkDiscovery(d plugin.Discovery[core.Sink]) PlannerOption {
	return func(p *Planner) { p.sinks = d }
}

// WithPluginDir adds per-plugin library folders under dir as dependencies
func WithPluginDir(dir string) PlannerOption {
	return func(p *Planner) { p.pluginDir = dir }
}

// WithPlannerLogger sets the planner logger
func WithPlannerLogger(l *zap.Logger) PlannerOption {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPlanner creates a planner for job. Plugins come from the global
// connector registries unless replaced by options.
func NewPlanner(jobCtx core.JobContext, job *config.JobConfig, opts ...PlannerOption) *Planner {
	p := &Planner{
		jobCtx:     jobCtx,
		job:        job,
		sources:    registry.Sources,
		transforms: registry.Transforms,
		sinks:      registry.Sinks,
		tables:     NewTableRegistry(),
		logger:     logger.Get().With(zap.String("component", "planner"), zap.String("job_id", jobCtx.JobID)),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.pluginDir != "" {
		p.sources = plugin.NewMappingDiscovery(p.sources, p.pluginDir)
		p.transforms = plugin.NewMappingDiscovery(p.transforms, p.pluginDir)
		p.sinks = plugin.NewMappingDiscovery(p.sinks, p.pluginDir)
	}
	return p
}

// Plan runs all three processors against builder. When a later stage fails
// the streams and dependencies of earlier stages are rolled back as well. The table registry
// is reset once planning ends either way.
func (p *Planner) Plan(ctx context.Context, builder engine.GraphBuilder) (*Plan, error) {
	defer p.tables.Reset()
	opts := []ProcessorOption{WithLogger(p.logger)}

	sourceProc := NewSourceExecuteProcessor(p.jobCtx, p.job.Sources, p.sources, opts...)
	sources, err := sourceProc.Execute(ctx, builder, p.tables)
	if err != nil {
		return nil, err
	}

	transformProc := NewTransformExecuteProcessor(p.jobCtx, p.job.Transforms, p.transforms, opts...)
	transforms, err := transformProc.Execute(ctx, builder, p.tables, sources)
	if err != nil {
		rollbackPass(builder, sources, sourceProc.Dependencies())
		return nil, err
	}

	upstream := sources
	if len(transforms) > 0 {
		upstream = transforms
	}
	sinks, err := NewSinkExecuteProcessor(p.jobCtx, p.job.Sinks, p.sinks, opts...).
		Execute(ctx, builder, p.tables, upstream)
	if err != nil {
		rollbackPass(builder, transforms, transformProc.Dependencies())
		rollbackPass(builder, sources, sourceProc.Dependencies())
		return nil, err
	}

	plan := &Plan{Sources: sources, Transforms: transforms, Sinks: sinks, Tables: p.tables.Names()}
	p.logger.Info("job planned",
		zap.Int("sources", len(sources)),
		zap.Int("transforms", len(transforms)),
		zap.Int("sinks", len(sinks)),
		zap.Strings("tables", plan.Tables))
	return plan, nil
}

// Execute plans the job into env and runs it
func (p *Planner) Execute(ctx context.Context, env *engine.Environment) error {
	if _, err := p.Plan(ctx, env); err != nil {
		return err
	}
	return env.Execute(ctx)
}
