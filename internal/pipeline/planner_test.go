package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/seaflow/internal/engine"
	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
	"github.com/ajitpratap0/seaflow/pkg/plugin"
)

type plannerFixture struct {
	sources    *plugin.Registry[core.Source]
	transforms *plugin.Registry[core.Transform]
	sinks      *plugin.Registry[core.Sink]
	collected  []*collectSink
}

func newPlannerFixture() *plannerFixture {
	sources, _ := sourceRegistry(map[string]stubSource{
		"Numbers": {boundedness: core.Bounded, rows: 25},
		"Events":  {boundedness: core.Unbounded, coordinated: true, rows: 5},
	}, nil)

	f := &plannerFixture{
		sources:    sources,
		transforms: plugin.NewRegistry[core.Transform](plugin.EngineKind, plugin.KindTransform),
		sinks:      plugin.NewRegistry[core.Sink](plugin.EngineKind, plugin.KindSink),
	}
	f.transforms.MustRegister("Pass", func() (core.Transform, error) { return &passTransform{}, nil })
	f.transforms.MustRegister("Even", func() (core.Transform, error) { return &passTransform{dropOdd: true}, nil })
	f.sinks.MustRegister("Collect", func() (core.Sink, error) {
		s := &collectSink{}
		f.collected = append(f.collected, s)
		return s, nil
	})
	return f
}

func (f *plannerFixture) planner(jobCtx core.JobContext, job *config.JobConfig) *Planner {
	return NewPlanner(jobCtx, job,
		WithSourceDiscovery(f.sources),
		WithTransformDiscovery(f.transforms),
		WithSinkDiscovery(f.sinks))
}

func raw(kv ...interface{}) *config.PluginConfig {
	m := map[string]interface{}{}
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return config.MustPluginConfig(m)
}

func TestPlannerWiresTablesByName(t *testing.T) {
	f := newPlannerFixture()
	job := &config.JobConfig{
		Env: config.DefaultEnv(),
		Sources: []*config.PluginConfig{
			raw("plugin_name", "Numbers", "result_table_name", "numbers"),
			raw("plugin_name", "Numbers", "result_table_name", "more"),
		},
		Transforms: []*config.PluginConfig{
			raw("plugin_name", "Even", "source_table_name", "more", "result_table_name", "even"),
		},
		Sinks: []*config.PluginConfig{
			raw("plugin_name", "Collect", "source_table_name", []interface{}{"numbers", "even"}),
			raw("plugin_name", "Collect"),
		},
	}
	env := engine.NewEnvironment()

	plan, err := f.planner(batchJob(), job).Plan(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, []string{"numbers", "more", "even"}, plan.Tables)
	require.Len(t, plan.Sinks, 2)
	assert.Equal(t, "Sink[0] Collect", plan.Sinks[0].Name())
	assert.Equal(t, "Transform[0] Pass", plan.Transforms[0].Name())
	assert.Len(t, env.Graph(), 5)
}

func TestPlannerDefaultsToFirstUpstream(t *testing.T) {
	f := newPlannerFixture()
	job := &config.JobConfig{
		Env: config.DefaultEnv(),
		Sources: []*config.PluginConfig{
			raw("plugin_name", "Numbers", "result_table_name", "numbers"),
		},
		Transforms: []*config.PluginConfig{raw("plugin_name", "Even")},
		Sinks:      []*config.PluginConfig{raw("plugin_name", "Collect")},
	}
	env := engine.NewEnvironment(engine.WithIdleInterval(time.Millisecond))

	require.NoError(t, f.planner(batchJob(), job).Execute(context.Background(), env))

	total := 0
	for _, s := range f.collected {
		total += s.count()
	}
	// 0..24 with odd numbers dropped
	assert.Equal(t, 13, total)
}

func TestPlannerRollsBackEarlierStages(t *testing.T) {
	f := newPlannerFixture()
	job := &config.JobConfig{
		Env:     config.DefaultEnv(),
		Sources: []*config.PluginConfig{raw("plugin_name", "Numbers", "result_table_name", "numbers")},
		Sinks:   []*config.PluginConfig{raw("plugin_name", "Collect", "source_table_name", "nope")},
	}
	env := engine.NewEnvironment()

	_, err := f.planner(batchJob(), job).Plan(context.Background(), env)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypePluginConfig))
	stage, _ := errors.DetailOf(err, errors.DetailStage)
	assert.Equal(t, StageSink, stage)
	assert.Empty(t, env.Graph())
}

func TestPlannerReleasesDependenciesOfEarlierStages(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "numbers.so")
	require.NoError(t, os.WriteFile(lib, []byte("x"), 0o600))
	f := newPlannerFixture()
	f.sources, _ = sourceRegistry(map[string]stubSource{"Numbers": {boundedness: core.Bounded}},
		map[string][]string{"Numbers": {lib}})
	job := &config.JobConfig{
		Env:        config.DefaultEnv(),
		Sources:    []*config.PluginConfig{raw("plugin_name", "Numbers", "result_table_name", "numbers")},
		Transforms: []*config.PluginConfig{raw("plugin_name", "Pass", "result_table_name", "passed")},
		Sinks:      []*config.PluginConfig{raw("plugin_name", "Collect", "source_table_name", "nope")},
	}
	env := engine.NewEnvironment()

	_, err := f.planner(batchJob(), job).Plan(context.Background(), env)
	require.Error(t, err)
	assert.Empty(t, env.Graph())
	assert.Empty(t, env.Dependencies())
}

// labelTransform produces a row type unlike its input
type labelTransform struct{ passTransform }

func (t *labelTransform) ProducedType() *core.RowType {
	return core.NewRowType(core.Field{Name: "label", Type: core.FieldTypeString})
}

func TestPlannerRejectsMixedSinkInputs(t *testing.T) {
	f := newPlannerFixture()
	f.transforms.MustRegister("Label", func() (core.Transform, error) { return &labelTransform{}, nil })
	job := &config.JobConfig{
		Env:        config.DefaultEnv(),
		Sources:    []*config.PluginConfig{raw("plugin_name", "Numbers", "result_table_name", "numbers")},
		Transforms: []*config.PluginConfig{raw("plugin_name", "Label", "result_table_name", "labels")},
		Sinks: []*config.PluginConfig{
			raw("plugin_name", "Collect", "source_table_name", []interface{}{"numbers", "labels"}),
		},
	}
	env := engine.NewEnvironment()

	_, err := f.planner(batchJob(), job).Plan(context.Background(), env)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypePluginConfig))
	stage, _ := errors.DetailOf(err, errors.DetailStage)
	assert.Equal(t, StageSink, stage)
	assert.Contains(t, err.Error(), "fields [label]")
	assert.Empty(t, env.Graph())
}

func TestPlannerUnknownTransform(t *testing.T) {
	f := newPlannerFixture()
	job := &config.JobConfig{
		Env:        config.DefaultEnv(),
		Sources:    []*config.PluginConfig{raw("plugin_name", "Numbers", "result_table_name", "numbers")},
		Transforms: []*config.PluginConfig{raw("plugin_name", "Missing")},
	}
	env := engine.NewEnvironment()

	_, err := f.planner(batchJob(), job).Plan(context.Background(), env)
	assert.True(t, errors.IsType(err, errors.ErrorTypePluginNotFound))
	assert.Empty(t, env.Graph())
}

func TestPlannerStreamingJobStopsOnCancel(t *testing.T) {
	f := newPlannerFixture()
	job := &config.JobConfig{
		Env: config.DefaultEnv(),
		Sources: []*config.PluginConfig{
			raw("plugin_name", "Events", "result_table_name", "events"),
		},
		Sinks: []*config.PluginConfig{raw("plugin_name", "Collect")},
	}
	env := engine.NewEnvironment(engine.WithIdleInterval(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, f.planner(streamingJob(), job).Execute(ctx, env))
}
