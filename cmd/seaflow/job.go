package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/seaflow/internal/engine"
	"github.com/ajitpratap0/seaflow/internal/pipeline"
	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
	"github.com/ajitpratap0/seaflow/pkg/logger"
	"github.com/ajitpratap0/seaflow/pkg/observability"
)

func jobFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "Path to the job file (yaml, json or hcl)")
	cmd.Flags().String("mode", "", "Override env job.mode (BATCH or STREAMING)")
	cmd.Flags().Int("parallelism", 0, "Override env parallelism")
	cmd.Flags().String("plugin-dir", "", "Folder holding per-plugin library folders")
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Plan and run a job",
		Long: `Plan and run the job described by a job file.

Example:
  seaflow run --config job.yaml --parallelism 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runJob(ctx, v, cmd.OutOrStdout(), true)
		},
	}
	jobFlags(cmd)
	cmd.Flags().Duration("timeout", 0, "Cancel the job after this long (0 means no limit)")
	cmd.Flags().Bool("trace", false, "Export job spans to stderr")
	return cmd
}

func newCheckCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Plan a job and print its graph without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd.Context(), v, cmd.OutOrStdout(), false)
		},
	}
	jobFlags(cmd)
	return cmd
}

// loadJob reads the job file and applies command line overrides
func loadJob(v *viper.Viper) (*config.JobConfig, core.JobContext, error) {
	path := v.GetString("config")
	if path == "" {
		return nil, core.JobContext{}, errors.New(errors.ErrorTypeConfig, "a job file is required (--config)")
	}
	job, err := config.Load(path)
	if err != nil {
		return nil, core.JobContext{}, err
	}
	if mode := v.GetString("mode"); mode != "" {
		job.Env.JobMode = mode
	}
	if p := v.GetInt("parallelism"); p > 0 {
		job.Env.Parallelism = p
	}

	mode, err := core.ParseJobMode(job.Env.JobMode)
	if err != nil {
		return nil, core.JobContext{}, err
	}
	jobCtx := core.JobContext{
		JobID:    uuid.NewString(),
		JobName:  job.Env.JobName,
		Mode:     mode,
		Metadata: job.Env.Metadata,
	}
	return job, jobCtx, nil
}

func runJob(ctx context.Context, v *viper.Viper, out io.Writer, execute bool) error {
	job, jobCtx, err := loadJob(v)
	if err != nil {
		return err
	}
	ctx = logger.ContextWithJobID(ctx, jobCtx.JobID)
	log := logger.WithContext(ctx).With(
		zap.String("component", "cli"),
		zap.String("job", jobCtx.JobName),
		zap.String("mode", string(jobCtx.Mode)))

	if execute && v.GetBool("trace") {
		cfg := observability.DefaultConfig()
		cfg.ServiceVersion = version
		cfg.Exporter = "stdout"
		cfg.Output = os.Stderr
		shutdown, err := observability.Init(cfg)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize tracing")
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("failed to flush spans", zap.Error(err))
			}
		}()
	}

	env := engine.NewEnvironment(
		engine.WithParallelism(job.Env.Parallelism),
		engine.WithLogger(log))
	opts := []pipeline.PlannerOption{pipeline.WithPlannerLogger(log.With(zap.String("component", "planner")))}
	if dir := v.GetString("plugin-dir"); dir != "" {
		opts = append(opts, pipeline.WithPluginDir(dir))
	}

	plan, err := pipeline.NewPlanner(jobCtx, job, opts...).Plan(ctx, env)
	if err != nil {
		return err
	}
	if !execute {
		printPlan(out, jobCtx, plan, env)
		return nil
	}

	if timeout := v.GetDuration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	log.Info("job started", zap.String("job_id", jobCtx.JobID), zap.Int("parallelism", env.Parallelism()))
	if err := env.Execute(ctx); err != nil {
		log.Error("job failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return err
	}
	log.Info("job finished", zap.Duration("elapsed", time.Since(start)))
	fmt.Fprintf(out, "Job %s (%s) finished in %s\n", jobCtx.JobName, jobCtx.JobID, time.Since(start).Round(time.Millisecond))
	return nil
}

func printPlan(out io.Writer, jobCtx core.JobContext, plan *pipeline.Plan, env *engine.Environment) {
	fmt.Fprintf(out, "Job: %s (%s)\n", jobCtx.JobName, jobCtx.Mode)
	fmt.Fprintf(out, "Parallelism: %d\n", env.Parallelism())
	fmt.Fprintln(out, "Streams:")
	for _, s := range env.Graph() {
		line := fmt.Sprintf("  %s parallelism=%d", s.Name(), s.Parallelism())
		if s.Kind() == engine.NodeSource {
			line += fmt.Sprintf(" strategy=%s boundedness=%s", s.Strategy(), s.Boundedness())
		}
		if t := s.ProducedType(); t != nil {
			line += fmt.Sprintf(" fields=[%s]", strings.Join(t.FieldNames(), ", "))
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "Tables: %s\n", strings.Join(plan.Tables, ", "))
	if deps := env.Dependencies(); len(deps) > 0 {
		fmt.Fprintln(out, "Dependencies:")
		for _, d := range deps {
			fmt.Fprintf(out, "  %s\n", d)
		}
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
