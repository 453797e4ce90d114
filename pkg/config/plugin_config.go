package config

import (
	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// Reserved keys every plugin payload may carry. They stay in Options as well.
const (
	KeyPluginName      = "plugin_name"
	KeyResultTableName = "result_table_name"
	KeySourceTableName = "source_table_name"
	KeyParallelism     = "parallelism"
)

// PluginConfig is one declared source, transform or sink of a job
type PluginConfig struct {
	// PluginName selects the implementation (e.g. "FakeSource", "Kafka")
	PluginName string
	// ResultTableName names the stream this plugin produces for downstream stages
	ResultTableName string
	// SourceTableNames lists the upstream tables a transform or sink consumes
	SourceTableNames []string
	// Parallelism overrides the job parallelism for this plugin when positive
	Parallelism int
	// Options is the full payload handed to the plugin unmodified
	Options Options
}

// NewPluginConfig extracts the reserved keys from a raw payload
func NewPluginConfig(raw map[string]interface{}) (*PluginConfig, error) {
	opts := Options(raw)
	if opts == nil {
		opts = Options{}
	}

	name := opts.String(KeyPluginName, "")
	if name == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "plugin_name is required")
	}

	sourceTables, err := opts.StringSlice(KeySourceTableName)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid "+name+" configuration").
			WithDetail(errors.DetailPlugin, name)
	}
	parallelism, err := opts.Int(KeyParallelism, 0)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid "+name+" configuration").
			WithDetail(errors.DetailPlugin, name)
	}
	if parallelism < 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "%s: parallelism cannot be negative", name).
			WithDetail(errors.DetailPlugin, name)
	}

	return &PluginConfig{
		PluginName:       name,
		ResultTableName:  opts.String(KeyResultTableName, ""),
		SourceTableNames: sourceTables,
		Parallelism:      parallelism,
		Options:          opts,
	}, nil
}

// MustPluginConfig is NewPluginConfig for literals known to be valid; it panics otherwise
func MustPluginConfig(raw map[string]interface{}) *PluginConfig {
	cfg, err := NewPluginConfig(raw)
	if err != nil {
		panic(err)
	}
	return cfg
}
