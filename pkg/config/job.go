// Package config describes seaflow job definitions: the job-wide env section
// and the ordered lists of source, transform and sink plugin payloads.
//
// A job file looks like:
//
//	env:
//	  job.mode: BATCH
//	  job.name: orders-backfill
//	  parallelism: 2
//	source:
//	  - plugin_name: FakeSource
//	    result_table_name: fake
//	    row.num: 100
//	sink:
//	  - plugin_name: Console
//	    source_table_name: fake
//
// Declaration order is significant: it fixes result table registration order
// and the source index reported in diagnostics.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// Reserved env keys. Underscore spellings are accepted for formats that
// cannot express dotted identifiers (HCL).
const (
	EnvJobMode     = "job.mode"
	EnvJobName     = "job.name"
	EnvParallelism = "parallelism"
)

// Section names of a job document
const (
	SectionEnv       = "env"
	SectionSource    = "source"
	SectionTransform = "transform"
	SectionSink      = "sink"
)

// EnvConfig holds the job-wide settings
type EnvConfig struct {
	JobName     string
	JobMode     string
	Parallelism int
	// Metadata carries every other env key, rendered as strings
	Metadata map[string]string
}

// JobConfig is a parsed job definition
type JobConfig struct {
	Env        EnvConfig
	Sources    []*PluginConfig
	Transforms []*PluginConfig
	Sinks      []*PluginConfig
}

// DefaultEnv returns the env used for absent keys
func DefaultEnv() EnvConfig {
	return EnvConfig{
		JobName:     "seaflow",
		JobMode:     "BATCH",
		Parallelism: 1,
		Metadata:    map[string]string{},
	}
}

// ParseJob builds a JobConfig from a decoded job document
func ParseJob(doc map[string]interface{}) (*JobConfig, error) {
	if doc == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "empty job definition")
	}
	for key := range doc {
		switch key {
		case SectionEnv, SectionSource, SectionTransform, SectionSink:
		default:
			return nil, errors.Newf(errors.ErrorTypeConfig, "unknown job section %q", key)
		}
	}

	env, err := parseEnv(doc[SectionEnv])
	if err != nil {
		return nil, err
	}
	job := &JobConfig{Env: env}

	if job.Sources, err = parsePluginList(SectionSource, doc[SectionSource]); err != nil {
		return nil, err
	}
	if len(job.Sources) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "job declares no source")
	}
	if job.Transforms, err = parsePluginList(SectionTransform, doc[SectionTransform]); err != nil {
		return nil, err
	}
	if job.Sinks, err = parsePluginList(SectionSink, doc[SectionSink]); err != nil {
		return nil, err
	}
	return job, nil
}

func parseEnv(raw interface{}) (EnvConfig, error) {
	env := DefaultEnv()
	if raw == nil {
		return env, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return env, errors.Newf(errors.ErrorTypeConfig, "env must be a mapping, got %T", raw)
	}

	opts := Options(m)
	keys := opts.Keys()
	for _, key := range keys {
		switch normalizeEnvKey(key) {
		case EnvJobMode:
			env.JobMode = strings.ToUpper(opts.String(key, env.JobMode))
		case EnvJobName:
			env.JobName = opts.String(key, env.JobName)
		case EnvParallelism:
			p, err := opts.Int(key, env.Parallelism)
			if err != nil {
				return env, err
			}
			if p <= 0 {
				return env, errors.Newf(errors.ErrorTypeConfig, "env parallelism must be positive, got %d", p)
			}
			env.Parallelism = p
		default:
			env.Metadata[key] = opts.String(key, "")
		}
	}
	return env, nil
}

func normalizeEnvKey(key string) string {
	switch key {
	case "job_mode":
		return EnvJobMode
	case "job_name":
		return EnvJobName
	}
	return key
}

func parsePluginList(section string, raw interface{}) ([]*PluginConfig, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "%s must be a list of plugin mappings, got %T", section, raw)
	}

	configs := make([]*PluginConfig, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig, "%s[%d] must be a mapping, got %T", section, i, item)
		}
		cfg, err := NewPluginConfig(m)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("%s[%d]", section, i)).
				WithDetail(errors.DetailStage, section)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// MetadataKeys returns the env metadata keys in sorted order
func (e EnvConfig) MetadataKeys() []string {
	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
