// Package fieldmapper provides the FieldMapper transform, which renames
// columns and drops the ones not mapped.
package fieldmapper

import (
	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// PluginName is the registered name
const PluginName = "FieldMapper"

// KeyFieldMapper holds the source to target column mapping
const KeyFieldMapper = "field_mapper"

// Transform renames columns. Output columns keep the input order.
type Transform struct {
	mapping map[string]string
	table   string
	index   []int
	out     *core.RowType
}

// NewTransform creates an unconfigured FieldMapper
func NewTransform() (core.Transform, error) {
	return &Transform{}, nil
}

func (t *Transform) PluginName() string { return PluginName }

// Prepare implements core.Transform
func (t *Transform) Prepare(cfg *config.PluginConfig) error {
	raw, err := cfg.Options.Sub(KeyFieldMapper)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return errors.Newf(errors.ErrorTypeConfig, "%s is required", KeyFieldMapper)
	}

	mapping := make(map[string]string, len(raw))
	targets := make(map[string]string, len(raw))
	for from, v := range raw {
		to, ok := v.(string)
		if !ok || to == "" {
			return errors.Newf(errors.ErrorTypeConfig, "%s.%s must be a column name, got %v", KeyFieldMapper, from, v)
		}
		if prev, dup := targets[to]; dup {
			return errors.Newf(errors.ErrorTypeConfig, "%s and %s both map to %s", prev, from, to)
		}
		targets[to] = from
		mapping[from] = to
	}
	t.mapping = mapping
	t.table = cfg.ResultTableName
	return nil
}

func (t *Transform) SetJobContext(core.JobContext) {}

// SetInputType checks every mapped column exists upstream
func (t *Transform) SetInputType(in *core.RowType) error {
	for from := range t.mapping {
		if in.IndexOf(from) < 0 {
			return errors.Newf(errors.ErrorTypeConfig, "field %q is not in the input", from)
		}
	}
	t.index = t.index[:0]
	var fields []core.Field
	for i, f := range in.Fields {
		if to, ok := t.mapping[f.Name]; ok {
			t.index = append(t.index, i)
			fields = append(fields, core.Field{Name: to, Type: f.Type})
		}
	}
	t.out = core.NewRowType(fields...)
	return nil
}

func (t *Transform) ProducedType() *core.RowType { return t.out }

// Map implements core.Transform
func (t *Transform) Map(row core.Row) (core.Row, bool, error) {
	values := make([]interface{}, len(t.index))
	for i, idx := range t.index {
		if idx >= len(row.Values) {
			return core.Row{}, false, errors.Newf(errors.ErrorTypeData, "row has %d values, expected at least %d", len(row.Values), idx+1)
		}
		values[i] = row.Values[idx]
	}
	row.Values = values
	if t.table != "" {
		row.Table = t.table
	}
	return row, true, nil
}
