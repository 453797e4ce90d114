// Package filter provides the Filter transform. It keeps rows whose field
// matches a regular expression and can project the kept rows onto a subset
// of columns.
package filter

import (
	"fmt"
	"regexp"

	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// PluginName is the registered name
const PluginName = "Filter"

// Options configure Filter
type Options struct {
	// Field is matched against Pattern. Rows pass unfiltered when empty.
	Field   string `config:"field"`
	Pattern string `config:"pattern"`
	// Invert keeps the rows that do not match
	Invert bool `config:"invert"`
	// Fields projects the output onto these columns, in this order
	Fields []string `config:"fields"`
}

// Transform filters and projects rows
type Transform struct {
	opts    Options
	re      *regexp.Regexp
	table   string
	field   int
	project []int
	in      *core.RowType
	out     *core.RowType
}

// NewTransform creates an unconfigured Filter
func NewTransform() (core.Transform, error) {
	return &Transform{field: -1}, nil
}

func (t *Transform) PluginName() string { return PluginName }

// Prepare implements core.Transform
func (t *Transform) Prepare(cfg *config.PluginConfig) error {
	var opts Options
	if err := cfg.Options.Decode(&opts); err != nil {
		return err
	}
	if (opts.Field == "") != (opts.Pattern == "") {
		return errors.New(errors.ErrorTypeConfig, "field and pattern must be set together")
	}
	if opts.Field == "" && len(opts.Fields) == 0 {
		return errors.New(errors.ErrorTypeConfig, "either field/pattern or fields is required")
	}
	if opts.Pattern != "" {
		re, err := regexp.Compile(opts.Pattern)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid pattern")
		}
		t.re = re
	}
	t.opts = opts
	t.table = cfg.ResultTableName
	return nil
}

func (t *Transform) SetJobContext(core.JobContext) {}

// SetInputType resolves the configured columns against the upstream type
func (t *Transform) SetInputType(in *core.RowType) error {
	if t.opts.Field != "" {
		if t.field = in.IndexOf(t.opts.Field); t.field < 0 {
			return errors.Newf(errors.ErrorTypeConfig, "field %q is not in the input", t.opts.Field)
		}
	}

	t.in, t.out = in, in
	t.project = nil
	if len(t.opts.Fields) > 0 {
		fields := make([]core.Field, len(t.opts.Fields))
		t.project = make([]int, len(t.opts.Fields))
		for i, name := range t.opts.Fields {
			idx := in.IndexOf(name)
			if idx < 0 {
				return errors.Newf(errors.ErrorTypeConfig, "field %q is not in the input", name)
			}
			t.project[i] = idx
			fields[i] = in.Fields[idx]
		}
		t.out = core.NewRowType(fields...)
	}
	return nil
}

func (t *Transform) ProducedType() *core.RowType { return t.out }

// Map implements core.Transform
func (t *Transform) Map(row core.Row) (core.Row, bool, error) {
	if t.re != nil {
		var s string
		if v := row.Values[t.field]; v != nil {
			s = fmt.Sprint(v)
		}
		if t.re.MatchString(s) == t.opts.Invert {
			return core.Row{}, false, nil
		}
	}

	if t.table != "" {
		row.Table = t.table
	}
	if t.project == nil {
		return row, true, nil
	}
	values := make([]interface{}, len(t.project))
	for i, idx := range t.project {
		values[i] = row.Values[idx]
	}
	row.Values = values
	return row, true, nil
}
