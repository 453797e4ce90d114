package config

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// Options is the opaque key/value payload of one declared plugin. Values keep
// the shape the job file decoder produced (string, bool, int/float64, []interface{},
// map[string]interface{}); the typed accessors below convert on read.
type Options map[string]interface{}

// Has reports whether key is present
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Get returns the raw value for key
func (o Options) Get(key string) (interface{}, bool) {
	v, ok := o[key]
	return v, ok
}

// Keys returns the option keys in sorted order
func (o Options) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the value for key rendered as a string, or def when absent
func (o Options) String(key, def string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns the value for key as an int, or def when absent
func (o Options) Int(key string, def int) (int, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, optionError(key, "must be an integer, got %v", n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, optionError(key, "must be an integer, got %q", n)
		}
		return i, nil
	default:
		return 0, optionError(key, "must be an integer, got %T", v)
	}
}

// Bool returns the value for key as a bool, or def when absent
func (o Options) Bool(key string, def bool) (bool, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, optionError(key, "must be a boolean, got %q", b)
		}
		return parsed, nil
	default:
		return false, optionError(key, "must be a boolean, got %T", v)
	}
}

// Duration returns the value for key as a duration. Strings use time.ParseDuration
// syntax; bare numbers are milliseconds.
func (o Options) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	if s, ok := v.(string); ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, optionError(key, "must be a duration, got %q", s)
		}
		return d, nil
	}
	ms, err := o.Int(key, 0)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// StringSlice returns the value for key as a list. A single string is a one-element list.
func (o Options) StringSlice(key string) ([]string, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch list := v.(type) {
	case string:
		return []string{list}, nil
	case []string:
		return append([]string(nil), list...), nil
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, optionError(key, "must be a list of strings, found %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, optionError(key, "must be a string or list of strings, got %T", v)
	}
}

// Sub returns the nested mapping stored under key, or an empty Options
func (o Options) Sub(key string) (Options, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return Options{}, nil
	}
	switch m := v.(type) {
	case map[string]interface{}:
		return Options(m), nil
	case Options:
		return m, nil
	default:
		return nil, optionError(key, "must be a mapping, got %T", v)
	}
}

// Decode copies the options into a struct using `config:"key"` field tags.
// Scalar types are converted leniently so "10" fills an int field.
func (o Options) Decode(out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "config",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to build option decoder")
	}
	if err := decoder.Decode(map[string]interface{}(o)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid plugin options")
	}
	return nil
}

func optionError(key, format string, args ...interface{}) error {
	return errors.Newf(errors.ErrorTypeConfig, "option %q "+format, append([]interface{}{key}, args...)...).
		WithDetail("option", key)
}
