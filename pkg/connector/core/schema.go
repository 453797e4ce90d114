package core

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// Option keys for the schema block shared by connectors that cannot
// discover their row type.
const (
	KeySchema       = "schema"
	KeySchemaFields = "fields"
)

// ParseSchema reads a row type from the "schema" option:
//
//	schema:
//	  fields:
//	    - name: id
//	      type: bigint
//	    - name: name
//	      type: string
//
// A mapping of name to type is accepted too; its fields are sorted by name
// since mappings carry no order. def is returned when no schema is given.
func ParseSchema(opts config.Options, def *RowType) (*RowType, error) {
	schema, err := opts.Sub(KeySchema)
	if err != nil {
		return nil, err
	}
	raw, ok := schema.Get(KeySchemaFields)
	if !ok {
		return def, nil
	}

	var fields []Field
	switch list := raw.(type) {
	case []interface{}:
		for i, item := range list {
			entry, ok := item.(map[string]interface{})
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeConfig, "schema field %d must be a mapping with name and type", i)
			}
			f, err := newField(fmt.Sprint(entry["name"]), fmt.Sprint(entry["type"]))
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
		}
	case map[string]interface{}:
		names := make([]string, 0, len(list))
		for name := range list {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			f, err := newField(name, fmt.Sprint(list[name]))
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
		}
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "schema.fields must be a list or mapping, got %T", raw)
	}

	if len(fields) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "schema.fields is empty")
	}
	return NewRowType(fields...), nil
}

func newField(name, typ string) (Field, error) {
	if name == "" || name == "<nil>" {
		return Field{}, errors.New(errors.ErrorTypeConfig, "schema field without a name")
	}
	ft, err := ParseFieldType(typ)
	if err != nil {
		return Field{}, errors.Wrap(err, errors.ErrorTypeConfig, "schema field "+name)
	}
	return Field{Name: name, Type: ft}, nil
}

// RowFromMap builds a row from decoded key/value data, converting each
// value to its declared field type. Missing keys become nil.
func RowFromMap(table string, rt *RowType, data map[string]interface{}) (Row, error) {
	values := make([]interface{}, rt.Len())
	for i, f := range rt.Fields {
		v, err := Convert(data[f.Name], f.Type)
		if err != nil {
			return Row{}, errors.Wrap(err, errors.ErrorTypeData, "field "+f.Name)
		}
		values[i] = v
	}
	return NewRow(table, values...), nil
}

// Convert coerces a decoded value into the Go type used for t:
// string, int32, int64, float64, bool, time.Time or []byte
func Convert(v interface{}, t FieldType) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case FieldTypeString:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
		return fmt.Sprint(v), nil
	case FieldTypeInt:
		n, err := toInt64(v)
		return int32(n), err
	case FieldTypeBigInt:
		return toInt64(v)
	case FieldTypeDouble:
		return toFloat64(v)
	case FieldTypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return strconv.ParseBool(b)
		case []byte:
			return strconv.ParseBool(string(b))
		}
		n, err := toInt64(v)
		return n != 0, err
	case FieldTypeTimestamp:
		switch ts := v.(type) {
		case time.Time:
			return ts, nil
		case string:
			return time.Parse(time.RFC3339Nano, ts)
		case []byte:
			return time.Parse(time.RFC3339Nano, string(ts))
		}
		ms, err := toInt64(v)
		return time.UnixMilli(ms).UTC(), err
	case FieldTypeBytes:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			if decoded, err := base64.StdEncoding.DecodeString(b); err == nil {
				return decoded, nil
			}
			return []byte(b), nil
		}
		return []byte(fmt.Sprint(v)), nil
	}
	return nil, errors.Newf(errors.ErrorTypeData, "unsupported field type %q", t)
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	}
	return 0, errors.Newf(errors.ErrorTypeData, "cannot convert %T to an integer", v)
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	case []byte:
		return strconv.ParseFloat(string(n), 64)
	}
	i, err := toInt64(v)
	return float64(i), err
}
