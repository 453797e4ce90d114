// Package avro maps row types onto Avro record schemas and converts rows to
// and from the native form goavro reads and writes.
package avro

import (
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// Block codecs of an object container file
const (
	CodecNull    = goavro.CompressionNullLabel
	CodecDeflate = goavro.CompressionDeflateLabel
	CodecSnappy  = goavro.CompressionSnappyLabel
)

const timestampMillis = "timestamp-millis"

// ParseCodec validates a block codec name; empty means null
func ParseCodec(s string) (string, error) {
	switch strings.ToLower(s) {
	case "", "none", CodecNull:
		return CodecNull, nil
	case CodecDeflate:
		return CodecDeflate, nil
	case CodecSnappy:
		return CodecSnappy, nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "unsupported avro codec %q (expected null, deflate or snappy)", s)
}

// Schema renders rt as an Avro record schema named after name. Every field
// is a union with null so missing values round trip.
func Schema(name string, rt *core.RowType) (string, error) {
	fields := make([]map[string]interface{}, 0, rt.Len())
	for _, f := range rt.Fields {
		fields = append(fields, map[string]interface{}{
			"name":    f.Name,
			"type":    []interface{}{"null", avroType(f.Type)},
			"default": nil,
		})
	}
	out, err := gojson.Marshal(map[string]interface{}{
		"type":   "record",
		"name":   recordName(name),
		"fields": fields,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to render avro schema")
	}
	return string(out), nil
}

// NewCodec builds a goavro codec for rt
func NewCodec(name string, rt *core.RowType) (*goavro.Codec, error) {
	schema, err := Schema(name, rt)
	if err != nil {
		return nil, err
	}
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid avro schema").WithDetail("schema", schema)
	}
	return codec, nil
}

func avroType(t core.FieldType) interface{} {
	switch t {
	case core.FieldTypeInt:
		return "int"
	case core.FieldTypeBigInt:
		return "long"
	case core.FieldTypeDouble:
		return "double"
	case core.FieldTypeBoolean:
		return "boolean"
	case core.FieldTypeBytes:
		return "bytes"
	case core.FieldTypeTimestamp:
		return map[string]interface{}{"type": "long", "logicalType": timestampMillis}
	default:
		return "string"
	}
}

// branch is the goavro union member name of a field type
func branch(t core.FieldType) string {
	if t == core.FieldTypeTimestamp {
		return "long." + timestampMillis
	}
	return avroType(t).(string)
}

// recordName turns a table name into a valid Avro name
func recordName(name string) string {
	if name == "" {
		return "row"
	}
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Native converts row into the datum a codec built by NewCodec accepts
func Native(rt *core.RowType, row core.Row) (map[string]interface{}, error) {
	datum := make(map[string]interface{}, rt.Len())
	for i, f := range rt.Fields {
		var v interface{}
		if i < len(row.Values) {
			v = row.Values[i]
		}
		if v == nil {
			datum[f.Name] = nil
			continue
		}
		converted, err := core.Convert(v, f.Type)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "field "+f.Name)
		}
		datum[f.Name] = goavro.Union(branch(f.Type), converted)
	}
	return datum, nil
}

// Record flattens a decoded record datum, unwrapping union values
func Record(datum interface{}) (map[string]interface{}, error) {
	m, ok := datum.(map[string]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeData, "avro datum is %T, expected a record", datum)
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if u, ok := v.(map[string]interface{}); ok && len(u) == 1 {
			for _, inner := range u {
				v = inner
			}
		}
		out[k] = v
	}
	return out, nil
}

// RowType derives a row type from an Avro record schema
func RowType(schema string) (*core.RowType, error) {
	var doc struct {
		Type   interface{} `json:"type"`
		Fields []struct {
			Name string      `json:"name"`
			Type interface{} `json:"type"`
		} `json:"fields"`
	}
	if err := gojson.Unmarshal([]byte(schema), &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid avro schema")
	}
	if doc.Type != "record" {
		return nil, errors.Newf(errors.ErrorTypeData, "avro schema is %v, expected a record", doc.Type)
	}
	fields := make([]core.Field, len(doc.Fields))
	for i, f := range doc.Fields {
		fields[i] = core.Field{Name: f.Name, Type: fieldType(f.Type)}
	}
	return core.NewRowType(fields...), nil
}

func fieldType(t interface{}) core.FieldType {
	switch v := t.(type) {
	case string:
		switch v {
		case "int":
			return core.FieldTypeInt
		case "long":
			return core.FieldTypeBigInt
		case "float", "double":
			return core.FieldTypeDouble
		case "boolean":
			return core.FieldTypeBoolean
		case "bytes", "fixed":
			return core.FieldTypeBytes
		}
	case []interface{}:
		for _, member := range v {
			if member != "null" {
				return fieldType(member)
			}
		}
	case map[string]interface{}:
		switch v["logicalType"] {
		case timestampMillis, "timestamp-micros":
			return core.FieldTypeTimestamp
		}
		return fieldType(v["type"])
	}
	return core.FieldTypeString
}
