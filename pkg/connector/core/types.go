package core

import (
	"strings"

	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// FieldType represents the data type of a field
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeInt       FieldType = "int"
	FieldTypeBigInt    FieldType = "bigint"
	FieldTypeDouble    FieldType = "double"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeBytes     FieldType = "bytes"
)

var fieldTypeAliases = map[string]FieldType{
	"string":    FieldTypeString,
	"varchar":   FieldTypeString,
	"text":      FieldTypeString,
	"int":       FieldTypeInt,
	"integer":   FieldTypeInt,
	"bigint":    FieldTypeBigInt,
	"long":      FieldTypeBigInt,
	"double":    FieldTypeDouble,
	"float":     FieldTypeDouble,
	"decimal":   FieldTypeDouble,
	"boolean":   FieldTypeBoolean,
	"bool":      FieldTypeBoolean,
	"timestamp": FieldTypeTimestamp,
	"datetime":  FieldTypeTimestamp,
	"bytes":     FieldTypeBytes,
	"binary":    FieldTypeBytes,
}

// ParseFieldType maps a declared type name to a FieldType, ignoring case
func ParseFieldType(s string) (FieldType, error) {
	if ft, ok := fieldTypeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return ft, nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "unknown field type %q", s)
}

// Field represents a field in a row type
type Field struct {
	Name string
	Type FieldType
}

// RowType describes the records a plugin produces
type RowType struct {
	Fields []Field
}

// NewRowType builds a RowType from fields in order
func NewRowType(fields ...Field) *RowType {
	return &RowType{Fields: fields}
}

// Len returns the number of fields
func (t *RowType) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Fields)
}

// FieldNames returns the field names in order
func (t *RowType) FieldNames() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// Equal reports whether both types list the same fields in the same order
func (t *RowType) Equal(other *RowType) bool {
	if t.Len() != other.Len() {
		return false
	}
	for i := 0; i < t.Len(); i++ {
		if t.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}

// IndexOf returns the position of the named field or -1
func (t *RowType) IndexOf(name string) int {
	if t == nil {
		return -1
	}
	for i, f := range t.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// RowKind marks the change a row represents
type RowKind string

const (
	RowKindInsert       RowKind = "+I"
	RowKindUpdateBefore RowKind = "-U"
	RowKindUpdateAfter  RowKind = "+U"
	RowKindDelete       RowKind = "-D"
)

// Row is a single record flowing between plugins. Values follow the
// producer's RowType positionally.
type Row struct {
	Kind   RowKind
	Table  string
	Values []interface{}
}

// NewRow creates an insert row
func NewRow(table string, values ...interface{}) Row {
	return Row{Kind: RowKindInsert, Table: table, Values: values}
}

// Map pairs the row values with the field names of t
func (r Row) Map(t *RowType) map[string]interface{} {
	out := make(map[string]interface{}, len(r.Values))
	for i, v := range r.Values {
		if i < t.Len() {
			out[t.Fields[i].Name] = v
		}
	}
	return out
}
