// Package columnar converts rows to and from Arrow record batches.
package columnar

import (
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// Schema returns the Arrow schema of rt. Every field is nullable.
func Schema(rt *core.RowType) *arrow.Schema {
	fields := make([]arrow.Field, rt.Len())
	for i, f := range rt.Fields {
		fields[i] = arrow.Field{Name: f.Name, Type: dataType(f.Type), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func dataType(t core.FieldType) arrow.DataType {
	switch t {
	case core.FieldTypeInt:
		return arrow.PrimitiveTypes.Int32
	case core.FieldTypeBigInt:
		return arrow.PrimitiveTypes.Int64
	case core.FieldTypeDouble:
		return arrow.PrimitiveTypes.Float64
	case core.FieldTypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	case core.FieldTypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_ms
	case core.FieldTypeBytes:
		return arrow.BinaryTypes.Binary
	default:
		return arrow.BinaryTypes.String
	}
}

// RowType derives a row type from an Arrow schema
func RowType(schema *arrow.Schema) *core.RowType {
	fields := make([]core.Field, schema.NumFields())
	for i, f := range schema.Fields() {
		fields[i] = core.Field{Name: f.Name, Type: fieldType(f.Type)}
	}
	return core.NewRowType(fields...)
}

func fieldType(dt arrow.DataType) core.FieldType {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.UINT8, arrow.UINT16:
		return core.FieldTypeInt
	case arrow.INT64, arrow.UINT32, arrow.UINT64:
		return core.FieldTypeBigInt
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return core.FieldTypeDouble
	case arrow.BOOL:
		return core.FieldTypeBoolean
	case arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return core.FieldTypeTimestamp
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.FIXED_SIZE_BINARY:
		return core.FieldTypeBytes
	}
	return core.FieldTypeString
}

// Builder accumulates rows into record batches
type Builder struct {
	rt      *core.RowType
	records *array.RecordBuilder
	rows    int
	values  []interface{}
}

// NewBuilder creates a builder for rows of rt
func NewBuilder(rt *core.RowType) *Builder {
	return &Builder{
		rt:      rt,
		records: array.NewRecordBuilder(memory.NewGoAllocator(), Schema(rt)),
		values:  make([]interface{}, rt.Len()),
	}
}

// Append adds row to the pending batch. A row that fails conversion leaves
// the batch untouched.
func (b *Builder) Append(row core.Row) error {
	for i, f := range b.rt.Fields {
		var v interface{}
		if i < len(row.Values) {
			v = row.Values[i]
		}
		converted, err := core.Convert(v, f.Type)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "field "+f.Name)
		}
		b.values[i] = converted
	}

	for i, v := range b.values {
		field := b.records.Field(i)
		if v == nil {
			field.AppendNull()
			continue
		}
		switch fb := field.(type) {
		case *array.Int32Builder:
			fb.Append(v.(int32))
		case *array.Int64Builder:
			fb.Append(v.(int64))
		case *array.Float64Builder:
			fb.Append(v.(float64))
		case *array.BooleanBuilder:
			fb.Append(v.(bool))
		case *array.TimestampBuilder:
			fb.Append(arrow.Timestamp(v.(time.Time).UnixMilli()))
		case *array.BinaryBuilder:
			fb.Append(v.([]byte))
		case *array.StringBuilder:
			fb.Append(v.(string))
		}
	}
	b.rows++
	return nil
}

// Len is the number of pending rows
func (b *Builder) Len() int { return b.rows }

// NewRecord returns the pending rows as a record batch and starts a new
// one. The caller releases the record.
func (b *Builder) NewRecord() arrow.Record {
	b.rows = 0
	return b.records.NewRecord()
}

func (b *Builder) Release() { b.records.Release() }

// Values returns row i of rec keyed by column name
func Values(rec arrow.Record, i int) map[string]interface{} {
	out := make(map[string]interface{}, rec.NumCols())
	for c, f := range rec.Schema().Fields() {
		out[f.Name] = value(rec.Column(c), i)
	}
	return out
}

// value copies one cell out of arr, so it outlives the record
func value(arr arrow.Array, i int) interface{} {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.String:
		return strings.Clone(a.Value(i))
	case *array.Int32:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Boolean:
		return a.Value(i)
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit).UTC()
	case *array.Date32:
		return a.Value(i).ToTime().UTC()
	case *array.Date64:
		return a.Value(i).ToTime().UTC()
	case *array.Binary:
		return append([]byte(nil), a.Value(i)...)
	}
	return arr.ValueStr(i)
}
