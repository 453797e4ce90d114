package avro

import (
	"bytes"
	"testing"
	"time"

	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/seaflow/pkg/connector/core"
	"github.com/ajitpratap0/seaflow/pkg/errors"
)

var allTypes = core.NewRowType(
	core.Field{Name: "s", Type: core.FieldTypeString},
	core.Field{Name: "i", Type: core.FieldTypeInt},
	core.Field{Name: "b", Type: core.FieldTypeBigInt},
	core.Field{Name: "d", Type: core.FieldTypeDouble},
	core.Field{Name: "ok", Type: core.FieldTypeBoolean},
	core.Field{Name: "at", Type: core.FieldTypeTimestamp},
	core.Field{Name: "raw", Type: core.FieldTypeBytes},
)

func TestSchemaRoundTripsRowType(t *testing.T) {
	schema, err := Schema("orders", allTypes)
	require.NoError(t, err)
	assert.Contains(t, schema, `"logicalType":"timestamp-millis"`)

	rt, err := RowType(schema)
	require.NoError(t, err)
	assert.True(t, allTypes.Equal(rt))
}

func TestRowTypeOfForeignSchema(t *testing.T) {
	rt, err := RowType(`{"type":"record","name":"r","fields":[
		{"name":"f","type":"float"},
		{"name":"e","type":{"type":"enum","name":"e","symbols":["A"]}},
		{"name":"us","type":["null",{"type":"long","logicalType":"timestamp-micros"}]}]}`)
	require.NoError(t, err)
	assert.Equal(t, core.FieldTypeDouble, rt.Fields[0].Type)
	assert.Equal(t, core.FieldTypeString, rt.Fields[1].Type)
	assert.Equal(t, core.FieldTypeTimestamp, rt.Fields[2].Type)

	_, err = RowType(`"string"`)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	_, err = RowType(`{`)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestRecordName(t *testing.T) {
	assert.Equal(t, "orders_2024", recordName("orders-2024"))
	assert.Equal(t, "_1st", recordName("1st"))
	assert.Equal(t, "row", recordName(""))
}

func TestParseCodec(t *testing.T) {
	for in, want := range map[string]string{"": CodecNull, "NONE": CodecNull, "deflate": CodecDeflate, "snappy": CodecSnappy} {
		got, err := ParseCodec(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCodec("zstd")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestNativeThroughContainer(t *testing.T) {
	codec, err := NewCodec("orders", allTypes)
	require.NoError(t, err)
	at := time.UnixMilli(1700000000123).UTC()

	var buf bytes.Buffer
	w, err := goavro.NewOCFWriter(goavro.OCFConfig{W: &buf, Codec: codec})
	require.NoError(t, err)
	full, err := Native(allTypes, core.Row{Values: []interface{}{"x", 7, "9", 1.5, true, at, []byte{1}}})
	require.NoError(t, err)
	empty, err := Native(allTypes, core.Row{})
	require.NoError(t, err)
	require.NoError(t, w.Append([]interface{}{full, empty}))

	r, err := goavro.NewOCFReader(&buf)
	require.NoError(t, err)
	var got []map[string]interface{}
	for r.Scan() {
		datum, err := r.Read()
		require.NoError(t, err)
		rec, err := Record(datum)
		require.NoError(t, err)
		got = append(got, rec)
	}
	require.NoError(t, r.Err())
	require.Len(t, got, 2)

	assert.Equal(t, "x", got[0]["s"])
	assert.Equal(t, int32(7), got[0]["i"])
	assert.Equal(t, int64(9), got[0]["b"])
	assert.Equal(t, 1.5, got[0]["d"])
	assert.Equal(t, true, got[0]["ok"])
	assert.True(t, at.Equal(got[0]["at"].(time.Time)))
	assert.Equal(t, []byte{1}, got[0]["raw"])
	for _, f := range allTypes.FieldNames() {
		assert.Nil(t, got[1][f], f)
	}
}

func TestNativeRejectsUnconvertibleValues(t *testing.T) {
	_, err := Native(allTypes, core.Row{Values: []interface{}{"x", "seven"}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestRecordRejectsNonRecords(t *testing.T) {
	_, err := Record("x")
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}
