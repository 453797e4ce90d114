package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/seaflow/pkg/config"
	"github.com/ajitpratap0/seaflow/pkg/connector/core"
)

func TestConsoleFormats(t *testing.T) {
	rt := core.NewRowType(core.Field{Name: "name", Type: core.FieldTypeString}, core.Field{Name: "age", Type: core.FieldTypeInt})

	tests := []struct {
		format string
		want   string
	}{
		{"text", "subtask 1/2 row 1: +I[ann, 31]\n"},
		{"json", `subtask 1/2 row 1: {"age":31,"name":"ann"}` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			s := NewSinkTo(&buf)
			require.NoError(t, s.Prepare(config.MustPluginConfig(map[string]interface{}{"plugin_name": PluginName, "format": tt.format})))
			require.NoError(t, s.SetInputType(rt))

			w, err := s.CreateWriter(core.WriterContext{SubtaskIndex: 0, Parallelism: 2})
			require.NoError(t, err)
			require.NoError(t, w.Write(context.Background(), core.NewRow("people", "ann", int32(31))))
			require.NoError(t, w.Close())
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestConsoleLimit(t *testing.T) {
	var buf bytes.Buffer
	s := NewSinkTo(&buf)
	require.NoError(t, s.Prepare(config.MustPluginConfig(map[string]interface{}{"plugin_name": PluginName, "limit": 2})))
	w, _ := s.CreateWriter(core.WriterContext{Parallelism: 1})
	for i := 0; i < 5; i++ {
		require.NoError(t, w.Write(context.Background(), core.NewRow("t", i)))
	}
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestConsoleRejectsFormat(t *testing.T) {
	s := NewSinkTo(&bytes.Buffer{})
	assert.Error(t, s.Prepare(config.MustPluginConfig(map[string]interface{}{"plugin_name": PluginName, "format": "xml"})))
}
