package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/seaflow/pkg/connector/core"
)

func buildJob(t *testing.T, env *Environment, src *seqSource, sinks ...*memorySink) *DataStream {
	t.Helper()
	stream, err := env.AddSource(SourceSpec{
		Name:         "Source[0] Seq",
		Source:       src,
		Strategy:     core.StrategyOf(src),
		Boundedness:  src.Boundedness(),
		ProducedType: seqType,
	})
	require.NoError(t, err)
	for _, sink := range sinks {
		_, err := env.AddSink(SinkSpec{Name: "Sink Memory", Sink: sink, Inputs: []*DataStream{stream}})
		require.NoError(t, err)
	}
	return stream
}

func TestExecuteParallel(t *testing.T) {
	env := NewEnvironment(WithParallelism(2), WithIdleInterval(time.Millisecond))
	src := &seqSource{splits: 4, rowsPerSplit: 3}
	sink := &memorySink{}
	stream := buildJob(t, env, src, sink)

	require.NoError(t, env.Execute(context.Background()))

	assert.Len(t, sink.Rows(), 12)
	// One enumerator per task
	assert.Equal(t, int32(2), src.enumerators.Load())
	assert.Equal(t, int32(2), src.readers.Load())
	assert.Equal(t, map[int][]string{0: {"s0", "s2"}, 1: {"s1", "s3"}}, env.Assignments(stream))
	// The sink inherits the environment parallelism, one writer per subtask
	assert.Equal(t, int32(2), sink.closed.Load())
}

func TestExecuteCoordinated(t *testing.T) {
	env := NewEnvironment(WithParallelism(3), WithIdleInterval(time.Millisecond))
	src := &seqSource{splits: 5, rowsPerSplit: 2, coordinated: true}
	sink := &memorySink{}
	stream := buildJob(t, env, src, sink)
	assert.Equal(t, core.StrategyCoordinated, stream.Strategy())

	require.NoError(t, env.Execute(context.Background()))

	assert.Len(t, sink.Rows(), 10)
	assert.Equal(t, int32(1), src.enumerators.Load())
	assert.Equal(t, int32(3), src.readers.Load())
	assert.Equal(t, map[int][]string{0: {"s0", "s3"}, 1: {"s1", "s4"}, 2: {"s2"}}, env.Assignments(stream))
}

func TestExecuteFanOutAndTransform(t *testing.T) {
	env := NewEnvironment(WithIdleInterval(time.Millisecond))
	src := &seqSource{splits: 2, rowsPerSplit: 4}
	all := &memorySink{}
	stream := buildJob(t, env, src, all)

	tr, err := env.AddTransform(TransformSpec{Name: "Transform[0] Even", Transform: evenFilter{}, Input: stream})
	require.NoError(t, err)
	even := &memorySink{}
	_, err = env.AddSink(SinkSpec{Name: "Sink Even", Sink: even, Inputs: []*DataStream{tr}, Parallelism: 2})
	require.NoError(t, err)

	require.NoError(t, env.Execute(context.Background()))
	assert.Len(t, all.Rows(), 8)
	assert.Len(t, even.Rows(), 4)
	for _, row := range even.Rows() {
		assert.Equal(t, 0, row.Values[1].(int)%2)
	}
	assert.Equal(t, int32(2), even.closed.Load())
}

func TestExecuteMergedInputs(t *testing.T) {
	env := NewEnvironment(WithIdleInterval(time.Millisecond))
	a, err := env.AddSource(SourceSpec{Name: "a", Source: &seqSource{splits: 1, rowsPerSplit: 3}})
	require.NoError(t, err)
	b, err := env.AddSource(SourceSpec{Name: "b", Source: &seqSource{splits: 2, rowsPerSplit: 2}})
	require.NoError(t, err)
	sink := &memorySink{}
	_, err = env.AddSink(SinkSpec{Name: "merged", Sink: sink, Inputs: []*DataStream{a, b}})
	require.NoError(t, err)

	require.NoError(t, env.Execute(context.Background()))
	assert.Len(t, sink.Rows(), 7)
}

func TestExecuteUnboundedStopsOnCancel(t *testing.T) {
	env := NewEnvironment(WithIdleInterval(time.Millisecond))
	src := &seqSource{splits: 1, rowsPerSplit: 5, unbounded: true, coordinated: true}
	sink := &memorySink{}
	buildJob(t, env, src, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.Execute(ctx) }()

	require.Eventually(t, func() bool { return len(sink.Rows()) == 5 }, 2*time.Second, 5*time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("unbounded job ended early: %v", err)
	default:
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not stop after cancel")
	}
}

func TestExecuteReaderFailure(t *testing.T) {
	env := NewEnvironment(WithIdleInterval(time.Millisecond))
	buildJob(t, env, &seqSource{splits: 1, rowsPerSplit: 1, failReader: true}, &memorySink{})

	err := env.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reader exploded")
}

func TestExecuteEmptyGraph(t *testing.T) {
	assert.Error(t, NewEnvironment().Execute(context.Background()))
}
