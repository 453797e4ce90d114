package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(SourcesBridged.WithLabelValues("Test", "parallel"))
	SourcesBridged.WithLabelValues("Test", "parallel").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(SourcesBridged.WithLabelValues("Test", "parallel")))

	DependenciesRegistered.Set(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(DependenciesRegistered))
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	first := timer.Stop()
	assert.GreaterOrEqual(t, first, 5*time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), first)
}
