package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveTurn("success", 50*time.Millisecond)
	r.ObserveTurn("success", 10*time.Millisecond)
	r.ObserveTurn("error", time.Second)
	r.ObserveTermination("all_done")
	r.ObserveTermination("")
	r.ObserveToolCall("start_batch_run", "success")
	r.ObservePlanFallback()
	r.ObserveLLMCall("planner", "success")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.turnsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.turnsTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.terminationsTotal.WithLabelValues("all_done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.terminationsTotal.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.toolCallsTotal.WithLabelValues("start_batch_run", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.planFallbackTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.llmCallsTotal.WithLabelValues("planner", "success")))
}

func TestRecorderRegistersPerRegistry(t *testing.T) {
	// Two recorders on separate registries must not collide.
	first := NewRecorder(prometheus.NewRegistry())
	second := NewRecorder(prometheus.NewRegistry())
	require.NotNil(t, first)
	require.NotNil(t, second)
}
