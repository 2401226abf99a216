package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordMerged("a")
	m.RecordMerged("a")
	m.RecordMerged("b")
	m.RecordEviction("b", "sieve_exhaustion")
	m.RecordOverflow()
	m.RecordTick(0.0002, 3, 17)
	m.RecordCommand("add")
	m.RecordSend(0.001, nil)
	m.RecordSend(-0.5, nil)
	m.RecordSend(0, errors.New("unplugged"))
	m.RecordDropped(4)
	m.RecordDropped(0)
	m.RecordQueueDepth(9)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsMerged.WithLabelValues("a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evictions.WithLabelValues("b", "sieve_exhaustion")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.overflows))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.liveGenerators))
	assert.Equal(t, 17.0, testutil.ToFloat64(m.bufferDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("add")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.dispatched))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchErrors))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.dispatchDropped))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.queueDepth))

	n, err := testutil.GatherAndCount(reg, "stochos_dispatch_lateness_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordMerged("a")
		m.RecordEviction("a", "other")
		m.RecordOverflow()
		m.RecordTick(1, 1, 1)
		m.RecordCommand("stop")
		m.RecordSend(0, nil)
		m.RecordDropped(1)
		m.RecordQueueDepth(1)
	})
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
