// Package metrics holds the Prometheus collectors for the engine, the
// scheduler and the dispatcher.
//
// All Record* methods are safe on a nil *Metrics, so components can run
// without instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stochos"

// Metrics is one set of registered collectors.
type Metrics struct {
	eventsMerged     *prometheus.CounterVec
	evictions        *prometheus.CounterVec
	overflows        prometheus.Counter
	liveGenerators   prometheus.Gauge
	bufferDepth      prometheus.Gauge
	tickDuration     prometheus.Histogram
	commands         *prometheus.CounterVec
	dispatched       prometheus.Counter
	dispatchErrors   prometheus.Counter
	dispatchDropped  prometheus.Counter
	dispatchLateness prometheus.Histogram
	queueDepth       prometheus.Gauge
}

// New registers the collectors with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		// Labels: generator
		eventsMerged: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "events_total",
			Help:      "Events merged into the output stream",
		}, []string{"generator"}),

		// Labels: generator, reason (sieve_exhaustion, invalid_state, other)
		evictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "evictions_total",
			Help:      "Generators evicted after a runtime failure",
		}, []string{"generator", "reason"}),

		overflows: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "overflows_total",
			Help:      "Lookahead buffer overflows",
		}),
		liveGenerators: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "live_generators",
			Help:      "Generators currently registered",
		}),
		bufferDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "buffer_depth",
			Help:      "Events waiting in the lookahead buffer",
		}),
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent in one engine tick",
			Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
		}),

		// Labels: command (add, remove, replace, stop)
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "commands_total",
			Help:      "Control commands applied by the engine",
		}, []string{"command"}),

		dispatched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "sent_total",
			Help:      "Events handed to the transport",
		}),
		dispatchErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "errors_total",
			Help:      "Transport send failures",
		}),
		dispatchDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "dropped_total",
			Help:      "Events dropped because the dispatch queue was full",
		}),
		dispatchLateness: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "lateness_seconds",
			Help:      "Delay between an event's timestamp and its send",
			Buckets:   []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1},
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "queue_depth",
			Help:      "Events waiting in the dispatch queue",
		}),
	}
}

// RecordMerged counts one event merged from generator.
func (m *Metrics) RecordMerged(generator string) {
	if m == nil {
		return
	}
	m.eventsMerged.WithLabelValues(generator).Inc()
}

// RecordEviction counts an evicted generator.
func (m *Metrics) RecordEviction(generator, reason string) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(generator, reason).Inc()
}

// RecordOverflow counts a lookahead buffer overflow.
func (m *Metrics) RecordOverflow() {
	if m == nil {
		return
	}
	m.overflows.Inc()
}

// RecordTick records one engine tick: its wall duration, the live generator
// count and the lookahead buffer depth afterwards.
func (m *Metrics) RecordTick(seconds float64, live, buffered int) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(seconds)
	m.liveGenerators.Set(float64(live))
	m.bufferDepth.Set(float64(buffered))
}

// RecordCommand counts an applied control command.
func (m *Metrics) RecordCommand(command string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command).Inc()
}

// RecordSend records a transport send and how late it was.
func (m *Metrics) RecordSend(lateness float64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.dispatchErrors.Inc()
		return
	}
	m.dispatched.Inc()
	if lateness < 0 {
		lateness = 0
	}
	m.dispatchLateness.Observe(lateness)
}

// RecordDropped counts events the dispatch queue refused.
func (m *Metrics) RecordDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dispatchDropped.Add(float64(n))
}

// RecordQueueDepth sets the dispatch queue depth gauge.
func (m *Metrics) RecordQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
