package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/buzzer/internal/api/ws"
	"github.com/oshokin/buzzer/internal/service/scheduler"
)

const namespace = "buzzer"

// Collector holds every metric of the server.
type Collector struct {
	registry *prometheus.Registry

	ticks        *prometheus.CounterVec
	skipped      prometheus.Counter
	noteDuration prometheus.Histogram
	sounding     prometheus.Gauge
	sessions     prometheus.Gauge
	frames       *prometheus.CounterVec
	commands     *prometheus.CounterVec
}

// New creates a collector registered on a fresh registry together with the
// Go runtime and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "ticks_total",
				Help:      "Scheduler ticks by outcome.",
			},
			[]string{"outcome"},
		),
		skipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "ticks_skipped_total",
				Help:      "Ticks dropped because a note was still playing.",
			},
		),
		noteDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "playback",
				Name:      "note_duration_seconds",
				Help:      "Wall time of a blocking playback call.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
			},
		),
		sounding: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sounding",
				Help:      "1 while the activation flag is set.",
			},
		),
		sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ws",
				Name:      "sessions",
				Help:      "Open control-channel sessions.",
			},
		),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ws",
				Name:      "frames_total",
				Help:      "Received control frames by outcome.",
			},
			[]string{"outcome"},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ws",
				Name:      "commands_total",
				Help:      "Decoded commands by resulting activation.",
			},
			[]string{"activation"},
		),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.ticks, c.skipped, c.noteDuration, c.sounding, c.sessions, c.frames, c.commands,
	)

	return c
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Observe implements scheduler.Reporter.
func (c *Collector) Observe(e scheduler.Event) {
	if e.Outcome == scheduler.OutcomeSkipped {
		c.skipped.Add(float64(e.Skipped))
		return
	}

	c.ticks.WithLabelValues(e.Outcome.String()).Inc()

	if e.Outcome == scheduler.OutcomePlayed || e.Outcome == scheduler.OutcomeFailed {
		c.noteDuration.Observe(e.Elapsed.Seconds())
	}
}

// FrameReceived implements ws.FrameObserver.
func (c *Collector) FrameReceived(outcome ws.FrameOutcome) {
	c.frames.WithLabelValues(string(outcome)).Inc()
}

// SessionOpened counts a new control session.
func (c *Collector) SessionOpened() {
	c.sessions.Inc()
}

// SessionClosed counts a finished control session.
func (c *Collector) SessionClosed() {
	c.sessions.Dec()
}

// CommandApplied records the activation a command produced.
func (c *Collector) CommandApplied(sounding bool) {
	activation := "silent"
	value := 0.0

	if sounding {
		activation = "sounding"
		value = 1
	}

	c.commands.WithLabelValues(activation).Inc()
	c.sounding.Set(value)
}
