package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	LinesTotal       prometheus.Counter
	ParseErrors      prometheus.Counter
	ReadErrors       prometheus.Counter
	Truncations      prometheus.Counter
	CursorOffset     prometheus.Gauge
	SignalsCoalesced prometheus.Counter
	EventsTotal      *prometheus.CounterVec
	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	SinkWritesTotal  *prometheus.CounterVec
}

// New builds the collectors on a private registry so several instances can
// coexist in one process.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		LinesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eve_lines_total",
			Help: "EVE log lines read",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eve_parse_errors_total",
			Help: "EVE log lines that were not valid JSON objects",
		}),
		ReadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eve_read_errors_total",
			Help: "Failed reads of the monitored file",
		}),
		Truncations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eve_truncations_total",
			Help: "Times the monitored file shrank below the cursor",
		}),
		CursorOffset: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eve_cursor_offset_bytes",
			Help: "Bytes of the monitored file consumed",
		}),
		SignalsCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eve_signals_coalesced_total",
			Help: "Change signals folded into an already pending re-read",
		}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eve_events_total",
			Help: "Decoded events by qualification outcome",
		}, []string{"outcome"}),
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eve_analyses_total",
			Help: "Analysis requests by result",
		}, []string{"result"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eve_analysis_duration_seconds",
			Help:    "Latency of analysis requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		SinkWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eve_sink_writes_total",
			Help: "Result sink appends by result",
		}, []string{"result"}),
	}

	m.Registry.MustRegister(
		m.LinesTotal,
		m.ParseErrors,
		m.ReadErrors,
		m.Truncations,
		m.CursorOffset,
		m.SignalsCoalesced,
		m.EventsTotal,
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.SinkWritesTotal,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
