// Package telemetry records request events. Sinks are fire-and-forget: a
// failing sink never affects the response a caller gets.
package telemetry

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Event names emitted by the pipeline and handlers.
const (
	EventRequestCompleted = "request.completed"
	EventFallbackServed   = "fallback.served"
	EventRateLimited      = "request.rate_limited"
)

// Sink receives events. Implementations must not block for long.
type Sink interface {
	Record(event string, props map[string]any)
}

// Safe calls s.Record and swallows any panic it raises.
func Safe(s Sink, event string, props map[string]any) {
	if s == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("telemetry sink panicked", "event", event, "panic", r)
		}
	}()
	s.Record(event, props)
}

type nop struct{}

func (nop) Record(string, map[string]any) {}

// Nop discards every event.
func Nop() Sink { return nop{} }

// Multi fans an event out to several sinks.
type Multi []Sink

func (m Multi) Record(event string, props map[string]any) {
	for _, s := range m {
		Safe(s, event, props)
	}
}

// LogSink writes events as structured log lines.
type LogSink struct {
	Logger *slog.Logger
}

func (l LogSink) Record(event string, props map[string]any) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	args := make([]any, 0, len(props)*2)
	for k, v := range props {
		args = append(args, k, v)
	}
	logger.Info(event, args...)
}

// PromSink turns events into Prometheus metrics.
type PromSink struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	fallbacks *prometheus.CounterVec
	limited   prometheus.Counter
}

const metricsNamespace = "atlas_advisor"

// NewPromSink registers the advisor metrics with reg.
func NewPromSink(reg prometheus.Registerer) *PromSink {
	p := &PromSink{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "Total API requests by endpoint, outcome and error category",
			},
			[]string{"endpoint", "outcome", "category"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "fallback_served_total",
				Help:      "Responses served from the stale fallback store",
			},
			[]string{"endpoint", "category"},
		),
		limited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
		),
	}
	reg.MustRegister(p.requests, p.latency, p.fallbacks, p.limited)
	return p
}

func (p *PromSink) Record(event string, props map[string]any) {
	endpoint := str(props["endpoint"])
	switch event {
	case EventRequestCompleted:
		p.requests.WithLabelValues(endpoint, str(props["outcome"]), str(props["category"])).Inc()
		if d, ok := props["latency"].(time.Duration); ok {
			p.latency.WithLabelValues(endpoint).Observe(d.Seconds())
		}
	case EventFallbackServed:
		p.fallbacks.WithLabelValues(endpoint, str(props["category"])).Inc()
	case EventRateLimited:
		p.limited.Inc()
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
