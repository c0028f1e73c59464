package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "llmhub"

// LatencyBuckets defines histogram buckets for request latency in seconds.
var LatencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
	1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0,
}

// PrometheusSink translates telemetry events into Prometheus metrics.
// Every sink owns its collectors and registers them on the registerer it
// is constructed with, so tests and embedders stay isolated from the
// default registry.
type PrometheusSink struct {
	requestsStarted *prometheus.CounterVec
	requestsDone    *prometheus.CounterVec
	requestsFailed  *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	tokens          *prometheus.CounterVec
	cost            *prometheus.CounterVec
	switched        *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	circuitOpen     *prometheus.GaugeVec
}

// NewPrometheusSink registers the gateway's collectors on reg. Passing a
// nil registerer uses the default registry.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusSink{
		requestsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_started_total",
			Help:      "Requests entering the orchestrator",
		}, []string{"backend", "model"}),

		requestsDone: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_completed_total",
			Help:      "Requests completed successfully",
		}, []string{"backend", "model"}),

		requestsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_failed_total",
			Help:      "Requests terminated with an error",
		}, []string{"backend", "model", "error_kind"}),

		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_latency_seconds",
			Help:      "End-to-end request latency in seconds",
			Buckets:   LatencyBuckets,
		}, []string{"backend", "model"}),

		tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Token usage by direction",
		}, []string{"backend", "model", "direction"}),

		cost: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cost_usd_total",
			Help:      "Estimated spend in USD",
		}, []string{"backend", "model"}),

		switched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_switches_total",
			Help:      "Fallback hops between backends",
		}, []string{"from", "to"}),

		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by admission control",
		}, []string{"backend"}),

		circuitOpen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_open",
			Help:      "1 while a backend's circuit breaker is open",
		}, []string{"backend"}),
	}
}

func (p *PrometheusSink) Emit(e Event) {
	switch e.Kind {
	case EventRequestStarted:
		p.requestsStarted.WithLabelValues(e.Backend, e.Model).Inc()

	case EventRequestCompleted:
		p.requestsDone.WithLabelValues(e.Backend, e.Model).Inc()
		p.latency.WithLabelValues(e.Backend, e.Model).Observe(e.Latency.Seconds())
		if e.InputTokens > 0 {
			p.tokens.WithLabelValues(e.Backend, e.Model, "input").Add(float64(e.InputTokens))
		}
		if e.OutputTokens > 0 {
			p.tokens.WithLabelValues(e.Backend, e.Model, "output").Add(float64(e.OutputTokens))
		}
		if e.Cost > 0 {
			p.cost.WithLabelValues(e.Backend, e.Model).Add(e.Cost)
		}

	case EventRequestFailed:
		p.requestsFailed.WithLabelValues(e.Backend, e.Model, e.ErrorKind).Inc()

	case EventBackendSwitched:
		p.switched.WithLabelValues(e.From, e.To).Inc()

	case EventRateLimited:
		p.rateLimited.WithLabelValues(e.Backend).Inc()

	case EventCircuitOpened:
		p.circuitOpen.WithLabelValues(e.Backend).Set(1)

	case EventCircuitClosed:
		p.circuitOpen.WithLabelValues(e.Backend).Set(0)
	}
}
