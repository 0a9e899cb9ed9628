package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hbog/swarmbucket/pkg/swarmhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ClientMetrics holds the collectors for swarm request execution. It
// implements swarmhttp.Observer.
type ClientMetrics struct {
	reg         *prometheus.Registry
	attempts    *prometheus.CounterVec
	redirects   prometheus.Counter
	authRetries prometheus.Counter
	calls       *prometheus.HistogramVec
}

var _ swarmhttp.Observer = (*ClientMetrics)(nil)

// New registers the client collectors on reg, or on a fresh registry when reg
// is nil.
func New(reg *prometheus.Registry) *ClientMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "swarm",
		Subsystem: "client",
		Name:      "attempts_total",
		Help:      "HTTP attempts sent to swarm nodes, partitioned by method and status code.",
	}, []string{"method", "code"})
	redirects := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "swarm",
		Subsystem: "client",
		Name:      "redirects_total",
		Help:      "Redirections followed.",
	})
	authRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "swarm",
		Subsystem: "client",
		Name:      "auth_retries_total",
		Help:      "Attempts retried with a digest Authorization header.",
	})
	calls := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "swarm",
		Subsystem: "client",
		Name:      "call_duration_seconds",
		Help:      "Duration of logical calls including redirects and retries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "result"}) // result = "ok" | "error"

	reg.MustRegister(attempts, redirects, authRetries, calls)

	return &ClientMetrics{
		reg:         reg,
		attempts:    attempts,
		redirects:   redirects,
		authRetries: authRetries,
		calls:       calls,
	}
}

// Registry returns the registry the collectors live in.
func (m *ClientMetrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *ClientMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *ClientMetrics) ObserveAttempt(method swarmhttp.Method, statusCode int) {
	m.attempts.WithLabelValues(string(method), strconv.Itoa(statusCode)).Inc()
}

func (m *ClientMetrics) ObserveRedirect() {
	m.redirects.Inc()
}

func (m *ClientMetrics) ObserveAuthRetry() {
	m.authRetries.Inc()
}

func (m *ClientMetrics) ObserveCall(method swarmhttp.Method, result string, dur time.Duration) {
	m.calls.WithLabelValues(string(method), result).Observe(dur.Seconds())
}
