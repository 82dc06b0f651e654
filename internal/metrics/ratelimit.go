package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type rateLimitMetrics struct {
	decisions     *prometheus.CounterVec
	denied        prometheus.Counter
	uninitialized prometheus.Counter
	inWindow      prometheus.GaugeFunc
	limit         prometheus.Gauge
	windowSeconds prometheus.Gauge

	// entries is read at scrape time; nil until a limiter is attached
	entries atomic.Pointer[func() int]
}

func newRateLimitMetrics(f promauto.Factory) *rateLimitMetrics {
	rl := &rateLimitMetrics{
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Sliding window decisions by outcome",
		}, []string{"outcome"}),
		denied: f.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Requests answered with 429",
		}),
		uninitialized: f.NewCounter(prometheus.CounterOpts{
			Name: "ratelimit_uninitialized_total",
			Help: "Calls rejected because the limiter was not initialized",
		}),
		limit: f.NewGauge(prometheus.GaugeOpts{
			Name: "ratelimit_limit",
			Help: "Configured accepted requests per window",
		}),
		windowSeconds: f.NewGauge(prometheus.GaugeOpts{
			Name: "ratelimit_window_seconds",
			Help: "Configured window length",
		}),
	}
	rl.inWindow = f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ratelimit_window_entries",
		Help: "Accepted requests recorded by the limiter as of its last decision",
	}, func() float64 {
		if fn := rl.entries.Load(); fn != nil {
			return float64((*fn)())
		}
		return 0
	})
	return rl
}

// ObserveRateLimitDecision counts one decision by outcome.
func (m *ServerMetrics) ObserveRateLimitDecision(outcome string) {
	m.rl.decisions.WithLabelValues(outcome).Inc()
}

// SetRateLimitEntries makes ratelimit_window_entries read fn on every scrape.
// fn is expected to take the limiter's own lock, so the gauge never shows an
// older occupancy than the limiter holds.
func (m *ServerMetrics) SetRateLimitEntries(fn func() int) {
	m.rl.entries.Store(&fn)
}

// IncRateLimitDenied counts 429s written by the HTTP gate.
func (m *ServerMetrics) IncRateLimitDenied() { m.rl.denied.Inc() }

func (m *ServerMetrics) IncRateLimitUninitialized() { m.rl.uninitialized.Inc() }

// SetRateLimitConfig is called once at startup.
func (m *ServerMetrics) SetRateLimitConfig(limit int, window time.Duration) {
	m.rl.limit.Set(float64(limit))
	m.rl.windowSeconds.Set(window.Seconds())
}
