package signer

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records remote signing call outcomes. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	requestTotal *prometheus.CounterVec
	retryTotal   *prometheus.CounterVec
	failTotal    *prometheus.CounterVec
	attempts     *prometheus.HistogramVec
}

// NewMetrics constructs Metrics, registering on reg or the default
// registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signer_remote_request_total",
			Help: "Remote signing service calls that eventually succeeded",
		}, []string{"path"}),
		retryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signer_remote_retry_total",
			Help: "Retries scheduled against the remote signing service",
		}, []string{"path", "status"}),
		failTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signer_remote_fail_total",
			Help: "Remote signing service calls that exhausted their retry budget",
		}, []string{"path", "status"}),
		attempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signer_remote_attempts",
			Help:    "Attempts needed per successful remote call",
			Buckets: []float64{1, 2, 3, 4},
		}, []string{"path"}),
	}
	reg.MustRegister(m.requestTotal, m.retryTotal, m.failTotal, m.attempts)
	return m
}

func (m *Metrics) observeRequest(path string, attempt int) {
	if m == nil {
		return
	}
	m.requestTotal.WithLabelValues(path).Inc()
	m.attempts.WithLabelValues(path).Observe(float64(attempt + 1))
}

func (m *Metrics) incRetry(path string, status int) {
	if m == nil {
		return
	}
	m.retryTotal.WithLabelValues(path, statusLabel(status)).Inc()
}

func (m *Metrics) incFailure(path string, status int) {
	if m == nil {
		return
	}
	m.failTotal.WithLabelValues(path, statusLabel(status)).Inc()
}

func statusLabel(status int) string {
	if status == 0 {
		return "transport"
	}
	return strconv.Itoa(status)
}
