package metrics

import "github.com/prometheus/client_golang/prometheus"

// CaptureMetrics counts capture submissions and escalations. The
// retry-exceeded counter is the operator-facing signal that a charge was
// parked in a terminal failure state and needs manual intervention.
type CaptureMetrics struct {
	submissions   *prometheus.CounterVec
	retryExceeded prometheus.Counter
	expunged      prometheus.Counter
}

// NewCaptureMetrics registers the capture metrics on the provided registerer.
func NewCaptureMetrics(reg prometheus.Registerer) *CaptureMetrics {
	if reg == nil {
		return &CaptureMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "capture_submissions_total",
		Help: "Capture submissions by provider and outcome.",
	}, []string{"provider", "outcome"})
	retryExceeded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "capture_retry_exceeded_total",
		Help: "Charges moved to capture_error after breaching the retry ceiling.",
	})
	expunged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "charges_expunged_total",
		Help: "Charges expunged after failing ledger parity checks.",
	})
	reg.MustRegister(submissions, retryExceeded, expunged)
	return &CaptureMetrics{
		submissions:   submissions,
		retryExceeded: retryExceeded,
		expunged:      expunged,
	}
}

// IncSubmission counts one capture submission result.
func (c *CaptureMetrics) IncSubmission(provider, outcome string) {
	if c == nil || c.submissions == nil {
		return
	}
	c.submissions.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// IncRetryExceeded counts one retry-ceiling escalation.
func (c *CaptureMetrics) IncRetryExceeded() {
	if c == nil || c.retryExceeded == nil {
		return
	}
	c.retryExceeded.Inc()
}

// IncExpunged counts one expunged charge.
func (c *CaptureMetrics) IncExpunged() {
	if c == nil || c.expunged == nil {
		return
	}
	c.expunged.Inc()
}
