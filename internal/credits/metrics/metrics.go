package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the credits context's Prometheus collectors.
type Metrics struct {
	AdmissionTotal         *prometheus.CounterVec
	DebitsTotal            *prometheus.CounterVec
	DebitFailuresTotal     *prometheus.CounterVec
	GrantedTotal           *prometheus.CounterVec
	RenewalsTotal          *prometheus.CounterVec
	RenewalRunsTotal       *prometheus.CounterVec
	RenewalDurationSeconds prometheus.Histogram
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer in
// main and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AdmissionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "companion_credits_admission_total",
			Help: "Admission decisions by tier and outcome",
		}, []string{"tier", "outcome"}),
		DebitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "companion_credits_debits_total",
			Help: "Successful debits by bucket kind",
		}, []string{"kind"}),
		DebitFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "companion_credits_debit_failures_total",
			Help: "Failed or retried debits by reason",
		}, []string{"reason"}),
		GrantedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "companion_credits_granted_total",
			Help: "Credits granted by bucket kind",
		}, []string{"kind"}),
		RenewalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "companion_credits_renewals_total",
			Help: "Per-user renewal outcomes",
		}, []string{"status"}),
		RenewalRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "companion_credits_renewal_runs_total",
			Help: "Renewal worker runs by status",
		}, []string{"status"}),
		RenewalDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "companion_credits_renewal_duration_seconds",
			Help:    "Duration of renewal worker runs in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Admission outcomes.
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
)

// Debit failure reasons.
const (
	ReasonInsufficient = "insufficient_credits"
	ReasonConflict     = "concurrent_modification"
	ReasonStorage      = "storage_unavailable"
)

// Renewal statuses.
const (
	StatusRenewed   = "renewed"
	StatusDuplicate = "duplicate"
	StatusFailed    = "failed"
	StatusSuccess   = "success"
	StatusError     = "error"
)

// Every method is nil-safe so services can run without metrics in tests.

func (m *Metrics) ObserveAdmission(tier, outcome string) {
	if m == nil {
		return
	}
	m.AdmissionTotal.WithLabelValues(tier, outcome).Inc()
}

func (m *Metrics) IncrementDebits(kind string) {
	if m == nil {
		return
	}
	m.DebitsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementDebitFailures(reason string) {
	if m == nil {
		return
	}
	m.DebitFailuresTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) AddGranted(kind string, amount int) {
	if m == nil {
		return
	}
	m.GrantedTotal.WithLabelValues(kind).Add(float64(amount))
}

func (m *Metrics) IncrementRenewals(status string) {
	if m == nil {
		return
	}
	m.RenewalsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveRenewalRun(status string, seconds float64) {
	if m == nil {
		return
	}
	m.RenewalRunsTotal.WithLabelValues(status).Inc()
	m.RenewalDurationSeconds.Observe(seconds)
}
