package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records outcomes of the produce settlement pipeline.
type SettlementMetrics struct {
	settled      *prometheus.CounterVec
	deferred     prometheus.Counter
	disputes     *prometheus.CounterVec
	payoutAmount *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	settled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_total",
		Help: "Completed settlements by trigger.",
	}, []string{"trigger"})
	deferred := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlements_deferred_total",
		Help: "Settlements deferred because a dispute was open.",
	})
	disputes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "disputes_total",
		Help: "Disputes by origin (manual or automatic).",
	}, []string{"origin"})
	payoutAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_amount_total",
		Help: "Total tokens paid out by recipient role.",
	}, []string{"role"})
	reg.MustRegister(settled, deferred, disputes, payoutAmount)
	return &SettlementMetrics{
		settled:      settled,
		deferred:     deferred,
		disputes:     disputes,
		payoutAmount: payoutAmount,
	}
}

// IncSettled increments the settlement counter for the named trigger.
func (s *SettlementMetrics) IncSettled(trigger string) {
	if s == nil || s.settled == nil {
		return
	}
	s.settled.WithLabelValues(normalizeLabel(trigger)).Inc()
}

// IncDeferred increments the deferred-settlement counter.
func (s *SettlementMetrics) IncDeferred() {
	if s == nil || s.deferred == nil {
		return
	}
	s.deferred.Inc()
}

// IncDispute increments the dispute counter for the given origin.
func (s *SettlementMetrics) IncDispute(origin string) {
	if s == nil || s.disputes == nil {
		return
	}
	s.disputes.WithLabelValues(normalizeLabel(origin)).Inc()
}

// AddPayout accumulates the payout amount for the given role.
func (s *SettlementMetrics) AddPayout(role string, amount uint64) {
	if s == nil || s.payoutAmount == nil {
		return
	}
	s.payoutAmount.WithLabelValues(normalizeLabel(role)).Add(float64(amount))
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
