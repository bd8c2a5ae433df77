package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config sets the constant labels of every settlement series.
type Config struct {
	ServiceName string
	Environment string
}

// Settlement holds the settlement core's series. A nil *Settlement is valid
// and records nothing.
type Settlement struct {
	commissionsCaptured *prometheus.CounterVec
	escrowReleases      *prometheus.CounterVec
	payoutTransitions   *prometheus.CounterVec
	aggregationGroups   *prometheus.CounterVec
	sweepDuration       prometheus.Histogram
}

func New(registerer prometheus.Registerer, cfg Config) *Settlement {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "settlement"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	commissionsCaptured := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "settlement_commissions_captured_total",
			Help:        "Commission captures by payee type.",
			ConstLabels: constLabels,
		},
		[]string{"payee_type", "result"}, // created | duplicate | rejected
	)

	escrowReleases := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "settlement_escrow_releases_total",
			Help:        "Escrow hold outcomes.",
			ConstLabels: constLabels,
		},
		[]string{"trigger", "result"}, // sweep|manual|refund, released|skipped|failed|rejected|refunded
	)

	payoutTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "settlement_payout_transitions_total",
			Help:        "Payout lifecycle transitions by action and result.",
			ConstLabels: constLabels,
		},
		[]string{"action", "result"}, // success | rejected | error
	)

	aggregationGroups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "settlement_aggregation_groups_total",
			Help:        "Payee-currency groups seen by payout aggregation.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // created | below_minimum | failed
	)

	sweepDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:        "settlement_escrow_sweep_duration_seconds",
			Help:        "Duration of escrow release sweeps.",
			Buckets:     []float64{0.05, 0.1, 0.5, 1, 5, 15, 60},
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		commissionsCaptured,
		escrowReleases,
		payoutTransitions,
		aggregationGroups,
		sweepDuration,
	)

	return &Settlement{
		commissionsCaptured: commissionsCaptured,
		escrowReleases:      escrowReleases,
		payoutTransitions:   payoutTransitions,
		aggregationGroups:   aggregationGroups,
		sweepDuration:       sweepDuration,
	}
}

func (m *Settlement) IncCommissionCaptured(payeeType, result string) {
	if m == nil {
		return
	}
	m.commissionsCaptured.WithLabelValues(payeeType, result).Inc()
}

func (m *Settlement) IncEscrow(trigger, result string) {
	if m == nil {
		return
	}
	m.escrowReleases.WithLabelValues(trigger, result).Inc()
}

func (m *Settlement) AddEscrow(trigger, result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.escrowReleases.WithLabelValues(trigger, result).Add(float64(n))
}

func (m *Settlement) IncPayoutTransition(action, result string) {
	if m == nil {
		return
	}
	m.payoutTransitions.WithLabelValues(action, result).Inc()
}

func (m *Settlement) IncAggregationGroup(result string) {
	if m == nil {
		return
	}
	m.aggregationGroups.WithLabelValues(result).Inc()
}

func (m *Settlement) ObserveSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
}
