package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_entries_total",
			Help: "Ledger rows written, by direction and status",
		},
		[]string{"direction", "status"},
	)

	LedgerAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_amount_total",
			Help: "Sum of ledger row amounts written, by direction",
		},
		[]string{"direction"},
	)

	LedgerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_transitions_total",
			Help: "Status transitions applied to ledger rows",
		},
		[]string{"from", "to"},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Failed operations by kind",
		},
		[]string{"operation", "kind"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "operation_duration_seconds",
			Help:    "Histogram of ledger and distribution operation latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DistributionUsersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distribution_users_total",
			Help: "Users visited by profit distribution runs, by outcome",
		},
		[]string{"period", "outcome"},
	)

	DistributionAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distribution_amount_total",
			Help: "Profit and referral amounts credited by distribution runs",
		},
		[]string{"period", "kind"},
	)
)

// Collector adapts the package counters to the collector interfaces of the
// ledger and distribution services.
type Collector struct{}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) RecordOperationDuration(operation string, duration time.Duration) {
	OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (c *Collector) RecordEntry(direction, status string, amount float64) {
	LedgerEntriesTotal.WithLabelValues(direction, status).Inc()
	LedgerAmountTotal.WithLabelValues(direction).Add(amount)
}

func (c *Collector) RecordTransition(from, to string) {
	LedgerTransitionsTotal.WithLabelValues(from, to).Inc()
}

func (c *Collector) RecordError(operation, kind string) {
	ErrorsTotal.WithLabelValues(operation, kind).Inc()
}

func (c *Collector) RecordDistribution(period string, processed, skipped, failed int, profit, referral float64) {
	DistributionUsersTotal.WithLabelValues(period, "processed").Add(float64(processed))
	DistributionUsersTotal.WithLabelValues(period, "already_distributed").Add(float64(skipped))
	DistributionUsersTotal.WithLabelValues(period, "failed").Add(float64(failed))
	DistributionAmountTotal.WithLabelValues(period, "profit").Add(profit)
	DistributionAmountTotal.WithLabelValues(period, "referral").Add(referral)
}
