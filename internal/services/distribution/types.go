package distribution

import (
	"time"

	"yieldtree/internal/services/referral"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config tunes the engine. Zero values are replaced by defaults in NewEngine.
type Config struct {
	DailyRate   decimal.Decimal
	MonthlyRate decimal.Decimal
	Workers     int
	Location    *time.Location
	Now         func() time.Time
}

// UserResult is the outcome of one user's distribution for one period.
type UserResult struct {
	UserID             uint              `json:"user_id"`
	Period             PeriodType        `json:"period"`
	PeriodKey          string            `json:"period_key"`
	Base               decimal.Decimal   `json:"base"`
	Profit             decimal.Decimal   `json:"profit"`
	TransactionID      uint              `json:"transaction_id,omitempty"`
	AlreadyDistributed bool              `json:"already_distributed"`
	Payouts            []referral.Payout `json:"referral_payouts,omitempty"`
	ReferralTotal      decimal.Decimal   `json:"referral_total"`
}

// Failure records a user whose distribution rolled back.
type Failure struct {
	UserID uint   `json:"user_id"`
	Error  string `json:"error"`
}

// BatchResult summarises a ProcessDistribution run.
type BatchResult struct {
	RunID              uuid.UUID       `json:"run_id"`
	Period             PeriodType      `json:"period"`
	PeriodKey          string          `json:"period_key"`
	StartedAt          time.Time       `json:"started_at"`
	Duration           time.Duration   `json:"duration"`
	TotalUsers         int             `json:"total_users"`
	Processed          int             `json:"processed"`
	AlreadyDistributed int             `json:"already_distributed"`
	Failed             int             `json:"failed"`
	TotalDistributed   decimal.Decimal `json:"total_distributed"`
	TotalReferral      decimal.Decimal `json:"total_referral"`
	Failures           []Failure       `json:"failures,omitempty"`
}

// MetricsCollector receives batch totals.
type MetricsCollector interface {
	RecordDistribution(period string, processed, skipped, failed int, profit, referral float64)
}

type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordDistribution(string, int, int, int, float64, float64) {}
