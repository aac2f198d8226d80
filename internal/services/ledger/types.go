package ledger

import (
	"context"
	"time"

	"yieldtree/internal/models"

	"github.com/shopspring/decimal"
)

// Entry describes one ledger row to insert.
type Entry struct {
	UserID        uint
	Amount        decimal.Decimal
	Direction     string
	IncomeSource  string
	Status        string
	Reserve       bool // PENDING debits only: take the amount from the wallet now
	UnlockDate    *time.Time
	ReferralLevel *int
	SourceUserID  *uint
	InvestmentID  *uint
	Description   string
	Metadata      models.JSON
}

// Config tunes the ledger service.
type Config struct {
	Now func() time.Time
}

// Reconciliation compares the cached balance with the one derived from the ledger.
type Reconciliation struct {
	UserID     uint            `json:"user_id"`
	Cached     decimal.Decimal `json:"cached_balance"`
	Derived    decimal.Decimal `json:"derived_balance"`
	Consistent bool            `json:"consistent"`
}

// MetricsCollector receives ledger activity.
type MetricsCollector interface {
	RecordOperationDuration(operation string, duration time.Duration)
	RecordEntry(direction, status string, amount float64)
	RecordTransition(from, to string)
	RecordError(operation, kind string)
}

// WalletCache is the read-through cache in front of wallet rows.
type WalletCache interface {
	GetWallet(ctx context.Context, userID uint) (*models.Wallet, error)
	CacheWallet(ctx context.Context, wallet *models.Wallet) error
	InvalidateWallet(ctx context.Context, userID uint) error
}

// TransitionOption customises a status transition.
type TransitionOption func(*transitionOptions)

type transitionOptions struct {
	note       string
	unlockDate *time.Time
}

// WithNote appends note verbatim to the row description.
func WithNote(note string) TransitionOption {
	return func(o *transitionOptions) { o.note = note }
}

// WithUnlockDate sets the unlock date as part of the transition.
func WithUnlockDate(t time.Time) TransitionOption {
	return func(o *transitionOptions) { o.unlockDate = &t }
}
