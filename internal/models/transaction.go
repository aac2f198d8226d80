package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DirectionCredit = "credit"
	DirectionDebit  = "debit"
)

const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusRejected  = "REJECTED"
)

// Income sources written by the engine. Deposits use "<chain>_deposit".
const (
	SourceInvestmentDeposit    = "investment_deposit"
	SourceDirectIncome         = "direct_income"
	SourceReferralIncome       = "referral_income"
	SourceTeamIncome           = "team_income"
	SourceSalaryIncome         = "salary_income"
	SourceDailyProfit          = "daily_profit"
	SourceMonthlyProfit        = "monthly_profit"
	SourceWithdrawal           = "withdrawal"
	SourceIncomeWithdrawal     = "income_withdrawal"
	SourceInvestmentWithdrawal = "investment_withdrawal"

	DepositSourceSuffix = "_deposit"
)

// DepositSource names the credit written for a crypto deposit on chain.
func DepositSource(chain string) string {
	return strings.ToLower(strings.TrimSpace(chain)) + DepositSourceSuffix
}

// IsDepositSource reports whether source names a deposit credit.
func IsDepositSource(source string) bool {
	return strings.HasSuffix(source, DepositSourceSuffix)
}

// Transaction is one immutable-amount ledger row. Only Status, Description
// and UnlockDate change after insert.
type Transaction struct {
	ID            uint            `gorm:"primarykey" json:"id"`
	Reference     string          `gorm:"uniqueIndex;size:36;not null" json:"reference"`
	UserID        uint            `gorm:"index:idx_txn_user_source;not null" json:"user_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Direction     string          `gorm:"size:6;not null" json:"type"`
	IncomeSource  string          `gorm:"index:idx_txn_user_source;size:64;not null" json:"income_source"`
	Status        string          `gorm:"index;size:10;not null" json:"status"`
	Reserved      bool            `gorm:"not null;default:false" json:"reserved"`
	UnlockDate    *time.Time      `json:"unlock_date"`
	ReferralLevel *int            `json:"referral_level,omitempty"`
	SourceUserID  *uint           `json:"source_user_id,omitempty"`
	InvestmentID  *uint           `gorm:"index" json:"investment_id,omitempty"`
	Description   string          `json:"description"`
	Metadata      JSON            `gorm:"type:jsonb" json:"metadata,omitempty"`
	Timestamp     time.Time       `gorm:"index;not null" json:"timestamp"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// MetadataString reads a string value out of Metadata.
func (t *Transaction) MetadataString(key string) string {
	if t.Metadata == nil {
		return ""
	}
	if v, ok := t.Metadata[key].(string); ok {
		return v
	}
	return ""
}
