package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	InvestmentActive      = "active"
	InvestmentWithdrawing = "withdrawing"
	InvestmentWithdrawn   = "withdrawn"
)

type Investment struct {
	ID                   uint            `gorm:"primarykey" json:"id"`
	UserID               uint            `gorm:"index;not null" json:"user_id"`
	DepositTransactionID *uint           `gorm:"uniqueIndex" json:"deposit_transaction_id,omitempty"`
	PackageName          string          `gorm:"not null" json:"package_name"`
	Amount               decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	MonthlyProfitRate    decimal.Decimal `gorm:"type:numeric(6,4);not null" json:"monthly_profit_rate"`
	StartDate            time.Time       `gorm:"not null" json:"start_date"`
	UnlockDate           time.Time       `gorm:"not null" json:"unlock_date"`
	Status               string          `gorm:"index;default:'active'" json:"status"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}
