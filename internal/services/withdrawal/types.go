package withdrawal

import (
	"time"

	"yieldtree/internal/models"

	"github.com/shopspring/decimal"
)

// Kind distinguishes the two withdrawal flows.
type Kind string

const (
	KindIncome     Kind = "income"
	KindInvestment Kind = "investment"
)

// KindOf maps a withdrawal row's income source to its flow.
func KindOf(source string) Kind {
	if source == models.SourceInvestmentWithdrawal {
		return KindInvestment
	}
	return KindIncome
}

type IncomeOTPRequest struct {
	Amount  decimal.Decimal
	Chain   string
	Address string
}

type IncomeRequest struct {
	Amount  decimal.Decimal
	Chain   string
	Address string
	OTP     string
}

type InvestmentOTPRequest struct {
	InvestmentID uint
	Chain        string
	Address      string
}

type InvestmentRequest struct {
	InvestmentID uint
	Chain        string
	Address      string
	OTP          string
}

// InvestmentResult is returned when an investment withdrawal is requested.
type InvestmentResult struct {
	Transaction *models.Transaction `json:"transaction"`
	Investment  *models.Investment  `json:"investment"`
}

// Stats summarises a user's withdrawals.
type Stats struct {
	AvailableBalance         decimal.Decimal `json:"available_balance"`
	TotalWithdrawn           decimal.Decimal `json:"total_withdrawn"`
	WithdrawalCount          int64           `json:"withdrawal_count"`
	PendingAmount            decimal.Decimal `json:"pending_amount"`
	PendingCount             int64           `json:"pending_count"`
	EligibleInvestmentsCount int             `json:"eligible_investments_count"`
	TotalInvestmentsCount    int             `json:"total_investments_count"`
}

// HistoryQuery filters History. Type is "", "ALL", "income" or "investment";
// Status is "", "ALL" or a transaction status.
type HistoryQuery struct {
	Type   string
	Status string
	Limit  int
	Offset int
}

type HistoryItem struct {
	ID           uint            `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	Type         Kind            `json:"type"`
	Status       string          `json:"status"`
	Chain        string          `json:"blockchain"`
	Address      string          `json:"address,omitempty"`
	InvestmentID *uint           `json:"investment_id,omitempty"`
	PackageName  string          `json:"package_name,omitempty"`
	Description  string          `json:"description"`
	Timestamp    time.Time       `json:"timestamp"`
}

type History struct {
	Items []HistoryItem `json:"withdrawals"`
	Total int64         `json:"total"`
}
