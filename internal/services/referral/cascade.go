// Package referral credits sponsors when a downstream user deposits or
// receives monthly profit.
package referral

import (
	"context"
	"fmt"

	"yieldtree/internal/models"
	"yieldtree/internal/services/commission"
	"yieldtree/internal/services/ledger"
	"yieldtree/internal/services/sponsor"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Trigger selects the schedule and the wording of the credits.
type Trigger string

const (
	TriggerDeposit Trigger = "deposit"
	TriggerProfit  Trigger = "monthly_profit"
)

// Request describes the event that pays the chain above UserID.
type Request struct {
	UserID   uint
	UserName string
	Base     decimal.Decimal
	Trigger  Trigger
}

// Payout is one credit written for an ancestor.
type Payout struct {
	UserID        uint            `json:"user_id"`
	Level         int             `json:"level"`
	Percentage    decimal.Decimal `json:"percentage"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID uint            `json:"transaction_id"`
}

type Cascader struct {
	resolver *sponsor.Resolver
	log      *zap.Logger
}

func NewCascader(resolver *sponsor.Resolver, log *zap.Logger) *Cascader {
	if resolver == nil {
		panic("sponsor resolver is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cascader{resolver: resolver, log: log}
}

func scheduleFor(t Trigger) commission.Schedule {
	if t == TriggerProfit {
		return commission.ProfitSchedule
	}
	return commission.DepositSchedule
}

// Cascade writes one COMPLETED credit per paying ancestor inside unit. Levels
// whose rounded amount is not positive are skipped.
func (c *Cascader) Cascade(ctx context.Context, unit *ledger.Unit, req Request) ([]Payout, error) {
	schedule := scheduleFor(req.Trigger)

	chain, err := c.resolver.Resolve(ctx, unit.Store(), req.UserID, schedule.MaxLevel())
	if err != nil {
		return nil, fmt.Errorf("resolve sponsor chain: %w", err)
	}

	now := unit.Now()
	payouts := make([]Payout, 0, len(chain))
	for _, link := range chain {
		amount := schedule.Amount(req.Base, link.Level)
		if !amount.IsPositive() {
			continue
		}
		pct := schedule.Percentage(link.Level)
		level := link.Level
		sourceUser := req.UserID
		unlock := now

		txn, err := unit.Apply(ctx, ledger.Entry{
			UserID:        link.UserID,
			Amount:        amount,
			Direction:     models.DirectionCredit,
			IncomeSource:  incomeSource(req.Trigger, level),
			Status:        models.StatusCompleted,
			UnlockDate:    &unlock,
			ReferralLevel: &level,
			SourceUserID:  &sourceUser,
			Description:   describe(req, level, pct),
			Metadata: models.JSON{
				"trigger":        string(req.Trigger),
				"base_amount":    req.Base.StringFixed(2),
				"source_user_id": req.UserID,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("credit level %d sponsor %d: %w", level, link.UserID, err)
		}

		payouts = append(payouts, Payout{
			UserID:        link.UserID,
			Level:         level,
			Percentage:    pct,
			Amount:        amount,
			TransactionID: txn.ID,
		})
	}

	c.log.Debug("referral cascade applied",
		zap.Uint("user_id", req.UserID),
		zap.String("trigger", string(req.Trigger)),
		zap.Int("chain_length", len(chain)),
		zap.Int("payouts", len(payouts)))
	return payouts, nil
}

func incomeSource(t Trigger, level int) string {
	if t == TriggerDeposit && level == 1 {
		return models.SourceDirectIncome
	}
	return models.SourceReferralIncome
}

func describe(req Request, level int, pct decimal.Decimal) string {
	switch {
	case req.Trigger == TriggerDeposit && level == 1:
		return fmt.Sprintf("Direct income (%s%%) from %s's deposit", pct.String(), req.UserName)
	case req.Trigger == TriggerDeposit:
		return fmt.Sprintf("Level %d referral income (%s%%) from %s's deposit", level, pct.String(), req.UserName)
	default:
		return fmt.Sprintf("Level %d referral income (%s%%) from %s's monthly profit of $%s",
			level, pct.String(), req.UserName, req.Base.StringFixed(2))
	}
}

// Total sums the payout amounts.
func Total(payouts []Payout) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payouts {
		total = total.Add(p.Amount)
	}
	return total
}
