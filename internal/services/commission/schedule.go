// Package commission holds the level percentage tables used for referral
// payouts and the rounding rule applied to every computed amount.
package commission

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Schedule maps referral levels (1-based) to a percentage of the base amount.
type Schedule struct {
	Name        string
	Percentages []decimal.Decimal
}

func percentages(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

// DepositSchedule pays out when a user deposits or opens an investment.
var DepositSchedule = Schedule{
	Name:        "deposit",
	Percentages: percentages("10", "5", "3"),
}

// ProfitSchedule pays out when a user's monthly profit is distributed.
// Levels 6 to 20 earn 0.5% each.
var ProfitSchedule = Schedule{
	Name: "profit",
	Percentages: percentages(
		"10", "5", "3", "2", "1",
		"0.5", "0.5", "0.5", "0.5", "0.5",
		"0.5", "0.5", "0.5", "0.5", "0.5",
		"0.5", "0.5", "0.5", "0.5", "0.5",
	),
}

// MaxLevel is the deepest level that can earn anything.
func (s Schedule) MaxLevel() int {
	return len(s.Percentages)
}

// Percentage returns the rate for level, or zero outside the table.
func (s Schedule) Percentage(level int) decimal.Decimal {
	if level < 1 || level > len(s.Percentages) {
		return decimal.Zero
	}
	return s.Percentages[level-1]
}

// Amount is round(base * percentage / 100, 2).
func (s Schedule) Amount(base decimal.Decimal, level int) decimal.Decimal {
	pct := s.Percentage(level)
	if pct.IsZero() {
		return decimal.Zero
	}
	return Round(base.Mul(pct).Div(hundred))
}

// Round applies the two-decimal rounding used at every money boundary.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
