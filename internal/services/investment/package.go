// Package investment opens locked-principal investments and reports when
// each one becomes withdrawable.
package investment

import (
	"time"

	apperrors "yieldtree/internal/errors"

	"github.com/shopspring/decimal"
)

// LockPeriodMonths is how long principal stays locked after StartDate.
const LockPeriodMonths = 6

var (
	starterMinimum = decimal.NewFromInt(100)
	premiumMinimum = decimal.NewFromInt(1000)
)

var ErrNoMatchingPackage = apperrors.Validation("NO_MATCHING_PACKAGE",
	"investment amount does not fit any package")

// Tier is a package band and its monthly profit rate.
type Tier struct {
	Name string
	Rate decimal.Decimal
}

var (
	StarterTier = Tier{Name: "Starter", Rate: decimal.RequireFromString("0.12")}
	PremiumTier = Tier{Name: "Premium", Rate: decimal.RequireFromString("0.15")}
)

// TierFor picks the tier for amount: 100 to 999.99 is Starter, 1000 and
// above is Premium. Smaller amounts fit no package.
func TierFor(amount decimal.Decimal) (Tier, error) {
	switch {
	case amount.GreaterThanOrEqual(premiumMinimum):
		return PremiumTier, nil
	case amount.GreaterThanOrEqual(starterMinimum):
		return StarterTier, nil
	default:
		return Tier{}, ErrNoMatchingPackage.WithMessage(
			"investment amount $%s does not fit any package (minimum $100)", amount.StringFixed(2))
	}
}

// TierRate returns the monthly profit rate for amount.
func TierRate(amount decimal.Decimal) (decimal.Decimal, error) {
	tier, err := TierFor(amount)
	if err != nil {
		return decimal.Zero, err
	}
	return tier.Rate, nil
}

// MonthsBetween counts calendar months from start to now, ignoring the day
// of month: Jan 31 to Feb 1 is one month.
func MonthsBetween(start, now time.Time) int {
	sy, sm, _ := start.UTC().Date()
	ny, nm, _ := now.UTC().Date()
	return (ny-sy)*12 + int(nm-sm)
}

// UnlockDate is start plus the lock period.
func UnlockDate(start time.Time) time.Time {
	return start.AddDate(0, LockPeriodMonths, 0)
}

// Eligible reports whether principal started at start can be withdrawn at now.
func Eligible(start, now time.Time) bool {
	return MonthsBetween(start, now) >= LockPeriodMonths
}
