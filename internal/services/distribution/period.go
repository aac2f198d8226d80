package distribution

import (
	"fmt"
	"strings"
	"time"
)

// PeriodType is the cadence of a distribution run.
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodMonthly PeriodType = "monthly"
)

// ParsePeriod accepts "daily" or "monthly" in any case.
func ParsePeriod(s string) (PeriodType, error) {
	switch p := PeriodType(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodDaily, PeriodMonthly:
		return p, nil
	default:
		return "", fmt.Errorf("unknown distribution period %q", s)
	}
}

// PeriodWindow returns the half-open window [start, end) containing now in
// loc, and the key that names it: 2006-01-02 for daily runs and 2006-01 for
// monthly runs. A nil loc means UTC.
func PeriodWindow(period PeriodType, now time.Time, loc *time.Location) (time.Time, time.Time, string) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()

	if period == PeriodMonthly {
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0), start.Format("2006-01")
	}
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1), start.Format("2006-01-02")
}
