package investment

import (
	"testing"
	"time"

	apperrors "yieldtree/internal/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierFor(t *testing.T) {
	tests := []struct {
		amount   string
		wantName string
		wantRate string
		wantErr  bool
	}{
		{amount: "99.99", wantErr: true},
		{amount: "100", wantName: "Starter", wantRate: "0.12"},
		{amount: "999.99", wantName: "Starter", wantRate: "0.12"},
		{amount: "1000", wantName: "Premium", wantRate: "0.15"},
		{amount: "250000", wantName: "Premium", wantRate: "0.15"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			tier, err := TierFor(decimal.RequireFromString(tt.amount))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoMatchingPackage)
				assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, tier.Name)
			assert.Equal(t, tt.wantRate, tier.Rate.String())
		})
	}
}

func TestMonthsBetween(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		now   time.Time
		want  int
	}{
		{"same month", date(2024, 1, 1), date(2024, 1, 31), 0},
		{"day of month ignored", date(2024, 1, 31), date(2024, 2, 1), 1},
		{"five months", date(2024, 1, 15), date(2024, 6, 30), 5},
		{"six months exactly", date(2024, 1, 15), date(2024, 7, 15), 6},
		{"across year end", date(2023, 10, 20), date(2024, 4, 1), 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MonthsBetween(tt.start, tt.now))
		})
	}
}

func TestEligible_Boundary(t *testing.T) {
	start := date(2024, 1, 15)
	assert.False(t, Eligible(start, date(2024, 6, 15)))
	assert.True(t, Eligible(start, date(2024, 7, 15)))
	assert.True(t, Eligible(start, date(2024, 7, 1)))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}
