package distribution

import (
	"testing"

	"yieldtree/internal/config"
	"yieldtree/internal/repositories/memstore"
	"yieldtree/internal/services/ledger"
	"yieldtree/internal/services/referral"
	"yieldtree/internal/services/sponsor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine() Engine {
	store := memstore.New()
	return NewEngine(ledger.NewService(store, nil, ledger.Config{}, nil, nil), store,
		referral.NewCascader(sponsor.NewResolver(nil), nil), Config{}, nil, nil)
}

func TestNewScheduler(t *testing.T) {
	valid := config.DistributionConfig{Timezone: "UTC", DailySpec: "0 0 * * *", MonthlySpec: "0 2 1 * *"}

	s, err := NewScheduler(testEngine(), valid, nil)
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)
	s.Stop()

	badZone := valid
	badZone.Timezone = "Mars/Olympus"
	_, err = NewScheduler(testEngine(), badZone, nil)
	assert.ErrorContains(t, err, "invalid distribution timezone")

	badSpec := valid
	badSpec.MonthlySpec = "every month"
	_, err = NewScheduler(testEngine(), badSpec, nil)
	assert.ErrorContains(t, err, "invalid monthly schedule")
}
