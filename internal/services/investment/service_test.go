package investment

import (
	"context"
	"testing"
	"time"

	apperrors "yieldtree/internal/errors"
	"yieldtree/internal/models"
	"yieldtree/internal/repositories/memstore"
	"yieldtree/internal/services/ledger"
	"yieldtree/internal/services/referral"
	"yieldtree/internal/services/sponsor"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func setup(t *testing.T) (*memstore.Store, *clock, ledger.Service, Service) {
	t.Helper()
	c := &clock{t: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)}
	store := memstore.New().WithClock(c.Now)
	ledgerSvc := ledger.NewService(store, nil, ledger.Config{Now: c.Now}, nil, nil)
	svc := NewService(ledgerSvc, store, referral.NewCascader(sponsor.NewResolver(nil), nil), c.Now, nil)
	return store, c, ledgerSvc, svc
}

func TestOpen(t *testing.T) {
	store, c, ledgerSvc, svc := setup(t)
	users := store.SeedChain(4)
	investor := users[3]
	ctx := context.Background()

	result, err := svc.Open(ctx, OpenRequest{UserID: investor.ID, Amount: decimal.NewFromInt(1000)})

	require.NoError(t, err)
	inv := result.Investment
	assert.Equal(t, "Premium", inv.PackageName)
	assert.Equal(t, "0.15", inv.MonthlyProfitRate.String())
	assert.Equal(t, models.InvestmentActive, inv.Status)
	assert.True(t, c.t.AddDate(0, 6, 0).Equal(inv.UnlockDate))
	require.NotNil(t, inv.DepositTransactionID)
	assert.Equal(t, result.Transaction.ID, *inv.DepositTransactionID)

	assert.Equal(t, models.SourceInvestmentDeposit, result.Transaction.IncomeSource)
	require.NotNil(t, result.Transaction.UnlockDate)
	assert.True(t, inv.UnlockDate.Equal(*result.Transaction.UnlockDate))

	require.Len(t, result.Payouts, 3)
	assert.Equal(t, "100.00", result.Payouts[0].Amount.StringFixed(2))
	assert.Equal(t, "30.00", result.Payouts[2].Amount.StringFixed(2))

	balance, err := ledgerSvc.Balance(ctx, investor.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", balance.StringFixed(2))
}

func TestOpen_Validation(t *testing.T) {
	store, _, _, svc := setup(t)
	user := store.SeedUser("Alice", nil)

	_, err := svc.Open(context.Background(), OpenRequest{UserID: user.ID, Amount: decimal.NewFromInt(50)})
	assert.ErrorIs(t, err, ErrNoMatchingPackage)

	_, err = svc.Open(context.Background(), OpenRequest{UserID: user.ID, Amount: decimal.NewFromInt(-5)})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = svc.Open(context.Background(), OpenRequest{UserID: 404, Amount: decimal.NewFromInt(500)})
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	assert.Empty(t, store.Transactions(user.ID))
}

func TestOpen_CustomPackageName(t *testing.T) {
	store, _, _, svc := setup(t)
	user := store.SeedUser("Alice", nil)

	result, err := svc.Open(context.Background(), OpenRequest{UserID: user.ID, Amount: decimal.NewFromInt(500), PackageName: "  Gold "})

	require.NoError(t, err)
	assert.Equal(t, "Gold", result.Investment.PackageName)
	assert.Equal(t, "0.12", result.Investment.MonthlyProfitRate.String())
	assert.Empty(t, result.Payouts)
}

func TestList(t *testing.T) {
	store, c, _, svc := setup(t)
	user := store.SeedUser("Alice", nil)
	ctx := context.Background()

	_, err := svc.Open(ctx, OpenRequest{UserID: user.ID, Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)

	c.t = time.Date(2024, 6, 20, 9, 0, 0, 0, time.UTC)
	views, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.False(t, views[0].WithdrawalEligible)
	assert.Equal(t, 6, views[0].LockPeriodMonths)
	assert.Equal(t, 180-157, views[0].DaysUntilEligible)
	assert.True(t, time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC).Equal(views[0].EligibleDate))

	c.t = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	views, err = svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, views[0].WithdrawalEligible)
	assert.Equal(t, 0, views[0].DaysUntilEligible)
}

func TestHistory_IncludesWithdrawn(t *testing.T) {
	store, c, _, svc := setup(t)
	user := store.SeedUser("Alice", nil)
	ctx := context.Background()

	first, err := svc.Open(ctx, OpenRequest{UserID: user.ID, Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)
	c.t = c.t.Add(24 * time.Hour)
	_, err = svc.Open(ctx, OpenRequest{UserID: user.ID, Amount: decimal.NewFromInt(1500)})
	require.NoError(t, err)

	withdrawn := *first.Investment
	withdrawn.Status = models.InvestmentWithdrawn
	require.NoError(t, store.UpdateInvestment(ctx, &withdrawn))

	c.t = time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC)
	open, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "1500.00", open[0].Amount.StringFixed(2))

	history, err := svc.History(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.InvestmentActive, history[0].Status)
	assert.True(t, history[0].WithdrawalEligible)
	assert.Equal(t, models.InvestmentWithdrawn, history[1].Status)
	assert.False(t, history[1].WithdrawalEligible)
}
