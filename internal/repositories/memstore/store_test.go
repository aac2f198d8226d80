package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"yieldtree/internal/models"
	"yieldtree/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteInTransaction_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	user := &models.User{Email: "a@example.com", ReferralCode: "A1"}
	require.NoError(t, s.CreateUser(ctx, user))
	require.NoError(t, s.CreateWallet(ctx, &models.Wallet{UserID: user.ID}))

	boom := errors.New("boom")
	err := s.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		if _, err := tx.AdjustBalance(ctx, user.ID, decimal.NewFromInt(50)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	wallet, err := s.GetWallet(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.IsZero())
}

func TestExecuteInTransaction_Commits(t *testing.T) {
	ctx := context.Background()
	s := New()
	user := &models.User{Email: "a@example.com", ReferralCode: "A1"}
	require.NoError(t, s.CreateUser(ctx, user))
	require.NoError(t, s.CreateWallet(ctx, &models.Wallet{UserID: user.ID}))

	err := s.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		_, err := tx.AdjustBalance(ctx, user.ID, decimal.RequireFromString("12.345"))
		return err
	})
	require.NoError(t, err)

	wallet, err := s.GetWallet(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "12.35", wallet.Balance.StringFixed(2))
}

func TestCreateUser_Duplicates(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateUser(ctx, &models.User{Email: "a@example.com", ReferralCode: "A1"}))

	err := s.CreateUser(ctx, &models.User{Email: "a@example.com", ReferralCode: "B2"})
	assert.ErrorIs(t, err, repositories.ErrDuplicate)

	_, err = s.GetUserByReferralCode(ctx, "missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestFindTransactions_FilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	future := base.Add(48 * time.Hour)

	rows := []models.Transaction{
		{Reference: "r1", UserID: 1, Amount: decimal.NewFromInt(10), Direction: models.DirectionCredit,
			IncomeSource: "trc20_deposit", Status: models.StatusCompleted, Timestamp: base},
		{Reference: "r2", UserID: 1, Amount: decimal.NewFromInt(20), Direction: models.DirectionCredit,
			IncomeSource: "direct_income", Status: models.StatusCompleted, Timestamp: base.Add(time.Hour)},
		{Reference: "r3", UserID: 1, Amount: decimal.NewFromInt(40), Direction: models.DirectionCredit,
			IncomeSource: "monthly_profit", Status: models.StatusCompleted, UnlockDate: &future, Timestamp: base.Add(2 * time.Hour)},
		{Reference: "r4", UserID: 2, Amount: decimal.NewFromInt(80), Direction: models.DirectionCredit,
			IncomeSource: "bep20_deposit", Status: models.StatusPending, Timestamp: base},
		{Reference: "r5", UserID: 1, Amount: decimal.NewFromInt(5), Direction: models.DirectionCredit,
			IncomeSource: "xdeposit", Status: models.StatusCompleted, Timestamp: base},
	}
	for i := range rows {
		require.NoError(t, s.CreateTransaction(ctx, &rows[i]))
	}

	deposits, err := s.SumTransactions(ctx, repositories.TransactionFilter{
		Statuses:       []string{models.StatusCompleted},
		SourceSuffixes: []string{models.DepositSourceSuffix},
	})
	require.NoError(t, err)
	assert.Equal(t, "10", deposits.String())

	unlocked, err := s.SumTransactions(ctx, repositories.TransactionFilter{
		UserID:         1,
		Sources:        []string{models.SourceMonthlyProfit},
		SourceContains: []string{"income"},
		UnlockedAt:     &base,
	})
	require.NoError(t, err)
	assert.Equal(t, "20", unlocked.String())

	found, err := s.FindTransactions(ctx, repositories.TransactionFilter{UserID: 1}, repositories.Page{Limit: 2})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "r3", found[0].Reference)
	assert.Equal(t, "r2", found[1].Reference)

	users, err := s.DistinctTransactionUsers(ctx, repositories.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, users)
}

func TestListInvestments_FiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	s := New()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, status := range []string{models.InvestmentActive, models.InvestmentWithdrawn, models.InvestmentWithdrawing} {
		require.NoError(t, s.CreateInvestment(ctx, &models.Investment{
			UserID: 1, PackageName: "pkg", Amount: decimal.NewFromInt(100),
			StartDate: start.AddDate(0, i, 0), Status: status,
		}))
	}
	require.NoError(t, s.CreateInvestment(ctx, &models.Investment{UserID: 2, Status: models.InvestmentActive}))

	all, err := s.ListInvestments(ctx, 1)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, models.InvestmentWithdrawing, all[0].Status)
	assert.Equal(t, models.InvestmentActive, all[2].Status)

	err = s.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		open, err := tx.ListInvestments(ctx, 1, models.InvestmentActive, models.InvestmentWithdrawing)
		require.NoError(t, err)
		assert.Len(t, open, 2)
		return nil
	})
	require.NoError(t, err)
}
