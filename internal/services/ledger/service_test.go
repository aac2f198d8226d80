package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "yieldtree/internal/errors"
	"yieldtree/internal/models"
	"yieldtree/internal/repositories/memstore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	args := m.Called(ctx, userID)
	w, _ := args.Get(0).(*models.Wallet)
	return w, args.Error(1)
}

func (m *MockCache) CacheWallet(ctx context.Context, wallet *models.Wallet) error {
	return m.Called(ctx, wallet).Error(0)
}

func (m *MockCache) InvalidateWallet(ctx context.Context, userID uint) error {
	return m.Called(ctx, userID).Error(0)
}

func newTestService(t *testing.T) (Service, *memstore.Store, uint) {
	t.Helper()
	store := memstore.New()
	user := &models.User{FullName: "Alice", Email: "alice@example.com", ReferralCode: "ALICE1"}
	require.NoError(t, store.CreateUser(context.Background(), user))
	svc := NewService(store, nil, Config{Now: func() time.Time { return fixedNow }}, nil, nil)
	return svc, store, user.ID
}

func apply(t *testing.T, svc Service, e Entry) *models.Transaction {
	t.Helper()
	var txn *models.Transaction
	err := svc.Atomic(context.Background(), func(u *Unit) error {
		var err error
		txn, err = u.Apply(context.Background(), e)
		return err
	})
	require.NoError(t, err)
	return txn
}

func assertBalance(t *testing.T, svc Service, userID uint, want string) {
	t.Helper()
	rec, err := svc.Reconcile(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, want, rec.Cached.StringFixed(2))
	assert.True(t, rec.Consistent, "cached %s derived %s", rec.Cached, rec.Derived)
}

func TestUnit_ApplyWalletEffects(t *testing.T) {
	tests := []struct {
		name        string
		direction   string
		status      string
		reserve     bool
		wantBalance string
	}{
		{"completed credit adds", models.DirectionCredit, models.StatusCompleted, false, "140.00"},
		{"completed debit subtracts", models.DirectionDebit, models.StatusCompleted, false, "60.00"},
		{"reserved pending debit subtracts", models.DirectionDebit, models.StatusPending, true, "60.00"},
		{"pending debit without reserve", models.DirectionDebit, models.StatusPending, false, "100.00"},
		{"pending credit", models.DirectionCredit, models.StatusPending, false, "100.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, userID := newTestService(t)
			apply(t, svc, Entry{
				UserID: userID, Amount: decimal.NewFromInt(100), Direction: models.DirectionCredit,
				IncomeSource: models.SourceInvestmentDeposit, Status: models.StatusCompleted,
			})

			amount := decimal.NewFromInt(40)
			if tt.direction == models.DirectionCredit && tt.status == models.StatusPending {
				amount = decimal.NewFromInt(500)
			}
			apply(t, svc, Entry{
				UserID: userID, Amount: amount, Direction: tt.direction,
				IncomeSource: models.SourceIncomeWithdrawal, Status: tt.status, Reserve: tt.reserve,
			})

			assertBalance(t, svc, userID, tt.wantBalance)
		})
	}
}

func TestUnit_ApplyValidation(t *testing.T) {
	tests := []struct {
		name    string
		entry   Entry
		wantErr error
	}{
		{
			name:    "zero amount",
			entry:   Entry{Amount: decimal.Zero, Direction: models.DirectionCredit, IncomeSource: "x", Status: models.StatusCompleted},
			wantErr: apperrors.ErrInvalidAmount,
		},
		{
			name:    "rounds to zero",
			entry:   Entry{Amount: decimal.RequireFromString("0.004"), Direction: models.DirectionCredit, IncomeSource: "x", Status: models.StatusCompleted},
			wantErr: apperrors.ErrInvalidAmount,
		},
		{
			name:    "unknown direction",
			entry:   Entry{Amount: decimal.NewFromInt(1), Direction: "sideways", IncomeSource: "x", Status: models.StatusCompleted},
			wantErr: ErrInvalidDirection,
		},
		{
			name:    "missing source",
			entry:   Entry{Amount: decimal.NewFromInt(1), Direction: models.DirectionCredit, Status: models.StatusCompleted},
			wantErr: ErrMissingSource,
		},
		{
			name:    "rejected on insert",
			entry:   Entry{Amount: decimal.NewFromInt(1), Direction: models.DirectionCredit, IncomeSource: "x", Status: models.StatusRejected},
			wantErr: ErrInvalidStatus,
		},
		{
			name:    "reserve on credit",
			entry:   Entry{Amount: decimal.NewFromInt(1), Direction: models.DirectionCredit, IncomeSource: "x", Status: models.StatusPending, Reserve: true},
			wantErr: ErrInvalidReservation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, userID := newTestService(t)
			tt.entry.UserID = userID

			err := svc.Atomic(context.Background(), func(u *Unit) error {
				_, err := u.Apply(context.Background(), tt.entry)
				return err
			})

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, store.Transactions(userID))
		})
	}
}

func TestUnit_Transition(t *testing.T) {
	t.Run("rejecting a reserved debit restores the balance", func(t *testing.T) {
		svc, _, userID := newTestService(t)
		apply(t, svc, Entry{UserID: userID, Amount: decimal.NewFromInt(100), Direction: models.DirectionCredit,
			IncomeSource: models.SourceDirectIncome, Status: models.StatusCompleted})
		debit := apply(t, svc, Entry{UserID: userID, Amount: decimal.NewFromInt(50), Direction: models.DirectionDebit,
			IncomeSource: models.SourceIncomeWithdrawal, Status: models.StatusPending, Reserve: true,
			Description: "Income withdrawal"})
		assertBalance(t, svc, userID, "50.00")

		var updated *models.Transaction
		err := svc.Atomic(context.Background(), func(u *Unit) error {
			var err error
			updated, err = u.Transition(context.Background(), debit.ID, models.StatusRejected, WithNote(" (Rejected: bad address)"))
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusRejected, updated.Status)
		assert.Equal(t, "Income withdrawal (Rejected: bad address)", updated.Description)
		assertBalance(t, svc, userID, "100.00")
	})

	t.Run("completing a reserved debit keeps the balance", func(t *testing.T) {
		svc, _, userID := newTestService(t)
		apply(t, svc, Entry{UserID: userID, Amount: decimal.NewFromInt(100), Direction: models.DirectionCredit,
			IncomeSource: models.SourceDirectIncome, Status: models.StatusCompleted})
		debit := apply(t, svc, Entry{UserID: userID, Amount: decimal.NewFromInt(50), Direction: models.DirectionDebit,
			IncomeSource: models.SourceIncomeWithdrawal, Status: models.StatusPending, Reserve: true})

		err := svc.Atomic(context.Background(), func(u *Unit) error {
			_, err := u.Transition(context.Background(), debit.ID, models.StatusCompleted)
			return err
		})
		require.NoError(t, err)
		assertBalance(t, svc, userID, "50.00")
	})

	t.Run("completing a pending credit adds and sets unlock date", func(t *testing.T) {
		svc, _, userID := newTestService(t)
		credit := apply(t, svc, Entry{UserID: userID, Amount: decimal.NewFromInt(250), Direction: models.DirectionCredit,
			IncomeSource: "trc20_deposit", Status: models.StatusPending})
		unlock := fixedNow.AddDate(0, 6, 0)

		var updated *models.Transaction
		err := svc.Atomic(context.Background(), func(u *Unit) error {
			var err error
			updated, err = u.Transition(context.Background(), credit.ID, models.StatusCompleted, WithUnlockDate(unlock))
			return err
		})
		require.NoError(t, err)
		require.NotNil(t, updated.UnlockDate)
		assert.True(t, unlock.Equal(*updated.UnlockDate))
		assertBalance(t, svc, userID, "250.00")
	})

	t.Run("completing an unreserved debit subtracts", func(t *testing.T) {
		svc, _, userID := newTestService(t)
		apply(t, svc, Entry{UserID: userID, Amount: decimal.NewFromInt(1000), Direction: models.DirectionCredit,
			IncomeSource: models.SourceInvestmentDeposit, Status: models.StatusCompleted})
		debit := apply(t, svc, Entry{UserID: userID, Amount: decimal.NewFromInt(1000), Direction: models.DirectionDebit,
			IncomeSource: models.SourceInvestmentWithdrawal, Status: models.StatusPending})
		assertBalance(t, svc, userID, "1000.00")

		err := svc.Atomic(context.Background(), func(u *Unit) error {
			_, err := u.Transition(context.Background(), debit.ID, models.StatusCompleted)
			return err
		})
		require.NoError(t, err)
		assertBalance(t, svc, userID, "0.00")
	})

	t.Run("non-pending rows cannot move", func(t *testing.T) {
		svc, _, userID := newTestService(t)
		credit := apply(t, svc, Entry{UserID: userID, Amount: decimal.NewFromInt(10), Direction: models.DirectionCredit,
			IncomeSource: models.SourceDirectIncome, Status: models.StatusCompleted})

		err := svc.Atomic(context.Background(), func(u *Unit) error {
			_, err := u.Transition(context.Background(), credit.ID, models.StatusRejected)
			return err
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
		assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
		assertBalance(t, svc, userID, "10.00")
	})

	t.Run("unknown row", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		err := svc.Atomic(context.Background(), func(u *Unit) error {
			_, err := u.Transition(context.Background(), 999, models.StatusCompleted)
			return err
		})
		assert.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
	})
}

func TestService_AtomicRollsBack(t *testing.T) {
	svc, store, userID := newTestService(t)

	err := svc.Atomic(context.Background(), func(u *Unit) error {
		if _, err := u.Apply(context.Background(), Entry{UserID: userID, Amount: decimal.NewFromInt(100),
			Direction: models.DirectionCredit, IncomeSource: models.SourceDirectIncome, Status: models.StatusCompleted}); err != nil {
			return err
		}
		return errors.New("disk full")
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindPersistence))
	assert.Empty(t, store.Transactions(userID))
	balance, err := svc.Balance(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestService_InvalidatesCacheAfterCommit(t *testing.T) {
	store := memstore.New()
	user := &models.User{Email: "bob@example.com", ReferralCode: "BOB1"}
	require.NoError(t, store.CreateUser(context.Background(), user))

	cache := new(MockCache)
	cache.On("InvalidateWallet", mock.Anything, user.ID).Return(nil).Once()
	svc := NewService(store, cache, Config{}, nil, nil)

	apply(t, svc, Entry{UserID: user.ID, Amount: decimal.NewFromInt(5), Direction: models.DirectionCredit,
		IncomeSource: models.SourceDirectIncome, Status: models.StatusCompleted})

	cache.AssertExpectations(t)
}

func TestService_BalanceReadsCacheFirst(t *testing.T) {
	store := memstore.New()
	cache := new(MockCache)
	cache.On("GetWallet", mock.Anything, uint(42)).Return(&models.Wallet{UserID: 42, Balance: decimal.NewFromInt(7)}, nil)
	svc := NewService(store, cache, Config{}, nil, nil)

	balance, err := svc.Balance(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, "7", balance.String())
	cache.AssertExpectations(t)
}
