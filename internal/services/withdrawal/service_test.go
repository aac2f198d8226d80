package withdrawal

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "yieldtree/internal/errors"
	"yieldtree/internal/models"
	"yieldtree/internal/repositories"
	"yieldtree/internal/repositories/memstore"
	"yieldtree/internal/services/investment"
	"yieldtree/internal/services/ledger"
	"yieldtree/internal/services/notification"
	"yieldtree/internal/services/otp"
	"yieldtree/internal/services/referral"
	"yieldtree/internal/services/sponsor"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

type fixture struct {
	store       *memstore.Store
	clock       *clock
	ledger      ledger.Service
	investments investment.Service
	svc         Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := &clock{t: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
	store := memstore.New().WithClock(c.Now)
	ledgerSvc := ledger.NewService(store, nil, ledger.Config{Now: c.Now}, nil, nil)
	otpSvc := otp.NewService(otp.NewMemoryStore(c.Now), notification.NewService(nil), otp.Config{Now: c.Now}, nil)
	cascader := referral.NewCascader(sponsor.NewResolver(nil), nil)
	return &fixture{
		store:       store,
		clock:       c,
		ledger:      ledgerSvc,
		investments: investment.NewService(ledgerSvc, store, cascader, c.Now, nil),
		svc:         NewService(ledgerSvc, store, otpSvc, c.Now, nil),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) credit(t *testing.T, userID uint, amount, source string, unlock *time.Time) {
	t.Helper()
	err := f.ledger.Atomic(context.Background(), func(u *ledger.Unit) error {
		_, err := u.Apply(context.Background(), ledger.Entry{
			UserID: userID, Amount: dec(amount), Direction: models.DirectionCredit,
			IncomeSource: source, Status: models.StatusCompleted, UnlockDate: unlock,
		})
		return err
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID uint) string {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	return b.StringFixed(2)
}

func (f *fixture) requestIncome(t *testing.T, userID uint, amount string) (*models.Transaction, error) {
	t.Helper()
	ctx := context.Background()
	issued, err := f.svc.RequestIncomeOTP(ctx, userID, IncomeOTPRequest{Amount: dec(amount), Chain: "trc20", Address: "TXabc123"})
	if err != nil {
		return nil, err
	}
	return f.svc.ConfirmIncome(ctx, userID, IncomeRequest{Amount: dec(amount), Chain: "TRC20", Address: "TXabc123", OTP: issued.Code})
}

func (f *fixture) requestInvestment(t *testing.T, userID, investmentID uint) (*InvestmentResult, error) {
	t.Helper()
	ctx := context.Background()
	issued, err := f.svc.RequestInvestmentOTP(ctx, userID, InvestmentOTPRequest{InvestmentID: investmentID, Chain: "BEP20", Address: "0xdef"})
	if err != nil {
		return nil, err
	}
	return f.svc.ConfirmInvestment(ctx, userID, InvestmentRequest{InvestmentID: investmentID, Chain: "BEP20", Address: "0xdef", OTP: issued.Code})
}

func TestIncomeWithdrawal_ReserveAndRestore(t *testing.T) {
	f := newFixture(t)
	user := f.store.SeedUser("Alice", nil)
	f.credit(t, user.ID, "100", models.SourceDirectIncome, nil)
	ctx := context.Background()

	txn, err := f.requestIncome(t, user.ID, "50")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, txn.Status)
	assert.True(t, txn.Reserved)
	assert.Equal(t, "Income withdrawal of $50.00 to TRC20 address TXabc123", txn.Description)
	assert.Equal(t, "50.00", f.balance(t, user.ID))

	rejected, err := f.svc.Reject(ctx, txn.ID, "address blacklisted")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.Equal(t, txn.Description+" (Rejected: address blacklisted)", rejected.Description)
	assert.Equal(t, "100.00", f.balance(t, user.ID))

	second, err := f.requestIncome(t, user.ID, "50")
	require.NoError(t, err)
	assert.Equal(t, "50.00", f.balance(t, user.ID))

	approved, err := f.svc.Approve(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, approved.Status)
	assert.Equal(t, second.Description+" - Approved by admin", approved.Description)
	assert.Equal(t, "50.00", f.balance(t, user.ID))

	rec, err := f.ledger.Reconcile(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)

	_, err = f.svc.Reject(ctx, second.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestIncomeWithdrawal_Available(t *testing.T) {
	f := newFixture(t)
	user := f.store.SeedUser("Alice", nil)
	future := f.clock.t.AddDate(0, 6, 0)
	past := f.clock.t.Add(-time.Hour)
	f.credit(t, user.ID, "40", models.SourceDailyProfit, &past)
	f.credit(t, user.ID, "25", models.SourceReferralIncome, nil)
	f.credit(t, user.ID, "1000", "btc_deposit", &future)
	f.credit(t, user.ID, "500", models.SourceTeamIncome, &future)
	ctx := context.Background()

	available, err := f.svc.Available(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "65.00", available.StringFixed(2))

	_, err = f.requestIncome(t, user.ID, "60")
	require.NoError(t, err)

	available, err = f.svc.Available(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "5.00", available.StringFixed(2))

	_, err = f.requestIncome(t, user.ID, "10")
	assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInsufficientFunds))

	f.clock.t = future
	available, err = f.svc.Available(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "505.00", available.StringFixed(2))
}

func TestIncomeWithdrawal_Validation(t *testing.T) {
	f := newFixture(t)
	user := f.store.SeedUser("Alice", nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  IncomeOTPRequest
		want error
	}{
		{"below minimum", IncomeOTPRequest{Amount: dec("5"), Chain: "BTC", Address: "a"}, ErrMinimumWithdrawal},
		{"step", IncomeOTPRequest{Amount: dec("15"), Chain: "BTC", Address: "a"}, ErrAmountStep},
		{"no chain", IncomeOTPRequest{Amount: dec("10"), Address: "a"}, ErrChainRequired},
		{"no address", IncomeOTPRequest{Amount: dec("10"), Chain: "BTC", Address: " "}, ErrAddressRequired},
		{"no income", IncomeOTPRequest{Amount: dec("10"), Chain: "BTC", Address: "a"}, apperrors.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RequestIncomeOTP(ctx, user.ID, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConfirmIncome_OTPMustMatch(t *testing.T) {
	f := newFixture(t)
	user := f.store.SeedUser("Alice", nil)
	f.credit(t, user.ID, "500", models.SourceDirectIncome, nil)
	ctx := context.Background()

	issued, err := f.svc.RequestIncomeOTP(ctx, user.ID, IncomeOTPRequest{Amount: dec("200"), Chain: "BTC", Address: "bc1q"})
	require.NoError(t, err)

	_, err = f.svc.ConfirmIncome(ctx, user.ID, IncomeRequest{Amount: dec("300"), Chain: "BTC", Address: "bc1q", OTP: issued.Code})
	assert.ErrorIs(t, err, apperrors.ErrOtpDataMismatch)
	_, err = f.svc.ConfirmIncome(ctx, user.ID, IncomeRequest{Amount: dec("200"), Chain: "BTC", Address: "bc1x", OTP: issued.Code})
	assert.ErrorIs(t, err, apperrors.ErrOtpDataMismatch)
	assert.Equal(t, "500.00", f.balance(t, user.ID))

	_, err = f.svc.ConfirmIncome(ctx, user.ID, IncomeRequest{Amount: dec("200"), Chain: "BTC", Address: "bc1q", OTP: issued.Code})
	require.NoError(t, err)

	_, err = f.svc.ConfirmIncome(ctx, user.ID, IncomeRequest{Amount: dec("200"), Chain: "BTC", Address: "bc1q", OTP: issued.Code})
	assert.ErrorIs(t, err, apperrors.ErrOtpExpired)
	assert.Equal(t, "300.00", f.balance(t, user.ID))
}

func (f *fixture) openInvestment(t *testing.T, userID uint, amount string) *models.Investment {
	t.Helper()
	res, err := f.investments.Open(context.Background(), investment.OpenRequest{UserID: userID, Amount: dec(amount)})
	require.NoError(t, err)
	return res.Investment
}

func TestInvestmentWithdrawal_LockPeriod(t *testing.T) {
	f := newFixture(t)
	user := f.store.SeedUser("Alice", nil)
	inv := f.openInvestment(t, user.ID, "1000")

	f.clock.t = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	_, err := f.requestInvestment(t, user.ID, inv.ID)
	assert.ErrorIs(t, err, ErrInvestmentLocked)

	f.clock.t = time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)
	result, err := f.requestInvestment(t, user.ID, inv.ID)
	require.NoError(t, err)

	txn := result.Transaction
	assert.Equal(t, models.StatusPending, txn.Status)
	assert.False(t, txn.Reserved)
	assert.Equal(t, models.SourceInvestmentWithdrawal, txn.IncomeSource)
	require.NotNil(t, txn.InvestmentID)
	assert.Equal(t, inv.ID, *txn.InvestmentID)
	assert.Equal(t, models.InvestmentWithdrawing, result.Investment.Status)
	assert.Equal(t, "1000.00", f.balance(t, user.ID))
}

func TestInvestmentWithdrawal_Eligibility(t *testing.T) {
	f := newFixture(t)
	alice := f.store.SeedUser("Alice", nil)
	bob := f.store.SeedUser("Bob", nil)
	inv := f.openInvestment(t, alice.ID, "500")
	f.clock.t = f.clock.t.AddDate(0, 7, 0)
	ctx := context.Background()

	_, err := f.requestInvestment(t, bob.ID, inv.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvestmentNotFound)

	_, err = f.requestInvestment(t, alice.ID, 9999)
	assert.ErrorIs(t, err, apperrors.ErrInvestmentNotFound)

	_, err = f.requestInvestment(t, alice.ID, inv.ID)
	require.NoError(t, err)

	_, err = f.requestInvestment(t, alice.ID, inv.ID)
	assert.ErrorIs(t, err, ErrInvestmentInactive)

	// An active investment that still has a pending withdrawal is refused.
	stale := *inv
	stale.Status = models.InvestmentActive
	require.NoError(t, f.store.UpdateInvestment(ctx, &stale))
	_, err = f.requestInvestment(t, alice.ID, inv.ID)
	assert.ErrorIs(t, err, ErrPendingWithdrawal)
}

func TestInvestmentWithdrawal_ApproveDebitsPrincipal(t *testing.T) {
	f := newFixture(t)
	user := f.store.SeedUser("Alice", nil)
	inv := f.openInvestment(t, user.ID, "1000")
	f.credit(t, user.ID, "40", models.SourceDailyProfit, nil)
	f.clock.t = f.clock.t.AddDate(0, 6, 0)
	ctx := context.Background()

	result, err := f.requestInvestment(t, user.ID, inv.ID)
	require.NoError(t, err)

	approved, err := f.svc.Approve(ctx, result.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, approved.Status)
	assert.Equal(t, "40.00", f.balance(t, user.ID))

	invs, err := f.store.ListInvestments(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.Equal(t, models.InvestmentWithdrawn, invs[0].Status)

	rec, err := f.ledger.Reconcile(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
}

func TestInvestmentWithdrawal_RejectReactivates(t *testing.T) {
	f := newFixture(t)
	user := f.store.SeedUser("Alice", nil)
	inv := f.openInvestment(t, user.ID, "1000")
	f.clock.t = f.clock.t.AddDate(0, 6, 0)
	ctx := context.Background()

	result, err := f.requestInvestment(t, user.ID, inv.ID)
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, result.Transaction.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "1000.00", f.balance(t, user.ID))

	invs, err := f.store.ListInvestments(ctx, user.ID, models.InvestmentActive)
	require.NoError(t, err)
	assert.Len(t, invs, 1)

	_, err = f.requestInvestment(t, user.ID, inv.ID)
	assert.NoError(t, err)
}

func TestApprove_NotAWithdrawal(t *testing.T) {
	f := newFixture(t)
	user := f.store.SeedUser("Alice", nil)
	inv := f.openInvestment(t, user.ID, "100")
	require.NotNil(t, inv.DepositTransactionID)

	_, err := f.svc.Approve(context.Background(), *inv.DepositTransactionID)
	assert.ErrorIs(t, err, ErrWithdrawalNotFound)

	_, err = f.svc.Reject(context.Background(), 424242, "")
	assert.ErrorIs(t, err, ErrWithdrawalNotFound)
}

func TestStatsAndHistory(t *testing.T) {
	f := newFixture(t)
	user := f.store.SeedUser("Alice", nil)
	f.openInvestment(t, user.ID, "500")
	f.clock.t = f.clock.t.AddDate(0, 6, 0)
	f.openInvestment(t, user.ID, "200")
	f.credit(t, user.ID, "100", models.SourceMonthlyProfit, nil)
	ctx := context.Background()

	first, err := f.requestIncome(t, user.ID, "30")
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, first.ID)
	require.NoError(t, err)
	f.clock.t = f.clock.t.Add(time.Minute)
	_, err = f.requestIncome(t, user.ID, "20")
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "50.00", stats.AvailableBalance.StringFixed(2))
	assert.Equal(t, "30.00", stats.TotalWithdrawn.StringFixed(2))
	assert.Equal(t, int64(1), stats.WithdrawalCount)
	assert.Equal(t, "20.00", stats.PendingAmount.StringFixed(2))
	assert.Equal(t, int64(1), stats.PendingCount)
	assert.Equal(t, 2, stats.TotalInvestmentsCount)
	assert.Equal(t, 1, stats.EligibleInvestmentsCount)

	history, err := f.svc.History(ctx, user.ID, HistoryQuery{Type: "income"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), history.Total)
	require.Len(t, history.Items, 2)
	assert.Equal(t, "20.00", history.Items[0].Amount.StringFixed(2))
	assert.Equal(t, KindIncome, history.Items[0].Type)
	assert.Equal(t, "TRC20", history.Items[0].Chain)
	assert.Equal(t, "TXabc123", history.Items[0].Address)

	pendingOnly, err := f.svc.History(ctx, user.ID, HistoryQuery{Status: "pending", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), pendingOnly.Total)

	investmentOnly, err := f.svc.History(ctx, user.ID, HistoryQuery{Type: "investment"})
	require.NoError(t, err)
	assert.Empty(t, investmentOnly.Items)

	_, err = f.svc.History(ctx, user.ID, HistoryQuery{Type: "bogus"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	pending, err := f.svc.ListPending(ctx, repositories.Page{})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Nil(t, pending[0].InvestmentID)
}

func TestConfirmIncome_ConcurrentConfirmsReserveOnce(t *testing.T) {
	f := newFixture(t)
	user := f.store.SeedUser("Alice", nil)
	f.credit(t, user.ID, "100", models.SourceDirectIncome, nil)
	ctx := context.Background()

	issued, err := f.svc.RequestIncomeOTP(ctx, user.ID, IncomeOTPRequest{Amount: dec("60"), Chain: "TRC20", Address: "TXabc123"})
	require.NoError(t, err)

	const callers = 8
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.ConfirmIncome(ctx, user.ID, IncomeRequest{
				Amount: dec("60"), Chain: "TRC20", Address: "TXabc123", OTP: issued.Code,
			})
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, "40.00", f.balance(t, user.ID))

	pending, err := f.svc.ListPending(ctx, repositories.Page{})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestConfirmIncome_FailedWriteKeepsOTP(t *testing.T) {
	f := newFixture(t)
	user := f.store.SeedUser("Alice", nil)
	f.credit(t, user.ID, "100", models.SourceDirectIncome, nil)
	ctx := context.Background()

	issued, err := f.svc.RequestIncomeOTP(ctx, user.ID, IncomeOTPRequest{Amount: dec("80"), Chain: "TRC20", Address: "TXabc123"})
	require.NoError(t, err)

	err = f.ledger.Atomic(ctx, func(u *ledger.Unit) error {
		_, err := u.Apply(ctx, ledger.Entry{
			UserID: user.ID, Amount: dec("50"), Direction: models.DirectionDebit,
			IncomeSource: models.SourceIncomeWithdrawal, Status: models.StatusCompleted,
		})
		return err
	})
	require.NoError(t, err)

	req := IncomeRequest{Amount: dec("80"), Chain: "TRC20", Address: "TXabc123", OTP: issued.Code}
	_, err = f.svc.ConfirmIncome(ctx, user.ID, req)
	require.ErrorIs(t, err, apperrors.ErrInsufficientBalance)

	f.credit(t, user.ID, "50", models.SourceDirectIncome, nil)
	_, err = f.svc.ConfirmIncome(ctx, user.ID, req)
	assert.NoError(t, err)
}
