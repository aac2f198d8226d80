// Package withdrawal authorises income and investment withdrawals and their
// admin settlement.
//
// Income withdrawals reserve the amount from the wallet at request time and
// restore it on rejection. Investment withdrawals take the principal from the
// wallet only when approved.
package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "yieldtree/internal/errors"
	"yieldtree/internal/models"
	"yieldtree/internal/repositories"
	"yieldtree/internal/services/investment"
	"yieldtree/internal/services/ledger"
	"yieldtree/internal/services/otp"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	minimumWithdrawal = decimal.NewFromInt(10)
	amountStep        = decimal.NewFromInt(10)

	// Credits that count towards the withdrawable balance, in addition to
	// any source containing "income".
	incomeSources = []string{
		models.SourceDirectIncome,
		models.SourceTeamIncome,
		models.SourceSalaryIncome,
		models.SourceDailyProfit,
		models.SourceMonthlyProfit,
	}
	incomeWithdrawalSources = []string{models.SourceWithdrawal, models.SourceIncomeWithdrawal}
	allWithdrawalSources    = []string{
		models.SourceWithdrawal,
		models.SourceIncomeWithdrawal,
		models.SourceInvestmentWithdrawal,
	}
)

type Service interface {
	RequestIncomeOTP(ctx context.Context, userID uint, req IncomeOTPRequest) (*otp.Issued, error)
	RequestInvestmentOTP(ctx context.Context, userID uint, req InvestmentOTPRequest) (*otp.Issued, error)
	ConfirmIncome(ctx context.Context, userID uint, req IncomeRequest) (*models.Transaction, error)
	ConfirmInvestment(ctx context.Context, userID uint, req InvestmentRequest) (*InvestmentResult, error)
	Approve(ctx context.Context, txnID uint) (*models.Transaction, error)
	Reject(ctx context.Context, txnID uint, reason string) (*models.Transaction, error)
	Available(ctx context.Context, userID uint) (decimal.Decimal, error)
	Stats(ctx context.Context, userID uint) (*Stats, error)
	History(ctx context.Context, userID uint, q HistoryQuery) (*History, error)
	ListPending(ctx context.Context, page repositories.Page) ([]models.Transaction, error)
}

type service struct {
	ledger ledger.Service
	store  repositories.Store
	otp    *otp.Service
	now    func() time.Time
	log    *zap.Logger
}

func NewService(
	ledgerService ledger.Service,
	store repositories.Store,
	otpService *otp.Service,
	now func() time.Time,
	log *zap.Logger,
) Service {
	if ledgerService == nil {
		panic("ledger service is required")
	}
	if store == nil {
		panic("store is required")
	}
	if otpService == nil {
		panic("otp service is required")
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &service{ledger: ledgerService, store: store, otp: otpService, now: now, log: log}
}

func normalizeChain(chain string) string {
	return strings.ToUpper(strings.TrimSpace(chain))
}

func validateDestination(chain, address string) error {
	if chain == "" {
		return ErrChainRequired
	}
	if address == "" {
		return ErrAddressRequired
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if amount.LessThan(minimumWithdrawal) {
		return ErrMinimumWithdrawal
	}
	if !amount.Mod(amountStep).IsZero() {
		return ErrAmountStep
	}
	return nil
}

func incomeParams(amount decimal.Decimal, chain, address string) otp.Params {
	return otp.Params{"amount": amount.StringFixed(2), "chain": chain, "address": address}
}

func investmentParams(investmentID uint, chain, address string) otp.Params {
	return otp.Params{"investment_id": strconv.FormatUint(uint64(investmentID), 10), "chain": chain, "address": address}
}

// availableIncome is max(0, unlocked completed income credits minus
// completed or pending income withdrawals).
func availableIncome(ctx context.Context, store repositories.Store, userID uint, now time.Time) (decimal.Decimal, error) {
	income, err := store.SumTransactions(ctx, repositories.TransactionFilter{
		UserID:         userID,
		Direction:      models.DirectionCredit,
		Statuses:       []string{models.StatusCompleted},
		Sources:        incomeSources,
		SourceContains: []string{"income"},
		UnlockedAt:     &now,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum withdrawable income: %w", err)
	}
	withdrawn, err := store.SumTransactions(ctx, repositories.TransactionFilter{
		UserID:    userID,
		Direction: models.DirectionDebit,
		Statuses:  []string{models.StatusCompleted, models.StatusPending},
		Sources:   incomeWithdrawalSources,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum income withdrawals: %w", err)
	}

	available := income.Sub(withdrawn).Round(2)
	if available.IsNegative() {
		return decimal.Zero, nil
	}
	return available, nil
}

func (s *service) Available(ctx context.Context, userID uint) (decimal.Decimal, error) {
	available, err := availableIncome(ctx, s.store, userID, s.now())
	if err != nil {
		return decimal.Zero, apperrors.Persistence("BALANCE_READ_FAILED", err)
	}
	return available, nil
}

func insufficient(available, amount decimal.Decimal) error {
	return apperrors.ErrInsufficientBalance.WithMessage(
		"insufficient withdrawable income: available $%s, requested $%s; deposited amounts are locked for %d months",
		available.StringFixed(2), amount.StringFixed(2), investment.LockPeriodMonths)
}

func (s *service) issue(ctx context.Context, userID uint, purpose otp.Purpose, params otp.Params) (*otp.Issued, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Persistence("USER_READ_FAILED", err)
	}
	return s.otp.Issue(ctx, otp.IssueRequest{
		UserID:  user.ID,
		Email:   user.Email,
		Name:    user.DisplayName(),
		Purpose: purpose,
		Params:  params,
	})
}

// RequestIncomeOTP checks the request would currently pass and issues an OTP
// bound to amount, chain and address. The checks run again at confirmation.
func (s *service) RequestIncomeOTP(ctx context.Context, userID uint, req IncomeOTPRequest) (*otp.Issued, error) {
	chain, address := normalizeChain(req.Chain), strings.TrimSpace(req.Address)
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if err := validateDestination(chain, address); err != nil {
		return nil, err
	}

	available, err := s.Available(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Amount.GreaterThan(available) {
		return nil, insufficient(available, req.Amount)
	}

	return s.issue(ctx, userID, otp.PurposeIncomeWithdrawal, incomeParams(req.Amount, chain, address))
}

// ConfirmIncome verifies the OTP, rechecks the available balance under the
// user lock and writes a reserved PENDING debit.
func (s *service) ConfirmIncome(ctx context.Context, userID uint, req IncomeRequest) (*models.Transaction, error) {
	chain, address := normalizeChain(req.Chain), strings.TrimSpace(req.Address)
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if err := validateDestination(chain, address); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(req.OTP)
	if code == "" {
		return nil, ErrOTPRequired
	}
	redeemed, err := s.otp.Redeem(ctx, userID, otp.PurposeIncomeWithdrawal, code, incomeParams(req.Amount, chain, address))
	if err != nil {
		return nil, err
	}

	amount := req.Amount.Round(2)
	var txn *models.Transaction
	err = s.ledger.Atomic(ctx, func(unit *ledger.Unit) error {
		if _, err := unit.Store().LockUser(ctx, userID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return apperrors.ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}

		available, err := availableIncome(ctx, unit.Store(), userID, unit.Now())
		if err != nil {
			return err
		}
		if amount.GreaterThan(available) {
			return insufficient(available, amount)
		}
		wallet, err := unit.EnsureWallet(ctx, userID)
		if err != nil {
			return fmt.Errorf("load wallet: %w", err)
		}
		if amount.GreaterThan(wallet.Balance) {
			return insufficient(wallet.Balance, amount)
		}

		txn, err = unit.Apply(ctx, ledger.Entry{
			UserID:       userID,
			Amount:       amount,
			Direction:    models.DirectionDebit,
			IncomeSource: models.SourceIncomeWithdrawal,
			Status:       models.StatusPending,
			Reserve:      true,
			Description:  fmt.Sprintf("Income withdrawal of $%s to %s address %s", amount.StringFixed(2), chain, address),
			Metadata:     models.JSON{"blockchain": chain, "address": address},
		})
		return err
	})
	if err != nil {
		s.otp.Restore(ctx, redeemed)
		return nil, err
	}

	s.log.Info("income withdrawal requested",
		zap.Uint("user_id", userID),
		zap.Uint("transaction_id", txn.ID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("chain", chain))
	return txn, nil
}

// checkInvestment applies the ownership, status, lock and single-pending
// rules to an investment read through store.
func checkInvestment(ctx context.Context, store repositories.Store, userID, investmentID uint, now time.Time) (*models.Investment, error) {
	inv, err := store.GetInvestmentForUpdate(ctx, investmentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrInvestmentNotFound
		}
		return nil, fmt.Errorf("load investment: %w", err)
	}
	if inv.UserID != userID {
		return nil, apperrors.ErrInvestmentNotFound
	}
	if inv.Status != models.InvestmentActive {
		return nil, ErrInvestmentInactive.WithMessage("cannot withdraw from %s investment", inv.Status)
	}
	if !investment.Eligible(inv.StartDate, now) {
		return nil, ErrInvestmentLocked.WithMessage("investment locked until %s; lock period is %d months from investment date",
			investment.UnlockDate(inv.StartDate).Format("2006-01-02"), investment.LockPeriodMonths)
	}

	pending, err := store.CountTransactions(ctx, repositories.TransactionFilter{
		UserID:       userID,
		Direction:    models.DirectionDebit,
		Statuses:     []string{models.StatusPending},
		Sources:      []string{models.SourceInvestmentWithdrawal},
		InvestmentID: inv.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("check pending withdrawals: %w", err)
	}
	if pending > 0 {
		return nil, ErrPendingWithdrawal
	}
	return inv, nil
}

func (s *service) RequestInvestmentOTP(ctx context.Context, userID uint, req InvestmentOTPRequest) (*otp.Issued, error) {
	chain, address := normalizeChain(req.Chain), strings.TrimSpace(req.Address)
	if err := validateDestination(chain, address); err != nil {
		return nil, err
	}

	if _, err := checkInvestment(ctx, s.store, userID, req.InvestmentID, s.now()); err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.Persistence("INVESTMENT_READ_FAILED", err)
	}

	return s.issue(ctx, userID, otp.PurposeInvestmentWithdrawal, investmentParams(req.InvestmentID, chain, address))
}

// ConfirmInvestment verifies the OTP and, under the user lock, writes an
// unreserved PENDING debit for the principal and marks the investment
// withdrawing.
func (s *service) ConfirmInvestment(ctx context.Context, userID uint, req InvestmentRequest) (*InvestmentResult, error) {
	chain, address := normalizeChain(req.Chain), strings.TrimSpace(req.Address)
	if err := validateDestination(chain, address); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(req.OTP)
	if code == "" {
		return nil, ErrOTPRequired
	}
	params := investmentParams(req.InvestmentID, chain, address)
	redeemed, err := s.otp.Redeem(ctx, userID, otp.PurposeInvestmentWithdrawal, code, params)
	if err != nil {
		return nil, err
	}

	var result InvestmentResult
	err = s.ledger.Atomic(ctx, func(unit *ledger.Unit) error {
		if _, err := unit.Store().LockUser(ctx, userID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return apperrors.ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}

		inv, err := checkInvestment(ctx, unit.Store(), userID, req.InvestmentID, unit.Now())
		if err != nil {
			return err
		}

		invID := inv.ID
		txn, err := unit.Apply(ctx, ledger.Entry{
			UserID:       userID,
			Amount:       inv.Amount,
			Direction:    models.DirectionDebit,
			IncomeSource: models.SourceInvestmentWithdrawal,
			Status:       models.StatusPending,
			InvestmentID: &invID,
			Description: fmt.Sprintf("Investment withdrawal of $%s from %s (ID: %d) to %s address %s",
				inv.Amount.StringFixed(2), inv.PackageName, inv.ID, chain, address),
			Metadata: models.JSON{
				"blockchain":   chain,
				"address":      address,
				"package_name": inv.PackageName,
			},
		})
		if err != nil {
			return err
		}

		inv.Status = models.InvestmentWithdrawing
		if err := unit.Store().UpdateInvestment(ctx, inv); err != nil {
			return fmt.Errorf("mark investment withdrawing: %w", err)
		}

		result = InvestmentResult{Transaction: txn, Investment: inv}
		return nil
	})
	if err != nil {
		s.otp.Restore(ctx, redeemed)
		return nil, err
	}

	s.log.Info("investment withdrawal requested",
		zap.Uint("user_id", userID),
		zap.Uint("investment_id", req.InvestmentID),
		zap.Uint("transaction_id", result.Transaction.ID))
	return &result, nil
}

func lockWithdrawal(ctx context.Context, store repositories.Store, txnID uint) (*models.Transaction, error) {
	txn, err := store.GetTransactionForUpdate(ctx, txnID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("load withdrawal: %w", err)
	}
	if txn.Direction != models.DirectionDebit || !isWithdrawalSource(txn.IncomeSource) {
		return nil, ErrWithdrawalNotFound
	}
	return txn, nil
}

func isWithdrawalSource(source string) bool {
	for _, s := range allWithdrawalSources {
		if s == source {
			return true
		}
	}
	return false
}

func setInvestmentStatus(ctx context.Context, store repositories.Store, txn *models.Transaction, status string) error {
	if txn.InvestmentID == nil {
		return nil
	}
	inv, err := store.GetInvestmentForUpdate(ctx, *txn.InvestmentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperrors.ErrInvestmentNotFound
		}
		return fmt.Errorf("load investment: %w", err)
	}
	inv.Status = status
	if err := store.UpdateInvestment(ctx, inv); err != nil {
		return fmt.Errorf("update investment: %w", err)
	}
	return nil
}

// Approve completes a pending withdrawal. A reserved income withdrawal
// leaves the wallet unchanged; an investment withdrawal debits the principal
// now and closes the investment.
func (s *service) Approve(ctx context.Context, txnID uint) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.ledger.Atomic(ctx, func(unit *ledger.Unit) error {
		pending, err := lockWithdrawal(ctx, unit.Store(), txnID)
		if err != nil {
			return err
		}
		if _, err := unit.Store().LockUser(ctx, pending.UserID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		txn, err = unit.Transition(ctx, txnID, models.StatusCompleted, ledger.WithNote(" - Approved by admin"))
		if err != nil {
			return err
		}
		if txn.IncomeSource == models.SourceInvestmentWithdrawal {
			return setInvestmentStatus(ctx, unit.Store(), txn, models.InvestmentWithdrawn)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("withdrawal approved",
		zap.Uint("transaction_id", txnID),
		zap.Uint("user_id", txn.UserID),
		zap.String("kind", string(KindOf(txn.IncomeSource))),
		zap.String("amount", txn.Amount.StringFixed(2)))
	return txn, nil
}

// Reject marks a pending withdrawal REJECTED. A reserved income withdrawal
// is restored to the wallet; an investment goes back to active.
func (s *service) Reject(ctx context.Context, txnID uint, reason string) (*models.Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "No reason provided"
	}

	var txn *models.Transaction
	err := s.ledger.Atomic(ctx, func(unit *ledger.Unit) error {
		pending, err := lockWithdrawal(ctx, unit.Store(), txnID)
		if err != nil {
			return err
		}
		if _, err := unit.Store().LockUser(ctx, pending.UserID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		txn, err = unit.Transition(ctx, txnID, models.StatusRejected, ledger.WithNote(fmt.Sprintf(" (Rejected: %s)", reason)))
		if err != nil {
			return err
		}
		if txn.IncomeSource == models.SourceInvestmentWithdrawal {
			return setInvestmentStatus(ctx, unit.Store(), txn, models.InvestmentActive)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("withdrawal rejected",
		zap.Uint("transaction_id", txnID),
		zap.Uint("user_id", txn.UserID),
		zap.String("reason", reason))
	return txn, nil
}

func (s *service) Stats(ctx context.Context, userID uint) (*Stats, error) {
	stats, err := s.stats(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence("WITHDRAWAL_STATS_FAILED", err)
	}
	return stats, nil
}

func (s *service) stats(ctx context.Context, userID uint) (*Stats, error) {
	now := s.now()
	available, err := availableIncome(ctx, s.store, userID, now)
	if err != nil {
		return nil, err
	}

	completed := repositories.TransactionFilter{
		UserID:    userID,
		Direction: models.DirectionDebit,
		Statuses:  []string{models.StatusCompleted},
		Sources:   allWithdrawalSources,
	}
	pending := completed
	pending.Statuses = []string{models.StatusPending}

	stats := &Stats{AvailableBalance: available}
	if stats.TotalWithdrawn, err = s.store.SumTransactions(ctx, completed); err != nil {
		return nil, err
	}
	if stats.WithdrawalCount, err = s.store.CountTransactions(ctx, completed); err != nil {
		return nil, err
	}
	if stats.PendingAmount, err = s.store.SumTransactions(ctx, pending); err != nil {
		return nil, err
	}
	if stats.PendingCount, err = s.store.CountTransactions(ctx, pending); err != nil {
		return nil, err
	}

	invs, err := s.store.ListInvestments(ctx, userID, models.InvestmentActive)
	if err != nil {
		return nil, err
	}
	stats.TotalInvestmentsCount = len(invs)
	for _, inv := range invs {
		if investment.Eligible(inv.StartDate, now) {
			stats.EligibleInvestmentsCount++
		}
	}
	return stats, nil
}

func (s *service) History(ctx context.Context, userID uint, q HistoryQuery) (*History, error) {
	filter := repositories.TransactionFilter{
		UserID:    userID,
		Direction: models.DirectionDebit,
		Sources:   allWithdrawalSources,
	}
	switch strings.ToLower(q.Type) {
	case "", "all":
	case string(KindIncome):
		filter.Sources = incomeWithdrawalSources
	case string(KindInvestment):
		filter.Sources = []string{models.SourceInvestmentWithdrawal}
	default:
		return nil, apperrors.Validation("INVALID_WITHDRAWAL_TYPE", "type must be ALL, income or investment")
	}
	if status := strings.ToUpper(q.Status); status != "" && status != "ALL" {
		filter.Statuses = []string{status}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	txns, err := s.store.FindTransactions(ctx, filter, repositories.Page{Limit: limit, Offset: offset})
	if err != nil {
		return nil, apperrors.Persistence("WITHDRAWAL_HISTORY_FAILED", err)
	}
	total, err := s.store.CountTransactions(ctx, filter)
	if err != nil {
		return nil, apperrors.Persistence("WITHDRAWAL_HISTORY_FAILED", err)
	}

	items := make([]HistoryItem, 0, len(txns))
	for _, txn := range txns {
		items = append(items, HistoryItem{
			ID:           txn.ID,
			Amount:       txn.Amount,
			Type:         KindOf(txn.IncomeSource),
			Status:       txn.Status,
			Chain:        txn.MetadataString("blockchain"),
			Address:      txn.MetadataString("address"),
			InvestmentID: txn.InvestmentID,
			PackageName:  txn.MetadataString("package_name"),
			Description:  txn.Description,
			Timestamp:    txn.Timestamp,
		})
	}
	return &History{Items: items, Total: total}, nil
}

func (s *service) ListPending(ctx context.Context, page repositories.Page) ([]models.Transaction, error) {
	txns, err := s.store.FindTransactions(ctx, repositories.TransactionFilter{
		Direction: models.DirectionDebit,
		Statuses:  []string{models.StatusPending},
		Sources:   allWithdrawalSources,
	}, page)
	if err != nil {
		return nil, apperrors.Persistence("WITHDRAWALS_READ_FAILED", err)
	}
	return txns, nil
}
