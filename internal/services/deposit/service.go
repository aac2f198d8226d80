// Package deposit handles crypto deposit requests and their admin approval.
package deposit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "yieldtree/internal/errors"
	"yieldtree/internal/models"
	"yieldtree/internal/repositories"
	"yieldtree/internal/services/investment"
	"yieldtree/internal/services/ledger"
	"yieldtree/internal/services/otp"
	"yieldtree/internal/services/referral"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	minimumDeposit = decimal.NewFromInt(100)
	amountStep     = decimal.NewFromInt(10)
)

type OTPRequest struct {
	Amount decimal.Decimal
	Chain  string
}

type ConfirmRequest struct {
	Amount     decimal.Decimal
	Chain      string
	OTP        string
	TxHash     string
	Screenshot string // base64 image, optional
}

type ApproveResult struct {
	Transaction *models.Transaction `json:"transaction"`
	Investment  *models.Investment  `json:"investment"`
	Payouts     []referral.Payout   `json:"referral_payouts"`
}

type Service interface {
	RequestOTP(ctx context.Context, userID uint, req OTPRequest) (*otp.Issued, error)
	Confirm(ctx context.Context, userID uint, req ConfirmRequest) (*models.Transaction, error)
	Approve(ctx context.Context, txnID uint) (*ApproveResult, error)
	Reject(ctx context.Context, txnID uint, reason string) (*models.Transaction, error)
	ListPending(ctx context.Context, page repositories.Page) ([]models.Transaction, error)
}

type service struct {
	ledger   ledger.Service
	store    repositories.Store
	otp      *otp.Service
	cascader *referral.Cascader
	log      *zap.Logger
}

func NewService(
	ledgerService ledger.Service,
	store repositories.Store,
	otpService *otp.Service,
	cascader *referral.Cascader,
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
	if cascader == nil {
		panic("referral cascader is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &service{
		ledger:   ledgerService,
		store:    store,
		otp:      otpService,
		cascader: cascader,
		log:      log,
	}
}

func validate(amount decimal.Decimal, chain string) error {
	if amount.LessThan(minimumDeposit) {
		return ErrMinimumDeposit
	}
	if !amount.Mod(amountStep).IsZero() {
		return ErrAmountStep
	}
	if chain == "" {
		return ErrChainRequired
	}
	return nil
}

func normalizeChain(chain string) string {
	return strings.ToUpper(strings.TrimSpace(chain))
}

func bind(amount decimal.Decimal, chain string) otp.Params {
	return otp.Params{
		"amount": amount.StringFixed(2),
		"chain":  chain,
	}
}

// RequestOTP issues a deposit OTP bound to amount and chain.
func (s *service) RequestOTP(ctx context.Context, userID uint, req OTPRequest) (*otp.Issued, error) {
	chain := normalizeChain(req.Chain)
	if err := validate(req.Amount, chain); err != nil {
		return nil, err
	}

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
		Purpose: otp.PurposeDeposit,
		Params:  bind(req.Amount, chain),
	})
}

// Confirm verifies the OTP and records a PENDING deposit credit. Nothing
// reaches the wallet until an admin approves it.
func (s *service) Confirm(ctx context.Context, userID uint, req ConfirmRequest) (*models.Transaction, error) {
	chain := normalizeChain(req.Chain)
	if err := validate(req.Amount, chain); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(req.OTP)
	if code == "" {
		return nil, ErrOTPRequired
	}
	redeemed, err := s.otp.Redeem(ctx, userID, otp.PurposeDeposit, code, bind(req.Amount, chain))
	if err != nil {
		return nil, err
	}

	amount := req.Amount.Round(2)
	description := fmt.Sprintf("Crypto deposit of $%s via %s", amount.StringFixed(2), chain)
	if req.TxHash != "" {
		description += fmt.Sprintf(" (Tx: %s)", req.TxHash)
	}
	description += " - OTP verified"
	if req.Screenshot != "" {
		description += " - Screenshot provided"
	}

	metadata := models.JSON{"blockchain": chain}
	if req.TxHash != "" {
		metadata["transaction_hash"] = req.TxHash
	}
	if req.Screenshot != "" {
		metadata["screenshot"] = req.Screenshot
	}

	var txn *models.Transaction
	err = s.ledger.Atomic(ctx, func(unit *ledger.Unit) error {
		if _, err := unit.Store().LockUser(ctx, userID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return apperrors.ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}
		var err error
		txn, err = unit.Apply(ctx, ledger.Entry{
			UserID:       userID,
			Amount:       amount,
			Direction:    models.DirectionCredit,
			IncomeSource: models.DepositSource(chain),
			Status:       models.StatusPending,
			Description:  description,
			Metadata:     metadata,
		})
		return err
	})
	if err != nil {
		s.otp.Restore(ctx, redeemed)
		return nil, err
	}

	s.log.Info("deposit request created",
		zap.Uint("user_id", userID),
		zap.Uint("transaction_id", txn.ID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("chain", chain))
	return txn, nil
}

// lockDeposit loads txnID and checks it is a deposit credit.
func lockDeposit(ctx context.Context, store repositories.Store, txnID uint) (*models.Transaction, error) {
	txn, err := store.GetTransactionForUpdate(ctx, txnID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrDepositNotFound
		}
		return nil, fmt.Errorf("load deposit: %w", err)
	}
	if txn.Direction != models.DirectionCredit || !models.IsDepositSource(txn.IncomeSource) ||
		txn.IncomeSource == models.SourceInvestmentDeposit {
		return nil, ErrDepositNotFound
	}
	return txn, nil
}

// Approve completes a pending deposit: the principal is credited with a
// six-month unlock date, an investment is opened for it and the deposit
// schedule is paid up the sponsor chain. All of it commits or none does.
func (s *service) Approve(ctx context.Context, txnID uint) (*ApproveResult, error) {
	var result ApproveResult
	err := s.ledger.Atomic(ctx, func(unit *ledger.Unit) error {
		deposit, err := lockDeposit(ctx, unit.Store(), txnID)
		if err != nil {
			return err
		}
		user, err := unit.Store().LockUser(ctx, deposit.UserID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return apperrors.ErrUserNotFound
			}
			return fmt.Errorf("lock depositor: %w", err)
		}

		unlock := investment.UnlockDate(unit.Now())
		txn, err := unit.Transition(ctx, deposit.ID, models.StatusCompleted, ledger.WithUnlockDate(unlock))
		if err != nil {
			return err
		}

		chain := txn.MetadataString("blockchain")
		if chain == "" {
			chain = strings.ToUpper(strings.TrimSuffix(txn.IncomeSource, models.DepositSourceSuffix))
		}
		inv, err := investment.Create(ctx, unit, user.ID, txn.Amount, fmt.Sprintf("Crypto Deposit (%s)", chain), &txn.ID)
		if err != nil {
			return err
		}

		payouts, err := s.cascader.Cascade(ctx, unit, referral.Request{
			UserID:   user.ID,
			UserName: user.DisplayName(),
			Base:     txn.Amount,
			Trigger:  referral.TriggerDeposit,
		})
		if err != nil {
			return err
		}

		result = ApproveResult{Transaction: txn, Investment: inv, Payouts: payouts}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("deposit approved",
		zap.Uint("transaction_id", txnID),
		zap.Uint("user_id", result.Transaction.UserID),
		zap.String("amount", result.Transaction.Amount.StringFixed(2)),
		zap.Int("referral_payouts", len(result.Payouts)))
	return &result, nil
}

// Reject marks a pending deposit REJECTED. The wallet is untouched because
// the principal was never credited.
func (s *service) Reject(ctx context.Context, txnID uint, reason string) (*models.Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "No reason provided"
	}

	var txn *models.Transaction
	err := s.ledger.Atomic(ctx, func(unit *ledger.Unit) error {
		if _, err := lockDeposit(ctx, unit.Store(), txnID); err != nil {
			return err
		}
		var err error
		txn, err = unit.Transition(ctx, txnID, models.StatusRejected, ledger.WithNote(fmt.Sprintf(" (Rejected: %s)", reason)))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("deposit rejected", zap.Uint("transaction_id", txnID), zap.String("reason", reason))
	return txn, nil
}

func (s *service) ListPending(ctx context.Context, page repositories.Page) ([]models.Transaction, error) {
	txns, err := s.store.FindTransactions(ctx, repositories.TransactionFilter{
		Direction:      models.DirectionCredit,
		Statuses:       []string{models.StatusPending},
		SourceSuffixes: []string{models.DepositSourceSuffix},
	}, page)
	if err != nil {
		return nil, apperrors.Persistence("DEPOSITS_READ_FAILED", err)
	}
	return txns, nil
}
