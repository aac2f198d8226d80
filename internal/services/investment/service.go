package investment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "yieldtree/internal/errors"
	"yieldtree/internal/models"
	"yieldtree/internal/repositories"
	"yieldtree/internal/services/ledger"
	"yieldtree/internal/services/referral"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrInvestmentExists = apperrors.Conflict("INVESTMENT_EXISTS", "an investment already exists for this deposit")

// OpenRequest opens an investment funded directly from the API.
type OpenRequest struct {
	UserID      uint
	Amount      decimal.Decimal
	PackageName string
}

type OpenResult struct {
	Investment  *models.Investment  `json:"investment"`
	Transaction *models.Transaction `json:"transaction"`
	Payouts     []referral.Payout   `json:"referral_payouts"`
}

// View is an investment with its withdrawal eligibility at query time.
type View struct {
	models.Investment
	WithdrawalEligible bool      `json:"withdrawal_eligible"`
	EligibleDate       time.Time `json:"eligible_date"`
	DaysUntilEligible  int       `json:"days_until_eligible"`
	LockPeriodMonths   int       `json:"lock_period_months"`
}

type Service interface {
	Open(ctx context.Context, req OpenRequest) (*OpenResult, error)
	List(ctx context.Context, userID uint) ([]View, error)
	History(ctx context.Context, userID uint) ([]View, error)
}

type service struct {
	ledger   ledger.Service
	store    repositories.Store
	cascader *referral.Cascader
	now      func() time.Time
	log      *zap.Logger
}

func NewService(ledgerService ledger.Service, store repositories.Store, cascader *referral.Cascader, now func() time.Time, log *zap.Logger) Service {
	if ledgerService == nil || store == nil || cascader == nil {
		panic("ledger service, store and cascader are required")
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &service{ledger: ledgerService, store: store, cascader: cascader, now: now, log: log}
}

// Open credits the principal as a locked investment_deposit, records the
// investment and pays the deposit schedule up the sponsor chain, all in one
// unit.
func (s *service) Open(ctx context.Context, req OpenRequest) (*OpenResult, error) {
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, apperrors.ErrInvalidAmount.WithMessage("amount must be positive")
	}
	tier, err := TierFor(amount)
	if err != nil {
		return nil, err
	}
	packageName := strings.TrimSpace(req.PackageName)
	if packageName == "" {
		packageName = tier.Name
	}

	var result OpenResult
	err = s.ledger.Atomic(ctx, func(unit *ledger.Unit) error {
		user, err := unit.Store().LockUser(ctx, req.UserID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return apperrors.ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}

		unlock := UnlockDate(unit.Now())
		txn, err := unit.Apply(ctx, ledger.Entry{
			UserID:       user.ID,
			Amount:       amount,
			Direction:    models.DirectionCredit,
			IncomeSource: models.SourceInvestmentDeposit,
			Status:       models.StatusCompleted,
			UnlockDate:   &unlock,
			Description:  fmt.Sprintf("Investment in %s package - $%s", packageName, amount.StringFixed(2)),
			Metadata:     models.JSON{"package_name": packageName},
		})
		if err != nil {
			return err
		}

		inv, err := Create(ctx, unit, user.ID, amount, packageName, &txn.ID)
		if err != nil {
			return err
		}

		payouts, err := s.cascader.Cascade(ctx, unit, referral.Request{
			UserID:   user.ID,
			UserName: user.DisplayName(),
			Base:     amount,
			Trigger:  referral.TriggerDeposit,
		})
		if err != nil {
			return err
		}

		result = OpenResult{Investment: inv, Transaction: txn, Payouts: payouts}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("investment opened",
		zap.Uint("user_id", req.UserID),
		zap.Uint("investment_id", result.Investment.ID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("package", packageName))
	return &result, nil
}

// Create inserts an active investment starting at the unit's now. It is
// shared with deposit approval, which passes the approved deposit row.
func Create(ctx context.Context, unit *ledger.Unit, userID uint, amount decimal.Decimal, packageName string, depositTxnID *uint) (*models.Investment, error) {
	tier, err := TierFor(amount)
	if err != nil {
		return nil, err
	}
	if packageName == "" {
		packageName = tier.Name
	}

	start := unit.Now()
	inv := &models.Investment{
		UserID:               userID,
		DepositTransactionID: depositTxnID,
		PackageName:          packageName,
		Amount:               amount.Round(2),
		MonthlyProfitRate:    tier.Rate,
		StartDate:            start,
		UnlockDate:           UnlockDate(start),
		Status:               models.InvestmentActive,
	}
	if err := unit.Store().CreateInvestment(ctx, inv); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrInvestmentExists
		}
		return nil, fmt.Errorf("create investment: %w", err)
	}
	return inv, nil
}

// List returns the user's active and withdrawing investments.
func (s *service) List(ctx context.Context, userID uint) ([]View, error) {
	invs, err := s.store.ListInvestments(ctx, userID, models.InvestmentActive, models.InvestmentWithdrawing)
	if err != nil {
		return nil, apperrors.Persistence("INVESTMENTS_READ_FAILED", err)
	}

	now := s.now()
	views := make([]View, 0, len(invs))
	for _, inv := range invs {
		views = append(views, NewView(inv, now))
	}
	return views, nil
}

// History returns every investment of the user, withdrawn ones included,
// newest first.
func (s *service) History(ctx context.Context, userID uint) ([]View, error) {
	invs, err := s.store.ListInvestments(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence("INVESTMENTS_READ_FAILED", err)
	}

	now := s.now()
	views := make([]View, 0, len(invs))
	for _, inv := range invs {
		views = append(views, NewView(inv, now))
	}
	return views, nil
}

// NewView computes eligibility for inv at now. Only active investments are
// eligible. DaysUntilEligible counts down from 180 days and is
// informational; eligibility itself uses calendar months.
func NewView(inv models.Investment, now time.Time) View {
	days := int(math.Floor(now.Sub(inv.StartDate).Hours() / 24))
	remaining := LockPeriodMonths*30 - days
	if remaining < 0 {
		remaining = 0
	}
	eligible := inv.Status == models.InvestmentActive && Eligible(inv.StartDate, now)
	if eligible {
		remaining = 0
	}
	return View{
		Investment:         inv,
		WithdrawalEligible: eligible,
		EligibleDate:       UnlockDate(inv.StartDate),
		DaysUntilEligible:  remaining,
		LockPeriodMonths:   LockPeriodMonths,
	}
}
