package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "yieldtree/internal/errors"
	"yieldtree/internal/models"
	"yieldtree/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Unit is the handle passed to an atomic ledger callback. It must not be
// retained after the callback returns.
type Unit struct {
	store       repositories.Store
	now         time.Time
	touched     map[uint]struct{}
	applied     []models.Transaction
	transitions []transition
}

type transition struct {
	from, to string
}

func newUnit(store repositories.Store, now time.Time) *Unit {
	return &Unit{store: store, now: now, touched: map[uint]struct{}{}}
}

// Store exposes the transaction-scoped store for reads and locks.
func (u *Unit) Store() repositories.Store {
	return u.store
}

// Now is the timestamp shared by every row the unit writes.
func (u *Unit) Now() time.Time {
	return u.now
}

// EnsureWallet returns the user's wallet, creating an empty one if missing.
func (u *Unit) EnsureWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	wallet, err := u.store.GetWallet(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	wallet = &models.Wallet{UserID: userID, Balance: decimal.Zero}
	if err := u.store.CreateWallet(ctx, wallet); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return u.store.GetWallet(ctx, userID)
		}
		return nil, err
	}
	return wallet, nil
}

// Apply inserts one ledger row and applies its wallet effect.
func (u *Unit) Apply(ctx context.Context, e Entry) (*models.Transaction, error) {
	amount := e.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, apperrors.ErrInvalidAmount.WithMessage("amount must be positive, got %s", e.Amount.String())
	}
	if e.Direction != models.DirectionCredit && e.Direction != models.DirectionDebit {
		return nil, ErrInvalidDirection
	}
	if strings.TrimSpace(e.IncomeSource) == "" {
		return nil, ErrMissingSource
	}
	if e.Status != models.StatusPending && e.Status != models.StatusCompleted {
		return nil, ErrInvalidStatus
	}
	if e.Reserve && (e.Status != models.StatusPending || e.Direction != models.DirectionDebit) {
		return nil, ErrInvalidReservation
	}

	if _, err := u.EnsureWallet(ctx, e.UserID); err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}

	txn := &models.Transaction{
		Reference:     uuid.NewString(),
		UserID:        e.UserID,
		Amount:        amount,
		Direction:     e.Direction,
		IncomeSource:  e.IncomeSource,
		Status:        e.Status,
		Reserved:      e.Reserve,
		UnlockDate:    e.UnlockDate,
		ReferralLevel: e.ReferralLevel,
		SourceUserID:  e.SourceUserID,
		InvestmentID:  e.InvestmentID,
		Description:   e.Description,
		Metadata:      e.Metadata,
		Timestamp:     u.now,
	}
	if err := u.store.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("create ledger entry: %w", err)
	}

	if delta := insertEffect(txn); !delta.IsZero() {
		if _, err := u.store.AdjustBalance(ctx, txn.UserID, delta); err != nil {
			return nil, fmt.Errorf("apply wallet effect: %w", err)
		}
	}

	u.touched[txn.UserID] = struct{}{}
	u.applied = append(u.applied, *txn)
	return txn, nil
}

// Transition moves a PENDING row to COMPLETED or REJECTED and settles the
// wallet for it.
func (u *Unit) Transition(ctx context.Context, txnID uint, to string, opts ...TransitionOption) (*models.Transaction, error) {
	if to != models.StatusCompleted && to != models.StatusRejected {
		return nil, ErrInvalidStatus
	}

	txn, err := u.store.GetTransactionForUpdate(ctx, txnID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, err
	}
	if txn.Status != models.StatusPending {
		return nil, apperrors.ErrInvalidTransition.WithMessage("transaction %d is already %s", txn.ID, txn.Status)
	}

	var o transitionOptions
	for _, opt := range opts {
		opt(&o)
	}

	from := txn.Status
	delta := transitionEffect(txn, to)
	txn.Status = to
	txn.Description += o.note
	if o.unlockDate != nil {
		txn.UnlockDate = o.unlockDate
	}
	if err := u.store.UpdateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("update ledger entry: %w", err)
	}

	if !delta.IsZero() {
		if _, err := u.EnsureWallet(ctx, txn.UserID); err != nil {
			return nil, fmt.Errorf("ensure wallet: %w", err)
		}
		if _, err := u.store.AdjustBalance(ctx, txn.UserID, delta); err != nil {
			return nil, fmt.Errorf("apply wallet effect: %w", err)
		}
	}

	u.touched[txn.UserID] = struct{}{}
	u.transitions = append(u.transitions, transition{from: from, to: to})
	return txn, nil
}

func insertEffect(t *models.Transaction) decimal.Decimal {
	switch {
	case t.Status == models.StatusCompleted && t.Direction == models.DirectionCredit:
		return t.Amount
	case t.Status == models.StatusCompleted && t.Direction == models.DirectionDebit:
		return t.Amount.Neg()
	case t.Status == models.StatusPending && t.Direction == models.DirectionDebit && t.Reserved:
		return t.Amount.Neg()
	default:
		return decimal.Zero
	}
}

func transitionEffect(t *models.Transaction, to string) decimal.Decimal {
	switch to {
	case models.StatusCompleted:
		if t.Direction == models.DirectionCredit {
			return t.Amount
		}
		if !t.Reserved {
			return t.Amount.Neg()
		}
	case models.StatusRejected:
		if t.Direction == models.DirectionDebit && t.Reserved {
			return t.Amount
		}
	}
	return decimal.Zero
}
