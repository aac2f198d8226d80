package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "yieldtree/internal/errors"
	"yieldtree/internal/models"
	"yieldtree/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service runs atomic ledger units and answers balance queries.
type Service interface {
	// Atomic runs fn inside one storage transaction. Either every write made
	// through the Unit persists or none does.
	Atomic(ctx context.Context, fn func(*Unit) error) error
	Balance(ctx context.Context, userID uint) (decimal.Decimal, error)
	Reconcile(ctx context.Context, userID uint) (*Reconciliation, error)
}

type service struct {
	store   repositories.Store
	cache   WalletCache
	config  Config
	log     *zap.Logger
	metrics MetricsCollector
}

// NewService creates a new ledger service
func NewService(
	store repositories.Store,
	cache WalletCache,
	config Config,
	log *zap.Logger,
	metrics MetricsCollector,
) Service {
	if store == nil {
		panic("store is required")
	}
	if cache == nil {
		cache = noopCache{}
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	// Metrics is optional, create no-op collector if nil
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}

	return &service{
		store:   store,
		cache:   cache,
		config:  config,
		log:     log,
		metrics: metrics,
	}
}

func (s *service) Atomic(ctx context.Context, fn func(*Unit) error) error {
	start := time.Now()
	var unit *Unit

	err := s.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		unit = newUnit(tx, s.config.Now())
		return fn(unit)
	})
	s.metrics.RecordOperationDuration("atomic", time.Since(start))

	if err != nil {
		if de, ok := apperrors.As(err); ok {
			s.metrics.RecordError("atomic", string(de.Kind))
			return err
		}
		s.metrics.RecordError("atomic", string(apperrors.KindPersistence))
		s.log.Error("ledger unit rolled back", zap.Error(err))
		return apperrors.Persistence("LEDGER_WRITE_FAILED", err)
	}

	s.afterCommit(ctx, unit)
	return nil
}

func (s *service) afterCommit(ctx context.Context, unit *Unit) {
	for userID := range unit.touched {
		if err := s.cache.InvalidateWallet(ctx, userID); err != nil {
			s.log.Warn("failed to invalidate wallet cache", zap.Uint("user_id", userID), zap.Error(err))
		}
	}
	for _, txn := range unit.applied {
		amount, _ := txn.Amount.Float64()
		s.metrics.RecordEntry(txn.Direction, txn.Status, amount)
	}
	for _, t := range unit.transitions {
		s.metrics.RecordTransition(t.from, t.to)
	}
}

func (s *service) Balance(ctx context.Context, userID uint) (decimal.Decimal, error) {
	// Try cache first
	if wallet, err := s.cache.GetWallet(ctx, userID); err == nil && wallet != nil {
		return wallet.Balance, nil
	}

	wallet, err := s.store.GetWallet(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, apperrors.Persistence("WALLET_READ_FAILED", err)
	}

	if err := s.cache.CacheWallet(ctx, wallet); err != nil {
		s.log.Debug("failed to cache wallet", zap.Uint("user_id", userID), zap.Error(err))
	}
	return wallet.Balance, nil
}

// Reconcile recomputes the balance from COMPLETED rows and reserved PENDING
// debits and compares it with the stored wallet.
func (s *service) Reconcile(ctx context.Context, userID uint) (*Reconciliation, error) {
	derived, err := DerivedBalance(ctx, s.store, userID)
	if err != nil {
		return nil, apperrors.Persistence("RECONCILE_FAILED", err)
	}

	cached := decimal.Zero
	wallet, err := s.store.GetWallet(ctx, userID)
	switch {
	case err == nil:
		cached = wallet.Balance
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, apperrors.Persistence("RECONCILE_FAILED", err)
	}

	return &Reconciliation{
		UserID:     userID,
		Cached:     cached,
		Derived:    derived,
		Consistent: cached.Equal(derived),
	}, nil
}

// DerivedBalance is the wallet balance implied by the ledger rows of userID.
func DerivedBalance(ctx context.Context, store repositories.Store, userID uint) (decimal.Decimal, error) {
	completed := []string{models.StatusCompleted}

	credits, err := store.SumTransactions(ctx, repositories.TransactionFilter{
		UserID: userID, Direction: models.DirectionCredit, Statuses: completed,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum credits: %w", err)
	}
	debits, err := store.SumTransactions(ctx, repositories.TransactionFilter{
		UserID: userID, Direction: models.DirectionDebit, Statuses: completed,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum debits: %w", err)
	}
	reserved, err := store.SumTransactions(ctx, repositories.TransactionFilter{
		UserID:    userID,
		Direction: models.DirectionDebit,
		Statuses:  []string{models.StatusPending},
		Reserved:  repositories.BoolPtr(true),
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum reserved debits: %w", err)
	}

	return credits.Sub(debits).Sub(reserved).Round(2), nil
}
