// Package distribution credits periodic profit on deposits and, for monthly
// profit, pays the sponsor chain. Each user's run for a period is one atomic
// ledger unit guarded by an already-distributed check.
package distribution

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "yieldtree/internal/errors"
	"yieldtree/internal/models"
	"yieldtree/internal/repositories"
	"yieldtree/internal/services/commission"
	"yieldtree/internal/services/ledger"
	"yieldtree/internal/services/referral"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 8

var (
	defaultDailyRate   = decimal.NewFromFloat(0.10).Div(decimal.NewFromInt(30))
	defaultMonthlyRate = decimal.NewFromFloat(0.10)
	hundred            = decimal.NewFromInt(100)
)

type Engine interface {
	DistributeDaily(ctx context.Context, userID uint) (*UserResult, error)
	DistributeMonthly(ctx context.Context, userID uint) (*UserResult, error)
	Distribute(ctx context.Context, period PeriodType, userID uint) (*UserResult, error)
	ProcessDistribution(ctx context.Context, period PeriodType) (*BatchResult, error)
	RunDaily(ctx context.Context) (*BatchResult, error)
	RunMonthly(ctx context.Context) (*BatchResult, error)
}

type engine struct {
	ledger   ledger.Service
	store    repositories.Store
	cascader *referral.Cascader
	config   Config
	log      *zap.Logger
	metrics  MetricsCollector
}

// NewEngine creates a distribution engine. store is used for the read-only
// user enumeration outside atomic units.
func NewEngine(
	ledgerService ledger.Service,
	store repositories.Store,
	cascader *referral.Cascader,
	config Config,
	log *zap.Logger,
	metrics MetricsCollector,
) Engine {
	if ledgerService == nil {
		panic("ledger service is required")
	}
	if store == nil {
		panic("store is required")
	}
	if cascader == nil {
		panic("referral cascader is required")
	}
	if !config.DailyRate.IsPositive() {
		config.DailyRate = defaultDailyRate
	}
	if !config.MonthlyRate.IsPositive() {
		config.MonthlyRate = defaultMonthlyRate
	}
	if config.Workers <= 0 {
		config.Workers = defaultWorkers
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}

	return &engine{
		ledger:   ledgerService,
		store:    store,
		cascader: cascader,
		config:   config,
		log:      log,
		metrics:  metrics,
	}
}

func (e *engine) DistributeDaily(ctx context.Context, userID uint) (*UserResult, error) {
	return e.Distribute(ctx, PeriodDaily, userID)
}

func (e *engine) DistributeMonthly(ctx context.Context, userID uint) (*UserResult, error) {
	return e.Distribute(ctx, PeriodMonthly, userID)
}

// Distribute runs one user's distribution for the period containing the
// ledger clock's now. A second call in the same period reports
// AlreadyDistributed and writes nothing.
func (e *engine) Distribute(ctx context.Context, period PeriodType, userID uint) (*UserResult, error) {
	if period != PeriodDaily && period != PeriodMonthly {
		return nil, apperrors.Validation("INVALID_PERIOD", fmt.Sprintf("unknown distribution period %q", period))
	}

	var result *UserResult
	err := e.ledger.Atomic(ctx, func(unit *ledger.Unit) error {
		result = &UserResult{
			UserID:        userID,
			Period:        period,
			Base:          decimal.Zero,
			Profit:        decimal.Zero,
			ReferralTotal: decimal.Zero,
		}

		user, err := unit.Store().LockUser(ctx, userID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return apperrors.ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}

		start, end, key := PeriodWindow(period, unit.Now(), e.config.Location)
		result.PeriodKey = key

		existing, err := unit.Store().CountTransactions(ctx, repositories.TransactionFilter{
			UserID:    userID,
			Direction: models.DirectionCredit,
			Statuses:  []string{models.StatusCompleted},
			Sources:   []string{profitSource(period)},
			From:      start,
			To:        end,
		})
		if err != nil {
			return fmt.Errorf("check existing distribution: %w", err)
		}
		if existing > 0 {
			result.AlreadyDistributed = true
			return nil
		}

		base, err := unit.Store().SumTransactions(ctx, baseFilter(period, userID))
		if err != nil {
			return fmt.Errorf("sum profit base: %w", err)
		}
		result.Base = base.Round(2)

		profit := commission.Round(base.Mul(e.rate(period)))
		if !profit.IsPositive() {
			return nil
		}
		result.Profit = profit

		unlock := unit.Now()
		txn, err := unit.Apply(ctx, ledger.Entry{
			UserID:       userID,
			Amount:       profit,
			Direction:    models.DirectionCredit,
			IncomeSource: profitSource(period),
			Status:       models.StatusCompleted,
			UnlockDate:   &unlock,
			Description:  e.describe(period, profit),
			Metadata: models.JSON{
				"period":      string(period),
				"period_key":  key,
				"base_amount": result.Base.StringFixed(2),
			},
		})
		if err != nil {
			return err
		}
		result.TransactionID = txn.ID

		// Daily profit does not pay the sponsor chain.
		if period != PeriodMonthly {
			return nil
		}
		payouts, err := e.cascader.Cascade(ctx, unit, referral.Request{
			UserID:   userID,
			UserName: user.DisplayName(),
			Base:     profit,
			Trigger:  referral.TriggerProfit,
		})
		if err != nil {
			return err
		}
		result.Payouts = payouts
		result.ReferralTotal = referral.Total(payouts)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyDistributed && result.Profit.IsPositive() {
		e.log.Info("profit distributed",
			zap.Uint("user_id", userID),
			zap.String("period", string(period)),
			zap.String("period_key", result.PeriodKey),
			zap.String("profit", result.Profit.StringFixed(2)),
			zap.Int("referral_payouts", len(result.Payouts)))
	}
	return result, nil
}

// ProcessDistribution runs Distribute for every user with a qualifying
// deposit. Users are processed concurrently and independently: a failed user
// is recorded and the rest of the batch continues.
func (e *engine) ProcessDistribution(ctx context.Context, period PeriodType) (*BatchResult, error) {
	if period != PeriodDaily && period != PeriodMonthly {
		return nil, apperrors.Validation("INVALID_PERIOD", fmt.Sprintf("unknown distribution period %q", period))
	}

	started := e.config.Now()
	_, _, key := PeriodWindow(period, started, e.config.Location)
	batch := &BatchResult{
		RunID:            uuid.New(),
		Period:           period,
		PeriodKey:        key,
		StartedAt:        started,
		TotalDistributed: decimal.Zero,
		TotalReferral:    decimal.Zero,
	}
	log := e.log.With(zap.String("run_id", batch.RunID.String()), zap.String("period", string(period)))

	userIDs, err := e.store.DistinctTransactionUsers(ctx, qualifyingFilter(period))
	if err != nil {
		return nil, apperrors.Persistence("DISTRIBUTION_USERS_FAILED", err)
	}
	batch.TotalUsers = len(userIDs)
	log.Info("distribution started", zap.String("period_key", key), zap.Int("users", len(userIDs)))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.config.Workers)

	for _, id := range userIDs {
		userID := id
		g.Go(func() error {
			var (
				res *UserResult
				err error
			)
			if err = ctx.Err(); err == nil {
				res, err = e.Distribute(ctx, period, userID)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				batch.Failed++
				batch.Failures = append(batch.Failures, Failure{UserID: userID, Error: err.Error()})
				log.Error("user distribution failed", zap.Uint("user_id", userID), zap.Error(err))
			case res.AlreadyDistributed:
				batch.AlreadyDistributed++
			default:
				batch.Processed++
				batch.TotalDistributed = batch.TotalDistributed.Add(res.Profit)
				batch.TotalReferral = batch.TotalReferral.Add(res.ReferralTotal)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(batch.Failures, func(i, j int) bool { return batch.Failures[i].UserID < batch.Failures[j].UserID })
	batch.Duration = time.Since(started)

	profit, _ := batch.TotalDistributed.Float64()
	referralTotal, _ := batch.TotalReferral.Float64()
	e.metrics.RecordDistribution(string(period), batch.Processed, batch.AlreadyDistributed, batch.Failed, profit, referralTotal)

	log.Info("distribution finished",
		zap.Int("processed", batch.Processed),
		zap.Int("already_distributed", batch.AlreadyDistributed),
		zap.Int("failed", batch.Failed),
		zap.String("total_distributed", batch.TotalDistributed.StringFixed(2)),
		zap.String("total_referral", batch.TotalReferral.StringFixed(2)))
	return batch, nil
}

func (e *engine) RunDaily(ctx context.Context) (*BatchResult, error) {
	return e.ProcessDistribution(ctx, PeriodDaily)
}

func (e *engine) RunMonthly(ctx context.Context) (*BatchResult, error) {
	return e.ProcessDistribution(ctx, PeriodMonthly)
}

func (e *engine) rate(period PeriodType) decimal.Decimal {
	if period == PeriodMonthly {
		return e.config.MonthlyRate
	}
	return e.config.DailyRate
}

func (e *engine) describe(period PeriodType, profit decimal.Decimal) string {
	if period == PeriodMonthly {
		return fmt.Sprintf("Monthly investment profit (%s%%) - $%s",
			e.config.MonthlyRate.Mul(hundred).String(), profit.StringFixed(2))
	}
	return fmt.Sprintf("Daily investment profit (%s%% per day) - $%s",
		e.config.DailyRate.Mul(hundred).Round(3).String(), profit.StringFixed(2))
}

func profitSource(period PeriodType) string {
	if period == PeriodMonthly {
		return models.SourceMonthlyProfit
	}
	return models.SourceDailyProfit
}

// baseFilter selects the rows whose sum is the profit base. Daily profit
// accrues on every completed deposit credit; monthly profit only on
// investment deposits that carry an unlock date.
func baseFilter(period PeriodType, userID uint) repositories.TransactionFilter {
	f := qualifyingFilter(period)
	f.UserID = userID
	return f
}

func qualifyingFilter(period PeriodType) repositories.TransactionFilter {
	f := repositories.TransactionFilter{
		Direction: models.DirectionCredit,
		Statuses:  []string{models.StatusCompleted},
	}
	if period == PeriodMonthly {
		f.Sources = []string{models.SourceInvestmentDeposit}
		f.HasUnlockDate = true
	} else {
		f.SourceSuffixes = []string{models.DepositSourceSuffix}
	}
	return f
}
