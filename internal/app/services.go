// Package app wires the service graph shared by the server and its HTTP tests.
package app

import (
	"fmt"
	"time"

	"yieldtree/internal/config"
	"yieldtree/internal/handlers"
	"yieldtree/internal/middleware"
	"yieldtree/internal/monitoring"
	"yieldtree/internal/repositories"
	"yieldtree/internal/routes"
	"yieldtree/internal/services/audit"
	"yieldtree/internal/services/auth"
	"yieldtree/internal/services/deposit"
	"yieldtree/internal/services/distribution"
	"yieldtree/internal/services/investment"
	"yieldtree/internal/services/ledger"
	"yieldtree/internal/services/otp"
	"yieldtree/internal/services/referral"
	"yieldtree/internal/services/sponsor"
	"yieldtree/internal/services/user"
	"yieldtree/internal/services/withdrawal"

	"go.uber.org/zap"
)

// Deps are the infrastructure pieces the services are built on.
type Deps struct {
	Store    repositories.Store
	Cache    ledger.WalletCache
	OTPStore otp.Store
	Notifier otp.Notifier
	Metrics  *monitoring.Collector
	Now      func() time.Time
	Log      *zap.Logger
	// BcryptCost of 0 uses bcrypt.DefaultCost.
	BcryptCost int
}

type Services struct {
	Ledger       ledger.Service
	OTP          *otp.Service
	Cascader     *referral.Cascader
	Users        user.Service
	Auth         auth.Service
	Investments  investment.Service
	Deposits     deposit.Service
	Withdrawals  withdrawal.Service
	Distribution distribution.Engine
	Audit        audit.Service
}

// NewServices builds every service from cfg and deps.
func NewServices(cfg *config.Config, deps Deps) (*Services, error) {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	var (
		ledgerMetrics ledger.MetricsCollector
		distMetrics   distribution.MetricsCollector
	)
	if deps.Metrics != nil {
		ledgerMetrics, distMetrics = deps.Metrics, deps.Metrics
	}

	loc, err := time.LoadLocation(cfg.Distribution.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid distribution timezone %q: %w", cfg.Distribution.Timezone, err)
	}

	ledgerSvc := ledger.NewService(deps.Store, deps.Cache, ledger.Config{Now: now}, log.Named("ledger"), ledgerMetrics)
	otpSvc := otp.NewService(deps.OTPStore, deps.Notifier, otp.Config{
		TTL:         cfg.OTP.TTL,
		SendTimeout: cfg.OTP.SendTimeout,
		Now:         now,
	}, log.Named("otp"))
	cascader := referral.NewCascader(sponsor.NewResolver(log.Named("sponsor")), log.Named("referral"))

	return &Services{
		Ledger:      ledgerSvc,
		OTP:         otpSvc,
		Cascader:    cascader,
		Users:       user.NewService(ledgerSvc, deps.Store, deps.BcryptCost, log.Named("user")),
		Auth:        auth.NewService(deps.Store, cfg.JWT, now, log.Named("auth")),
		Investments: investment.NewService(ledgerSvc, deps.Store, cascader, now, log.Named("investment")),
		Deposits:    deposit.NewService(ledgerSvc, deps.Store, otpSvc, cascader, log.Named("deposit")),
		Withdrawals: withdrawal.NewService(ledgerSvc, deps.Store, otpSvc, now, log.Named("withdrawal")),
		Distribution: distribution.NewEngine(ledgerSvc, deps.Store, cascader, distribution.Config{
			DailyRate:   cfg.Distribution.DailyRate,
			MonthlyRate: cfg.Distribution.MonthlyRate,
			Workers:     cfg.Distribution.Workers,
			Location:    loc,
			Now:         now,
		}, log.Named("distribution"), distMetrics),
		Audit: audit.NewService(deps.Store, log.Named("audit")),
	}, nil
}

// Handlers builds the HTTP handlers over s. The OTP code is echoed in
// responses when exposeOTP is set.
func (s *Services) Handlers(exposeOTP bool, checks map[string]handlers.Pinger, log *zap.Logger) routes.Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return routes.Handlers{
		Auth:       handlers.NewAuthHandler(s.Auth, s.Users, log),
		Deposit:    handlers.NewDepositHandler(s.Deposits, exposeOTP, log),
		Withdrawal: handlers.NewWithdrawalHandler(s.Withdrawals, s.Investments, exposeOTP, log),
		Investment: handlers.NewInvestmentHandler(s.Investments, log),
		Wallet:     handlers.NewWalletHandler(s.Ledger, s.Withdrawals, log),
		Admin:      handlers.NewAdminHandler(s.Distribution, s.Ledger, s.Audit, log),
		Health:     handlers.NewHealthHandler(Version, checks),
		AuthMW:     middleware.NewAuthMiddleware(s.Auth, log),
	}
}

// Version is reported by the health endpoint.
const Version = "1.0.0"
