// Package routes defines the API routing configuration.
package routes

import (
	"time"

	"yieldtree/internal/handlers"
	"yieldtree/internal/middleware"
	"yieldtree/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups everything SetupRoutes mounts.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Deposit    *handlers.DepositHandler
	Withdrawal *handlers.WithdrawalHandler
	Investment *handlers.InvestmentHandler
	Wallet     *handlers.WalletHandler
	Admin      *handlers.AdminHandler
	Health     *handlers.HealthHandler
	AuthMW     *middleware.AuthMiddleware
}

// OTPLimit is how many OTP requests one user may make per minute.
const OTPLimit = 5

func otpLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          OTPLimit,
		Expiration:   1 * time.Minute,
		KeyGenerator: middleware.RateLimitKey,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many OTP requests. Please try again later.",
			})
		},
	})
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, h Handlers) {
	app.Get("/health", h.Health.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Public endpoints (no auth required)
	api.Post("/register", h.Auth.Register)
	api.Post("/login", h.Auth.Login)
	api.Get("/sponsor/:code", h.Auth.Sponsor)

	protected := api.Group("", h.AuthMW.Handler)
	protected.Get("/me", h.Auth.Me)
	protected.Get("/wallet", middleware.HasPermission(models.PermissionWalletRead), h.Wallet.GetWallet)

	deposits := protected.Group("/deposits", middleware.HasPermission(models.PermissionDepositWrite))
	deposits.Post("/otp", otpLimiter(), h.Deposit.RequestOTP)
	deposits.Post("/confirm", h.Deposit.Confirm)

	withdrawals := protected.Group("/withdrawals")
	withdrawals.Get("/history", h.Withdrawal.History)
	withdrawals.Get("/stats", h.Withdrawal.Stats)
	withdrawals.Get("/investments", h.Withdrawal.Investments)
	withdrawalWrite := middleware.HasPermission(models.PermissionWithdrawalWrite)
	withdrawals.Post("/otp/income", withdrawalWrite, otpLimiter(), h.Withdrawal.RequestIncomeOTP)
	withdrawals.Post("/otp/investment", withdrawalWrite, otpLimiter(), h.Withdrawal.RequestInvestmentOTP)
	withdrawals.Post("/income", withdrawalWrite, h.Withdrawal.ConfirmIncome)
	withdrawals.Post("/investment", withdrawalWrite, h.Withdrawal.ConfirmInvestment)

	investments := protected.Group("/investments")
	investments.Get("/", h.Investment.List)
	investments.Get("/history", h.Investment.History)
	investments.Post("/", middleware.HasPermission(models.PermissionInvestmentWrite), h.Investment.Open)

	setupAdminRoutes(protected, h)
}

func setupAdminRoutes(protected fiber.Router, h Handlers) {
	admin := protected.Group("/admin", middleware.AdminOnly)

	admin.Get("/deposits/pending", h.Deposit.ListPending)
	admin.Post("/deposits/:id/approve", h.Deposit.Approve)
	admin.Post("/deposits/:id/reject", h.Deposit.Reject)

	admin.Get("/withdrawals/pending", h.Withdrawal.ListPending)
	admin.Post("/withdrawals/:id/approve", h.Withdrawal.Approve)
	admin.Post("/withdrawals/:id/reject", h.Withdrawal.Reject)

	admin.Get("/transactions/history", h.Admin.TransactionHistory)

	admin.Post("/distributions/:period", h.Admin.RunDistribution)
	admin.Post("/distributions/:period/:userId", h.Admin.DistributeUser)

	admin.Get("/wallets/:userId/reconcile", h.Admin.Reconcile)
}
