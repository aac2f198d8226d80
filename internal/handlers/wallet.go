package handlers

import (
	"yieldtree/internal/services/ledger"
	"yieldtree/internal/services/withdrawal"
	"yieldtree/internal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type WalletHandler struct {
	ledgerService     ledger.Service
	withdrawalService withdrawal.Service
	log               *zap.Logger
}

func NewWalletHandler(ledgerService ledger.Service, withdrawalService withdrawal.Service, log *zap.Logger) *WalletHandler {
	return &WalletHandler{
		ledgerService:     ledgerService,
		withdrawalService: withdrawalService,
		log:               log,
	}
}

// GetWallet returns the balance and the part of it withdrawable as income.
func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	balance, err := h.ledgerService.Balance(c.UserContext(), claims.UserID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	available, err := h.withdrawalService.Available(c.UserContext(), claims.UserID)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return utils.Success(c, fiber.Map{
		"user_id":                claims.UserID,
		"balance":                balance,
		"available_for_withdraw": available,
	})
}
