package handlers

import (
	"yieldtree/internal/services/investment"
	"yieldtree/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type InvestmentHandler struct {
	investmentService investment.Service
	log               *zap.Logger
}

func NewInvestmentHandler(investmentService investment.Service, log *zap.Logger) *InvestmentHandler {
	return &InvestmentHandler{investmentService: investmentService, log: log}
}

func (h *InvestmentHandler) Open(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	var input struct {
		Amount      decimal.NullDecimal `json:"amount"`
		PackageName string              `json:"package_name"`
	}
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}
	amount, err := amountField(input.Amount)
	if err != nil {
		return respondError(c, h.log, err)
	}

	result, err := h.investmentService.Open(c.UserContext(), investment.OpenRequest{
		UserID:      claims.UserID,
		Amount:      amount,
		PackageName: input.PackageName,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Created(c, result)
}

func (h *InvestmentHandler) List(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	views, err := h.investmentService.List(c.UserContext(), claims.UserID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Success(c, fiber.Map{"investments": views})
}

func (h *InvestmentHandler) History(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	views, err := h.investmentService.History(c.UserContext(), claims.UserID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Success(c, fiber.Map{"investments": views})
}
