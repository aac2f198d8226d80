package handlers

import (
	"yieldtree/internal/repositories"
	"yieldtree/internal/services/investment"
	"yieldtree/internal/services/withdrawal"
	"yieldtree/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WithdrawalHandler struct {
	withdrawalService withdrawal.Service
	investmentService investment.Service
	exposeOTP         bool
	log               *zap.Logger
}

func NewWithdrawalHandler(
	withdrawalService withdrawal.Service,
	investmentService investment.Service,
	exposeOTP bool,
	log *zap.Logger,
) *WithdrawalHandler {
	return &WithdrawalHandler{
		withdrawalService: withdrawalService,
		investmentService: investmentService,
		exposeOTP:         exposeOTP,
		log:               log,
	}
}

type incomeInput struct {
	Amount  decimal.NullDecimal `json:"amount"`
	Chain   string              `json:"chain"`
	Address string              `json:"address"`
	OTP     string              `json:"otp"`
}

type investmentInput struct {
	InvestmentID uint   `json:"investment_id"`
	Chain        string `json:"chain"`
	Address      string `json:"address"`
	OTP          string `json:"otp"`
}

func (h *WithdrawalHandler) RequestIncomeOTP(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	var input incomeInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}
	amount, err := amountField(input.Amount)
	if err != nil {
		return respondError(c, h.log, err)
	}

	issued, err := h.withdrawalService.RequestIncomeOTP(c.UserContext(), claims.UserID, withdrawal.IncomeOTPRequest{
		Amount:  amount,
		Chain:   input.Chain,
		Address: input.Address,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Success(c, otpBody(issued, h.exposeOTP))
}

func (h *WithdrawalHandler) RequestInvestmentOTP(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	var input investmentInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	issued, err := h.withdrawalService.RequestInvestmentOTP(c.UserContext(), claims.UserID, withdrawal.InvestmentOTPRequest{
		InvestmentID: input.InvestmentID,
		Chain:        input.Chain,
		Address:      input.Address,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Success(c, otpBody(issued, h.exposeOTP))
}

// ConfirmIncome reserves the amount and queues the withdrawal for review.
func (h *WithdrawalHandler) ConfirmIncome(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	var input incomeInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}
	amount, err := amountField(input.Amount)
	if err != nil {
		return respondError(c, h.log, err)
	}

	txn, err := h.withdrawalService.ConfirmIncome(c.UserContext(), claims.UserID, withdrawal.IncomeRequest{
		Amount:  amount,
		Chain:   input.Chain,
		Address: input.Address,
		OTP:     input.OTP,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Created(c, fiber.Map{
		"message":     "Withdrawal request submitted",
		"transaction": txn,
	})
}

func (h *WithdrawalHandler) ConfirmInvestment(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	var input investmentInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	result, err := h.withdrawalService.ConfirmInvestment(c.UserContext(), claims.UserID, withdrawal.InvestmentRequest{
		InvestmentID: input.InvestmentID,
		Chain:        input.Chain,
		Address:      input.Address,
		OTP:          input.OTP,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Created(c, result)
}

func (h *WithdrawalHandler) History(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	p := utils.GetPagination(c, 1, 50)

	history, err := h.withdrawalService.History(c.UserContext(), claims.UserID, withdrawal.HistoryQuery{
		Type:   c.Query("type"),
		Status: c.Query("status"),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Success(c, history)
}

func (h *WithdrawalHandler) Stats(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	stats, err := h.withdrawalService.Stats(c.UserContext(), claims.UserID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Success(c, stats)
}

// Investments lists the caller's investments with their lock status.
func (h *WithdrawalHandler) Investments(c *fiber.Ctx) error {
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

func (h *WithdrawalHandler) ListPending(c *fiber.Ctx) error {
	p := utils.GetPagination(c, 1, 50)
	txns, err := h.withdrawalService.ListPending(c.UserContext(), repositories.Page{Limit: p.Limit, Offset: p.Offset})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Success(c, fiber.Map{"withdrawals": txns, "pagination": p})
}

func (h *WithdrawalHandler) Approve(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	txn, err := h.withdrawalService.Approve(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Success(c, fiber.Map{"transaction": txn})
}

func (h *WithdrawalHandler) Reject(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var input struct {
		Reason string `json:"reason"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &input); err != nil {
			return respondError(c, h.log, err)
		}
	}
	txn, err := h.withdrawalService.Reject(c.UserContext(), id, input.Reason)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Success(c, fiber.Map{"transaction": txn})
}
