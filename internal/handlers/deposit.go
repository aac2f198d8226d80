package handlers

import (
	"yieldtree/internal/repositories"
	"yieldtree/internal/services/deposit"
	"yieldtree/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type DepositHandler struct {
	depositService deposit.Service
	exposeOTP      bool
	log            *zap.Logger
}

func NewDepositHandler(depositService deposit.Service, exposeOTP bool, log *zap.Logger) *DepositHandler {
	return &DepositHandler{
		depositService: depositService,
		exposeOTP:      exposeOTP,
		log:            log,
	}
}

type depositInput struct {
	Amount        decimal.NullDecimal `json:"amount"`
	Chain         string              `json:"chain"`
	OTP           string              `json:"otp"`
	TransactionID string              `json:"transaction_id"`
	Screenshot    string              `json:"screenshot"`
}

// RequestOTP sends the confirmation code for a deposit of amount via chain.
func (h *DepositHandler) RequestOTP(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	var input depositInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}
	amount, err := amountField(input.Amount)
	if err != nil {
		return respondError(c, h.log, err)
	}

	issued, err := h.depositService.RequestOTP(c.UserContext(), claims.UserID, deposit.OTPRequest{
		Amount: amount,
		Chain:  input.Chain,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Success(c, otpBody(issued, h.exposeOTP))
}

// Confirm records the deposit as PENDING once the OTP checks out.
func (h *DepositHandler) Confirm(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	var input depositInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}
	amount, err := amountField(input.Amount)
	if err != nil {
		return respondError(c, h.log, err)
	}

	txn, err := h.depositService.Confirm(c.UserContext(), claims.UserID, deposit.ConfirmRequest{
		Amount:     amount,
		Chain:      input.Chain,
		OTP:        input.OTP,
		TxHash:     input.TransactionID,
		Screenshot: input.Screenshot,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Created(c, fiber.Map{
		"message":     "Deposit submitted and awaiting approval",
		"transaction": txn,
	})
}

func (h *DepositHandler) ListPending(c *fiber.Ctx) error {
	p := utils.GetPagination(c, 1, 50)
	txns, err := h.depositService.ListPending(c.UserContext(), repositories.Page{Limit: p.Limit, Offset: p.Offset})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Success(c, fiber.Map{"deposits": txns, "pagination": p})
}

func (h *DepositHandler) Approve(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	result, err := h.depositService.Approve(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Success(c, result)
}

func (h *DepositHandler) Reject(c *fiber.Ctx) error {
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
	txn, err := h.depositService.Reject(c.UserContext(), id, input.Reason)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Success(c, fiber.Map{"transaction": txn})
}
