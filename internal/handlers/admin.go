package handlers

import (
	apperrors "yieldtree/internal/errors"
	"yieldtree/internal/services/audit"
	"yieldtree/internal/services/distribution"
	"yieldtree/internal/services/ledger"
	"yieldtree/internal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AdminHandler struct {
	engine        distribution.Engine
	ledgerService ledger.Service
	auditService  audit.Service
	log           *zap.Logger
}

func NewAdminHandler(engine distribution.Engine, ledgerService ledger.Service, auditService audit.Service, log *zap.Logger) *AdminHandler {
	return &AdminHandler{engine: engine, ledgerService: ledgerService, auditService: auditService, log: log}
}

func parsePeriod(c *fiber.Ctx) (distribution.PeriodType, error) {
	period, err := distribution.ParsePeriod(c.Params("period"))
	if err != nil {
		return "", apperrors.Validation("INVALID_PERIOD", err.Error())
	}
	return period, nil
}

// RunDistribution runs a whole batch for the :period route parameter.
func (h *AdminHandler) RunDistribution(c *fiber.Ctx) error {
	period, err := parsePeriod(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	claims, _ := currentUser(c)
	fields := []zap.Field{zap.String("period", string(period))}
	if claims != nil {
		fields = append(fields, zap.Uint("admin_id", claims.UserID))
	}
	h.log.Info("manual distribution triggered", fields...)

	result, err := h.engine.ProcessDistribution(c.UserContext(), period)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Success(c, result)
}

// DistributeUser runs one period for one user.
func (h *AdminHandler) DistributeUser(c *fiber.Ctx) error {
	period, err := parsePeriod(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	userID, err := paramID(c, "userId")
	if err != nil {
		return respondError(c, h.log, err)
	}

	result, err := h.engine.Distribute(c.UserContext(), period, userID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Success(c, result)
}

// Reconcile compares the stored wallet balance against the ledger.
func (h *AdminHandler) Reconcile(c *fiber.Ctx) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return respondError(c, h.log, err)
	}
	rec, err := h.ledgerService.Reconcile(c.UserContext(), userID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Success(c, rec)
}

// TransactionHistory lists settled deposits and withdrawals. ?type narrows it
// to deposits or withdrawals.
func (h *AdminHandler) TransactionHistory(c *fiber.Ctx) error {
	p := utils.GetPagination(c, 1, audit.DefaultLimit)
	history, err := h.auditService.History(c.UserContext(), audit.Query{
		Type:   c.Query("type"),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Success(c, fiber.Map{
		"transactions": history.Transactions,
		"pagination": fiber.Map{
			"total":    history.Total,
			"limit":    history.Limit,
			"offset":   history.Offset,
			"has_more": history.HasMore,
		},
	})
}
