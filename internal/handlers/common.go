// Package handlers adapts the service layer to fiber routes.
package handlers

import (
	"strconv"

	apperrors "yieldtree/internal/errors"
	"yieldtree/internal/models"
	"yieldtree/internal/services/otp"
	"yieldtree/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// respondError writes err as JSON. DomainErrors keep their message and map
// their kind onto a status; anything else is logged and hidden behind a 500.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	if de, ok := apperrors.As(err); ok && de.Kind != apperrors.KindPersistence {
		return utils.Error(c, apperrors.HTTPStatus(de.Kind), de.Code, de.Message)
	}
	log.Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))
	return utils.InternalError(c, "internal server error")
}

// currentUser returns the claims stored by the auth middleware.
func currentUser(c *fiber.Ctx) (*models.UserClaims, error) {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return nil, apperrors.ErrInvalidToken.Wrap(err)
	}
	return claims, nil
}

// paramID reads a positive integer route parameter.
func paramID(c *fiber.Ctx, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, apperrors.Validation("INVALID_ID", "invalid "+name)
	}
	return uint(v), nil
}

// parseBody decodes the JSON body into dst.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return apperrors.Validation("INVALID_BODY", "invalid request body")
	}
	return nil
}

// amountField accepts JSON numbers and numeric strings.
func amountField(v decimal.NullDecimal) (decimal.Decimal, error) {
	if !v.Valid {
		return decimal.Zero, apperrors.ErrInvalidAmount.WithMessage("amount is required")
	}
	return v.Decimal, nil
}

// otpBody describes an issued OTP. The code itself is only included when
// expose is set, which the router does outside production.
func otpBody(issued *otp.Issued, expose bool) fiber.Map {
	body := fiber.Map{
		"message":    "OTP sent to your registered email",
		"expires_at": issued.ExpiresAt,
		"delivered":  issued.Delivered,
	}
	if expose {
		body["otp"] = issued.Code
	}
	return body
}
