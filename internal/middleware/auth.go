// Package middleware provides the fiber middleware that authenticates
// requests and gates routes by role and permission.
package middleware

import (
	"strconv"
	"strings"

	apperrors "yieldtree/internal/errors"
	"yieldtree/internal/models"
	"yieldtree/internal/services/auth"
	"yieldtree/internal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthMiddleware handles JWT token validation and user authentication.
type AuthMiddleware struct {
	authService auth.Service
	log         *zap.Logger
}

func NewAuthMiddleware(authService auth.Service, log *zap.Logger) *AuthMiddleware {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthMiddleware{
		authService: authService,
		log:         log,
	}
}

func deny(c *fiber.Ctx, err *apperrors.DomainError) error {
	return utils.Error(c, apperrors.HTTPStatus(err.Kind), err.Code, err.Message)
}

// Handler validates the bearer token and stores its claims in the request
// context under "claims" and "userID".
func (m *AuthMiddleware) Handler(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return deny(c, apperrors.ErrInvalidToken.WithMessage("missing authorization header"))
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return deny(c, apperrors.ErrInvalidToken.WithMessage("invalid authorization format"))
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

	claims, err := m.authService.ParseToken(c.UserContext(), tokenString)
	if err != nil {
		de, ok := apperrors.As(err)
		if !ok || de.Kind == apperrors.KindPersistence {
			m.log.Error("token check failed", zap.Error(err))
			return utils.InternalError(c, "internal server error")
		}
		m.log.Debug("token rejected", zap.String("code", de.Code), zap.Error(err))
		return deny(c, de)
	}

	c.Locals("claims", claims)
	c.Locals("userID", claims.UserID)
	return c.Next()
}

// AdminOnly lets requests through when the claims carry the admin role.
func AdminOnly(c *fiber.Ctx) error {
	claims, ok := c.Locals("claims").(*models.UserClaims)
	if !ok {
		return deny(c, apperrors.ErrInvalidToken)
	}
	if claims.Role != models.RoleAdmin {
		return deny(c, apperrors.ErrForbidden)
	}
	return c.Next()
}

// HasPermission returns a middleware that checks for a specific permission.
func HasPermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals("claims").(*models.UserClaims)
		if !ok {
			return deny(c, apperrors.ErrInvalidToken)
		}

		// If user is admin, allow all permissions
		if claims.Role == models.RoleAdmin || claims.HasPermission(permission) {
			return c.Next()
		}
		return deny(c, apperrors.ErrForbidden)
	}
}

// RateLimitKey keys limiter buckets by authenticated user, falling back to IP.
func RateLimitKey(c *fiber.Ctx) string {
	if id, ok := c.Locals("userID").(uint); ok {
		return "user:" + strconv.FormatUint(uint64(id), 10)
	}
	return "ip:" + c.IP()
}
