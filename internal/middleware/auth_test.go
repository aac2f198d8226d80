package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"yieldtree/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withClaims(claims *models.UserClaims) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if claims != nil {
			c.Locals("claims", claims)
		}
		return c.Next()
	}
}

func TestRoleGuards(t *testing.T) {
	member := &models.UserClaims{UserID: 2, Role: models.RoleUser, Permissions: []string{models.PermissionWalletRead}}
	admin := &models.UserClaims{UserID: 1, Role: models.RoleAdmin}

	tests := []struct {
		name       string
		claims     *models.UserClaims
		guard      fiber.Handler
		wantStatus int
		wantCode   string
	}{
		{"admin passes admin guard", admin, AdminOnly, fiber.StatusOK, ""},
		{"member blocked by admin guard", member, AdminOnly, fiber.StatusForbidden, "FORBIDDEN"},
		{"missing claims", nil, AdminOnly, fiber.StatusUnauthorized, "INVALID_TOKEN"},
		{"granted permission", member, HasPermission(models.PermissionWalletRead), fiber.StatusOK, ""},
		{"missing permission", member, HasPermission(models.PermissionDepositWrite), fiber.StatusForbidden, "FORBIDDEN"},
		{"admin holds every permission", admin, HasPermission(models.PermissionDepositWrite), fiber.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", withClaims(tt.claims), tt.guard, func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantCode != "" {
				var body map[string]interface{}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.wantCode, body["code"])
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}
