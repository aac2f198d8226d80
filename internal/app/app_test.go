package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"yieldtree/internal/config"
	"yieldtree/internal/repositories/memstore"
	"yieldtree/internal/routes"
	"yieldtree/internal/services/notification"
	"yieldtree/internal/services/otp"
	"yieldtree/internal/services/user"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type harness struct {
	app      *fiber.App
	services *Services
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{Secret: "test-secret", AccessTTL: time.Hour, Issuer: "yieldtree-api"},
		OTP: config.OTPConfig{TTL: 10 * time.Minute, SendTimeout: time.Second},
		Distribution: config.DistributionConfig{
			Timezone:    "UTC",
			Workers:     2,
			DailyRate:   decimal.NewFromFloat(0.10).Div(decimal.NewFromInt(30)),
			MonthlyRate: decimal.NewFromFloat(0.10),
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := func() time.Time { return testNow }

	services, err := NewServices(testConfig(), Deps{
		Store:      memstore.New().WithClock(clock),
		OTPStore:   otp.NewMemoryStore(clock),
		Notifier:   notification.NewService(nil),
		Now:        clock,
		BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)

	server := fiber.New()
	routes.SetupRoutes(server, services.Handlers(true, nil, nil))
	return &harness{app: server, services: services}
}

func (h *harness) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

// adminAndMember creates a root admin and registers one member under it
// through the API, returning both tokens.
func (h *harness) adminAndMember(t *testing.T) (adminToken, memberToken string) {
	t.Helper()
	admin, err := h.services.Users.CreateRoot(context.Background(), user.RootRequest{
		FullName: "Admin", Email: "admin@example.com", Password: "admin-pass",
	})
	require.NoError(t, err)

	status, body := h.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email": "admin@example.com", "password": "admin-pass",
	})
	require.Equal(t, http.StatusOK, status, body)
	adminToken = body["token"].(string)

	status, body = h.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"full_name":             "Member One",
		"email":                 "member@example.com",
		"password":              "member-pass",
		"sponsor_referral_code": admin.ReferralCode,
		"position":              "LEFT",
	})
	require.Equal(t, http.StatusCreated, status, body)
	memberToken = body["token"].(string)
	return adminToken, memberToken
}

func TestDepositApprovalFlow(t *testing.T) {
	h := newHarness(t)
	adminToken, memberToken := h.adminAndMember(t)

	status, body := h.do(t, http.MethodPost, "/api/deposits/otp", memberToken, map[string]interface{}{
		"amount": 500, "chain": "trc20",
	})
	require.Equal(t, http.StatusOK, status, body)
	code, ok := body["otp"].(string)
	require.True(t, ok, "otp is echoed outside production")

	status, body = h.do(t, http.MethodPost, "/api/deposits/confirm", memberToken, map[string]interface{}{
		"amount": "500", "chain": "TRC20", "otp": code, "transaction_id": "0xfeed",
	})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = h.do(t, http.MethodGet, "/api/admin/deposits/pending", adminToken, nil)
	require.Equal(t, http.StatusOK, status, body)
	pending := body["deposits"].([]interface{})
	require.Len(t, pending, 1)
	id := uint(pending[0].(map[string]interface{})["id"].(float64))

	status, body = h.do(t, http.MethodPost, fmt.Sprintf("/api/admin/deposits/%d/approve", id), adminToken, nil)
	require.Equal(t, http.StatusOK, status, body)
	inv := body["investment"].(map[string]interface{})
	assert.Equal(t, "Crypto Deposit (TRC20)", inv["package_name"])
	assert.Equal(t, "0.12", inv["monthly_profit_rate"])

	status, body = h.do(t, http.MethodGet, "/api/wallet", memberToken, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "500", body["balance"])
	assert.Equal(t, "0", body["available_for_withdraw"])

	status, body = h.do(t, http.MethodGet, "/api/investments", memberToken, nil)
	require.Equal(t, http.StatusOK, status, body)
	require.Len(t, body["investments"].([]interface{}), 1)

	status, body = h.do(t, http.MethodPost, fmt.Sprintf("/api/admin/deposits/%d/approve", id), adminToken, nil)
	assert.Equal(t, http.StatusConflict, status, body)

	status, body = h.do(t, http.MethodGet, "/api/investments/history", memberToken, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Len(t, body["investments"].([]interface{}), 1)

	status, body = h.do(t, http.MethodGet, "/api/admin/transactions/history?type=deposits", adminToken, nil)
	require.Equal(t, http.StatusOK, status, body)
	settled := body["transactions"].([]interface{})
	require.Len(t, settled, 1)
	entry := settled[0].(map[string]interface{})
	assert.Equal(t, "COMPLETED", entry["status"])
	assert.Equal(t, "member@example.com", entry["user"].(map[string]interface{})["email"])
	assert.Equal(t, float64(1), body["pagination"].(map[string]interface{})["total"])

	status, body = h.do(t, http.MethodGet, "/api/admin/transactions/history?type=withdrawals", adminToken, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Empty(t, body["transactions"])

	status, _ = h.do(t, http.MethodGet, "/api/admin/transactions/history", memberToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestAccessControl(t *testing.T) {
	h := newHarness(t)
	_, memberToken := h.adminAndMember(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", http.MethodGet, "/api/wallet", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/api/wallet", "not-a-jwt", http.StatusUnauthorized},
		{"member on admin route", http.MethodGet, "/api/admin/deposits/pending", memberToken, http.StatusForbidden},
		{"member wallet", http.MethodGet, "/api/wallet", memberToken, http.StatusOK},
		{"public sponsor lookup miss", http.MethodGet, "/api/sponsor/NOPE1234", "", http.StatusNotFound},
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := h.do(t, tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.want, status, body)
		})
	}
}

func TestOTPRateLimit(t *testing.T) {
	h := newHarness(t)
	_, memberToken := h.adminAndMember(t)

	req := map[string]interface{}{"amount": 100, "chain": "BEP20"}
	for i := 0; i < routes.OTPLimit; i++ {
		status, body := h.do(t, http.MethodPost, "/api/deposits/otp", memberToken, req)
		require.Equal(t, http.StatusOK, status, body)
	}
	status, _ := h.do(t, http.MethodPost, "/api/deposits/otp", memberToken, req)
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestValidationErrorsAreReported(t *testing.T) {
	h := newHarness(t)
	adminToken, memberToken := h.adminAndMember(t)

	status, body := h.do(t, http.MethodPost, "/api/deposits/otp", memberToken, map[string]interface{}{
		"amount": 95, "chain": "TRC20",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["code"])

	status, body = h.do(t, http.MethodPost, "/api/admin/distributions/weekly", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_PERIOD", body["code"])

	status, _ = h.do(t, http.MethodPost, "/api/admin/distributions/daily", adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
}
