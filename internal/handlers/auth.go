package handlers

import (
	"yieldtree/internal/models"
	"yieldtree/internal/services/auth"
	"yieldtree/internal/services/user"
	"yieldtree/internal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService auth.Service
	userService user.Service
	log         *zap.Logger
}

func NewAuthHandler(authService auth.Service, userService user.Service, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		log:         log,
	}
}

func userBody(u *models.User) fiber.Map {
	return fiber.Map{
		"id":            u.ID,
		"full_name":     u.FullName,
		"email":         u.Email,
		"role":          u.Role,
		"referral_code": u.ReferralCode,
		"permissions":   models.GetDefaultPermissions(u.Role),
	}
}

// Register creates an account under a sponsor and signs the user in.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var input struct {
		FullName            string `json:"full_name"`
		Email               string `json:"email"`
		Password            string `json:"password"`
		SponsorReferralCode string `json:"sponsor_referral_code"`
		Position            string `json:"position"`
	}
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	u, err := h.userService.Register(c.UserContext(), user.RegisterRequest{
		FullName:    input.FullName,
		Email:       input.Email,
		Password:    input.Password,
		SponsorCode: input.SponsorReferralCode,
		Position:    input.Position,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	session, err := h.authService.IssueToken(u)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return utils.Created(c, fiber.Map{
		"token":         session.Token,
		"expires_at":    session.ExpiresAt,
		"referral_code": u.ReferralCode,
		"user":          userBody(u),
	})
}

// Login handles user authentication and returns a JWT
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	session, err := h.authService.Login(c.UserContext(), input.Email, input.Password)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return utils.Success(c, fiber.Map{
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
		"user":       userBody(session.User),
	})
}

// Sponsor shows who owns a referral code before sign-up.
func (h *AuthHandler) Sponsor(c *fiber.Ctx) error {
	sponsor, err := h.userService.SponsorByCode(c.UserContext(), c.Params("code"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Success(c, sponsor)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	u, err := h.userService.GetByID(c.UserContext(), claims.UserID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return utils.Success(c, userBody(u))
}
