package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"yieldtree/internal/config"
	apperrors "yieldtree/internal/errors"
	"yieldtree/internal/models"
	"yieldtree/internal/repositories"
	"yieldtree/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type Service interface {
	Login(ctx context.Context, email, password string) (*Session, error)
	// IssueToken signs a token for an already authenticated user, e.g. right
	// after registration.
	IssueToken(user *models.User) (*Session, error)
	// ParseToken validates signature, issuer, expiry and the user's current
	// token version.
	ParseToken(ctx context.Context, token string) (*models.UserClaims, error)
}

type service struct {
	store  repositories.Store
	config config.JWTConfig
	now    func() time.Time
	log    *zap.Logger
}

func NewService(store repositories.Store, cfg config.JWTConfig, now func() time.Time, log *zap.Logger) Service {
	if store == nil {
		panic("store is required")
	}
	if cfg.Secret == "" {
		panic("jwt secret is required")
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &service{store: store, config: cfg, now: now, log: log}
}

func (s *service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.Validation("INVALID_REQUEST", "email and password are required")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.log.Info("login failed: unknown email")
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.Persistence("USER_READ_FAILED", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		s.log.Info("login failed: incorrect password", zap.Uint("user_id", user.ID))
		return nil, apperrors.ErrInvalidCredentials
	}

	return s.IssueToken(user)
}

func (s *service) IssueToken(user *models.User) (*Session, error) {
	token, expiresAt, err := utils.GenerateToken(s.config, &models.UserClaims{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
		Permissions:  models.GetDefaultPermissions(user.Role),
	}, s.now())
	if err != nil {
		s.log.Error("error generating token", zap.Error(err))
		return nil, apperrors.New(apperrors.KindPersistence, "TOKEN_SIGN_FAILED", "error generating token").Wrap(err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *service) ParseToken(ctx context.Context, token string) (*models.UserClaims, error) {
	claims, err := utils.ParseToken(s.config, token, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, apperrors.ErrInvalidToken.Wrap(err)
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, apperrors.Persistence("USER_READ_FAILED", err)
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, apperrors.ErrSessionExpired
	}
	return claims, nil
}
