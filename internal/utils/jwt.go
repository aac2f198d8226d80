package utils

import (
	"errors"
	"strconv"
	"time"

	"yieldtree/internal/config"
	"yieldtree/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var ErrJWTSecretMissing = errors.New("JWT_SECRET not configured")

// GenerateToken signs an HS256 access token for claims. IssuedAt is taken
// from now so callers with a fixed clock get reproducible tokens.
func GenerateToken(cfg config.JWTConfig, claims *models.UserClaims, now time.Time) (string, time.Time, error) {
	if cfg.Secret == "" {
		return "", time.Time{}, ErrJWTSecretMissing
	}

	expiresAt := now.Add(cfg.AccessTTL)
	accessClaims := models.UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    cfg.Issuer,
			Subject:   strconv.FormatUint(uint64(claims.UserID), 10),
		},
		UserID:       claims.UserID,
		Email:        claims.Email,
		Role:         claims.Role,
		Permissions:  claims.Permissions,
		TokenVersion: claims.TokenVersion,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ParseToken parses and validates a JWT token string.
func ParseToken(cfg config.JWTConfig, tokenStr string, opts ...jwt.ParserOption) (*models.UserClaims, error) {
	if cfg.Secret == "" {
		return nil, ErrJWTSecretMissing
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &models.UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*models.UserClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
