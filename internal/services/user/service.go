// Package user registers members into the sponsor tree.
package user

import (
	"context"
	"errors"
	"strings"

	apperrors "yieldtree/internal/errors"
	"yieldtree/internal/models"
	"yieldtree/internal/repositories"
	"yieldtree/internal/services/ledger"
	"yieldtree/internal/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	referralCodeLength   = 8
	referralCodeAttempts = 5
)

var (
	ErrEmailTaken      = apperrors.Conflict("EMAIL_TAKEN", "email already registered")
	ErrSponsorNotFound = apperrors.NotFound("SPONSOR_NOT_FOUND", "invalid sponsor referral code")
	ErrReferralCode    = apperrors.Conflict("REFERRAL_CODE_EXHAUSTED", "could not allocate a unique referral code")
)

type RegisterRequest struct {
	FullName    string
	Email       string
	Password    string
	SponsorCode string
	Position    string
}

// RootRequest creates a user with no sponsor, the top of a tree.
type RootRequest struct {
	FullName string
	Email    string
	Password string
	Role     string
}

// Sponsor is the public view of a referral code owner.
type Sponsor struct {
	FullName     string `json:"full_name"`
	ReferralCode string `json:"referral_code"`
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*models.User, error)
	CreateRoot(ctx context.Context, req RootRequest) (*models.User, error)
	SponsorByCode(ctx context.Context, code string) (*Sponsor, error)
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

type service struct {
	ledger ledger.Service
	store  repositories.Store
	cost   int
	log    *zap.Logger
}

// NewService wires the registration service. A bcryptCost of 0 uses
// bcrypt.DefaultCost.
func NewService(ledgerService ledger.Service, store repositories.Store, bcryptCost int, log *zap.Logger) Service {
	if ledgerService == nil {
		panic("ledger service is required")
	}
	if store == nil {
		panic("store is required")
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &service{ledger: ledgerService, store: store, cost: bcryptCost, log: log}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(v *validation.Validator, fullName, email, password string) {
	v.Required("full_name", fullName)
	v.MinLength("full_name", strings.TrimSpace(fullName), validation.MinNameLength)
	v.MaxLength("full_name", fullName, validation.MaxNameLength)
	v.Email("email", email)
	v.MinLength("password", password, validation.MinPasswordLength)
	v.MaxLength("password", password, validation.MaxPasswordLength)
}

// Register creates a user under the owner of req.SponsorCode, with an empty
// wallet, in one transaction.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	email := normalizeEmail(req.Email)
	code := strings.TrimSpace(req.SponsorCode)
	position := strings.ToUpper(strings.TrimSpace(req.Position))

	v := validation.New()
	validateCredentials(v, req.FullName, email, req.Password)
	v.MinLength("sponsor_referral_code", code, validation.MinReferralCodeLength)
	v.OneOf("position", position, models.PositionLeft, models.PositionRight)
	if err := v.Err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, apperrors.New(apperrors.KindPersistence, "PASSWORD_HASH_FAILED", "failed to hash password").Wrap(err)
	}

	var created *models.User
	err = s.ledger.Atomic(ctx, func(unit *ledger.Unit) error {
		sponsor, err := unit.Store().GetUserByReferralCode(ctx, code)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrSponsorNotFound
			}
			return err
		}
		sponsorID := sponsor.ID

		created, err = s.insert(ctx, unit, &models.User{
			FullName:  strings.TrimSpace(req.FullName),
			Email:     email,
			Password:  string(hash),
			Role:      models.RoleUser,
			SponsorID: &sponsorID,
			Position:  position,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered",
		zap.Uint("user_id", created.ID),
		zap.Uint("sponsor_id", *created.SponsorID),
		zap.String("position", created.Position))
	return created, nil
}

// CreateRoot inserts a sponsor-less user. Used to bootstrap the tree.
func (s *service) CreateRoot(ctx context.Context, req RootRequest) (*models.User, error) {
	email := normalizeEmail(req.Email)
	role := req.Role
	if role == "" {
		role = models.RoleAdmin
	}

	v := validation.New()
	validateCredentials(v, req.FullName, email, req.Password)
	v.OneOf("role", role, models.RoleUser, models.RoleAdmin)
	if err := v.Err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, apperrors.New(apperrors.KindPersistence, "PASSWORD_HASH_FAILED", "failed to hash password").Wrap(err)
	}

	var created *models.User
	err = s.ledger.Atomic(ctx, func(unit *ledger.Unit) error {
		created, err = s.insert(ctx, unit, &models.User{
			FullName: strings.TrimSpace(req.FullName),
			Email:    email,
			Password: string(hash),
			Role:     role,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("root user created", zap.Uint("user_id", created.ID), zap.String("role", created.Role))
	return created, nil
}

// insert allocates a referral code, creates the row and its wallet.
func (s *service) insert(ctx context.Context, unit *ledger.Unit, u *models.User) (*models.User, error) {
	store := unit.Store()
	if _, err := store.GetUserByEmail(ctx, u.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	code, err := s.allocateCode(ctx, store)
	if err != nil {
		return nil, err
	}
	u.ReferralCode = code
	u.Status = "active"
	u.TokenVersion = 1

	if err := store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	if _, err := unit.EnsureWallet(ctx, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) allocateCode(ctx context.Context, store repositories.Store) (string, error) {
	for i := 0; i < referralCodeAttempts; i++ {
		code := NewReferralCode()
		_, err := store.GetUserByReferralCode(ctx, code)
		if errors.Is(err, repositories.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
		s.log.Debug("referral code collision", zap.String("code", code))
	}
	return "", ErrReferralCode
}

// NewReferralCode returns an upper-case code taken from a random UUID.
func NewReferralCode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(id[:referralCodeLength])
}

// SponsorByCode resolves the public sponsor card shown on the sign-up page.
func (s *service) SponsorByCode(ctx context.Context, code string) (*Sponsor, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.Validation("MISSING_CODE", "missing code")
	}
	u, err := s.store.GetUserByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("SPONSOR_NOT_FOUND", "sponsor not found")
		}
		return nil, apperrors.Persistence("USER_READ_FAILED", err)
	}
	return &Sponsor{FullName: u.FullName, ReferralCode: u.ReferralCode}, nil
}

func (s *service) GetByID(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Persistence("USER_READ_FAILED", err)
	}
	return u, nil
}
