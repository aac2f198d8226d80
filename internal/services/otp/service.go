// Package otp issues and verifies one-time codes bound to the parameters of
// the request they authorise.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"time"

	apperrors "yieldtree/internal/errors"

	"go.uber.org/zap"
)

const (
	DefaultTTL         = 10 * time.Minute
	DefaultSendTimeout = 10 * time.Second

	codeLength = 6
	// records outlive their expiry briefly so a late attempt gets a precise error
	expiryGrace = time.Minute
)

type Service struct {
	store    Store
	notifier Notifier
	config   Config
	log      *zap.Logger
}

func NewService(store Store, notifier Notifier, config Config, log *zap.Logger) *Service {
	if store == nil {
		panic("otp store is required")
	}
	if notifier == nil {
		panic("notifier is required")
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = DefaultSendTimeout
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, notifier: notifier, config: config, log: log}
}

// Key is the store key for a user's OTP of the given purpose.
func Key(userID uint, purpose Purpose) string {
	return fmt.Sprintf("otp:%s:%d", purpose, userID)
}

// Issue stores a fresh code for the user and purpose, replacing any earlier
// one, then tries to deliver it within the send timeout.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	code, err := generateCode(codeLength)
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}

	expiresAt := s.config.Now().Add(s.config.TTL)
	rec := &Record{
		UserID:    req.UserID,
		Purpose:   req.Purpose,
		Code:      code,
		Params:    req.Params,
		ExpiresAt: expiresAt,
	}
	if err := s.store.Save(ctx, Key(req.UserID, req.Purpose), rec, s.config.TTL+expiryGrace); err != nil {
		return nil, apperrors.Persistence("OTP_SAVE_FAILED", err)
	}

	delivered := s.deliver(ctx, Message{
		To:        req.Email,
		Name:      req.Name,
		Code:      code,
		Purpose:   req.Purpose,
		ExpiresIn: s.config.TTL,
		Params:    req.Params,
	})

	return &Issued{Code: code, ExpiresAt: expiresAt, Delivered: delivered}, nil
}

func (s *Service) deliver(ctx context.Context, msg Message) bool {
	sendCtx, cancel := context.WithTimeout(ctx, s.config.SendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.notifier.SendOTP(sendCtx, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.log.Warn("otp delivery failed, continuing without notification",
				zap.String("purpose", string(msg.Purpose)),
				zap.Error(apperrors.External("OTP_DELIVERY_FAILED", err)))
			return false
		}
		return true
	case <-sendCtx.Done():
		s.log.Warn("otp delivery timed out, continuing without notification",
			zap.String("purpose", string(msg.Purpose)),
			zap.Duration("timeout", s.config.SendTimeout))
		return false
	}
}

// Redeem takes the user's OTP for purpose if code matches, so at most one
// caller can redeem a given code. The record is returned so it can be handed
// back to Restore when the guarded write fails.
func (s *Service) Redeem(ctx context.Context, userID uint, purpose Purpose, code string, params Params) (*Record, error) {
	key := Key(userID, purpose)
	rec, taken, err := s.store.Take(ctx, key, code)
	if err != nil {
		return nil, apperrors.Persistence("OTP_LOAD_FAILED", err)
	}
	if rec == nil {
		return nil, apperrors.ErrOtpExpired.WithMessage("OTP not found or expired, please request a new one")
	}
	if !taken {
		return nil, apperrors.ErrOtpMismatch
	}

	if !s.config.Now().Before(rec.ExpiresAt) {
		return nil, apperrors.ErrOtpExpired
	}

	if field, ok := mismatch(rec.Params, params); ok {
		s.Restore(ctx, rec)
		return nil, apperrors.ErrOtpDataMismatch.WithMessage(
			"OTP data does not match the current request (%s differs)", field)
	}
	return rec, nil
}

// Restore puts a redeemed record back for the rest of its lifetime unless a
// newer code has been issued in the meantime.
func (s *Service) Restore(ctx context.Context, rec *Record) {
	if rec == nil {
		return
	}
	remaining := rec.ExpiresAt.Sub(s.config.Now())
	if remaining <= 0 {
		return
	}
	key := Key(rec.UserID, rec.Purpose)
	if err := s.store.Restore(ctx, key, rec, remaining+expiryGrace); err != nil {
		s.log.Warn("failed to restore otp", zap.String("key", key), zap.Error(err))
	}
}

// mismatch returns the first field, in key order, whose values differ.
func mismatch(stored, given Params) (string, bool) {
	keys := make(map[string]struct{}, len(stored)+len(given))
	for k := range stored {
		keys[k] = struct{}{}
	}
	for k := range given {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, k := range sorted {
		sv, sok := stored[k]
		gv, gok := given[k]
		if sok != gok || sv != gv {
			return k, true
		}
	}
	return "", false
}

func generateCode(n int) (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < n; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	v, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, v.Int64()), nil
}
