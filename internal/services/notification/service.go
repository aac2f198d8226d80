package notification

import (
	"context"
	"strings"

	"yieldtree/internal/services/otp"

	"go.uber.org/zap"
)

// Service logs notifications instead of sending them. It is used when SMTP
// is not configured and as the fallback channel in development.
type Service struct {
	log *zap.Logger
}

// NewService creates a new notification service.
func NewService(log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{log: log}
}

// SendOTP logs the code with the recipient masked.
func (s *Service) SendOTP(ctx context.Context, msg otp.Message) error {
	s.log.Info("otp notification (log channel)",
		zap.String("to", maskEmail(msg.To)),
		zap.String("purpose", string(msg.Purpose)),
		zap.String("code", msg.Code),
		zap.Duration("expires_in", msg.ExpiresIn))
	return nil
}

func maskEmail(addr string) string {
	at := strings.IndexByte(addr, '@')
	if at <= 1 {
		return addr
	}
	return addr[:1] + strings.Repeat("*", at-1) + addr[at:]
}
