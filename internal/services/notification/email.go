package notification

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"yieldtree/internal/config"
	"yieldtree/internal/services/otp"
)

// EmailService delivers OTPs over SMTP.
type EmailService struct {
	config config.SMTPConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailService(cfg config.SMTPConfig) *EmailService {
	return &EmailService{config: cfg, send: smtp.SendMail}
}

// SendEmail sends an HTML message.
func (s *EmailService) SendEmail(to, subject, body string) error {
	if !s.config.Enabled() {
		return fmt.Errorf("SMTP not configured")
	}

	var auth smtp.Auth
	if s.config.User != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	}

	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=utf-8\r\n"+
		"\r\n"+
		"%s\r\n", s.config.From, to, subject, body))

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	return s.send(addr, auth, s.config.From, []string{to}, msg)
}

// SendOTP implements otp.Notifier. net/smtp has no context support, so the
// caller's deadline is only checked before dialing.
func (s *EmailService) SendOTP(ctx context.Context, msg otp.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("recipient address is empty")
	}
	return s.SendEmail(msg.To, subjectFor(msg.Purpose), otpBody(msg))
}

func subjectFor(p otp.Purpose) string {
	switch p {
	case otp.PurposeDeposit:
		return "Deposit verification code"
	case otp.PurposeIncomeWithdrawal:
		return "Income withdrawal verification code"
	case otp.PurposeInvestmentWithdrawal:
		return "Investment withdrawal verification code"
	default:
		return "Verification code"
	}
}

func otpBody(msg otp.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(subjectFor(msg.Purpose)))
	fmt.Fprintf(&b, "<p>Hello <strong>%s</strong>,</p>", html.EscapeString(msg.Name))
	fmt.Fprintf(&b, "<p>Your code is <strong style=\"font-size:24px\">%s</strong>.</p>", msg.Code)
	if len(msg.Params) > 0 {
		b.WriteString(`<table border="1" cellpadding="5" style="border-collapse: collapse;">`)
		for _, key := range []string{"amount", "chain", "address", "investment_id"} {
			if v, ok := msg.Params[key]; ok {
				fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td></tr>", key, html.EscapeString(v))
			}
		}
		b.WriteString("</table>")
	}
	fmt.Fprintf(&b, "<p>It expires in %d minutes. If you did not request it, change your password.</p>",
		int(msg.ExpiresIn.Minutes()))
	return b.String()
}
