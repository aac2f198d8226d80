package otp

import (
	"context"
	"time"
)

// Purpose scopes an OTP to one kind of operation.
type Purpose string

const (
	PurposeDeposit              Purpose = "deposit"
	PurposeIncomeWithdrawal     Purpose = "income_withdrawal"
	PurposeInvestmentWithdrawal Purpose = "investment_withdrawal"
)

// Params are the request fields an OTP is bound to, in canonical string form.
type Params map[string]string

// Record is what the store keeps for an issued OTP.
type Record struct {
	UserID    uint      `json:"user_id"`
	Purpose   Purpose   `json:"purpose"`
	Code      string    `json:"code"`
	Params    Params    `json:"params"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store keeps OTP records with a time-to-live. Load returns nil, nil when
// the key is absent.
//
// Take deletes the record in the same step that compares its code, so two
// callers holding the same code cannot both get taken == true. A record
// whose code differs is returned with taken == false and left in place.
// Restore writes rec back only when no record exists under key.
type Store interface {
	Save(ctx context.Context, key string, rec *Record, ttl time.Duration) error
	Load(ctx context.Context, key string) (*Record, error)
	Delete(ctx context.Context, key string) error
	Take(ctx context.Context, key, code string) (rec *Record, taken bool, err error)
	Restore(ctx context.Context, key string, rec *Record, ttl time.Duration) error
}

// Message is handed to the notifier.
type Message struct {
	To        string
	Name      string
	Code      string
	Purpose   Purpose
	ExpiresIn time.Duration
	Params    Params
}

// Notifier delivers a code to the user, e.g. by email.
type Notifier interface {
	SendOTP(ctx context.Context, msg Message) error
}

type IssueRequest struct {
	UserID  uint
	Email   string
	Name    string
	Purpose Purpose
	Params  Params
}

// Issued reports the outcome of Issue. Delivered is false when the notifier
// failed or timed out; the code is still valid.
type Issued struct {
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Delivered bool      `json:"delivered"`
}

type Config struct {
	TTL         time.Duration
	SendTimeout time.Duration
	Now         func() time.Time
}
