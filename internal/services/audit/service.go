// Package audit lists settled deposits and withdrawals for administrators.
package audit

import (
	"context"
	"errors"
	"strings"

	apperrors "yieldtree/internal/errors"
	"yieldtree/internal/models"
	"yieldtree/internal/repositories"

	"go.uber.org/zap"
)

const (
	TypeAll         = "all"
	TypeDeposits    = "deposits"
	TypeWithdrawals = "withdrawals"

	DefaultLimit = 50
)

var ErrInvalidType = apperrors.Validation("INVALID_HISTORY_TYPE", "type must be deposits, withdrawals or all")

var withdrawalSources = []string{
	models.SourceWithdrawal,
	models.SourceIncomeWithdrawal,
	models.SourceInvestmentWithdrawal,
}

type Query struct {
	Type   string
	Limit  int
	Offset int
}

type UserSummary struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type WithdrawalDetails struct {
	Blockchain      string `json:"blockchain"`
	Address         string `json:"address"`
	FullDescription string `json:"full_description"`
}

// Entry is a settled ledger row with its owner and, for withdrawals, the
// payout destination.
type Entry struct {
	models.Transaction
	User              *UserSummary       `json:"user,omitempty"`
	WithdrawalDetails *WithdrawalDetails `json:"withdrawal_details,omitempty"`
}

type History struct {
	Transactions []Entry `json:"transactions"`
	Total        int64   `json:"total"`
	Limit        int     `json:"limit"`
	Offset       int     `json:"offset"`
	HasMore      bool    `json:"has_more"`
}

type Service interface {
	History(ctx context.Context, q Query) (*History, error)
}

type service struct {
	store repositories.Store
	log   *zap.Logger
}

func NewService(store repositories.Store, log *zap.Logger) Service {
	if store == nil {
		panic("store is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &service{store: store, log: log}
}

// filterFor selects COMPLETED and REJECTED rows of the requested type.
// Deposit sources are only ever written as credits and withdrawal sources as
// debits, so "all" needs no direction.
func filterFor(kind string) (repositories.TransactionFilter, error) {
	filter := repositories.TransactionFilter{
		Statuses: []string{models.StatusCompleted, models.StatusRejected},
	}
	switch strings.ToLower(kind) {
	case "", TypeAll:
		filter.SourceContains = []string{models.DepositSourceSuffix}
		filter.Sources = withdrawalSources
	case TypeDeposits:
		filter.Direction = models.DirectionCredit
		filter.SourceContains = []string{models.DepositSourceSuffix}
	case TypeWithdrawals:
		filter.Direction = models.DirectionDebit
		filter.Sources = withdrawalSources
	default:
		return filter, ErrInvalidType
	}
	return filter, nil
}

func isWithdrawal(txn *models.Transaction) bool {
	if txn.Direction != models.DirectionDebit {
		return false
	}
	for _, src := range withdrawalSources {
		if txn.IncomeSource == src {
			return true
		}
	}
	return false
}

// History returns one page of settled deposits and withdrawals, newest first.
func (s *service) History(ctx context.Context, q Query) (*History, error) {
	filter, err := filterFor(q.Type)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	txns, err := s.store.FindTransactions(ctx, filter, repositories.Page{Limit: limit, Offset: offset})
	if err != nil {
		return nil, apperrors.Persistence("TRANSACTION_HISTORY_FAILED", err)
	}
	total, err := s.store.CountTransactions(ctx, filter)
	if err != nil {
		return nil, apperrors.Persistence("TRANSACTION_HISTORY_FAILED", err)
	}

	users := map[uint]*UserSummary{}
	entries := make([]Entry, 0, len(txns))
	for _, txn := range txns {
		owner, ok := users[txn.UserID]
		if !ok {
			owner, err = s.summary(ctx, txn.UserID)
			if err != nil {
				return nil, err
			}
			users[txn.UserID] = owner
		}

		entry := Entry{Transaction: txn, User: owner}
		if isWithdrawal(&txn) {
			chain := txn.MetadataString("blockchain")
			if chain == "" {
				chain = "Unknown"
			}
			entry.WithdrawalDetails = &WithdrawalDetails{
				Blockchain:      chain,
				Address:         txn.MetadataString("address"),
				FullDescription: txn.Description,
			}
		}
		entries = append(entries, entry)
	}

	return &History{
		Transactions: entries,
		Total:        total,
		Limit:        limit,
		Offset:       offset,
		HasMore:      int64(offset+len(txns)) < total,
	}, nil
}

func (s *service) summary(ctx context.Context, userID uint) (*UserSummary, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.log.Warn("ledger row without user", zap.Uint("user_id", userID))
			return nil, nil
		}
		return nil, apperrors.Persistence("TRANSACTION_HISTORY_FAILED", err)
	}
	return &UserSummary{FullName: u.FullName, Email: u.Email}, nil
}
