// Package repositories provides data access layer implementations.
// It handles all database operations and data persistence logic.
package repositories

import (
	"context"
	"errors"

	"yieldtree/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Page bounds a list query. A zero Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}

// Store is the persistence boundary for users, wallets, the transaction
// ledger and investments. Implementations returned by ExecuteInTransaction
// are scoped to a single database transaction.
type Store interface {
	ExecuteInTransaction(ctx context.Context, fn func(Store) error) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	// LockUser reads the user row FOR UPDATE. Outside a transaction it is a plain read.
	LockUser(ctx context.Context, id uint) (*models.User, error)

	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	GetWallet(ctx context.Context, userID uint) (*models.Wallet, error)
	AdjustBalance(ctx context.Context, userID uint, delta decimal.Decimal) (*models.Wallet, error)

	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	GetTransaction(ctx context.Context, id uint) (*models.Transaction, error)
	GetTransactionForUpdate(ctx context.Context, id uint) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, txn *models.Transaction) error
	SumTransactions(ctx context.Context, filter TransactionFilter) (decimal.Decimal, error)
	CountTransactions(ctx context.Context, filter TransactionFilter) (int64, error)
	FindTransactions(ctx context.Context, filter TransactionFilter, page Page) ([]models.Transaction, error)
	DistinctTransactionUsers(ctx context.Context, filter TransactionFilter) ([]uint, error)

	CreateInvestment(ctx context.Context, inv *models.Investment) error
	GetInvestmentForUpdate(ctx context.Context, id uint) (*models.Investment, error)
	UpdateInvestment(ctx context.Context, inv *models.Investment) error
	ListInvestments(ctx context.Context, userID uint, statuses ...string) ([]models.Investment, error)
}
