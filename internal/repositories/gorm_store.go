package repositories

import (
	"context"
	"errors"
	"fmt"

	"yieldtree/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormStore struct {
	db   *gorm.DB
	inTx bool
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) ExecuteInTransaction(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx, inTx: true})
	})
}

func (s *gormStore) forUpdate(ctx context.Context) *gorm.DB {
	db := s.db.WithContext(ctx)
	if s.inTx {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func translate(err error, what string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return fmt.Errorf("failed to %s: %w", what, err)
	}
}

func (s *gormStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return translate(err, "create user")
	}
	return nil
}

func (s *gormStore) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err, "get user")
	}
	return &user, nil
}

func (s *gormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err, "get user by email")
	}
	return &user, nil
}

func (s *gormStore) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("referral_code = ?", code).First(&user).Error; err != nil {
		return nil, translate(err, "get user by referral code")
	}
	return &user, nil
}

func (s *gormStore) LockUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.forUpdate(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err, "lock user")
	}
	return &user, nil
}

// CreateWallet reports ErrDuplicate without aborting the surrounding
// transaction when the user already has a wallet.
func (s *gormStore) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(wallet)
	if result.Error != nil {
		return translate(result.Error, "create wallet")
	}
	if result.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *gormStore) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, translate(err, "get wallet")
	}
	return &wallet, nil
}

func (s *gormStore) AdjustBalance(ctx context.Context, userID uint, delta decimal.Decimal) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.forUpdate(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, translate(err, "lock wallet")
	}
	wallet.Balance = wallet.Balance.Add(delta).Round(2)
	if err := s.db.WithContext(ctx).Model(&wallet).Update("balance", wallet.Balance).Error; err != nil {
		return nil, translate(err, "update wallet balance")
	}
	return &wallet, nil
}

func (s *gormStore) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if err := s.db.WithContext(ctx).Create(txn).Error; err != nil {
		return translate(err, "create transaction")
	}
	return nil
}

func (s *gormStore) GetTransaction(ctx context.Context, id uint) (*models.Transaction, error) {
	var txn models.Transaction
	if err := s.db.WithContext(ctx).First(&txn, id).Error; err != nil {
		return nil, translate(err, "get transaction")
	}
	return &txn, nil
}

func (s *gormStore) GetTransactionForUpdate(ctx context.Context, id uint) (*models.Transaction, error) {
	var txn models.Transaction
	if err := s.forUpdate(ctx).First(&txn, id).Error; err != nil {
		return nil, translate(err, "lock transaction")
	}
	return &txn, nil
}

func (s *gormStore) UpdateTransaction(ctx context.Context, txn *models.Transaction) error {
	err := s.db.WithContext(ctx).Model(txn).Select("status", "description", "unlock_date", "updated_at").
		Updates(txn).Error
	if err != nil {
		return translate(err, "update transaction")
	}
	return nil
}

func (s *gormStore) SumTransactions(ctx context.Context, filter TransactionFilter) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	q := filter.Apply(s.db.WithContext(ctx).Model(&models.Transaction{}))
	if err := q.Select("COALESCE(SUM(amount), 0) AS total").Scan(&result).Error; err != nil {
		return decimal.Zero, translate(err, "sum transactions")
	}
	return result.Total, nil
}

func (s *gormStore) CountTransactions(ctx context.Context, filter TransactionFilter) (int64, error) {
	var count int64
	if err := filter.Apply(s.db.WithContext(ctx).Model(&models.Transaction{})).Count(&count).Error; err != nil {
		return 0, translate(err, "count transactions")
	}
	return count, nil
}

func (s *gormStore) FindTransactions(ctx context.Context, filter TransactionFilter, page Page) ([]models.Transaction, error) {
	var txns []models.Transaction
	q := filter.Apply(s.db.WithContext(ctx)).Order("timestamp DESC, id DESC")
	if page.Limit > 0 {
		q = q.Limit(page.Limit).Offset(page.Offset)
	}
	if err := q.Find(&txns).Error; err != nil {
		return nil, translate(err, "find transactions")
	}
	return txns, nil
}

func (s *gormStore) DistinctTransactionUsers(ctx context.Context, filter TransactionFilter) ([]uint, error) {
	var ids []uint
	q := filter.Apply(s.db.WithContext(ctx).Model(&models.Transaction{}))
	if err := q.Distinct("user_id").Order("user_id").Pluck("user_id", &ids).Error; err != nil {
		return nil, translate(err, "list transaction users")
	}
	return ids, nil
}

func (s *gormStore) CreateInvestment(ctx context.Context, inv *models.Investment) error {
	if err := s.db.WithContext(ctx).Create(inv).Error; err != nil {
		return translate(err, "create investment")
	}
	return nil
}

func (s *gormStore) GetInvestmentForUpdate(ctx context.Context, id uint) (*models.Investment, error) {
	var inv models.Investment
	if err := s.forUpdate(ctx).First(&inv, id).Error; err != nil {
		return nil, translate(err, "lock investment")
	}
	return &inv, nil
}

func (s *gormStore) UpdateInvestment(ctx context.Context, inv *models.Investment) error {
	if err := s.db.WithContext(ctx).Model(inv).Select("status", "updated_at").Updates(inv).Error; err != nil {
		return translate(err, "update investment")
	}
	return nil
}

func (s *gormStore) ListInvestments(ctx context.Context, userID uint, statuses ...string) ([]models.Investment, error) {
	var invs []models.Investment
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if err := q.Order("start_date DESC").Find(&invs).Error; err != nil {
		return nil, translate(err, "list investments")
	}
	return invs, nil
}
