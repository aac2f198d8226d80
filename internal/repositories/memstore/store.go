// Package memstore is an in-process repositories.Store. Transactions run on a
// snapshot of the data that replaces the live copy only when fn succeeds, and
// are serialized with each other, which stands in for row locks.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"yieldtree/internal/models"
	"yieldtree/internal/repositories"

	"github.com/shopspring/decimal"
)

type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *dataset
	now  func() time.Time
}

var _ repositories.Store = (*Store)(nil)

func New() *Store {
	return &Store{data: newDataset(), now: time.Now}
}

// WithClock sets the clock used for CreatedAt/UpdatedAt columns.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) ExecuteInTransaction(ctx context.Context, fn func(repositories.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(&txStore{data: snapshot, now: s.now}); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = snapshot
	s.mu.Unlock()
	return nil
}

func (s *Store) read(fn func(d *dataset)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

func (s *Store) write(fn func(d *dataset) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.write(func(d *dataset) error { return d.createUser(user, s.now()) })
}

func (s *Store) GetUserByID(ctx context.Context, id uint) (u *models.User, err error) {
	s.read(func(d *dataset) { u, err = d.userByID(id) })
	return
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (u *models.User, err error) {
	s.read(func(d *dataset) { u, err = d.userWhere(func(x *models.User) bool { return x.Email == email }) })
	return
}

func (s *Store) GetUserByReferralCode(ctx context.Context, code string) (u *models.User, err error) {
	s.read(func(d *dataset) { u, err = d.userWhere(func(x *models.User) bool { return x.ReferralCode == code }) })
	return
}

func (s *Store) LockUser(ctx context.Context, id uint) (*models.User, error) {
	return s.GetUserByID(ctx, id)
}

func (s *Store) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	return s.write(func(d *dataset) error { return d.createWallet(wallet, s.now()) })
}

func (s *Store) GetWallet(ctx context.Context, userID uint) (w *models.Wallet, err error) {
	s.read(func(d *dataset) { w, err = d.wallet(userID) })
	return
}

func (s *Store) AdjustBalance(ctx context.Context, userID uint, delta decimal.Decimal) (w *models.Wallet, err error) {
	err = s.write(func(d *dataset) error {
		w, err = d.adjust(userID, delta, s.now())
		return err
	})
	return
}

func (s *Store) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return s.write(func(d *dataset) error { return d.createTransaction(txn, s.now()) })
}

func (s *Store) GetTransaction(ctx context.Context, id uint) (t *models.Transaction, err error) {
	s.read(func(d *dataset) { t, err = d.transaction(id) })
	return
}

func (s *Store) GetTransactionForUpdate(ctx context.Context, id uint) (*models.Transaction, error) {
	return s.GetTransaction(ctx, id)
}

func (s *Store) UpdateTransaction(ctx context.Context, txn *models.Transaction) error {
	return s.write(func(d *dataset) error { return d.updateTransaction(txn, s.now()) })
}

func (s *Store) SumTransactions(ctx context.Context, f repositories.TransactionFilter) (sum decimal.Decimal, err error) {
	s.read(func(d *dataset) { sum = d.sum(f) })
	return
}

func (s *Store) CountTransactions(ctx context.Context, f repositories.TransactionFilter) (n int64, err error) {
	s.read(func(d *dataset) { n = int64(len(d.find(f, repositories.Page{}))) })
	return
}

func (s *Store) FindTransactions(ctx context.Context, f repositories.TransactionFilter, p repositories.Page) (out []models.Transaction, err error) {
	s.read(func(d *dataset) { out = d.find(f, p) })
	return
}

func (s *Store) DistinctTransactionUsers(ctx context.Context, f repositories.TransactionFilter) (ids []uint, err error) {
	s.read(func(d *dataset) { ids = d.distinctUsers(f) })
	return
}

func (s *Store) CreateInvestment(ctx context.Context, inv *models.Investment) error {
	return s.write(func(d *dataset) error { return d.createInvestment(inv, s.now()) })
}

func (s *Store) GetInvestmentForUpdate(ctx context.Context, id uint) (i *models.Investment, err error) {
	s.read(func(d *dataset) { i, err = d.investment(id) })
	return
}

func (s *Store) UpdateInvestment(ctx context.Context, inv *models.Investment) error {
	return s.write(func(d *dataset) error { return d.updateInvestment(inv, s.now()) })
}

func (s *Store) ListInvestments(ctx context.Context, userID uint, statuses ...string) (out []models.Investment, err error) {
	s.read(func(d *dataset) { out = d.listInvestments(userID, statuses) })
	return
}

// Transactions returns every ledger row for userID, oldest first.
func (s *Store) Transactions(userID uint) []models.Transaction {
	var out []models.Transaction
	s.read(func(d *dataset) {
		out = d.find(repositories.TransactionFilter{UserID: userID}, repositories.Page{})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// txStore is the Store handed to ExecuteInTransaction callbacks.
type txStore struct {
	data *dataset
	now  func() time.Time
}

func (t *txStore) ExecuteInTransaction(ctx context.Context, fn func(repositories.Store) error) error {
	return fn(t)
}

func (t *txStore) CreateUser(ctx context.Context, user *models.User) error {
	return t.data.createUser(user, t.now())
}

func (t *txStore) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return t.data.userByID(id)
}

func (t *txStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return t.data.userWhere(func(x *models.User) bool { return x.Email == email })
}

func (t *txStore) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	return t.data.userWhere(func(x *models.User) bool { return x.ReferralCode == code })
}

func (t *txStore) LockUser(ctx context.Context, id uint) (*models.User, error) {
	return t.data.userByID(id)
}

func (t *txStore) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	return t.data.createWallet(wallet, t.now())
}

func (t *txStore) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	return t.data.wallet(userID)
}

func (t *txStore) AdjustBalance(ctx context.Context, userID uint, delta decimal.Decimal) (*models.Wallet, error) {
	return t.data.adjust(userID, delta, t.now())
}

func (t *txStore) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return t.data.createTransaction(txn, t.now())
}

func (t *txStore) GetTransaction(ctx context.Context, id uint) (*models.Transaction, error) {
	return t.data.transaction(id)
}

func (t *txStore) GetTransactionForUpdate(ctx context.Context, id uint) (*models.Transaction, error) {
	return t.data.transaction(id)
}

func (t *txStore) UpdateTransaction(ctx context.Context, txn *models.Transaction) error {
	return t.data.updateTransaction(txn, t.now())
}

func (t *txStore) SumTransactions(ctx context.Context, f repositories.TransactionFilter) (decimal.Decimal, error) {
	return t.data.sum(f), nil
}

func (t *txStore) CountTransactions(ctx context.Context, f repositories.TransactionFilter) (int64, error) {
	return int64(len(t.data.find(f, repositories.Page{}))), nil
}

func (t *txStore) FindTransactions(ctx context.Context, f repositories.TransactionFilter, p repositories.Page) ([]models.Transaction, error) {
	return t.data.find(f, p), nil
}

func (t *txStore) DistinctTransactionUsers(ctx context.Context, f repositories.TransactionFilter) ([]uint, error) {
	return t.data.distinctUsers(f), nil
}

func (t *txStore) CreateInvestment(ctx context.Context, inv *models.Investment) error {
	return t.data.createInvestment(inv, t.now())
}

func (t *txStore) GetInvestmentForUpdate(ctx context.Context, id uint) (*models.Investment, error) {
	return t.data.investment(id)
}

func (t *txStore) UpdateInvestment(ctx context.Context, inv *models.Investment) error {
	return t.data.updateInvestment(inv, t.now())
}

func (t *txStore) ListInvestments(ctx context.Context, userID uint, statuses ...string) ([]models.Investment, error) {
	return t.data.listInvestments(userID, statuses), nil
}
