package memstore

import (
	"sort"
	"time"

	"yieldtree/internal/models"
	"yieldtree/internal/repositories"

	"github.com/shopspring/decimal"
)

type dataset struct {
	users        map[uint]models.User
	wallets      map[uint]models.Wallet // by user id
	transactions map[uint]models.Transaction
	investments  map[uint]models.Investment
	nextID       uint
}

func newDataset() *dataset {
	return &dataset{
		users:        map[uint]models.User{},
		wallets:      map[uint]models.Wallet{},
		transactions: map[uint]models.Transaction{},
		investments:  map[uint]models.Investment{},
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	c.nextID = d.nextID
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.wallets {
		c.wallets[k] = v
	}
	for k, v := range d.transactions {
		v.Metadata = v.Metadata.Clone()
		c.transactions[k] = v
	}
	for k, v := range d.investments {
		c.investments[k] = v
	}
	return c
}

func (d *dataset) id() uint {
	d.nextID++
	return d.nextID
}

func (d *dataset) createUser(u *models.User, now time.Time) error {
	for _, existing := range d.users {
		if existing.Email == u.Email || existing.ReferralCode == u.ReferralCode {
			return repositories.ErrDuplicate
		}
	}
	if u.ID == 0 {
		u.ID = d.id()
	} else if _, taken := d.users[u.ID]; taken {
		return repositories.ErrDuplicate
	} else if u.ID > d.nextID {
		d.nextID = u.ID
	}
	u.CreatedAt, u.UpdatedAt = now, now
	d.users[u.ID] = *u
	return nil
}

func (d *dataset) userByID(id uint) (*models.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (d *dataset) userWhere(match func(*models.User) bool) (*models.User, error) {
	for _, u := range d.users {
		u := u
		if match(&u) {
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (d *dataset) createWallet(w *models.Wallet, now time.Time) error {
	if _, ok := d.wallets[w.UserID]; ok {
		return repositories.ErrDuplicate
	}
	w.ID = d.id()
	w.Balance = w.Balance.Round(2)
	w.CreatedAt, w.UpdatedAt = now, now
	d.wallets[w.UserID] = *w
	return nil
}

func (d *dataset) wallet(userID uint) (*models.Wallet, error) {
	w, ok := d.wallets[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &w, nil
}

func (d *dataset) adjust(userID uint, delta decimal.Decimal, now time.Time) (*models.Wallet, error) {
	w, ok := d.wallets[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	w.Balance = w.Balance.Add(delta).Round(2)
	w.UpdatedAt = now
	d.wallets[userID] = w
	return &w, nil
}

func (d *dataset) createTransaction(t *models.Transaction, now time.Time) error {
	for _, existing := range d.transactions {
		if existing.Reference == t.Reference {
			return repositories.ErrDuplicate
		}
	}
	t.ID = d.id()
	if t.Timestamp.IsZero() {
		t.Timestamp = now
	}
	t.UpdatedAt = now
	stored := *t
	stored.Metadata = t.Metadata.Clone()
	d.transactions[t.ID] = stored
	return nil
}

func (d *dataset) transaction(id uint) (*models.Transaction, error) {
	t, ok := d.transactions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	t.Metadata = t.Metadata.Clone()
	return &t, nil
}

func (d *dataset) updateTransaction(t *models.Transaction, now time.Time) error {
	stored, ok := d.transactions[t.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	stored.Status = t.Status
	stored.Description = t.Description
	stored.UnlockDate = t.UnlockDate
	stored.UpdatedAt = now
	t.UpdatedAt = now
	d.transactions[t.ID] = stored
	return nil
}

func (d *dataset) matching(f repositories.TransactionFilter) []models.Transaction {
	var out []models.Transaction
	for _, t := range d.transactions {
		t := t
		if f.Matches(&t) {
			t.Metadata = t.Metadata.Clone()
			out = append(out, t)
		}
	}
	return out
}

func (d *dataset) sum(f repositories.TransactionFilter) decimal.Decimal {
	total := decimal.Zero
	for _, t := range d.matching(f) {
		total = total.Add(t.Amount)
	}
	return total
}

func (d *dataset) find(f repositories.TransactionFilter, p repositories.Page) []models.Transaction {
	out := d.matching(f)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	if p.Offset > 0 {
		if p.Offset >= len(out) {
			return nil
		}
		out = out[p.Offset:]
	}
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out
}

func (d *dataset) distinctUsers(f repositories.TransactionFilter) []uint {
	seen := map[uint]bool{}
	var ids []uint
	for _, t := range d.matching(f) {
		if !seen[t.UserID] {
			seen[t.UserID] = true
			ids = append(ids, t.UserID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (d *dataset) createInvestment(inv *models.Investment, now time.Time) error {
	if inv.DepositTransactionID != nil {
		for _, existing := range d.investments {
			if existing.DepositTransactionID != nil && *existing.DepositTransactionID == *inv.DepositTransactionID {
				return repositories.ErrDuplicate
			}
		}
	}
	inv.ID = d.id()
	inv.CreatedAt, inv.UpdatedAt = now, now
	d.investments[inv.ID] = *inv
	return nil
}

func (d *dataset) investment(id uint) (*models.Investment, error) {
	inv, ok := d.investments[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &inv, nil
}

func (d *dataset) updateInvestment(inv *models.Investment, now time.Time) error {
	stored, ok := d.investments[inv.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	stored.Status = inv.Status
	stored.UpdatedAt = now
	d.investments[inv.ID] = stored
	return nil
}

func (d *dataset) listInvestments(userID uint, statuses []string) []models.Investment {
	var out []models.Investment
	for _, inv := range d.investments {
		if inv.UserID != userID {
			continue
		}
		if len(statuses) > 0 && !hasString(statuses, inv.Status) {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func hasString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
