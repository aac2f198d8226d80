package repositories

import (
	"strings"
	"time"

	"yieldtree/internal/models"

	"gorm.io/gorm"
)

// TransactionFilter selects ledger rows. Zero-valued fields do not filter.
// Sources, SourceSuffixes and SourceContains are OR-combined with each other.
type TransactionFilter struct {
	UserID         uint
	Direction      string
	Statuses       []string
	Sources        []string
	SourceSuffixes []string
	SourceContains []string
	// UnlockedAt keeps rows whose unlock date is null or not after it.
	UnlockedAt    *time.Time
	HasUnlockDate bool
	Reserved      *bool
	From          time.Time // inclusive
	To            time.Time // exclusive
	InvestmentID  uint
}

func (f TransactionFilter) hasSourceFilter() bool {
	return len(f.Sources) > 0 || len(f.SourceSuffixes) > 0 || len(f.SourceContains) > 0
}

// Matches evaluates the filter in memory with the same semantics as Apply.
func (f TransactionFilter) Matches(t *models.Transaction) bool {
	if f.UserID != 0 && t.UserID != f.UserID {
		return false
	}
	if f.Direction != "" && t.Direction != f.Direction {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, t.Status) {
		return false
	}
	if f.hasSourceFilter() && !f.matchesSource(t.IncomeSource) {
		return false
	}
	if f.UnlockedAt != nil && t.UnlockDate != nil && t.UnlockDate.After(*f.UnlockedAt) {
		return false
	}
	if f.HasUnlockDate && t.UnlockDate == nil {
		return false
	}
	if f.Reserved != nil && t.Reserved != *f.Reserved {
		return false
	}
	if !f.From.IsZero() && t.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.Timestamp.Before(f.To) {
		return false
	}
	if f.InvestmentID != 0 && (t.InvestmentID == nil || *t.InvestmentID != f.InvestmentID) {
		return false
	}
	return true
}

func (f TransactionFilter) matchesSource(source string) bool {
	if contains(f.Sources, source) {
		return true
	}
	for _, s := range f.SourceSuffixes {
		if strings.HasSuffix(source, s) {
			return true
		}
	}
	for _, s := range f.SourceContains {
		if strings.Contains(source, s) {
			return true
		}
	}
	return false
}

// Apply adds the filter's WHERE clauses to a gorm query.
func (f TransactionFilter) Apply(db *gorm.DB) *gorm.DB {
	if f.UserID != 0 {
		db = db.Where("user_id = ?", f.UserID)
	}
	if f.Direction != "" {
		db = db.Where("direction = ?", f.Direction)
	}
	if len(f.Statuses) > 0 {
		db = db.Where("status IN ?", f.Statuses)
	}
	if f.hasSourceFilter() {
		var clauses []string
		var args []interface{}
		if len(f.Sources) > 0 {
			clauses = append(clauses, "income_source IN ?")
			args = append(args, f.Sources)
		}
		for _, s := range f.SourceSuffixes {
			clauses = append(clauses, `income_source LIKE ? ESCAPE '\'`)
			args = append(args, "%"+escapeLike(s))
		}
		for _, s := range f.SourceContains {
			clauses = append(clauses, `income_source LIKE ? ESCAPE '\'`)
			args = append(args, "%"+escapeLike(s)+"%")
		}
		db = db.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}
	if f.UnlockedAt != nil {
		db = db.Where("(unlock_date IS NULL OR unlock_date <= ?)", *f.UnlockedAt)
	}
	if f.HasUnlockDate {
		db = db.Where("unlock_date IS NOT NULL")
	}
	if f.Reserved != nil {
		db = db.Where("reserved = ?", *f.Reserved)
	}
	if !f.From.IsZero() {
		db = db.Where("timestamp >= ?", f.From)
	}
	if !f.To.IsZero() {
		db = db.Where("timestamp < ?", f.To)
	}
	if f.InvestmentID != 0 {
		db = db.Where("investment_id = ?", f.InvestmentID)
	}
	return db
}

// escapeLike makes _ and % literal inside a LIKE pattern.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// BoolPtr is a helper for TransactionFilter.Reserved.
func BoolPtr(b bool) *bool {
	return &b
}
