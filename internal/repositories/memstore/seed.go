package memstore

import (
	"context"
	"fmt"
	"strings"

	"yieldtree/internal/models"
)

// SeedUser inserts a user sponsored by sponsor (nil for a root) together with
// an empty wallet. It panics on failure and is meant for tests and demos.
func (s *Store) SeedUser(name string, sponsor *models.User) *models.User {
	ctx := context.Background()
	var n int
	s.read(func(d *dataset) { n = len(d.users) + 1 })

	user := &models.User{
		FullName:     name,
		Email:        fmt.Sprintf("%s.%d@example.com", strings.ToLower(strings.ReplaceAll(name, " ", ".")), n),
		Password:     "x",
		Role:         models.RoleUser,
		ReferralCode: fmt.Sprintf("REF%05d", n),
		Position:     models.PositionLeft,
	}
	if sponsor != nil {
		id := sponsor.ID
		user.SponsorID = &id
	}
	if err := s.CreateUser(ctx, user); err != nil {
		panic(err)
	}
	if err := s.CreateWallet(ctx, &models.Wallet{UserID: user.ID}); err != nil {
		panic(err)
	}
	return user
}

// SeedChain creates n users where users[i] sponsors users[i+1].
func (s *Store) SeedChain(n int) []*models.User {
	users := make([]*models.User, 0, n)
	var prev *models.User
	for i := 0; i < n; i++ {
		prev = s.SeedUser(fmt.Sprintf("User %d", i+1), prev)
		users = append(users, prev)
	}
	return users
}
