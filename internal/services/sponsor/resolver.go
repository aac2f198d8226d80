// Package sponsor walks the sponsor_id links above a user.
package sponsor

import (
	"context"
	"errors"
	"fmt"

	"yieldtree/internal/models"
	"yieldtree/internal/repositories"

	"go.uber.org/zap"
)

// DefaultMaxDepth bounds every walk.
const DefaultMaxDepth = 20

// Link is one ancestor in a sponsor chain. Level 1 is the direct sponsor.
type Link struct {
	UserID uint
	Level  int
	Name   string
}

// UserLookup is the read the resolver needs. repositories.Store satisfies it.
type UserLookup interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
}

type Resolver struct {
	log *zap.Logger
}

func NewResolver(log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{log: log}
}

// Resolve returns the ancestors of userID, nearest first, up to maxDepth
// levels. A maxDepth <= 0 uses DefaultMaxDepth. The walk stops early at a
// user without sponsor, at a sponsor row that no longer exists, or when an
// id repeats.
func (r *Resolver) Resolve(ctx context.Context, users UserLookup, userID uint, maxDepth int) ([]Link, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	current, err := users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}

	visited := map[uint]bool{userID: true}
	chain := make([]Link, 0, 4)

	for level := 1; level <= maxDepth && current.SponsorID != nil; level++ {
		sponsorID := *current.SponsorID
		if visited[sponsorID] {
			r.log.Warn("sponsor cycle detected",
				zap.Uint("user_id", userID), zap.Uint("repeated_id", sponsorID), zap.Int("level", level))
			break
		}
		visited[sponsorID] = true

		sponsor, err := users.GetUserByID(ctx, sponsorID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				r.log.Warn("dangling sponsor reference",
					zap.Uint("user_id", current.ID), zap.Uint("sponsor_id", sponsorID))
				break
			}
			return nil, fmt.Errorf("load sponsor %d: %w", sponsorID, err)
		}

		chain = append(chain, Link{UserID: sponsor.ID, Level: level, Name: sponsor.DisplayName()})
		current = sponsor
	}

	return chain, nil
}
