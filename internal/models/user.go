package models

import (
	"gorm.io/gorm"
)

// Placement sides under a sponsor.
const (
	PositionLeft  = "LEFT"
	PositionRight = "RIGHT"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	gorm.Model
	FullName     string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	Password     string `gorm:"not null" json:"-"`
	Role         string `gorm:"default:'user'"`
	ReferralCode string `gorm:"uniqueIndex;size:16;not null"`
	SponsorID    *uint  `gorm:"index"`
	Position     string `gorm:"size:5"`
	Status       string `gorm:"default:'active'"`
	TokenVersion int    `gorm:"default:1"`
}

// DisplayName is used in ledger descriptions.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
