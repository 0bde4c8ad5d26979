package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role determines what a user may do beyond managing their own registrations.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// User is a platform member. Score accumulates attendance awards and feeds
// the leaderboard.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Email        string         `gorm:"type:text;uniqueIndex;not null"`
	Name         string         `gorm:"type:text;not null"`
	Role         Role           `gorm:"type:text;not null;default:member"`
	Score        int            `gorm:"not null;default:0;index"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
	DeletedByID  *uuid.UUID     `gorm:"type:uuid"`
	DeleteReason *string        `gorm:"type:text"`

	OrganizedEvents []Event        `gorm:"foreignKey:OrganizerID"`
	Registrations   []Registration `gorm:"foreignKey:UserID"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsAdmin reports whether the user may perform administrative deletions.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
