package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event is a scheduled gathering with a fixed capacity. ConfirmedCount is a
// denormalized counter that must equal the number of confirmed registrations
// at every quiescent point; it is only ever written inside the same
// transaction as the registration status change that causes it.
type Event struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Name             string         `gorm:"type:text;not null"`
	Description      string         `gorm:"type:text"`
	Capacity         int            `gorm:"not null"`
	EventTime        time.Time      `gorm:"not null;index"`
	OrganizerID      uuid.UUID      `gorm:"type:uuid;not null;index"`
	CategoryID       *uuid.UUID     `gorm:"type:uuid;index"`
	RequiresApproval bool           `gorm:"not null;default:false"`
	ConfirmedCount   int            `gorm:"not null;default:0"`
	CreatedAt        time.Time      `gorm:"autoCreateTime"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime"`
	DeletedAt        gorm.DeletedAt `gorm:"index"`
	DeletedByID      *uuid.UUID     `gorm:"type:uuid"`
	DeleteReason     *string        `gorm:"type:text"`

	Organizer     *User          `gorm:"foreignKey:OrganizerID"`
	Category      *EventCategory `gorm:"foreignKey:CategoryID"`
	Registrations []Registration `gorm:"foreignKey:EventID"`
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// SpotsRemaining is capacity minus the confirmed count.
func (e *Event) SpotsRemaining() int {
	return e.Capacity - e.ConfirmedCount
}

// Full reports whether no confirmed spots remain.
func (e *Event) Full() bool {
	return e.SpotsRemaining() <= 0
}

// Started reports whether the event's scheduled time has passed.
func (e *Event) Started(now time.Time) bool {
	return e.EventTime.Before(now)
}
