package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RegistrationStatus is the closed set of registration lifecycle states.
type RegistrationStatus string

const (
	StatusPending    RegistrationStatus = "pending"
	StatusConfirmed  RegistrationStatus = "confirmed"
	StatusWaitlisted RegistrationStatus = "waitlisted"
	StatusCancelled  RegistrationStatus = "cancelled"
)

// Valid reports whether s is one of the known lifecycle states.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusWaitlisted, StatusCancelled:
		return true
	}
	return false
}

// Live reports whether the registration still occupies the (user, event)
// pair. At most one live registration may exist per pair.
func (s RegistrationStatus) Live() bool {
	return s != StatusCancelled
}

// Registration ties a user to an event. AttendanceConfirmed only ever moves
// false to true; the score award attached to that flip happens exactly once.
//
// A partial unique index on (user_id, event_id) backs the one-live-registration
// rule: the service-level duplicate check runs in a read-committed transaction,
// so two concurrent registrations by the same user can both pass it. The index
// makes the second insert fail instead.
type Registration struct {
	ID                  uuid.UUID          `gorm:"type:uuid;primaryKey"`
	UserID              uuid.UUID          `gorm:"type:uuid;not null;index:idx_registrations_user_event;uniqueIndex:uniq_registrations_live_user_event,where:status <> 'cancelled' AND deleted_at IS NULL"`
	EventID             uuid.UUID          `gorm:"type:uuid;not null;index:idx_registrations_user_event;index:idx_registrations_event_status;uniqueIndex:uniq_registrations_live_user_event"`
	Status              RegistrationStatus `gorm:"type:text;not null;default:pending;index:idx_registrations_event_status"`
	AttendanceConfirmed bool               `gorm:"not null;default:false"`
	RegisteredAt        time.Time          `gorm:"not null"`
	CreatedAt           time.Time          `gorm:"autoCreateTime"`
	UpdatedAt           time.Time          `gorm:"autoUpdateTime"`
	DeletedAt           gorm.DeletedAt     `gorm:"index"`
	DeletedByID         *uuid.UUID         `gorm:"type:uuid"`
	DeleteReason        *string            `gorm:"type:text"`

	User  *User  `gorm:"foreignKey:UserID"`
	Event *Event `gorm:"foreignKey:EventID"`
}

func (r *Registration) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
