package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditAction is the closed set of administrative actions recorded in the log.
type AuditAction string

const (
	AuditActionDelete  AuditAction = "delete"
	AuditActionRestore AuditAction = "restore"
)

// AuditLog is an append-only record of administrative deletions and
// restorations. Rows are never updated or removed; the target may no longer
// exist by the time the row is read.
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ActorID    uuid.UUID      `gorm:"type:uuid;not null;index"`
	Action     AuditAction    `gorm:"type:text;not null;index"`
	TargetType string         `gorm:"type:text;not null"`
	TargetID   uuid.UUID      `gorm:"type:uuid;not null"`
	Metadata   datatypes.JSON `gorm:"type:jsonb"`
	IPAddress  *string        `gorm:"type:text"`
	UserAgent  *string        `gorm:"type:text"`
	CreatedAt  time.Time      `gorm:"autoCreateTime;index"`

	Actor *User `gorm:"foreignKey:ActorID"`
}

func (l *AuditLog) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
