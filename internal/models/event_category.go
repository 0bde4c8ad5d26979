package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventCategory is a lookup row used to group events.
type EventCategory struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"type:text;uniqueIndex;not null"`
	Color     string    `gorm:"type:text"`
	Icon      string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (c *EventCategory) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
