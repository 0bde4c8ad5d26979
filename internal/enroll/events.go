package enroll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"enrolld/internal/models"
)

// EventInput carries the caller-supplied fields for creating or updating an
// event.
type EventInput struct {
	Name             string
	Description      string
	Capacity         int
	EventTime        time.Time
	CategoryID       *uuid.UUID
	RequiresApproval bool
}

func (in EventInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if in.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive", ErrValidation)
	}
	if in.EventTime.IsZero() {
		return fmt.Errorf("%w: event_time is required", ErrValidation)
	}
	return nil
}

// CreateEvent creates an event organized by actor. The scheduled time must be
// in the future at creation; later edits are exempt from that restriction.
func (s *Service) CreateEvent(ctx context.Context, actor models.User, in EventInput, now time.Time) (models.Event, error) {
	if err := in.validate(); err != nil {
		return models.Event{}, err
	}
	if in.EventTime.Before(now) {
		return models.Event{}, ErrEventInPast
	}

	event := models.Event{
		Name:             strings.TrimSpace(in.Name),
		Description:      in.Description,
		Capacity:         in.Capacity,
		EventTime:        in.EventTime,
		OrganizerID:      actor.ID,
		CategoryID:       in.CategoryID,
		RequiresApproval: in.RequiresApproval,
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return models.Event{}, err
	}

	s.log.Info().
		Str("event_id", event.ID.String()).
		Str("organizer_id", actor.ID.String()).
		Int("capacity", event.Capacity).
		Msg("event created")
	return event, nil
}

// UpdateEvent applies in to an existing event. Only the organizer or an admin
// may edit; moving the scheduled time into the past is allowed here.
func (s *Service) UpdateEvent(ctx context.Context, actor models.User, eventID uuid.UUID, in EventInput) (models.Event, error) {
	if err := in.validate(); err != nil {
		return models.Event{}, err
	}

	var event models.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&event, "id = ?", eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := requireOrganizer(actor, event); err != nil {
			return err
		}

		event.Name = strings.TrimSpace(in.Name)
		event.Description = in.Description
		event.Capacity = in.Capacity
		event.EventTime = in.EventTime
		event.CategoryID = in.CategoryID
		event.RequiresApproval = in.RequiresApproval
		return tx.Save(&event).Error
	})
	if err != nil {
		return models.Event{}, err
	}
	return event, nil
}

// GetEvent loads a single event with its category and organizer.
func (s *Service) GetEvent(ctx context.Context, eventID uuid.UUID) (models.Event, error) {
	var event models.Event
	err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Organizer").
		First(&event, "id = ?", eventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Event{}, ErrNotFound
		}
		return models.Event{}, err
	}
	return event, nil
}

// ListUpcomingEvents returns events scheduled after now, soonest first.
func (s *Service) ListUpcomingEvents(ctx context.Context, now time.Time) ([]models.Event, error) {
	var events []models.Event
	err := s.db.WithContext(ctx).
		Preload("Category").
		Where("event_time > ?", now).
		Order("event_time ASC").
		Find(&events).Error
	return events, err
}

// EventRegistrations lists the registrations on an event for its organizer.
func (s *Service) EventRegistrations(ctx context.Context, actor models.User, eventID uuid.UUID) ([]models.Registration, error) {
	var event models.Event
	if err := s.db.WithContext(ctx).First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := requireOrganizer(actor, event); err != nil {
		return nil, err
	}

	var regs []models.Registration
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("event_id = ?", eventID).
		Order("registered_at ASC, id ASC").
		Find(&regs).Error
	return regs, err
}

// ListCategories returns all event categories.
func (s *Service) ListCategories(ctx context.Context) ([]models.EventCategory, error) {
	var categories []models.EventCategory
	err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error
	return categories, err
}
