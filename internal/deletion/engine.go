package deletion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"enrolld/internal/config"
	"enrolld/internal/enroll"
	"enrolld/internal/models"
	"enrolld/internal/notify"
)

// Engine executes previews, cascades, and restorations. The deletion mode is
// fixed at construction: a process either soft-deletes everything (and can
// restore) or hard-deletes everything.
type Engine struct {
	db         *gorm.DB
	mode       config.DeletionMode
	dispatcher notify.Dispatcher
	log        zerolog.Logger
}

// NewEngine returns an Engine applying the given process-wide deletion mode.
func NewEngine(db *gorm.DB, mode config.DeletionMode, dispatcher notify.Dispatcher, log zerolog.Logger) *Engine {
	return &Engine{db: db, mode: mode, dispatcher: dispatcher, log: log}
}

// Mode returns the process-wide deletion policy.
func (e *Engine) Mode() config.DeletionMode {
	return e.mode
}

// Preview reports what a cascade from the given root would affect. It never
// mutates state and only fails when the root does not exist.
func (e *Engine) Preview(ctx context.Context, entityType EntityType, entityID uuid.UUID) (Preview, error) {
	db := e.db.WithContext(ctx)

	switch entityType {
	case EntityUser:
		var user models.User
		if err := db.First(&user, "id = ?", entityID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Preview{}, enroll.ErrNotFound
			}
			return Preview{}, err
		}

		var eventIDs []uuid.UUID
		if err := db.Model(&models.Event{}).
			Where("organizer_id = ?", user.ID).
			Pluck("id", &eventIDs).Error; err != nil {
			return Preview{}, err
		}

		cond := db.Where("user_id = ?", user.ID)
		if len(eventIDs) > 0 {
			cond = cond.Or("event_id IN ?", eventIDs)
		}
		var regs int64
		if err := db.Model(&models.Registration{}).
			Where("status <> ?", models.StatusCancelled).
			Where(cond).
			Count(&regs).Error; err != nil {
			return Preview{}, err
		}

		return Preview{
			OrganizedEvents: len(eventIDs),
			Registrations:   int(regs),
			Score:           user.Score,
		}, nil

	case EntityEvent:
		var event models.Event
		if err := db.First(&event, "id = ?", entityID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Preview{}, enroll.ErrNotFound
			}
			return Preview{}, err
		}

		var regs int64
		if err := db.Model(&models.Registration{}).
			Where("event_id = ? AND status <> ?", event.ID, models.StatusCancelled).
			Count(&regs).Error; err != nil {
			return Preview{}, err
		}

		return Preview{Registrations: int(regs)}, nil

	default:
		return Preview{}, fmt.Errorf("unknown entity type %q", entityType)
	}
}

// Cascade removes the job's root entity and everything that exists only
// because of it, inside one transaction: a failure anywhere rolls the whole
// cascade back. Re-running against an already removed root returns
// enroll.ErrNotFound, which callers treat as success.
func (e *Engine) Cascade(ctx context.Context, job Job, now time.Time) error {
	var queued []notify.Enrollment

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch job.EntityType {
		case EntityUser:
			return e.cascadeUser(tx, job, now, &queued)
		case EntityEvent:
			var event models.Event
			if err := tx.First(&event, "id = ?", job.EntityID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return enroll.ErrNotFound
				}
				return err
			}
			return e.cascadeEvent(tx, event, job, now)
		default:
			return fmt.Errorf("unknown entity type %q", job.EntityType)
		}
	})
	if err != nil {
		return err
	}

	if e.dispatcher != nil {
		for _, n := range queued {
			e.dispatcher.Enrollment(ctx, n)
		}
	}

	e.log.Info().
		Str("job_id", job.ID.String()).
		Str("entity_type", string(job.EntityType)).
		Str("entity_id", job.EntityID.String()).
		Str("mode", string(e.mode)).
		Msg("deletion cascade completed")
	return nil
}

// cascadeUser removes the user's organized events first, then cancels the
// user's own remaining registrations exactly as direct cancellations would
// (seat released, waitlist promoted), and finally removes the user.
func (e *Engine) cascadeUser(tx *gorm.DB, job Job, now time.Time, queued *[]notify.Enrollment) error {
	var user models.User
	if err := tx.First(&user, "id = ?", job.EntityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return enroll.ErrNotFound
		}
		return err
	}

	var events []models.Event
	if err := tx.Where("organizer_id = ?", user.ID).Find(&events).Error; err != nil {
		return err
	}
	for _, event := range events {
		if err := e.cascadeEvent(tx, event, job, now); err != nil {
			return err
		}
	}

	var regs []models.Registration
	if err := tx.Where("user_id = ?", user.ID).Find(&regs).Error; err != nil {
		return err
	}
	for _, reg := range regs {
		if reg.Status != models.StatusConfirmed {
			continue
		}
		var event models.Event
		if err := tx.First(&event, "id = ?", reg.EventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return err
		}
		if err := enroll.ReleaseSeat(tx, event.ID); err != nil {
			return err
		}
		promoted, err := enroll.PromoteNext(tx, &event, now)
		if err != nil {
			return err
		}
		if promoted != nil {
			*queued = append(*queued, notify.Enrollment{
				UserID:  promoted.UserID,
				EventID: event.ID,
				Outcome: notify.OutcomePromoted,
				At:      now,
			})
		}
	}
	if err := e.removeRegistrations(tx, tx.Where("user_id = ?", user.ID), job, now); err != nil {
		return err
	}

	return e.removeRow(tx, &models.User{}, user.ID, job, now)
}

// cascadeEvent releases every confirmed seat on the event, removes its
// registrations, and removes the event. No promotion happens: the event
// itself is going away.
func (e *Engine) cascadeEvent(tx *gorm.DB, event models.Event, job Job, now time.Time) error {
	var confirmed int64
	if err := tx.Model(&models.Registration{}).
		Where("event_id = ? AND status = ?", event.ID, models.StatusConfirmed).
		Count(&confirmed).Error; err != nil {
		return err
	}
	for i := int64(0); i < confirmed; i++ {
		if err := enroll.ReleaseSeat(tx, event.ID); err != nil {
			return err
		}
	}

	if err := e.removeRegistrations(tx, tx.Where("event_id = ?", event.ID), job, now); err != nil {
		return err
	}

	return e.removeRow(tx, &models.Event{}, event.ID, job, now)
}

// removeRegistrations removes all live registrations matching cond. Under
// soft deletion the rows are also moved to cancelled so a later restore does
// not resurrect confirmed seats the ledger no longer counts.
func (e *Engine) removeRegistrations(tx *gorm.DB, cond *gorm.DB, job Job, now time.Time) error {
	if e.mode == config.DeletionModeHard {
		return cond.Unscoped().Delete(&models.Registration{}).Error
	}
	return cond.Model(&models.Registration{}).Updates(map[string]any{
		"status":        models.StatusCancelled,
		"deleted_at":    now,
		"deleted_by_id": job.ActorID,
		"delete_reason": job.Reason,
		"updated_at":    now,
	}).Error
}

func (e *Engine) removeRow(tx *gorm.DB, model any, id uuid.UUID, job Job, now time.Time) error {
	if e.mode == config.DeletionModeHard {
		return tx.Unscoped().Where("id = ?", id).Delete(model).Error
	}
	return tx.Model(model).Where("id = ?", id).Updates(map[string]any{
		"deleted_at":    now,
		"deleted_by_id": job.ActorID,
		"delete_reason": job.Reason,
		"updated_at":    now,
	}).Error
}

// Restore clears the deletion markers on the root and on every dependent
// entity currently soft-deleted under it. Counters are not touched: they
// reflect confirmed registrations going forward.
func (e *Engine) Restore(ctx context.Context, entityType EntityType, entityID uuid.UUID) error {
	if e.mode != config.DeletionModeSoft {
		return ErrRestoreDisabled
	}

	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch entityType {
		case EntityUser:
			var user models.User
			if err := tx.Unscoped().First(&user, "id = ?", entityID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return enroll.ErrNotFound
				}
				return err
			}
			if !user.DeletedAt.Valid {
				return nil
			}

			var eventIDs []uuid.UUID
			if err := tx.Unscoped().Model(&models.Event{}).
				Where("organizer_id = ? AND deleted_at IS NOT NULL", user.ID).
				Pluck("id", &eventIDs).Error; err != nil {
				return err
			}
			if len(eventIDs) > 0 {
				if err := e.clearMarkers(tx, &models.Registration{}, "event_id IN ?", eventIDs); err != nil {
					return err
				}
				if err := e.clearMarkers(tx, &models.Event{}, "id IN ?", eventIDs); err != nil {
					return err
				}
			}
			if err := e.clearMarkers(tx, &models.Registration{}, "user_id = ?", user.ID); err != nil {
				return err
			}
			return e.clearMarkers(tx, &models.User{}, "id = ?", user.ID)

		case EntityEvent:
			var event models.Event
			if err := tx.Unscoped().First(&event, "id = ?", entityID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return enroll.ErrNotFound
				}
				return err
			}
			if !event.DeletedAt.Valid {
				return nil
			}

			if err := e.clearMarkers(tx, &models.Registration{}, "event_id = ?", event.ID); err != nil {
				return err
			}
			return e.clearMarkers(tx, &models.Event{}, "id = ?", event.ID)

		default:
			return fmt.Errorf("unknown entity type %q", entityType)
		}
	})
}

func (e *Engine) clearMarkers(tx *gorm.DB, model any, query string, args ...any) error {
	return tx.Unscoped().Model(model).
		Where(query, args...).
		Where("deleted_at IS NOT NULL").
		Updates(map[string]any{
			"deleted_at":    nil,
			"deleted_by_id": nil,
			"delete_reason": nil,
		}).Error
}
