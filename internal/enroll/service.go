// Package enroll implements the registration lifecycle: the state machine,
// the capacity ledger, the waitlist promoter, and attendance scoring. Every
// operation runs as one transaction; there are no lifecycle hooks, so the
// full effect of an operation is readable top to bottom in its method.
package enroll

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"enrolld/internal/metrics"
	"enrolld/internal/models"
	"enrolld/internal/notify"
)

// AttendanceAward is the score increment granted once per attended event.
const AttendanceAward = 10

// Service coordinates registration state changes against the database and
// announces them through the dispatcher after commit.
type Service struct {
	db         *gorm.DB
	dispatcher notify.Dispatcher
	log        zerolog.Logger
}

// New returns a Service writing through db and notifying via dispatcher.
func New(db *gorm.DB, dispatcher notify.Dispatcher, log zerolog.Logger) *Service {
	return &Service{db: db, dispatcher: dispatcher, log: log}
}

// Register creates a registration for actor on the event. Events requiring
// approval yield a pending registration; otherwise the actor is confirmed if
// a seat can be claimed and waitlisted if not. The registration row and the
// confirmed-count update commit as one unit.
func (s *Service) Register(ctx context.Context, actor models.User, eventID uuid.UUID, now time.Time) (models.Registration, error) {
	var (
		created models.Registration
		queued  []notify.Enrollment
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := tx.First(&event, "id = ?", eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if event.Started(now) {
			return ErrEventInPast
		}

		var live int64
		if err := tx.Model(&models.Registration{}).
			Where("user_id = ? AND event_id = ? AND status <> ?", actor.ID, event.ID, models.StatusCancelled).
			Count(&live).Error; err != nil {
			return err
		}
		if live > 0 {
			return ErrDuplicateRegistration
		}

		status := models.StatusPending
		if !event.RequiresApproval {
			claimed, err := ClaimSeat(tx, event.ID)
			if err != nil {
				return err
			}
			if claimed {
				status = models.StatusConfirmed
			} else {
				status = models.StatusWaitlisted
			}
		}

		created = models.Registration{
			UserID:       actor.ID,
			EventID:      event.ID,
			Status:       status,
			RegisteredAt: now,
		}
		if err := tx.Create(&created).Error; err != nil {
			// A concurrent registration can slip past the count above;
			// the partial unique index on live (user, event) pairs
			// rejects the second insert.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateRegistration
			}
			return err
		}

		switch status {
		case models.StatusConfirmed:
			queued = append(queued, notify.Enrollment{UserID: actor.ID, EventID: event.ID, Outcome: notify.OutcomeConfirmed, At: now})
		case models.StatusWaitlisted:
			queued = append(queued, notify.Enrollment{UserID: actor.ID, EventID: event.ID, Outcome: notify.OutcomeWaitlisted, At: now})
		case models.StatusPending:
			// The organizer has to approve first; nothing to announce yet.
		case models.StatusCancelled:
			// Unreachable at creation.
		}
		return nil
	})
	if err != nil {
		metrics.Registrations.WithLabelValues("rejected").Inc()
		return models.Registration{}, err
	}

	metrics.Registrations.WithLabelValues(string(created.Status)).Inc()
	s.log.Info().
		Str("user_id", actor.ID.String()).
		Str("event_id", eventID.String()).
		Str("status", string(created.Status)).
		Msg("registration created")

	s.dispatch(ctx, queued)
	return created, nil
}

// Transition moves a registration into newStatus, adjusting the confirmed
// count when the transition enters or leaves the confirmed state. Confirming
// an already confirmed registration is a no-op. Cancelling or demoting a
// confirmed registration frees a seat and promotes the oldest waitlisted
// registration within the same transaction.
func (s *Service) Transition(ctx context.Context, actor models.User, registrationID uuid.UUID, newStatus models.RegistrationStatus, now time.Time) (models.Registration, error) {
	if !newStatus.Valid() {
		return models.Registration{}, ErrInvalidTransition
	}

	var (
		reg    models.Registration
		queued []notify.Enrollment
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&reg, "id = ?", registrationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var event models.Event
		if err := tx.First(&event, "id = ?", reg.EventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if reg.Status == newStatus {
			// Idempotent: in particular re-confirming must not
			// touch the counter again.
			return nil
		}

		from, to := reg.Status, newStatus
		switch {
		case (from == models.StatusPending || from == models.StatusWaitlisted) && to == models.StatusConfirmed:
			if err := requireOrganizer(actor, event); err != nil {
				return err
			}
			claimed, err := ClaimSeat(tx, event.ID)
			if err != nil {
				return err
			}
			if !claimed {
				return ErrCapacityExceeded
			}
			if err := setStatus(tx, &reg, to, now); err != nil {
				return err
			}
			queued = append(queued, notify.Enrollment{UserID: reg.UserID, EventID: event.ID, Outcome: notify.OutcomeApproved, At: now})

		case to == models.StatusCancelled:
			if err := requireOwnerOrOrganizer(actor, reg, event); err != nil {
				return err
			}
			if from == models.StatusConfirmed {
				if err := ReleaseSeat(tx, event.ID); err != nil {
					return err
				}
			}
			if err := setStatus(tx, &reg, to, now); err != nil {
				return err
			}
			if from == models.StatusConfirmed {
				promoted, err := PromoteNext(tx, &event, now)
				if err != nil {
					return err
				}
				if promoted != nil {
					queued = append(queued, notify.Enrollment{UserID: promoted.UserID, EventID: event.ID, Outcome: notify.OutcomePromoted, At: now})
					metrics.Promotions.Inc()
				}
			}

		case from == models.StatusConfirmed && to == models.StatusWaitlisted:
			// Administrative demotion. The freed seat is offered to the
			// rest of the waitlist before the demoted registration joins it.
			if err := requireOrganizer(actor, event); err != nil {
				return err
			}
			if err := ReleaseSeat(tx, event.ID); err != nil {
				return err
			}
			promoted, err := PromoteNext(tx, &event, now)
			if err != nil {
				return err
			}
			if promoted != nil {
				queued = append(queued, notify.Enrollment{UserID: promoted.UserID, EventID: event.ID, Outcome: notify.OutcomePromoted, At: now})
				metrics.Promotions.Inc()
			}
			if err := setStatus(tx, &reg, to, now); err != nil {
				return err
			}

		default:
			return ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return models.Registration{}, err
	}

	s.log.Info().
		Str("registration_id", reg.ID.String()).
		Str("status", string(reg.Status)).
		Msg("registration transitioned")

	s.dispatch(ctx, queued)
	return reg, nil
}

// Cancel is the member-facing cancellation path.
func (s *Service) Cancel(ctx context.Context, actor models.User, registrationID uuid.UUID, now time.Time) (models.Registration, error) {
	return s.Transition(ctx, actor, registrationID, models.StatusCancelled, now)
}

// ConfirmAttendance marks the registration as attended and awards the score
// increment exactly once. Only the event organizer may confirm, and only
// after the event's scheduled time has passed.
func (s *Service) ConfirmAttendance(ctx context.Context, actor models.User, registrationID uuid.UUID, now time.Time) (models.Registration, error) {
	var reg models.Registration

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&reg, "id = ?", registrationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var event models.Event
		if err := tx.First(&event, "id = ?", reg.EventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := requireOrganizer(actor, event); err != nil {
			return err
		}
		if !event.Started(now) {
			return ErrEventNotYetEnded
		}
		if reg.AttendanceConfirmed {
			// Monotonic flag: confirming twice must not award twice.
			return nil
		}

		if err := tx.Model(&reg).
			Updates(map[string]any{"attendance_confirmed": true, "updated_at": now}).Error; err != nil {
			return err
		}
		reg.AttendanceConfirmed = true

		if err := tx.Model(&models.User{}).
			Where("id = ?", reg.UserID).
			UpdateColumn("score", gorm.Expr("score + ?", AttendanceAward)).Error; err != nil {
			return err
		}

		metrics.AttendanceAwards.Inc()
		return nil
	})
	if err != nil {
		return models.Registration{}, err
	}

	s.log.Info().
		Str("registration_id", reg.ID.String()).
		Str("user_id", reg.UserID.String()).
		Msg("attendance confirmed")
	return reg, nil
}

func (s *Service) dispatch(ctx context.Context, queued []notify.Enrollment) {
	if s.dispatcher == nil {
		return
	}
	for _, n := range queued {
		s.dispatcher.Enrollment(ctx, n)
	}
}

func setStatus(tx *gorm.DB, reg *models.Registration, status models.RegistrationStatus, now time.Time) error {
	if err := tx.Model(reg).
		Updates(map[string]any{"status": status, "updated_at": now}).Error; err != nil {
		return err
	}
	reg.Status = status
	return nil
}

func requireOrganizer(actor models.User, event models.Event) error {
	if actor.ID == event.OrganizerID || actor.IsAdmin() {
		return nil
	}
	return ErrUnauthorized
}

func requireOwnerOrOrganizer(actor models.User, reg models.Registration, event models.Event) error {
	if actor.ID == reg.UserID || actor.ID == event.OrganizerID || actor.IsAdmin() {
		return nil
	}
	return ErrUnauthorized
}
