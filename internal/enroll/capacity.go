package enroll

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"enrolld/internal/models"
)

// The confirmed count on an event is only ever written through ClaimSeat and
// ReleaseSeat, inside the same transaction as the registration status change
// that motivates it. The guarded UPDATEs serialize concurrent writers on the
// row itself, so two racing registrations against one remaining seat resolve
// to exactly one claim.

// ClaimSeat takes one confirmed seat if any remain. It reports false when the
// event is already at capacity.
func ClaimSeat(tx *gorm.DB, eventID uuid.UUID) (bool, error) {
	res := tx.Model(&models.Event{}).
		Where("id = ? AND confirmed_count < capacity", eventID).
		UpdateColumn("confirmed_count", gorm.Expr("confirmed_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseSeat frees one confirmed seat. An underflow means the counter has
// drifted from the registration set and aborts the transaction.
func ReleaseSeat(tx *gorm.DB, eventID uuid.UUID) error {
	res := tx.Model(&models.Event{}).
		Where("id = ? AND confirmed_count > 0", eventID).
		UpdateColumn("confirmed_count", gorm.Expr("confirmed_count - 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("confirmed count underflow on event %s", eventID)
	}
	return nil
}

// PromoteNext confirms the oldest waitlisted registration on the event, FIFO
// by registered_at with the id as tie-break. It returns nil when the waitlist
// is empty or the event requires manual approval. Must run in the same
// transaction as the cancellation that freed the seat.
func PromoteNext(tx *gorm.DB, event *models.Event, now time.Time) (*models.Registration, error) {
	if event.RequiresApproval {
		return nil, nil
	}

	var candidate models.Registration
	err := tx.
		Where("event_id = ? AND status = ?", event.ID, models.StatusWaitlisted).
		Order("registered_at ASC, id ASC").
		First(&candidate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	claimed, err := ClaimSeat(tx, event.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrCapacityExceeded
	}

	if err := tx.Model(&candidate).
		Updates(map[string]any{"status": models.StatusConfirmed, "updated_at": now}).Error; err != nil {
		return nil, err
	}
	candidate.Status = models.StatusConfirmed
	return &candidate, nil
}
