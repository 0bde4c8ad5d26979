// Package deletion implements the cascading deletion engine: read-only
// previews, the transactional cascade itself (soft or hard per process-wide
// policy), restoration, and the asynchronous worker that executes queued
// cascades with at-least-once semantics.
package deletion

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Queue subjects and the stream that backs them.
const (
	StreamName     = "ENROLLD_DELETIONS"
	SubjectRequest = "enrolld.deletions.request"
)

// EntityType names the kinds of roots a cascade can start from.
type EntityType string

const (
	EntityUser  EntityType = "user"
	EntityEvent EntityType = "event"
)

// Valid reports whether t is a known root type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityUser, EntityEvent:
		return true
	}
	return false
}

// Job is the queued unit of deletion work. The audit entry for the cascade is
// written before the job is published; the worker does not write another.
type Job struct {
	ID         uuid.UUID  `json:"job_id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   uuid.UUID  `json:"entity_id"`
	ActorID    uuid.UUID  `json:"actor_id"`
	Reason     string     `json:"reason"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
}

// Preview counts everything a cascade would affect, without mutating state.
type Preview struct {
	OrganizedEvents int `json:"organized_events"`
	Registrations   int `json:"registrations"`
	Score           int `json:"score"`
}

var (
	// ErrRestoreDisabled is returned when restore is invoked under the
	// hard deletion policy, where nothing is recoverable.
	ErrRestoreDisabled = errors.New("restore is not available under hard deletion mode")

	// ErrSelfDelete is returned when an admin requests their own deletion.
	ErrSelfDelete = errors.New("admins cannot delete themselves")
)
