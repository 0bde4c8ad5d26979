package deletion

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"enrolld/internal/audit"
	"enrolld/internal/enroll"
	"enrolld/internal/models"
)

const defaultReason = "deleted by admin"

// Queue publishes deletion jobs. Satisfied by pkg/bus.Bus.
type Queue interface {
	Publish(ctx context.Context, subject string, v any) error
}

// RequestMeta carries optional request context recorded in the audit trail.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Admin is the synchronous front door for administrative deletion: it
// authorizes the actor, writes the audit entry, enqueues the cascade job, and
// returns before the cascade runs.
type Admin struct {
	engine *Engine
	audit  *audit.Recorder
	queue  Queue
	log    zerolog.Logger
}

// NewAdmin wires the deletion front door.
func NewAdmin(engine *Engine, recorder *audit.Recorder, queue Queue, log zerolog.Logger) *Admin {
	return &Admin{engine: engine, audit: recorder, queue: queue, log: log}
}

// Preview reports what deleting the entity would affect. Admin only.
func (a *Admin) Preview(ctx context.Context, actor models.User, entityType EntityType, entityID uuid.UUID) (Preview, error) {
	if !actor.IsAdmin() {
		return Preview{}, enroll.ErrUnauthorized
	}
	return a.engine.Preview(ctx, entityType, entityID)
}

// RequestDelete records the audit entry and enqueues the cascade job. The
// audit write happens before the enqueue so the trail exists even if the
// asynchronous cascade later fails. The cascade itself runs in the worker.
func (a *Admin) RequestDelete(ctx context.Context, actor models.User, entityType EntityType, entityID uuid.UUID, reason string, meta RequestMeta, now time.Time) (Job, error) {
	if !actor.IsAdmin() {
		return Job{}, enroll.ErrUnauthorized
	}
	if entityType == EntityUser && entityID == actor.ID {
		return Job{}, ErrSelfDelete
	}

	preview, err := a.engine.Preview(ctx, entityType, entityID)
	if err != nil {
		return Job{}, err
	}

	if reason == "" {
		reason = defaultReason
	}

	if _, err := a.audit.Append(ctx, audit.Record{
		ActorID:    actor.ID,
		Action:     models.AuditActionDelete,
		TargetType: string(entityType),
		TargetID:   entityID,
		Metadata: map[string]any{
			"reason":    reason,
			"preview":   preview,
			"async":     true,
			"queued_at": now,
		},
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}); err != nil {
		return Job{}, err
	}

	job := Job{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actor.ID,
		Reason:     reason,
		EnqueuedAt: now,
	}
	if err := a.queue.Publish(ctx, SubjectRequest, job); err != nil {
		return Job{}, err
	}

	a.log.Info().
		Str("job_id", job.ID.String()).
		Str("entity_type", string(entityType)).
		Str("entity_id", entityID.String()).
		Str("actor_id", actor.ID.String()).
		Msg("deletion enqueued")
	return job, nil
}

// Restore reverses a soft deletion and records it in the audit trail. Admin
// only; fails with ErrRestoreDisabled under the hard deletion policy.
func (a *Admin) Restore(ctx context.Context, actor models.User, entityType EntityType, entityID uuid.UUID, meta RequestMeta) error {
	if !actor.IsAdmin() {
		return enroll.ErrUnauthorized
	}

	if err := a.engine.Restore(ctx, entityType, entityID); err != nil {
		return err
	}

	_, err := a.audit.Append(ctx, audit.Record{
		ActorID:    actor.ID,
		Action:     models.AuditActionRestore,
		TargetType: string(entityType),
		TargetID:   entityID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	})
	return err
}
