package deletion

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"enrolld/internal/enroll"
	"enrolld/internal/metrics"
)

// Worker executes queued cascade jobs. Delivery is at-least-once: a nil
// return acknowledges the message, a non-nil return leaves it for
// redelivery, so Handle must only fail for conditions a retry could fix.
type Worker struct {
	engine *Engine
	log    zerolog.Logger
}

// NewWorker returns a Worker executing cascades through engine.
func NewWorker(engine *Engine, log zerolog.Logger) *Worker {
	return &Worker{engine: engine, log: log}
}

// Handle decodes and executes one queued job.
//
// A malformed payload is terminal: it is logged and acknowledged, since
// redelivery cannot repair it. A missing root means the desired end state
// already holds (the entity is gone), so it completes successfully. Any other
// failure is logged with full job context and returned to trigger the
// queue's retry policy.
func (w *Worker) Handle(ctx context.Context, data []byte) error {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		w.log.Error().Err(err).Msg("discarding malformed deletion job")
		metrics.DeletionJobs.WithLabelValues("malformed").Inc()
		return nil
	}

	err := w.engine.Cascade(ctx, job, time.Now().UTC())
	switch {
	case err == nil:
		metrics.DeletionJobs.WithLabelValues("completed").Inc()
		return nil
	case errors.Is(err, enroll.ErrNotFound):
		w.log.Warn().
			Str("job_id", job.ID.String()).
			Str("entity_type", string(job.EntityType)).
			Str("entity_id", job.EntityID.String()).
			Msg("deletion target already gone, skipping")
		metrics.DeletionJobs.WithLabelValues("not_found").Inc()
		return nil
	default:
		w.log.Error().Err(err).
			Str("job_id", job.ID.String()).
			Str("entity_type", string(job.EntityType)).
			Str("entity_id", job.EntityID.String()).
			Str("actor_id", job.ActorID.String()).
			Str("reason", job.Reason).
			Msg("deletion cascade failed, will retry")
		metrics.DeletionJobs.WithLabelValues("failed").Inc()
		return err
	}
}
