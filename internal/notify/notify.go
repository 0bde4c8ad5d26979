// Package notify emits fire-and-forget enrollment notifications. Delivery
// and message content are owned by a downstream consumer; the core only
// reports (user, event, outcome) tuples.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"enrolld/pkg/bus"
)

// Outcome labels the enrollment state change being announced.
type Outcome string

const (
	OutcomeConfirmed  Outcome = "confirmed"
	OutcomeWaitlisted Outcome = "waitlisted"
	OutcomePromoted   Outcome = "promoted"
	OutcomeApproved   Outcome = "approved"
)

// Stream and subjects the publisher writes to.
const (
	StreamName      = "ENROLLD_NOTIFICATIONS"
	SubjectWildcard = "enrolld.notifications.>"

	subjectPrefix = "enrolld.notifications."
)

// Enrollment is the payload published for every announced state change.
type Enrollment struct {
	UserID  uuid.UUID `json:"user_id"`
	EventID uuid.UUID `json:"event_id"`
	Outcome Outcome   `json:"outcome"`
	At      time.Time `json:"at"`
}

// Dispatcher delivers enrollment notifications. Implementations must never
// block the calling transaction or surface delivery failures to it.
type Dispatcher interface {
	Enrollment(ctx context.Context, n Enrollment)
}

// Publisher dispatches notifications onto the NATS bus.
type Publisher struct {
	bus *bus.Bus
	log zerolog.Logger
}

// NewPublisher returns a Dispatcher that publishes to
// enrolld.notifications.<outcome>.
func NewPublisher(b *bus.Bus, log zerolog.Logger) *Publisher {
	return &Publisher{bus: b, log: log}
}

// Enrollment publishes n; failures are logged and dropped.
func (p *Publisher) Enrollment(ctx context.Context, n Enrollment) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(ctx, subjectPrefix+string(n.Outcome), n); err != nil {
		p.log.Error().Err(err).
			Str("user_id", n.UserID.String()).
			Str("event_id", n.EventID.String()).
			Str("outcome", string(n.Outcome)).
			Msg("publish enrollment notification")
	}
}

// Recorder captures notifications in memory. Used by tests and as a safe
// default when no bus is configured.
type Recorder struct {
	mu     sync.Mutex
	events []Enrollment
}

func (r *Recorder) Enrollment(_ context.Context, n Enrollment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Enrollment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Enrollment, len(r.events))
	copy(out, r.events)
	return out
}
