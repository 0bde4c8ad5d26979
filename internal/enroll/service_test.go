package enroll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"enrolld/internal/db"
	"enrolld/internal/models"
	"enrolld/internal/notify"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(context.Background(), database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *notify.Recorder) {
	t.Helper()
	database := testDB(t)
	rec := &notify.Recorder{}
	return New(database, rec, zerolog.Nop()), database, rec
}

func seedUser(t *testing.T, database *gorm.DB, name string, role models.Role) models.User {
	t.Helper()
	user := models.User{Name: name, Email: name + "-" + uuid.NewString()[:8] + "@example.com", Role: role}
	if err := database.Create(&user).Error; err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return user
}

func seedEvent(t *testing.T, database *gorm.DB, organizer models.User, capacity int, eventTime time.Time, requiresApproval bool) models.Event {
	t.Helper()
	event := models.Event{
		Name:             "test event",
		Capacity:         capacity,
		EventTime:        eventTime,
		OrganizerID:      organizer.ID,
		RequiresApproval: requiresApproval,
	}
	if err := database.Create(&event).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return event
}

func reloadEvent(t *testing.T, database *gorm.DB, id uuid.UUID) models.Event {
	t.Helper()
	var event models.Event
	if err := database.First(&event, "id = ?", id).Error; err != nil {
		t.Fatalf("reload event: %v", err)
	}
	return event
}

func reloadRegistration(t *testing.T, database *gorm.DB, id uuid.UUID) models.Registration {
	t.Helper()
	var reg models.Registration
	if err := database.First(&reg, "id = ?", id).Error; err != nil {
		t.Fatalf("reload registration: %v", err)
	}
	return reg
}

func TestRegisterOutcomes(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(48 * time.Hour)

	tests := []struct {
		name             string
		capacity         int
		prefill          int
		requiresApproval bool
		eventTime        time.Time
		wantStatus       models.RegistrationStatus
		wantOutcome      notify.Outcome
	}{
		{
			name:        "seat available confirms",
			capacity:    2,
			eventTime:   future,
			wantStatus:  models.StatusConfirmed,
			wantOutcome: notify.OutcomeConfirmed,
		},
		{
			name:        "full event waitlists",
			capacity:    1,
			prefill:     1,
			eventTime:   future,
			wantStatus:  models.StatusWaitlisted,
			wantOutcome: notify.OutcomeWaitlisted,
		},
		{
			name:             "approval required pends",
			capacity:         5,
			requiresApproval: true,
			eventTime:        future,
			wantStatus:       models.StatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, database, rec := newTestService(t)
			organizer := seedUser(t, database, "organizer", models.RoleMember)
			event := seedEvent(t, database, organizer, tt.capacity, tt.eventTime, tt.requiresApproval)

			for i := 0; i < tt.prefill; i++ {
				filler := seedUser(t, database, "filler", models.RoleMember)
				if _, err := svc.Register(context.Background(), filler, event.ID, now); err != nil {
					t.Fatalf("prefill register: %v", err)
				}
			}
			gotBefore := len(rec.Events())

			member := seedUser(t, database, "member", models.RoleMember)
			reg, err := svc.Register(context.Background(), member, event.ID, now)
			if err != nil {
				t.Fatalf("register: %v", err)
			}
			if reg.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", reg.Status, tt.wantStatus)
			}

			events := rec.Events()[gotBefore:]
			if tt.wantOutcome == "" {
				if len(events) != 0 {
					t.Errorf("expected no notification, got %v", events)
				}
			} else {
				if len(events) != 1 || events[0].Outcome != tt.wantOutcome {
					t.Errorf("notifications = %v, want one %s", events, tt.wantOutcome)
				}
			}
		})
	}
}

func TestRegisterRejections(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, database, _ := newTestService(t)
	organizer := seedUser(t, database, "organizer", models.RoleMember)
	member := seedUser(t, database, "member", models.RoleMember)

	t.Run("event already started", func(t *testing.T) {
		past := seedEvent(t, database, organizer, 5, now.Add(-time.Hour), false)
		if _, err := svc.Register(context.Background(), member, past.ID, now); !errors.Is(err, ErrEventInPast) {
			t.Errorf("err = %v, want ErrEventInPast", err)
		}
	})

	t.Run("missing event", func(t *testing.T) {
		if _, err := svc.Register(context.Background(), member, uuid.New(), now); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("live duplicate rejected, cancelled allows re-register", func(t *testing.T) {
		event := seedEvent(t, database, organizer, 5, now.Add(24*time.Hour), false)
		first, err := svc.Register(context.Background(), member, event.ID, now)
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		if _, err := svc.Register(context.Background(), member, event.ID, now); !errors.Is(err, ErrDuplicateRegistration) {
			t.Errorf("err = %v, want ErrDuplicateRegistration", err)
		}
		if _, err := svc.Cancel(context.Background(), member, first.ID, now); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if _, err := svc.Register(context.Background(), member, event.ID, now.Add(time.Minute)); err != nil {
			t.Errorf("re-register after cancel: %v", err)
		}
	})
}

// The service's duplicate check is a count inside a read-committed
// transaction, so two concurrent registrations by the same user can both pass
// it. The partial unique index on live (user, event) pairs is what actually
// holds the invariant; exercise it by inserting past the service layer.
func TestLiveRegistrationUniqueIndex(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, database, _ := newTestService(t)
	organizer := seedUser(t, database, "organizer", models.RoleMember)
	event := seedEvent(t, database, organizer, 5, now.Add(24*time.Hour), false)
	member := seedUser(t, database, "member", models.RoleMember)

	first := models.Registration{UserID: member.ID, EventID: event.ID, Status: models.StatusConfirmed, RegisteredAt: now}
	if err := database.Create(&first).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}

	second := models.Registration{UserID: member.ID, EventID: event.ID, Status: models.StatusWaitlisted, RegisteredAt: now}
	if err := database.Create(&second).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("second live insert err = %v, want gorm.ErrDuplicatedKey", err)
	}

	// Cancelled rows are outside the index: cancelling the live row opens
	// the pair up again.
	if err := database.Model(&first).Update("status", models.StatusCancelled).Error; err != nil {
		t.Fatalf("cancel first: %v", err)
	}
	replacement := models.Registration{UserID: member.ID, EventID: event.ID, Status: models.StatusConfirmed, RegisteredAt: now.Add(time.Minute)}
	if err := database.Create(&replacement).Error; err != nil {
		t.Errorf("insert after cancel: %v", err)
	}

	// Soft-deleted rows are outside it too.
	if err := database.Delete(&replacement).Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	again := models.Registration{UserID: member.ID, EventID: event.ID, Status: models.StatusConfirmed, RegisteredAt: now.Add(2 * time.Minute)}
	if err := database.Create(&again).Error; err != nil {
		t.Errorf("insert after soft delete: %v", err)
	}
}

func TestRegisterConcurrentNeverOverbooks(t *testing.T) {
	const capacity = 3
	const contenders = 10
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	svc, database, _ := newTestService(t)
	organizer := seedUser(t, database, "organizer", models.RoleMember)
	event := seedEvent(t, database, organizer, capacity, now.Add(24*time.Hour), false)

	users := make([]models.User, contenders)
	for i := range users {
		users[i] = seedUser(t, database, "contender", models.RoleMember)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, contenders)
	for _, user := range users {
		wg.Add(1)
		go func(u models.User) {
			defer wg.Done()
			if _, err := svc.Register(context.Background(), u, event.ID, now); err != nil {
				errCh <- err
			}
		}(user)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent register: %v", err)
	}

	var confirmed, waitlisted int64
	if err := database.Model(&models.Registration{}).
		Where("event_id = ? AND status = ?", event.ID, models.StatusConfirmed).
		Count(&confirmed).Error; err != nil {
		t.Fatalf("count confirmed: %v", err)
	}
	if err := database.Model(&models.Registration{}).
		Where("event_id = ? AND status = ?", event.ID, models.StatusWaitlisted).
		Count(&waitlisted).Error; err != nil {
		t.Fatalf("count waitlisted: %v", err)
	}

	if confirmed != capacity {
		t.Errorf("confirmed = %d, want %d", confirmed, capacity)
	}
	if waitlisted != contenders-capacity {
		t.Errorf("waitlisted = %d, want %d", waitlisted, contenders-capacity)
	}
	if got := reloadEvent(t, database, event.ID).ConfirmedCount; got != capacity {
		t.Errorf("confirmed_count = %d, want %d", got, capacity)
	}
}

func TestCancelPromotesOldestWaitlisted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, database, rec := newTestService(t)
	organizer := seedUser(t, database, "organizer", models.RoleMember)
	event := seedEvent(t, database, organizer, 1, now.Add(24*time.Hour), false)

	holder := seedUser(t, database, "holder", models.RoleMember)
	early := seedUser(t, database, "early", models.RoleMember)
	late := seedUser(t, database, "late", models.RoleMember)

	held, err := svc.Register(context.Background(), holder, event.ID, now)
	if err != nil {
		t.Fatalf("register holder: %v", err)
	}
	earlyReg, err := svc.Register(context.Background(), early, event.ID, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("register early: %v", err)
	}
	lateReg, err := svc.Register(context.Background(), late, event.ID, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("register late: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), holder, held.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if got := reloadRegistration(t, database, earlyReg.ID).Status; got != models.StatusConfirmed {
		t.Errorf("early status = %s, want confirmed", got)
	}
	if got := reloadRegistration(t, database, lateReg.ID).Status; got != models.StatusWaitlisted {
		t.Errorf("late status = %s, want waitlisted", got)
	}
	if got := reloadEvent(t, database, event.ID).ConfirmedCount; got != 1 {
		t.Errorf("confirmed_count = %d, want 1", got)
	}

	var promoted int
	for _, n := range rec.Events() {
		if n.Outcome == notify.OutcomePromoted {
			promoted++
			if n.UserID != early.ID {
				t.Errorf("promoted user = %s, want %s", n.UserID, early.ID)
			}
		}
	}
	if promoted != 1 {
		t.Errorf("promoted notifications = %d, want 1", promoted)
	}
}

func TestCancelDoesNotPromoteOnApprovalEvents(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, database, _ := newTestService(t)
	organizer := seedUser(t, database, "organizer", models.RoleMember)
	event := seedEvent(t, database, organizer, 1, now.Add(24*time.Hour), true)

	holder := seedUser(t, database, "holder", models.RoleMember)
	waiter := seedUser(t, database, "waiter", models.RoleMember)

	held := models.Registration{UserID: holder.ID, EventID: event.ID, Status: models.StatusConfirmed, RegisteredAt: now}
	if err := database.Create(&held).Error; err != nil {
		t.Fatalf("seed confirmed: %v", err)
	}
	if err := database.Model(&models.Event{}).Where("id = ?", event.ID).
		Update("confirmed_count", 1).Error; err != nil {
		t.Fatalf("seed counter: %v", err)
	}
	waiting := models.Registration{UserID: waiter.ID, EventID: event.ID, Status: models.StatusWaitlisted, RegisteredAt: now}
	if err := database.Create(&waiting).Error; err != nil {
		t.Fatalf("seed waitlisted: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), holder, held.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if got := reloadRegistration(t, database, waiting.ID).Status; got != models.StatusWaitlisted {
		t.Errorf("waiter status = %s, want waitlisted (approval events never auto-promote)", got)
	}
	if got := reloadEvent(t, database, event.ID).ConfirmedCount; got != 0 {
		t.Errorf("confirmed_count = %d, want 0", got)
	}
}

func TestApprove(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("organizer confirms pending and claims seat", func(t *testing.T) {
		svc, database, rec := newTestService(t)
		organizer := seedUser(t, database, "organizer", models.RoleMember)
		event := seedEvent(t, database, organizer, 2, now.Add(24*time.Hour), true)
		member := seedUser(t, database, "member", models.RoleMember)

		pending, err := svc.Register(context.Background(), member, event.ID, now)
		if err != nil {
			t.Fatalf("register: %v", err)
		}

		reg, err := svc.Transition(context.Background(), organizer, pending.ID, models.StatusConfirmed, now)
		if err != nil {
			t.Fatalf("approve: %v", err)
		}
		if reg.Status != models.StatusConfirmed {
			t.Errorf("status = %s, want confirmed", reg.Status)
		}
		if got := reloadEvent(t, database, event.ID).ConfirmedCount; got != 1 {
			t.Errorf("confirmed_count = %d, want 1", got)
		}

		events := rec.Events()
		if len(events) != 1 || events[0].Outcome != notify.OutcomeApproved {
			t.Errorf("notifications = %v, want one approved", events)
		}
	})

	t.Run("approval on full event is rejected", func(t *testing.T) {
		svc, database, _ := newTestService(t)
		organizer := seedUser(t, database, "organizer", models.RoleMember)
		event := seedEvent(t, database, organizer, 1, now.Add(24*time.Hour), true)

		first, err := svc.Register(context.Background(), seedUser(t, database, "first", models.RoleMember), event.ID, now)
		if err != nil {
			t.Fatalf("register first: %v", err)
		}
		second, err := svc.Register(context.Background(), seedUser(t, database, "second", models.RoleMember), event.ID, now)
		if err != nil {
			t.Fatalf("register second: %v", err)
		}
		if _, err := svc.Transition(context.Background(), organizer, first.ID, models.StatusConfirmed, now); err != nil {
			t.Fatalf("approve first: %v", err)
		}

		if _, err := svc.Transition(context.Background(), organizer, second.ID, models.StatusConfirmed, now); !errors.Is(err, ErrCapacityExceeded) {
			t.Errorf("err = %v, want ErrCapacityExceeded", err)
		}
		if got := reloadEvent(t, database, event.ID).ConfirmedCount; got != 1 {
			t.Errorf("confirmed_count = %d, want 1 after rejected approval", got)
		}
	})

	t.Run("non-organizer cannot approve", func(t *testing.T) {
		svc, database, _ := newTestService(t)
		organizer := seedUser(t, database, "organizer", models.RoleMember)
		event := seedEvent(t, database, organizer, 2, now.Add(24*time.Hour), true)
		member := seedUser(t, database, "member", models.RoleMember)
		stranger := seedUser(t, database, "stranger", models.RoleMember)

		pending, err := svc.Register(context.Background(), member, event.ID, now)
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		if _, err := svc.Transition(context.Background(), stranger, pending.ID, models.StatusConfirmed, now); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("err = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("admin may approve", func(t *testing.T) {
		svc, database, _ := newTestService(t)
		organizer := seedUser(t, database, "organizer", models.RoleMember)
		event := seedEvent(t, database, organizer, 2, now.Add(24*time.Hour), true)
		member := seedUser(t, database, "member", models.RoleMember)
		admin := seedUser(t, database, "admin", models.RoleAdmin)

		pending, err := svc.Register(context.Background(), member, event.ID, now)
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		if _, err := svc.Transition(context.Background(), admin, pending.ID, models.StatusConfirmed, now); err != nil {
			t.Errorf("admin approve: %v", err)
		}
	})
}

func TestTransitionIdempotentAndInvalid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, database, _ := newTestService(t)
	organizer := seedUser(t, database, "organizer", models.RoleMember)
	event := seedEvent(t, database, organizer, 5, now.Add(24*time.Hour), false)
	member := seedUser(t, database, "member", models.RoleMember)

	reg, err := svc.Register(context.Background(), member, event.ID, now)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// Re-confirming a confirmed registration must not claim another seat.
	if _, err := svc.Transition(context.Background(), organizer, reg.ID, models.StatusConfirmed, now); err != nil {
		t.Fatalf("re-confirm: %v", err)
	}
	if got := reloadEvent(t, database, event.ID).ConfirmedCount; got != 1 {
		t.Errorf("confirmed_count = %d, want 1 after idempotent confirm", got)
	}

	if _, err := svc.Transition(context.Background(), organizer, reg.ID, models.StatusPending, now); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("confirmed->pending err = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.Transition(context.Background(), organizer, reg.ID, "frobnicated", now); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("unknown status err = %v, want ErrInvalidTransition", err)
	}
}

func TestDemotionOffersSeatToWaitlistFirst(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, database, rec := newTestService(t)
	organizer := seedUser(t, database, "organizer", models.RoleMember)
	event := seedEvent(t, database, organizer, 1, now.Add(24*time.Hour), false)

	holder := seedUser(t, database, "holder", models.RoleMember)
	waiter := seedUser(t, database, "waiter", models.RoleMember)

	held, err := svc.Register(context.Background(), holder, event.ID, now)
	if err != nil {
		t.Fatalf("register holder: %v", err)
	}
	waiting, err := svc.Register(context.Background(), waiter, event.ID, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("register waiter: %v", err)
	}

	demoted, err := svc.Transition(context.Background(), organizer, held.ID, models.StatusWaitlisted, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("demote: %v", err)
	}
	if demoted.Status != models.StatusWaitlisted {
		t.Errorf("demoted status = %s, want waitlisted", demoted.Status)
	}
	if got := reloadRegistration(t, database, waiting.ID).Status; got != models.StatusConfirmed {
		t.Errorf("waiter status = %s, want confirmed", got)
	}
	if got := reloadEvent(t, database, event.ID).ConfirmedCount; got != 1 {
		t.Errorf("confirmed_count = %d, want 1", got)
	}

	// The demoted registration must not be re-promoted by its own demotion.
	var promotedTo []notify.Enrollment
	for _, n := range rec.Events() {
		if n.Outcome == notify.OutcomePromoted {
			promotedTo = append(promotedTo, n)
		}
	}
	if len(promotedTo) != 1 || promotedTo[0].UserID != waiter.ID {
		t.Errorf("promotions = %v, want exactly one for waiter", promotedTo)
	}
}

func TestCancelAuthz(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, database, _ := newTestService(t)
	organizer := seedUser(t, database, "organizer", models.RoleMember)
	event := seedEvent(t, database, organizer, 5, now.Add(24*time.Hour), false)
	member := seedUser(t, database, "member", models.RoleMember)
	stranger := seedUser(t, database, "stranger", models.RoleMember)

	reg, err := svc.Register(context.Background(), member, event.ID, now)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), stranger, reg.ID, now); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("stranger cancel err = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.Cancel(context.Background(), organizer, reg.ID, now); err != nil {
		t.Errorf("organizer cancel: %v", err)
	}
}

func TestConfirmAttendance(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, database, _ := newTestService(t)
	organizer := seedUser(t, database, "organizer", models.RoleMember)
	event := seedEvent(t, database, organizer, 5, now.Add(time.Hour), false)
	member := seedUser(t, database, "member", models.RoleMember)

	reg, err := svc.Register(context.Background(), member, event.ID, now)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.ConfirmAttendance(context.Background(), organizer, reg.ID, now); !errors.Is(err, ErrEventNotYetEnded) {
		t.Errorf("before event err = %v, want ErrEventNotYetEnded", err)
	}

	after := event.EventTime.Add(time.Hour)
	if _, err := svc.ConfirmAttendance(context.Background(), member, reg.ID, after); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("member confirm err = %v, want ErrUnauthorized", err)
	}

	got, err := svc.ConfirmAttendance(context.Background(), organizer, reg.ID, after)
	if err != nil {
		t.Fatalf("confirm attendance: %v", err)
	}
	if !got.AttendanceConfirmed {
		t.Error("attendance_confirmed not set")
	}

	// Confirming twice awards once.
	if _, err := svc.ConfirmAttendance(context.Background(), organizer, reg.ID, after); err != nil {
		t.Fatalf("second confirm: %v", err)
	}

	var user models.User
	if err := database.First(&user, "id = ?", member.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if user.Score != AttendanceAward {
		t.Errorf("score = %d, want %d", user.Score, AttendanceAward)
	}
}
