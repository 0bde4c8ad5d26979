// Package handlers exposes the enrollment core over HTTP. The handlers are
// thin glue: identity arrives from the upstream auth layer as the X-Actor-ID
// header, and every domain decision lives in the services underneath.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"enrolld/internal/audit"
	"enrolld/internal/deletion"
	"enrolld/internal/enroll"
)

// Options configures the HTTP layer.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	// Now supplies the current time to every operation; defaults to
	// time.Now in UTC.
	Now func() time.Time
}

// API wires the services behind the HTTP surface.
type API struct {
	db     *gorm.DB
	enroll *enroll.Service
	admin  *deletion.Admin
	audits *audit.Recorder
	log    zerolog.Logger
	now    func() time.Time
	opts   Options
}

// New returns the API layer.
func New(db *gorm.DB, enrollSvc *enroll.Service, admin *deletion.Admin, audits *audit.Recorder, log zerolog.Logger, opts Options) *API {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	return &API{db: db, enroll: enrollSvc, admin: admin, audits: audits, log: log, now: now, opts: opts}
}

// Routes constructs the chi router containing all endpoints.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(a.opts.RequestTimeout))

	allowed := a.opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))
	r.Use(httprate.Limit(100, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/users", a.handleCreateUser)
		r.Get("/leaderboard", a.handleLeaderboard)
		r.Get("/categories", a.handleListCategories)

		r.Route("/events", func(r chi.Router) {
			r.Post("/", a.handleCreateEvent)
			r.Get("/", a.handleListEvents)
			r.Get("/{eventID}", a.handleGetEvent)
			r.Put("/{eventID}", a.handleUpdateEvent)
			r.Post("/{eventID}/registrations", a.handleRegister)
			r.Get("/{eventID}/registrations", a.handleEventRegistrations)
		})

		r.Route("/registrations", func(r chi.Router) {
			r.Delete("/{registrationID}", a.handleCancel)
			r.Post("/{registrationID}/approve", a.handleApprove)
			r.Post("/{registrationID}/attendance", a.handleAttendance)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/audit", a.handleAuditLog)
			r.Get("/{entityType}/{entityID}/preview", a.handleDeletionPreview)
			r.Delete("/{entityType}/{entityID}", a.handleDelete)
			r.Post("/{entityType}/{entityID}/restore", a.handleRestore)
		})
	})

	return r
}
