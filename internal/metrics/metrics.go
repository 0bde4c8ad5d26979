// Package metrics exposes prometheus counters for the enrollment core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registrations counts registration attempts by resolved outcome
	// (pending, confirmed, waitlisted, rejected).
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrolld_registrations_total",
		Help: "Registration attempts by resolved outcome.",
	}, []string{"outcome"})

	// Promotions counts waitlist promotions into confirmed seats.
	Promotions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enrolld_promotions_total",
		Help: "Waitlisted registrations promoted to confirmed.",
	})

	// AttendanceAwards counts score awards for confirmed attendance.
	AttendanceAwards = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enrolld_attendance_awards_total",
		Help: "Attendance confirmations that awarded score points.",
	})

	// DeletionJobs counts cascade job executions by result
	// (completed, not_found, failed, malformed).
	DeletionJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrolld_deletion_jobs_total",
		Help: "Deletion cascade job executions by result.",
	}, []string{"result"})
)
