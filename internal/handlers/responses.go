package handlers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"enrolld/internal/models"
)

type userResponse struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	Score     int         `json:"score"`
	CreatedAt time.Time   `json:"created_at"`
}

func newUserResponse(u models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Score:     u.Score,
		CreatedAt: u.CreatedAt,
	}
}

type eventResponse struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	Capacity         int        `json:"capacity"`
	EventTime        time.Time  `json:"event_time"`
	OrganizerID      uuid.UUID  `json:"organizer_id"`
	CategoryID       *uuid.UUID `json:"category_id,omitempty"`
	Category         string     `json:"category,omitempty"`
	RequiresApproval bool       `json:"requires_approval"`
	ConfirmedCount   int        `json:"confirmed_count"`
	SpotsRemaining   int        `json:"spots_remaining"`
	Full             bool       `json:"full"`
	CreatedAt        time.Time  `json:"created_at"`
}

func newEventResponse(e models.Event) eventResponse {
	resp := eventResponse{
		ID:               e.ID,
		Name:             e.Name,
		Description:      e.Description,
		Capacity:         e.Capacity,
		EventTime:        e.EventTime,
		OrganizerID:      e.OrganizerID,
		CategoryID:       e.CategoryID,
		RequiresApproval: e.RequiresApproval,
		ConfirmedCount:   e.ConfirmedCount,
		SpotsRemaining:   e.SpotsRemaining(),
		Full:             e.Full(),
		CreatedAt:        e.CreatedAt,
	}
	if e.Category != nil {
		resp.Category = e.Category.Name
	}
	return resp
}

type registrationResponse struct {
	ID                  uuid.UUID                 `json:"id"`
	UserID              uuid.UUID                 `json:"user_id"`
	EventID             uuid.UUID                 `json:"event_id"`
	Status              models.RegistrationStatus `json:"status"`
	AttendanceConfirmed bool                      `json:"attendance_confirmed"`
	RegisteredAt        time.Time                 `json:"registered_at"`
}

func newRegistrationResponse(reg models.Registration) registrationResponse {
	return registrationResponse{
		ID:                  reg.ID,
		UserID:              reg.UserID,
		EventID:             reg.EventID,
		Status:              reg.Status,
		AttendanceConfirmed: reg.AttendanceConfirmed,
		RegisteredAt:        reg.RegisteredAt,
	}
}

type auditResponse struct {
	ID         uuid.UUID          `json:"id"`
	ActorID    uuid.UUID          `json:"actor_id"`
	ActorName  string             `json:"actor_name,omitempty"`
	Action     models.AuditAction `json:"action"`
	TargetType string             `json:"target_type"`
	TargetID   uuid.UUID          `json:"target_id"`
	Metadata   json.RawMessage    `json:"metadata,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

func newAuditResponse(entry models.AuditLog) auditResponse {
	resp := auditResponse{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		TargetType: entry.TargetType,
		TargetID:   entry.TargetID,
		Metadata:   json.RawMessage(entry.Metadata),
		CreatedAt:  entry.CreatedAt,
	}
	if entry.Actor != nil {
		resp.ActorName = entry.Actor.Name
	}
	return resp
}
