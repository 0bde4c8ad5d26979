package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"enrolld/internal/enroll"
)

type eventRequest struct {
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	Capacity         int        `json:"capacity"`
	EventTime        time.Time  `json:"event_time"`
	CategoryID       *uuid.UUID `json:"category_id"`
	RequiresApproval bool       `json:"requires_approval"`
}

func (req eventRequest) input() enroll.EventInput {
	return enroll.EventInput{
		Name:             req.Name,
		Description:      req.Description,
		Capacity:         req.Capacity,
		EventTime:        req.EventTime,
		CategoryID:       req.CategoryID,
		RequiresApproval: req.RequiresApproval,
	}
}

func (a *API) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}

	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	event, err := a.enroll.CreateEvent(r.Context(), actor, req.input(), a.now())
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"event": newEventResponse(event)})
}

func (a *API) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	eventID, err := pathUUID(r, "eventID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	event, err := a.enroll.UpdateEvent(r.Context(), actor, eventID, req.input())
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"event": newEventResponse(event)})
}

func (a *API) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathUUID(r, "eventID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	event, err := a.enroll.GetEvent(r.Context(), eventID)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"event": newEventResponse(event)})
}

func (a *API) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := a.enroll.ListUpcomingEvents(r.Context(), a.now())
	if err != nil {
		a.respondDomainError(w, err)
		return
	}

	resp := make([]eventResponse, 0, len(events))
	for _, event := range events {
		resp = append(resp, newEventResponse(event))
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": resp})
}

func (a *API) handleEventRegistrations(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	eventID, err := pathUUID(r, "eventID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	regs, err := a.enroll.EventRegistrations(r.Context(), actor, eventID)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}

	resp := make([]registrationResponse, 0, len(regs))
	for _, reg := range regs {
		resp = append(resp, newRegistrationResponse(reg))
	}
	respondJSON(w, http.StatusOK, map[string]any{"registrations": resp})
}

func (a *API) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.enroll.ListCategories(r.Context())
	if err != nil {
		a.respondDomainError(w, err)
		return
	}

	type categoryResponse struct {
		ID    uuid.UUID `json:"id"`
		Name  string    `json:"name"`
		Color string    `json:"color,omitempty"`
		Icon  string    `json:"icon,omitempty"`
	}
	resp := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, categoryResponse{ID: c.ID, Name: c.Name, Color: c.Color, Icon: c.Icon})
	}
	respondJSON(w, http.StatusOK, map[string]any{"categories": resp})
}
