package handlers

import (
	"net/http"

	"enrolld/internal/models"
)

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
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

	reg, err := a.enroll.Register(r.Context(), actor, eventID, a.now())
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"registration": newRegistrationResponse(reg)})
}

func (a *API) handleCancel(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	registrationID, err := pathUUID(r, "registrationID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	reg, err := a.enroll.Cancel(r.Context(), actor, registrationID, a.now())
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"registration": newRegistrationResponse(reg)})
}

// handleApprove confirms a pending or waitlisted registration on behalf of
// the event organizer.
func (a *API) handleApprove(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	registrationID, err := pathUUID(r, "registrationID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	reg, err := a.enroll.Transition(r.Context(), actor, registrationID, models.StatusConfirmed, a.now())
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"registration": newRegistrationResponse(reg)})
}

func (a *API) handleAttendance(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	registrationID, err := pathUUID(r, "registrationID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	reg, err := a.enroll.ConfirmAttendance(r.Context(), actor, registrationID, a.now())
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"registration": newRegistrationResponse(reg)})
}
