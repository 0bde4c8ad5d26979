package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"enrolld/internal/audit"
	"enrolld/internal/deletion"
	"enrolld/internal/enroll"
	"enrolld/internal/models"
)

// pathEntity maps the URL segment onto a cascade root type.
func pathEntity(r *http.Request) (deletion.EntityType, error) {
	switch chi.URLParam(r, "entityType") {
	case "users":
		return deletion.EntityUser, nil
	case "events":
		return deletion.EntityEvent, nil
	default:
		return "", errors.New("entity type must be users or events")
	}
}

func requestMeta(r *http.Request) deletion.RequestMeta {
	return deletion.RequestMeta{
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}

func (a *API) handleDeletionPreview(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	entityType, err := pathEntity(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	entityID, err := pathUUID(r, "entityID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	preview, err := a.admin.Preview(r.Context(), actor, entityType, entityID)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"will_delete": preview})
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	entityType, err := pathEntity(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	entityID, err := pathUUID(r, "entityID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	// The reason arrives either as a query parameter or as a JSON body.
	reason := r.URL.Query().Get("reason")
	if reason == "" && r.ContentLength > 0 {
		var req struct {
			Reason string `json:"reason"`
		}
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		reason = req.Reason
	}

	job, err := a.admin.RequestDelete(r.Context(), actor, entityType, entityID, reason, requestMeta(r), a.now())
	if err != nil {
		a.respondDomainError(w, err)
		return
	}

	// The cascade runs in the background; this acknowledgement only means
	// the job is durably queued.
	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID,
		"async":  true,
	})
}

func (a *API) handleRestore(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	entityType, err := pathEntity(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	entityID, err := pathUUID(r, "entityID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	if err := a.admin.Restore(r.Context(), actor, entityType, entityID, requestMeta(r)); err != nil {
		a.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"restored": true})
}

func (a *API) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	if !actor.IsAdmin() {
		a.respondDomainError(w, enroll.ErrUnauthorized)
		return
	}

	var filter audit.Filter
	if raw := r.URL.Query().Get("admin"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, errors.New("invalid admin filter"))
			return
		}
		filter.ActorID = &id
	}
	if raw := r.URL.Query().Get("action"); raw != "" {
		action := models.AuditAction(raw)
		if action != models.AuditActionDelete && action != models.AuditActionRestore {
			respondError(w, http.StatusBadRequest, errors.New("invalid action filter"))
			return
		}
		filter.Action = &action
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := a.audits.Recent(r.Context(), filter)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}

	resp := make([]auditResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, newAuditResponse(entry))
	}
	respondJSON(w, http.StatusOK, map[string]any{"audit": resp})
}
