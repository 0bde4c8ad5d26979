package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"enrolld/internal/deletion"
	"enrolld/internal/enroll"
	"enrolld/internal/models"
)

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// respondDomainError maps core sentinel errors onto HTTP status codes.
func (a *API) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, enroll.ErrNotFound):
		respondError(w, http.StatusNotFound, err)
	case errors.Is(err, enroll.ErrDuplicateRegistration),
		errors.Is(err, enroll.ErrDuplicateEmail),
		errors.Is(err, enroll.ErrCapacityExceeded),
		errors.Is(err, deletion.ErrRestoreDisabled):
		respondError(w, http.StatusConflict, err)
	case errors.Is(err, enroll.ErrEventInPast),
		errors.Is(err, enroll.ErrEventNotYetEnded),
		errors.Is(err, enroll.ErrInvalidTransition):
		respondError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, enroll.ErrUnauthorized),
		errors.Is(err, deletion.ErrSelfDelete):
		respondError(w, http.StatusForbidden, err)
	case errors.Is(err, enroll.ErrValidation):
		respondError(w, http.StatusBadRequest, err)
	default:
		a.log.Error().Err(err).Msg("internal error")
		respondError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

// actor resolves the acting user from the X-Actor-ID header set by the
// upstream identity layer. The core still performs its own authorization
// checks on top of this.
func (a *API) actor(r *http.Request) (models.User, error) {
	raw := r.Header.Get("X-Actor-ID")
	if raw == "" {
		return models.User{}, enroll.ErrUnauthorized
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return models.User{}, enroll.ErrUnauthorized
	}

	var user models.User
	if err := a.db.WithContext(r.Context()).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, enroll.ErrUnauthorized
		}
		return models.User{}, err
	}
	return user, nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("invalid " + name)
	}
	return id, nil
}
