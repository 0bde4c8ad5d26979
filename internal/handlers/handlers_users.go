package handlers

import (
	"net/http"
	"strconv"
)

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	user, err := a.enroll.CreateUser(r.Context(), req.Name, req.Email)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"user": newUserResponse(user)})
}

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	users, err := a.enroll.Leaderboard(r.Context(), limit)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, newUserResponse(user))
	}
	respondJSON(w, http.StatusOK, map[string]any{"leaderboard": resp})
}
