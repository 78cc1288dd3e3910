package httpapi

import (
	"net/http"
	"strings"

	"fieldpulse.org/internal/audit"
	"fieldpulse.org/internal/directory"
)

type delegationRequest struct {
	TargetID string `json:"targetId"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, err := a.actor(r)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	users, err := a.roster.ListUsers(r.Context(), actor)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) handleTeam(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, err := a.actor(r)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	users, err := a.roster.ListTeam(r.Context(), actor)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"team": users})
}

func (a *API) handleAssign(w http.ResponseWriter, r *http.Request) {
	a.mutateDelegation(w, r, "team.assign", true)
}

func (a *API) handleUnassign(w http.ResponseWriter, r *http.Request) {
	a.mutateDelegation(w, r, "team.unassign", false)
}

func (a *API) mutateDelegation(w http.ResponseWriter, r *http.Request, event string, assign bool) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, err := a.actor(r)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	var req delegationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	targetID := strings.TrimSpace(req.TargetID)
	if targetID == "" {
		writeError(w, r, http.StatusBadRequest, "targetId is required")
		return
	}

	var target directory.User
	if assign {
		target, err = a.graph.Assign(r.Context(), actor, targetID)
	} else {
		target, err = a.graph.Unassign(r.Context(), actor, targetID)
	}
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), event, map[string]any{
		"target_id": targetID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"user": target})
}
