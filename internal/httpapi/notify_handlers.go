package httpapi

import (
	"net/http"
	"strings"

	"fieldpulse.org/internal/audit"
	"fieldpulse.org/internal/notify"
	"fieldpulse.org/internal/page"
)

type listNotificationsResponse struct {
	Notifications []notify.Notification `json:"notifications"`
	Pagination    page.Info             `json:"pagination"`
}

type markReadRequest struct {
	IDs []string `json:"ids"`
}

func (a *API) handleNotifications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listNotifications(w, r)
	case http.MethodDelete:
		a.clearNotifications(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	q := r.URL.Query()
	pr, err := parsePage(q.Get("page"), q.Get("limit"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	unreadOnly := strings.EqualFold(q.Get("unread"), "true")

	notes, info, err := a.notifier.List(r.Context(), actor.ID, unreadOnly, pr)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if notes == nil {
		notes = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, listNotificationsResponse{Notifications: notes, Pagination: info})
}

// markRead flips read flags; an empty or missing id list marks everything.
func (a *API) handleNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, err := a.actor(r)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	var req markReadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := a.notifier.MarkRead(r.Context(), actor.ID, req.IDs)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

func (a *API) clearNotifications(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	removed, err := a.notifier.Clear(r.Context(), actor.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "notifications.clear", map[string]any{
		"removed": removed,
	})
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}
