package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"fieldpulse.org/internal/audit"
	"fieldpulse.org/internal/entry"
	"fieldpulse.org/internal/page"
)

type listEntriesResponse struct {
	Entries    []entry.Entry `json:"entries"`
	Pagination page.Info     `json:"pagination"`
}

func (a *API) handleEntriesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listEntries(w, r)
	case http.MethodPost:
		a.createEntry(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleEntryResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/entries/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodPut:
		a.editEntry(w, r, id)
	case http.MethodDelete:
		a.deleteEntry(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleEntriesBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, err := a.actor(r)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	var reqs []entry.CreateRequest
	if err := decodeJSON(w, r, &reqs); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	res, err := a.entries.BulkCreate(r.Context(), actor, reqs)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "entry.bulk_create", map[string]any{
		"created": len(res.Created),
		"failed":  len(res.Failures),
	})
	code := http.StatusCreated
	if len(res.Failures) > 0 {
		code = http.StatusMultiStatus
	}
	writeJSON(w, code, res)
}

func (a *API) createEntry(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	var req entry.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	created, err := a.entries.Create(r.Context(), actor, req)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "entry.create", map[string]any{
		"entry_id": created.ID,
	})
	w.Header().Set("Location", "/v1/entries/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) editEntry(w http.ResponseWriter, r *http.Request, id string) {
	actor, err := a.actor(r)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	var edit entry.Edit
	if err := decodeJSON(w, r, &edit); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := a.entries.Edit(r.Context(), actor, id, edit)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "entry.edit", map[string]any{
		"entry_id": id,
	})
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) deleteEntry(w http.ResponseWriter, r *http.Request, id string) {
	actor, err := a.actor(r)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := a.entries.Delete(r.Context(), actor, id); err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "entry.delete", map[string]any{
		"entry_id": id,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (a *API) listEntries(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	q := r.URL.Query()

	var f entry.Filter
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := entry.ParseStatus(raw)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		f.Status = status
	}
	f.SelectedUserID = strings.TrimSpace(q.Get("selectedUserId"))
	if f.From, err = parseDate(q.Get("from")); err != nil {
		writeError(w, r, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	if f.To, err = parseDate(q.Get("to")); err != nil {
		writeError(w, r, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}
	pr, err := parsePage(q.Get("page"), q.Get("limit"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	entries, info, err := a.entries.List(r.Context(), actor, f, pr)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []entry.Entry{}
	}
	writeJSON(w, http.StatusOK, listEntriesResponse{Entries: entries, Pagination: info})
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}

func parsePage(pageRaw, limitRaw string) (page.Request, error) {
	var pr page.Request
	var err error
	if strings.TrimSpace(pageRaw) != "" {
		if pr.Page, err = strconv.Atoi(pageRaw); err != nil {
			return page.Request{}, errInvalidCursor
		}
	}
	if strings.TrimSpace(limitRaw) != "" {
		if pr.Limit, err = strconv.Atoi(limitRaw); err != nil {
			return page.Request{}, errInvalidCursor
		}
	}
	return pr, nil
}
