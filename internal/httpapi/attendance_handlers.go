package httpapi

import (
	"net/http"
	"strings"

	"fieldpulse.org/internal/attendance"
	"fieldpulse.org/internal/audit"
	"fieldpulse.org/internal/geo"
	"fieldpulse.org/internal/page"
)

type markLeaveRequest struct {
	UserID string `json:"userId"`
	Day    string `json:"day"`
}

type checkRequest struct {
	Location *geo.Point `json:"location"`
}

type listAttendanceResponse struct {
	Records    []attendance.Record `json:"records"`
	Pagination page.Info           `json:"pagination"`
}

func (a *API) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, err := a.actor(r)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	var req checkRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := a.attendance.CheckIn(r.Context(), actor, req.Location)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "attendance.checkin", map[string]any{
		"status": string(rec.Status),
	})
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, err := a.actor(r)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	var req checkRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := a.attendance.CheckOut(r.Context(), actor, req.Location)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "attendance.checkout", nil)
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleMarkLeave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, err := a.actor(r)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	var req markLeaveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	day, err := parseDate(req.Day)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return
	}
	rec, err := a.attendance.MarkLeave(r.Context(), actor, strings.TrimSpace(req.UserID), day)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "attendance.leave", map[string]any{
		"user_id": rec.UserID,
		"day":     rec.Day.Format("2006-01-02"),
	})
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) handleAttendanceList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, err := a.actor(r)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	q := r.URL.Query()

	var f attendance.Filter
	f.SelectedUserID = strings.TrimSpace(q.Get("selectedUserId"))
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		f.Status = attendance.Status(raw)
	}
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

	recs, info, err := a.attendance.List(r.Context(), actor, f, pr)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	writeJSON(w, http.StatusOK, listAttendanceResponse{Records: recs, Pagination: info})
}
