package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"fieldpulse.org/internal/attendance"
	"fieldpulse.org/internal/audit"
	"fieldpulse.org/internal/auth"
	"fieldpulse.org/internal/directory"
	"fieldpulse.org/internal/entry"
	"fieldpulse.org/internal/notify"
	"fieldpulse.org/internal/obs"
	"fieldpulse.org/internal/scope"
	"fieldpulse.org/internal/team"
)

var errInvalidCursor = errors.New("page and limit must be integers")

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// handleDomainError maps sentinel errors to HTTP statuses. Unknown errors
// log in full and surface opaque.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, directory.ErrInvalidInput),
		errors.Is(err, entry.ErrInvalidInput),
		errors.Is(err, attendance.ErrInvalidInput),
		errors.Is(err, notify.ErrInvalidInput),
		errors.Is(err, team.ErrInvalidTarget):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrBadCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, scope.ErrOutOfScope),
		errors.Is(err, team.ErrForbidden),
		errors.Is(err, team.ErrSuperadminProtected):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, directory.ErrNotFound),
		errors.Is(err, entry.ErrNotFound),
		errors.Is(err, attendance.ErrNotFound),
		errors.Is(err, notify.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, team.ErrAlreadyAssigned),
		errors.Is(err, team.ErrNothingToUnassign),
		errors.Is(err, team.ErrContention),
		errors.Is(err, directory.ErrEmailTaken),
		errors.Is(err, directory.ErrVersionConflict),
		errors.Is(err, entry.ErrVersionConflict),
		errors.Is(err, entry.ErrContention),
		errors.Is(err, attendance.ErrAlreadyCheckedIn),
		errors.Is(err, attendance.ErrNotCheckedIn),
		errors.Is(err, attendance.ErrAlreadyCheckedOut),
		errors.Is(err, attendance.ErrOnLeave):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		obs.LogEvent(map[string]any{
			"level": "error",
			"msg":   "internal error",
			"path":  r.URL.Path,
			"error": err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints whose body is optional: an
// empty body leaves dst untouched instead of failing.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
