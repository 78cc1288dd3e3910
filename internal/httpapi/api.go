// Package httpapi is the HTTP surface of the service: a thin layer that
// decodes requests, loads the acting user, calls the domain services and
// maps their sentinel errors to statuses.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"fieldpulse.org/internal/attendance"
	"fieldpulse.org/internal/auth"
	"fieldpulse.org/internal/directory"
	"fieldpulse.org/internal/entry"
	"fieldpulse.org/internal/notify"
	"fieldpulse.org/internal/obs"
	"fieldpulse.org/internal/team"
)

// ReadyProbe checks backing-store readiness (for example a DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Users      *directory.Service
	UserStore  directory.Store
	Roster     *team.Roster
	Graph      *team.Graph
	Entries    *entry.Service
	Attendance *attendance.Service
	Notifier   *notify.Dispatcher
	Tokens     *auth.Tokens
	ReadyProbe ReadyProbe
	Version    string
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	users      *directory.Service
	userStore  directory.Store
	roster     *team.Roster
	graph      *team.Graph
	entries    *entry.Service
	attendance *attendance.Service
	notifier   *notify.Dispatcher
	tokens     *auth.Tokens
	readyProbe ReadyProbe
	version    string
}

func New(d Deps) *API {
	a := &API{
		mux:        http.NewServeMux(),
		users:      d.Users,
		userStore:  d.UserStore,
		roster:     d.Roster,
		graph:      d.Graph,
		entries:    d.Entries,
		attendance: d.Attendance,
		notifier:   d.Notifier,
		tokens:     d.Tokens,
		readyProbe: d.ReadyProbe,
		version:    d.Version,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/v1/auth/signup", a.handleSignup)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/password", a.handleChangePassword)

	// directory and delegation
	a.mux.HandleFunc("/v1/users", a.handleUsers)
	a.mux.HandleFunc("/v1/team", a.handleTeam)
	a.mux.HandleFunc("/v1/team/assign", a.handleAssign)
	a.mux.HandleFunc("/v1/team/unassign", a.handleUnassign)

	// entries
	a.mux.HandleFunc("/v1/entries", a.handleEntriesCollection)
	a.mux.HandleFunc("/v1/entries/bulk", a.handleEntriesBulk)
	a.mux.HandleFunc("/v1/entries/", a.handleEntryResource)

	// notifications
	a.mux.HandleFunc("/v1/notifications", a.handleNotifications)
	a.mux.HandleFunc("/v1/notifications/read", a.handleNotificationsRead)
	a.mux.HandleFunc("/v1/notifications/stream", a.Stream)

	// attendance
	a.mux.HandleFunc("/v1/attendance", a.handleAttendanceList)
	a.mux.HandleFunc("/v1/attendance/checkin", a.handleCheckIn)
	a.mux.HandleFunc("/v1/attendance/checkout", a.handleCheckOut)
	a.mux.HandleFunc("/v1/attendance/leave", a.handleMarkLeave)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware-wrapped handler for the server.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.withAuth(a.mux))
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "fieldpulse-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "fieldpulse-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
