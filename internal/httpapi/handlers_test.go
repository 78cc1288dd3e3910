package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"fieldpulse.org/internal/attendance"
	"fieldpulse.org/internal/auth"
	"fieldpulse.org/internal/directory"
	"fieldpulse.org/internal/entry"
	"fieldpulse.org/internal/notify"
	"fieldpulse.org/internal/scope"
	"fieldpulse.org/internal/team"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	users := directory.NewInMemory()
	resolver := scope.NewResolver(users)
	dispatcher := notify.NewDispatcher(notify.NewInMemory(), notify.NewHub())
	att, err := attendance.NewService(attendance.NewInMemory(), resolver, "09:15")
	if err != nil {
		t.Fatalf("attendance service: %v", err)
	}
	tokens, err := auth.NewTokens("test-secret", "fieldpulse", time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}

	api := New(Deps{
		Users:      directory.NewService(users),
		UserStore:  users,
		Roster:     team.NewRoster(users, resolver),
		Graph:      team.NewGraph(users, dispatcher),
		Entries:    entry.NewService(entry.NewInMemory(), resolver, dispatcher),
		Attendance: att,
		Notifier:   dispatcher,
		Tokens:     tokens,
		Version:    "test",
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, token string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values, token string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) signup(username, role string) (directory.User, string) {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/v1/auth/signup", map[string]any{
		"username": username,
		"email":    username + "@x.io",
		"password": "hunter2!",
		"role":     role,
	}, "")
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("signup %s: status %d", username, resp.StatusCode)
	}
	payload := decode[tokenResponse](c.t, resp)
	if payload.Token == "" {
		c.t.Fatal("empty token issued")
	}
	return payload.User, payload.Token
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestSignupAndEntryFlow(t *testing.T) {
	c := newTestAPI(t)
	_, token := c.signup("rana", "admin")

	// Creating requires a token.
	resp := c.do(http.MethodPost, "/v1/entries", map[string]any{"customerName": "Acme"}, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/entries", map[string]any{
		"customerName": "Acme",
		"status":       "Interested",
		"products":     []map[string]any{{"name": "Pump", "quantity": 2, "price": 1500}},
	}, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create entry: status %d", resp.StatusCode)
	}
	created := decode[entry.Entry](t, resp)
	if created.Status != entry.StatusInterested || len(created.History) != 1 {
		t.Fatalf("unexpected entry: %+v", created)
	}

	resp = c.do(http.MethodPut, "/v1/entries/"+created.ID, map[string]any{
		"remarks": "second visit planned",
	}, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edit entry: status %d", resp.StatusCode)
	}
	edited := decode[entry.Entry](t, resp)
	if len(edited.History) != 2 {
		t.Fatalf("expected 2 history records, got %d", len(edited.History))
	}

	resp = c.get("/v1/entries", url.Values{"status": {"Interested"}}, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list entries: status %d", resp.StatusCode)
	}
	listed := decode[listEntriesResponse](t, resp)
	if listed.Pagination.TotalRecords != 1 || len(listed.Entries) != 1 {
		t.Fatalf("unexpected listing: %+v", listed.Pagination)
	}

	resp = c.do(http.MethodDelete, "/v1/entries/"+created.ID, nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete entry: status %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDelegationAndNotificationsFlow(t *testing.T) {
	c := newTestAPI(t)
	manager, managerToken := c.signup("manager", "admin")
	worker, workerToken := c.signup("worker", "others")

	resp := c.do(http.MethodPost, "/v1/team/assign", map[string]any{"targetId": worker.ID}, managerToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assign: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Duplicate assignment is a conflict.
	resp = c.do(http.MethodPost, "/v1/team/assign", map[string]any{"targetId": worker.ID}, managerToken)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate assign: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/team", nil, workerToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("team: status %d", resp.StatusCode)
	}
	teamResp := decode[struct {
		Team []directory.User `json:"team"`
	}](t, resp)
	if len(teamResp.Team) != 1 || teamResp.Team[0].ID != manager.ID {
		t.Fatalf("worker team should be the manager, got %+v", teamResp.Team)
	}

	resp = c.get("/v1/notifications", nil, workerToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("notifications: status %d", resp.StatusCode)
	}
	notes := decode[listNotificationsResponse](t, resp)
	if notes.Pagination.TotalRecords != 1 {
		t.Fatalf("worker should hold one notification, got %d", notes.Pagination.TotalRecords)
	}

	resp = c.do(http.MethodPost, "/v1/notifications/read", map[string]any{"ids": []string{}}, workerToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark read: status %d", resp.StatusCode)
	}
	marked := decode[map[string]int](t, resp)
	if marked["updated"] != 1 {
		t.Fatalf("expected 1 marked read, got %d", marked["updated"])
	}

	resp = c.do(http.MethodDelete, "/v1/notifications", nil, workerToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The manager cannot see entries of users outside its scope.
	stranger, strangerToken := c.signup("stranger", "others")
	resp = c.do(http.MethodPost, "/v1/entries", map[string]any{"customerName": "Hidden"}, strangerToken)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("stranger create: status %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = c.get("/v1/entries", url.Values{"selectedUserId": {stranger.ID}}, managerToken)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-scope filter should be 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestChangePasswordFlow(t *testing.T) {
	c := newTestAPI(t)
	_, token := c.signup("casey", "others")

	resp := c.do(http.MethodPost, "/v1/auth/password", map[string]any{
		"currentPassword": "wrong",
		"newPassword":     "changed1!",
	}, token)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong current password: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/auth/password", map[string]any{
		"currentPassword": "hunter2!",
		"newPassword":     "changed1!",
	}, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change password: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/auth/login", map[string]any{
		"email":    "casey@x.io",
		"password": "changed1!",
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login with new password: status %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAttendanceFlow(t *testing.T) {
	c := newTestAPI(t)
	_, token := c.signup("drew", "others")

	// Out-of-range coordinates are a validation error.
	resp := c.do(http.MethodPost, "/v1/attendance/checkin", map[string]any{
		"location": map[string]any{"lat": 91.0, "lng": 0.0},
	}, token)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad coordinates: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/attendance/checkin", map[string]any{
		"location": map[string]any{"lat": 43.238, "lng": 76.889},
	}, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("checkin: status %d", resp.StatusCode)
	}
	rec := decode[attendance.Record](t, resp)
	if rec.CheckInLocation == nil || rec.CheckInLocation.Lat != 43.238 {
		t.Fatalf("check-in location not echoed: %+v", rec.CheckInLocation)
	}

	resp = c.do(http.MethodPost, "/v1/attendance/checkin", nil, token)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double checkin: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/attendance/checkout", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("checkout: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/attendance", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list attendance: status %d", resp.StatusCode)
	}
	listed := decode[listAttendanceResponse](t, resp)
	if listed.Pagination.TotalRecords != 1 {
		t.Fatalf("expected one record, got %d", listed.Pagination.TotalRecords)
	}
}

func TestHealthEndpointsArePublic(t *testing.T) {
	c := newTestAPI(t)
	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := c.get(path, nil, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}
