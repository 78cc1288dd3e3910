package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"fieldpulse.org/internal/obs"
)

func TestRequestIDGeneratedAndReflected(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get("X-Request-Id")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/info", nil))
	if seen == "" {
		t.Fatal("request id was not generated")
	}
	if rec.Header().Get("X-Request-Id") != seen {
		t.Fatal("request id not reflected in response")
	}
}

func TestRequestIDHonorsInbound(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/v1/info", nil)
	req.Header.Set("X-Request-Id", "req-abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "req-abc" {
		t.Fatalf("expected inbound id to survive, got %q", got)
	}
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	h := RequestID(RateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), 1, 1))

	req := httptest.NewRequest(http.MethodGet, "/v1/entries", nil)
	req.RemoteAddr = "203.0.113.7:4410"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatal("expected Retry-After header on 429")
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("429 body is not json: %v", err)
	}
	if body["error"] == nil || body["request_id"] == nil {
		t.Fatalf("429 body missing fields: %v", body)
	}
}

func TestRateLimitIsolatesClients(t *testing.T) {
	h := RateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), 1, 1)

	first := httptest.NewRequest(http.MethodGet, "/v1/entries", nil)
	first.RemoteAddr = "203.0.113.8:1001"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, first)
	h.ServeHTTP(httptest.NewRecorder(), first)

	other := httptest.NewRequest(http.MethodGet, "/v1/entries", nil)
	other.RemoteAddr = "203.0.113.9:1001"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Fatalf("unrelated client throttled: status %d", rec.Code)
	}
}

func TestLoggingJSONEmitsStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.Logger()
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })

	h := RequestID(LoggingJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/users", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %v\n%s", err, buf.String())
	}
	for _, key := range []string{"ts", "level", "msg", "method", "path", "status", "duration_ms", "request_id"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("log entry missing %q: %v", key, entry)
		}
	}
	if entry["status"].(float64) != http.StatusTeapot {
		t.Fatalf("wrong status logged: %v", entry["status"])
	}
	if entry["method"] != http.MethodGet || entry["path"] != "/v1/users" {
		t.Fatalf("wrong request identity logged: %v", entry)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("nosniff header missing")
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Fatal("csp header missing")
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight should not reach the handler")
	}))
	req := httptest.NewRequest(http.MethodOptions, "/v1/entries", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: status %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatal("local origin not allowed")
	}
}
