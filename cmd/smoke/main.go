// Command smoke runs an end-to-end exercise against a running API: it signs
// up a manager and a field rep, wires the delegation, pushes an entry through
// an edit and verifies history, notifications and attendance along the way.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

func main() {
	base := os.Getenv("FIELDPULSE_ADDR")
	if base == "" {
		base = "http://localhost:8080"
	}
	suffix := fmt.Sprintf("%06d", rand.Intn(1_000_000))

	c := &client{base: base, http: &http.Client{Timeout: 5 * time.Second}}

	manager := c.signup("smoke-mgr-"+suffix, "admin")
	rep := c.signup("smoke-rep-"+suffix, "others")

	c.post("/v1/team/assign", manager.Token, map[string]any{"targetId": rep.User.ID}, http.StatusOK)

	created := struct {
		ID      string           `json:"id"`
		History []map[string]any `json:"history"`
	}{}
	c.postInto("/v1/entries", rep.Token, map[string]any{
		"customerName": "Smoke Customer " + suffix,
		"status":       "Interested",
	}, http.StatusCreated, &created)
	if len(created.History) != 1 {
		log.Fatalf("fresh entry should carry one history record, got %d", len(created.History))
	}

	edited := struct {
		History []map[string]any `json:"history"`
	}{}
	c.putInto("/v1/entries/"+created.ID, manager.Token, map[string]any{
		"remarks": "smoke follow-up",
	}, http.StatusOK, &edited)
	if len(edited.History) != 2 {
		log.Fatalf("edited entry should carry two history records, got %d", len(edited.History))
	}

	notes := struct {
		Pagination struct {
			TotalRecords int `json:"totalRecords"`
		} `json:"pagination"`
	}{}
	c.getInto("/v1/notifications", rep.Token, &notes)
	if notes.Pagination.TotalRecords == 0 {
		log.Fatal("rep should hold at least the delegation notification")
	}

	c.post("/v1/attendance/checkin", rep.Token, nil, http.StatusCreated)

	fmt.Printf("✅ fieldpulse smoke test passed: manager=%s rep=%s entry=%s\n",
		manager.User.ID, rep.User.ID, created.ID)
}

type client struct {
	base string
	http *http.Client
}

type session struct {
	Token string `json:"token"`
	User  struct {
		ID string `json:"id"`
	} `json:"user"`
}

func (c *client) signup(username, role string) session {
	var s session
	c.postInto("/v1/auth/signup", "", map[string]any{
		"username": username,
		"email":    username + "@smoke.local",
		"password": "smoke-pass-1!",
		"role":     role,
	}, http.StatusCreated, &s)
	return s
}

func (c *client) do(method, path, token string, body any, wantStatus int, out any) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			log.Fatalf("%s %s: marshal: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		log.Fatalf("%s %s: status %d, want %d", method, path, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}

func (c *client) post(path, token string, body any, wantStatus int) {
	c.do(http.MethodPost, path, token, body, wantStatus, nil)
}

func (c *client) postInto(path, token string, body any, wantStatus int, out any) {
	c.do(http.MethodPost, path, token, body, wantStatus, out)
}

func (c *client) putInto(path, token string, body any, wantStatus int, out any) {
	c.do(http.MethodPut, path, token, body, wantStatus, out)
}

func (c *client) getInto(path, token string, out any) {
	c.do(http.MethodGet, path, token, nil, http.StatusOK, out)
}
