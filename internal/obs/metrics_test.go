package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/entries/01H4ABCDEF":        "/v1/entries/:id",
		"/v1/entries/bulk":              "/v1/entries/bulk",
		"/v1/entries":                   "/v1/entries",
		"/v1/attendance?page=2":         "/v1/attendance",
		"/v1/notifications/stream":      "/v1/notifications/stream",
		"/v1/entries/01H4ABCDEF?x=1":    "/v1/entries/:id",
		"/v1/team/assign":               "/v1/team/assign",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
