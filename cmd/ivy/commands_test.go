package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kalambet/ivy/internal/profile"
)

var ctx = context.Background()

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.mu.Lock()
		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})
		ts.mu.Unlock()

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			if resp == "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"session not found","type":"not_found_error"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

func (ts *testServer) recorded() []recordedRequest {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]recordedRequest(nil), ts.requests...)
}

func TestClient_SendsBearerToken(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	resp, err := ts.client().get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := decodeJSON(resp, nil); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	reqs := ts.recorded()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	if reqs[0].Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", reqs[0].Auth)
	}
}

func TestClient_ServerStopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	_, err := ts.client().get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestDecodeJSON_ErrorStatus(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	resp, err := ts.client().get(ctx, "/sessions/missing/profile")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var snap profile.Snapshot
	err = decodeJSON(resp, &snap)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %q, want status code", err)
	}
}

func TestRunChat(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	ts := newTestServer(t, map[string]string{
		"POST /sessions":            `{"id":"s-1","greeting":"Hi! What's your name?","profile":{}}`,
		"POST /sessions/s-1/turns":  `{"reply":"Nice to meet you, Asha! Which grade are you in?","profile":{"name":"Asha","turn_count":1},"is_complete":false}`,
		"GET /sessions/s-1/profile": `{"name":"Asha","turn_count":1}`,
	})

	in := strings.NewReader("I'm Asha\n\n/profile\n/quit\n")
	var out bytes.Buffer
	if err := runChat(ctx, ts.client(), in, &out); err != nil {
		t.Fatalf("runChat: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"ivy> Hi! What's your name?",
		"(session s-1)",
		"ivy> Nice to meet you, Asha!",
		"Milestone 1/8",
		"Student: Asha.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	reqs := ts.recorded()
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requests, got %d: %+v", len(reqs), reqs)
	}
	if reqs[1].Path != "/sessions/s-1/turns" || !strings.Contains(reqs[1].Body, `"text":"I'm Asha"`) {
		t.Errorf("turn request = %+v", reqs[1])
	}
}

func TestRunChat_StopsWhenComplete(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	ts := newTestServer(t, map[string]string{
		"POST /sessions": `{"id":"s-2","greeting":"Hi!","profile":{}}`,
		"POST /sessions/s-2/turns": `{"reply":"Here are some paths.","is_complete":true,
			"profile":{"name":"Ravi","turn_count":8,"paths":["Data Scientist"],
			"recommendations":[{"path":"Data Scientist","reason":"Loves statistics"}]}}`,
	})

	in := strings.NewReader("I want to work with data\nthis line is never sent\n")
	var out bytes.Buffer
	if err := runChat(ctx, ts.client(), in, &out); err != nil {
		t.Fatalf("runChat: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "1. Data Scientist") || !strings.Contains(got, "Loves statistics") {
		t.Errorf("report missing from output:\n%s", got)
	}
	if n := len(ts.recorded()); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
}

func TestRunChat_EOF(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /sessions": `{"id":"s-3","greeting":"Hi!","profile":{}}`,
	})

	var out bytes.Buffer
	if err := runChat(ctx, ts.client(), strings.NewReader(""), &out); err != nil {
		t.Fatalf("runChat: %v", err)
	}
}

func TestFormatReport_NoPaths(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	snap := profile.Profile{Name: "Meera", Grade: "9", TurnCount: 3}.Snapshot()
	got := formatReport(snap)
	if !strings.Contains(got, "Student: Meera, grade 9.") {
		t.Errorf("summary missing:\n%s", got)
	}
	if !strings.Contains(got, "No career paths yet. Milestone 3/8 [###-----]") {
		t.Errorf("progress missing:\n%s", got)
	}
}

func TestFormatReport_PathWithoutReason(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	snap := profile.Profile{Paths: []string{"Architect", "Urban Planner"}}.Snapshot()
	got := formatReport(snap)
	if !strings.Contains(got, "1. Architect") || !strings.Contains(got, "2. Urban Planner") {
		t.Errorf("paths missing:\n%s", got)
	}
}

func TestSessionEnd_NoContent(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /sessions/s-1": "",
	})

	resp, err := ts.client().delete(ctx, "/sessions/s-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := decodeJSON(resp, nil); err != nil {
		t.Fatalf("decode error: %v", err)
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestMilestoneBar(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	tests := []struct {
		n    int
		want string
	}{
		{0, "Milestone 0/8 [--------]"},
		{3, "Milestone 3/8 [###-----]"},
		{8, "Milestone 8/8 [########]"},
		{11, "Milestone 8/8 [########]"},
	}
	for _, tt := range tests {
		if got := milestoneBar(tt.n, 8); got != tt.want {
			t.Errorf("milestoneBar(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestNoticesGoToDiag(t *testing.T) {
	oldColor, oldDiag := noColor, diag
	defer func() { noColor, diag = oldColor, oldDiag }()
	noColor = true
	var buf bytes.Buffer
	diag = &buf

	printSuccess("Session %s ended", "s-1")
	printWarning("No API token configured")
	printStatus("Engine", "%s (%s)", "ollama", "reachable")

	want := "✓ Session s-1 ended\n⚠ No API token configured\n  Engine: ollama (reachable)\n"
	if buf.String() != want {
		t.Errorf("diag = %q, want %q", buf.String(), want)
	}
}
