package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type seenRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// newFakeServer records every request and answers with status and body.
// The returned func reports the requests seen so far.
func newFakeServer(t *testing.T, status int, body string) func() []seenRequest {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []seenRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, seenRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(b)})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	prev := serverAddr
	serverAddr = srv.URL + "/"
	t.Cleanup(func() { serverAddr = prev })
	return func() []seenRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]seenRequest(nil), seen...)
	}
}

func TestSubmitScriptRequest(t *testing.T) {
	seen := newFakeServer(t, http.StatusOK, `{"id":"a","status":"completed"}`)

	body, err := submitScript([]byte("echo hi"), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(body), `"status":"completed"`) {
		t.Fatalf("unexpected body: %s", body)
	}

	if len(seen()) != 1 {
		t.Fatalf("expected 1 request, got %d", len(seen()))
	}
	got := seen()[0]
	if got.Method != http.MethodPost || got.Path != "/scripts/execute" || got.Query != "blocking=true" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if got.Body != "echo hi" {
		t.Fatalf("expected script code as body, got %q", got.Body)
	}
}

func TestSubmitScriptNonBlockingHasNoQuery(t *testing.T) {
	seen := newFakeServer(t, http.StatusOK, `{}`)

	if _, err := submitScript([]byte("echo hi"), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q := seen()[0].Query; q != "" {
		t.Fatalf("expected no query string, got %q", q)
	}
}

func TestListScriptsRequest(t *testing.T) {
	seen := newFakeServer(t, http.StatusOK, `[]`)

	if _, err := listScripts("completed", "desc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := listScripts("", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, second := seen()[0], seen()[1]
	if first.Method != http.MethodGet || first.Path != "/scripts" || first.Query != "order=desc&status=completed" {
		t.Fatalf("unexpected filtered request: %+v", first)
	}
	if second.Path != "/scripts" || second.Query != "" {
		t.Fatalf("unexpected unfiltered request: %+v", second)
	}
}

func TestScriptIDRequests(t *testing.T) {
	seen := newFakeServer(t, http.StatusOK, `{"success":true}`)

	if _, err := getScript("abc"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := stopScript("abc"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := removeScript("abc"); err != nil {
		t.Fatalf("rm: %v", err)
	}

	want := []seenRequest{
		{Method: http.MethodGet, Path: "/scripts/abc"},
		{Method: http.MethodPost, Path: "/scripts/abc/stop"},
		{Method: http.MethodDelete, Path: "/scripts/abc"},
	}
	for i, w := range want {
		got := seen()[i]
		if got.Method != w.Method || got.Path != w.Path {
			t.Fatalf("request %d: expected %s %s, got %s %s", i, w.Method, w.Path, got.Method, got.Path)
		}
	}
}

func TestErrorEnvelopeBecomesError(t *testing.T) {
	newFakeServer(t, http.StatusNotFound, `{"success":false,"code":"NOT_FOUND","error":"script not found"}`)

	_, err := getScript("missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "script not found") || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Fatalf("unexpected error: %v", err)
	}
}
