package keepalive

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"limitedwatch/internal/poller"
	logx "limitedwatch/pkg/logx"
)

func TestRoutes(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	st := poller.Status{State: poller.StateSleeping, Iterations: 3, LastIteration: now.Add(-time.Minute)}
	s := New(Config{}, func() poller.Status { return st }, logx.Nop())
	s.now = func() time.Time { return now }
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}

	if code, body := get("/"); code != http.StatusOK || !strings.Contains(body, "alive") {
		t.Fatalf("root = %d %q", code, body)
	}

	code, body := get("/healthz")
	var h health
	if err := json.Unmarshal([]byte(body), &h); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if code != http.StatusOK || h.Status != "ok" || h.State != "SLEEPING" || h.Iterations != 3 {
		t.Fatalf("healthz = %d %+v", code, h)
	}

	st.LastIteration = now.Add(-time.Hour)
	if code, body := get("/healthz"); code != http.StatusServiceUnavailable || !strings.Contains(body, "stale") {
		t.Fatalf("stale healthz = %d %q", code, body)
	}

	if code, body := get("/metrics"); code != http.StatusOK || !strings.Contains(body, "go_goroutines") {
		t.Fatalf("metrics = %d", code)
	}
}

func TestPprofIsOptIn(t *testing.T) {
	status := func() poller.Status { return poller.Status{} }
	for _, on := range []bool{false, true} {
		ts := httptest.NewServer(New(Config{Pprof: on}, status, logx.Nop()).Handler())
		resp, err := http.Get(ts.URL + "/debug/pprof/")
		if err != nil {
			ts.Close()
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		ts.Close()
		if want := map[bool]int{false: http.StatusNotFound, true: http.StatusOK}[on]; resp.StatusCode != want {
			t.Fatalf("pprof=%v status %d, want %d", on, resp.StatusCode, want)
		}
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := New(Config{}, func() poller.Status { return poller.Status{} }, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Serve did not return")
	}
}
