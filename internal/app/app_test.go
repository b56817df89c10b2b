package app

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"iddaemon/internal/config"
	"iddaemon/internal/idserver"
	"iddaemon/internal/trigger"
	logx "iddaemon/pkg/logx"
)

type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

type recorder struct {
	mu    sync.Mutex
	calls []string
	keys  []string
}

func (r *recorder) handler(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	r.calls = append(r.calls, req.Method+" "+req.URL.Path)
	r.keys = append(r.keys, req.Header.Get(idserver.APIKeyHeader))
	r.mu.Unlock()
	switch req.URL.Path {
	case idserver.PathUserIDVData:
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	case idserver.PathTransferFunds:
		_, _ = w.Write([]byte(`{}`))
	default:
		http.NotFound(w, req)
	}
}

func (r *recorder) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...), append([]string(nil), r.keys...)
}

func testConfig(baseURL, schedule string) *config.Config {
	return &config.Config{
		Environment: "test",
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Schedule:    schedule,
		HTTPTimeout: 2 * time.Second,
		Logging:     config.LoggingConfig{Level: "debug"},
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"", "soon", "-5m", "cron:not a cron"} {
		if _, err := New(testConfig("http://127.0.0.1:1", s), logx.Nop()); err == nil {
			t.Fatalf("schedule %q: expected error", s)
		}
	}
	if _, err := New(nil, logx.Nop()); err == nil {
		t.Fatal("nil config: expected error")
	}
}

func TestScheduledTicksRunInOrder(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	buf := &syncBuffer{}
	a, err := New(testConfig(srv.URL, "interval:60ms"), logx.NewJSON(buf, "debug"))
	if err != nil {
		t.Fatal(err)
	}

	started := time.Now()
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := a.Start(context.Background()); err == nil {
		t.Fatal("second Start: expected error")
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		calls, _ := rec.snapshot()
		if len(calls) >= 6 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d calls before deadline", len(calls))
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Stop(stopCtx, StopSIGTERM); err != nil {
		t.Fatal(err)
	}
	stoppedAt := time.Now()

	calls, keys := rec.snapshot()
	if len(calls)%2 != 0 {
		t.Fatalf("stop left a half tick: %v", calls)
	}
	for i := 0; i+1 < len(calls); i += 2 {
		if calls[i] != "DELETE "+idserver.PathUserIDVData || calls[i+1] != "POST "+idserver.PathTransferFunds {
			t.Fatalf("calls out of order at %d: %v", i, calls)
		}
	}
	for _, k := range keys {
		if k != "test-key" {
			t.Fatalf("api key header = %q", k)
		}
	}
	if time.Since(started) < 60*time.Millisecond {
		t.Fatal("ticks ran before one period elapsed")
	}

	// No ticks after Stop returns.
	time.Sleep(150 * time.Millisecond)
	if after, _ := rec.snapshot(); len(after) != len(calls) {
		t.Fatalf("calls after stop (%v): %d -> %d", stoppedAt, len(calls), len(after))
	}

	out := buf.String()
	for _, want := range []string{`"message":"app started"`, `"api_key_set":true`, `"reason":"sigterm"`, `"message":"stopped"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %s:\n%s", want, out)
		}
	}
	if strings.Contains(out, "test-key") {
		t.Fatal("api key leaked into logs")
	}
}

func TestRunOnce(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	a, err := New(testConfig(srv.URL, "10m"), logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	res := a.RunOnce(context.Background())
	if !res.Deletion.OK() || !res.Transfer.OK() {
		t.Fatalf("result = %+v", res)
	}
	if err := a.Stop(context.Background(), StopRunOnce); err != nil {
		t.Fatal(err)
	}
	if calls, _ := rec.snapshot(); len(calls) != 2 {
		t.Fatalf("calls = %v", calls)
	}
}

func TestDoneBeforeStart(t *testing.T) {
	t.Parallel()
	a, err := New(testConfig("http://127.0.0.1:1", "10m"), logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-a.Done():
	default:
		t.Fatal("Done should be closed before Start")
	}
	if a.Err() != nil {
		t.Fatal(a.Err())
	}
}

func TestTickStatus(t *testing.T) {
	t.Parallel()
	res := trigger.TickResult{
		Seq:      3,
		Deletion: trigger.Outcome{Kind: trigger.KindOK},
		Transfer: trigger.Outcome{Kind: trigger.KindBadStatus},
	}
	if got := tickStatus(res, time.Time{}); got != "tick 3: deletion=ok transfer=bad_status" {
		t.Fatalf("status = %q", got)
	}
	next := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := tickStatus(res, next); !strings.HasSuffix(got, "; next run 2026-01-02T03:04:05Z") {
		t.Fatalf("status = %q", got)
	}
}

// Not parallel: sets NOTIFY_SOCKET.
func TestRunOnceUpdatesSystemdStatus(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	sock := filepath.Join(t.TempDir(), "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: sock, Net: "unixgram"})
	if err != nil {
		t.Skipf("unixgram not available: %v", err)
	}
	defer conn.Close()
	t.Setenv("NOTIFY_SOCKET", sock)

	cfg := testConfig(srv.URL, "10m")
	cfg.Systemd.Notify = true
	a, err := New(cfg, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	a.RunOnce(context.Background())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read notify datagram: %v", err)
	}
	if got := string(buf[:n]); got != "STATUS=tick 1: deletion=ok transfer=ok" {
		t.Fatalf("datagram = %q", got)
	}
}
