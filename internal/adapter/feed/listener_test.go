package feed

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"roundsbot/internal/app/ports"
	"roundsbot/internal/domain/visit"

	"github.com/coder/websocket"
)

func TestListener_SendsCurrentRequestThenForwardsAssignments(t *testing.T) {
	gotRequest := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.CloseNow()
		_, data, err := conn.Read(r.Context())
		if err != nil {
			t.Errorf("server read: %v", err)
			return
		}
		gotRequest <- string(data)
		ctx := r.Context()
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"room":"room_2","bed":"bed_1","batch_id":"B2"}`))
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{not json`))
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"room":"room_3","bed":"bed_4","batch_id":7}`))
		drain(ctx, conn)
	}))
	defer srv.Close()

	sink := &stubSink{}
	metrics := &stubFeedMetrics{}
	l := New(testConfig(srv.URL), AssignmentHandler(sink, discardLogger()), metrics, discardLogger())
	l.RequestNext(ports.NextRequest{Room: "room_1", Bed: "bed_2"})

	ctx, cancel := context.WithCancel(context.Background())
	done := runListener(ctx, l)

	select {
	case payload := <-gotRequest:
		var req ports.NextRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			t.Fatalf("payload is not JSON: %q", payload)
		}
		if req != (ports.NextRequest{Room: "room_1", Bed: "bed_2"}) {
			t.Fatalf("request mismatch: %+v", req)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("next request was not sent on connect")
	}

	waitFor(t, func() bool { return len(sink.all()) == 2 })
	got := sink.all()
	if got[0].BatchID != "B2" || got[0].Room != "room_2" || got[1].BatchID != "7" || got[1].Bed != "bed_4" {
		t.Fatalf("unexpected assignments: %+v", got)
	}
	if metrics.decodeErrors.Load() != 1 {
		t.Fatalf("expected one decode error, got %d", metrics.decodeErrors.Load())
	}
	if l.State() != StateConnected {
		t.Fatalf("malformed message must not tear down the connection, state=%s", l.State())
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if l.State() != StateDisconnected {
		t.Fatalf("state after shutdown: got=%s want=%s", l.State(), StateDisconnected)
	}
}

func TestListener_DropTriggersOneReconnectAfterBackoff(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		if conns.Add(1) == 1 {
			conn.CloseNow()
			return
		}
		defer conn.CloseNow()
		drain(r.Context(), conn)
	}))
	defer srv.Close()

	waits := make(chan time.Duration, 4)
	release := make(chan time.Time)
	l := New(testConfig(srv.URL), func(context.Context, []byte) error { return nil }, nil, discardLogger())
	l.after = func(d time.Duration) <-chan time.Time {
		waits <- d
		return release
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runListener(ctx, l)

	select {
	case d := <-waits:
		if d != 3*time.Second {
			t.Fatalf("backoff mismatch: got=%s want=3s", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("listener did not back off after drop")
	}
	time.Sleep(50 * time.Millisecond)
	if got := conns.Load(); got != 1 {
		t.Fatalf("reconnected before backoff elapsed: conns=%d", got)
	}

	release <- time.Now()
	waitFor(t, func() bool { return conns.Load() == 2 && l.State() == StateConnected })
	select {
	case d := <-waits:
		t.Fatalf("unexpected extra backoff %s while connected", d)
	default:
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run error: %v", err)
	}
}

func TestListener_RetriesRefusedDialIndefinitely(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	var waits atomic.Int32
	l := New(testConfig(url), func(context.Context, []byte) error { return nil }, nil, discardLogger())
	l.after = func(time.Duration) <-chan time.Time {
		waits.Add(1)
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := runListener(ctx, l)
	waitFor(t, func() bool { return waits.Load() >= 5 })
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestListener_ResendsRequestOnEveryConnection(t *testing.T) {
	got := make(chan string, 4)
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		n := conns.Add(1)
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		_, data, err := conn.Read(ctx)
		if err != nil {
			got <- ""
			return
		}
		got <- string(data)
		if n == 1 {
			return
		}
		drain(r.Context(), conn)
	}))
	defer srv.Close()

	release := make(chan time.Time, 1)
	l := New(testConfig(srv.URL), func(context.Context, []byte) error { return nil }, nil, discardLogger())
	l.after = func(time.Duration) <-chan time.Time {
		release <- time.Now()
		return release
	}
	l.RequestNext(ports.NextRequest{Room: "room_1", Bed: "bed_2"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runListener(ctx, l)

	want := `{"room":"room_1","bed":"bed_2"}`
	for i := 1; i <= 2; i++ {
		select {
		case payload := <-got:
			if payload != want {
				t.Fatalf("connection %d payload: got=%q want=%q", i, payload, want)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("connection %d never received the request", i)
		}
	}
	cancel()
	<-done
}

func TestListener_InitialRequestSeedsFirstConnection(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		got <- string(data)
		drain(r.Context(), conn)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.InitialRequest = &ports.NextRequest{Room: "room_1", Bed: "bed_2"}
	l := New(cfg, func(context.Context, []byte) error { return nil }, nil, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runListener(ctx, l)

	select {
	case payload := <-got:
		if payload != `{"room":"room_1","bed":"bed_2"}` {
			t.Fatalf("unexpected payload %q", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("initial request was not sent")
	}
	cancel()
	<-done
}

func TestListener_RequestNextWhileConnected(t *testing.T) {
	got := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			got <- string(data)
		}
	}))
	defer srv.Close()

	l := New(testConfig(srv.URL), func(context.Context, []byte) error { return nil }, nil, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runListener(ctx, l)
	waitFor(t, func() bool { return l.State() == StateConnected })

	l.RequestNext(ports.NextRequest{Room: "room_9", Bed: "bed_1"})
	select {
	case payload := <-got:
		if !strings.Contains(payload, `"room":"room_9"`) {
			t.Fatalf("unexpected payload %q", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("request not written on live connection")
	}
	cancel()
	<-done
}

func TestListener_RequiresURL(t *testing.T) {
	l := New(Config{Name: "x"}, nil, nil, discardLogger())
	if err := l.Run(context.Background()); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func testConfig(httpURL string) Config {
	cfg := DefaultConfig()
	cfg.Name = "assignments"
	cfg.URL = "ws" + strings.TrimPrefix(httpURL, "http")
	cfg.PingInterval = 0
	cfg.DialTimeout = time.Second
	return cfg
}

func runListener(ctx context.Context, l *Listener) <-chan error {
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	return done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// drain reads until the client goes away.
func drain(ctx context.Context, conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSink struct {
	mu  sync.Mutex
	got []visit.Assignment
	err error
}

func (s *stubSink) Submit(_ context.Context, a visit.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, a)
	return nil
}

func (s *stubSink) all() []visit.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]visit.Assignment(nil), s.got...)
}

type stubFeedMetrics struct {
	connects     atomic.Int32
	messages     atomic.Int32
	decodeErrors atomic.Int32
}

func (m *stubFeedMetrics) RecordFeedConnect()       { m.connects.Add(1) }
func (m *stubFeedMetrics) RecordFeedMessage(string) { m.messages.Add(1) }
func (m *stubFeedMetrics) RecordFeedDecodeError()   { m.decodeErrors.Add(1) }
