package monitor

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/0x5844/stencil2d/internal/grid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEvent(step int) Event {
	f := grid.NewField(3, 3)
	f.Fill(5)
	f.Set(1, 1, 50)
	return NewEvent("run-1", step, 64, 1500*time.Millisecond, f)
}

func TestNewEvent(t *testing.T) {
	e := testEvent(8)
	if e.Min != 5 || e.Max != 50 || e.Mean != 10 {
		t.Errorf("unexpected stats %v %v %v", e.Min, e.Max, e.Mean)
	}
	if e.Elapsed != 1.5 {
		t.Errorf("elapsed %v", e.Elapsed)
	}

	data, err := e.JSON()
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"run_id", "step", "total", "elapsed_s", "min", "max", "mean", "time"} {
		if _, ok := m[key]; !ok {
			t.Errorf("payload missing %q", key)
		}
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	s := LogSink{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	if err := s.Publish(testEvent(16)); err != nil {
		t.Fatal(err)
	}
	if out := buf.String(); !strings.Contains(out, "step=16") || !strings.Contains(out, "max=50") {
		t.Errorf("unexpected log line %q", out)
	}
}

type recordSink struct {
	events []Event
	err    error
	closed bool
}

func (r *recordSink) Publish(e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func (r *recordSink) Close() error {
	r.closed = true
	return r.err
}

func TestMultiContinuesPastFailures(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recordSink{err: boom}, &recordSink{}
	m := Multi{a, b}

	if err := m.Publish(testEvent(1)); !errors.Is(err, boom) {
		t.Errorf("expected joined error, got %v", err)
	}
	if len(b.events) != 1 {
		t.Error("second sink skipped after a failure")
	}
	m.Close()
	if !a.closed || !b.closed {
		t.Error("not every sink closed")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/progress"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(testLogger())
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitFor(t, func() bool { return hub.Clients() == 1 })

	if err := hub.Publish(testEvent(32)); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Step != 32 || got.RunID != "run-1" {
		t.Errorf("unexpected event %+v", got)
	}
}

func TestHubSendsLatestOnConnect(t *testing.T) {
	hub := NewHub(testLogger())
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	defer hub.Close()

	hub.Publish(testEvent(8))
	hub.Publish(testEvent(24))

	conn := dial(t, srv)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Step != 24 {
		t.Errorf("expected latest step 24, got %d", got.Step)
	}
}

func TestHubDropsClosedClient(t *testing.T) {
	hub := NewHub(testLogger())
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, srv)
	waitFor(t, func() bool { return hub.Clients() == 1 })
	conn.Close()
	waitFor(t, func() bool { return hub.Clients() == 0 })
}

func TestMQTTSinkNotConnected(t *testing.T) {
	s := NewMQTTSink(MQTTOptions{Broker: "localhost:1883", Topic: "stencil/progress"}, testLogger())
	if err := s.Publish(testEvent(1)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	st := s.Stats()
	if st.Connected || st.Errors != 1 || st.Published != 0 {
		t.Errorf("unexpected stats %+v", st)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close on unconnected sink: %v", err)
	}
}

func TestBrokerURL(t *testing.T) {
	if got := brokerURL("localhost:1883"); got != "tcp://localhost:1883" {
		t.Errorf("got %q", got)
	}
	if got := brokerURL("ssl://broker:8883"); got != "ssl://broker:8883" {
		t.Errorf("got %q", got)
	}
}
