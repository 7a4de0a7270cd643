package events

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lorenzolrom/dvmconsole/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewHub(testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go hub.Run(ctx)

	// Broadcast with no clients must not block or panic
	hub.CallStart("west", 100, 500, 4242, false)
	hub.CallEnd("west", 4242, 3*time.Second)
	time.Sleep(50 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Errorf("client count: got %d want 0", hub.ClientCount())
	}
}

func TestHub_ClientReceivesEvents(t *testing.T) {
	hub := NewHub(testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(hub.Handler())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Wait for registration
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("client count: got %d want 1", hub.ClientCount())
	}

	hub.CallTimeout("east", 777, 2500*time.Millisecond)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != "call_timeout" {
		t.Errorf("type: got %q want call_timeout", ev.Type)
	}
	if ev.Data["channel"] != "east" {
		t.Errorf("channel: got %v want east", ev.Data["channel"])
	}
	if ev.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
}

func TestHub_ShutdownDisconnectsClients(t *testing.T) {
	hub := NewHub(testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(hub.Handler())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	time.Sleep(100 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Errorf("clients remain after shutdown: %d", hub.ClientCount())
	}
}

func TestEvent_Marshal(t *testing.T) {
	ev := Event{
		Type:      "no_key",
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Data:      map[string]interface{}{"alg_id": 0xAA},
	}

	data, err := ev.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"type":"no_key"`) {
		t.Errorf("marshaled event missing type: %s", data)
	}
}

func TestHub_ShutdownReleasesHandlers(t *testing.T) {
	hub := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(runDone)
	}()

	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	cancel()
	<-runDone
	select {
	case <-hub.done:
	default:
		t.Fatal("done channel not closed after Run returned")
	}

	// the reader goroutine's unregister send must not block now
	_ = conn.Close()

	// a client arriving after shutdown gets its connection closed by the
	// handler instead of hanging on the register channel
	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return
	}
	defer late.Close()
	_ = late.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := late.ReadMessage(); err == nil {
		t.Error("post-shutdown client read succeeded, want closed connection")
	} else {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			t.Error("post-shutdown connection left open by handler")
		}
	}
}
