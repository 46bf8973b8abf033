package web

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dbehnke/sir-codec/pkg/frame"
	"github.com/dbehnke/sir-codec/pkg/ircode"
	"github.com/dbehnke/sir-codec/pkg/logger"
	"github.com/dbehnke/sir-codec/pkg/metrics"
)

func TestWebSocketHub_New(t *testing.T) {
	log := logger.New(logger.Config{Level: "info"})
	hub := NewWebSocketHub(log, nil)

	if hub == nil {
		t.Fatal("NewWebSocketHub returned nil")
	}
}

func TestWebSocketHub_Run(t *testing.T) {
	log := logger.New(logger.Config{Level: "info"})
	hub := NewWebSocketHub(log, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Hub did not stop after cancel")
	}
}

func TestWebSocketHub_Broadcast(t *testing.T) {
	log := logger.New(logger.Config{Level: "info"})
	hub := NewWebSocketHub(log, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go hub.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Broadcast should not panic even with no clients
	hub.Broadcast(Event{
		Type: "test",
		Data: map[string]interface{}{"message": "hello"},
	})

	time.Sleep(50 * time.Millisecond)
}

// dial starts the hub behind a test server and connects one client.
func dial(t *testing.T, hub *WebSocketHub) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := httptest.NewServer(hub.Handler())
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(time.Second)
	for hub.GetClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("Client was not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("Failed to decode event: %v", err)
	}
	return ev
}

func TestWebSocketHandler_DeliversEvents(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	collector := metrics.NewCollector()
	hub := NewWebSocketHub(log, collector)

	conn := dial(t, hub)
	if collector.GetActiveClients() != 1 {
		t.Errorf("Expected 1 active client, got %d", collector.GetActiveClients())
	}

	hub.BroadcastCapture("sir,2,8,1,1,258,1,1,10,20")
	hub.BroadcastPreProcess(&frame.Result{NewSir2: "sir,2,8,1,1,258,1,1,10,20", ReturnedFrames: 1, PairsPreserved: 1})
	hub.BroadcastConvert(&ircode.Conversion{Converted: necSir3, Format: "sir,3"})
	hub.BroadcastCommandSaved("tv/power", "sir,3", necSir3)
	hub.BroadcastLearnerState(true)

	ev := readEvent(t, conn)
	if ev.Type != EventCapture || ev.Data["raw"] != "sir,2,8,1,1,258,1,1,10,20" {
		t.Errorf("Unexpected capture event: %+v", ev)
	}
	if ev.Timestamp.IsZero() {
		t.Error("Event timestamp not set")
	}

	ev = readEvent(t, conn)
	if ev.Type != EventPreProcess || ev.Data["pairs_preserved"] != float64(1) {
		t.Errorf("Unexpected preprocess event: %+v", ev)
	}

	ev = readEvent(t, conn)
	if ev.Type != EventConvert || ev.Data["converted"] != necSir3 {
		t.Errorf("Unexpected convert event: %+v", ev)
	}

	ev = readEvent(t, conn)
	if ev.Type != EventCommandSaved || ev.Data["tag"] != "tv/power" {
		t.Errorf("Unexpected command_saved event: %+v", ev)
	}

	ev = readEvent(t, conn)
	if ev.Type != EventLearner || ev.Data["learning"] != true {
		t.Errorf("Unexpected learner event: %+v", ev)
	}
}

func TestWebSocketHandler_Disconnect(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	collector := metrics.NewCollector()
	hub := NewWebSocketHub(log, collector)

	conn := dial(t, hub)
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() != 0 || collector.GetActiveClients() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Client still registered: hub=%d metrics=%d", hub.GetClientCount(), collector.GetActiveClients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEvent_Marshal(t *testing.T) {
	event := Event{
		Type:      EventCommandSaved,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"tag":    "tv/power",
			"format": "sir,3",
		},
	}

	data, err := event.Marshal()
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}

	if !strings.Contains(string(data), `"type":"command_saved"`) {
		t.Errorf("Marshaled data doesn't contain event type: %s", data)
	}
}
