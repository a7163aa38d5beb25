package web

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"crownstone-home/internal/bus"
)

func recvFrame(t *testing.T, ch chan []byte) ([]byte, bool) {
	t.Helper()
	select {
	case msg, ok := <-ch:
		return msg, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return nil, false
	}
}

func TestWSHubBroadcastsEnvelope(t *testing.T) {
	hub := NewWSHub(slog.Default())
	go hub.Run()
	defer hub.Stop()

	client := &wsClient{send: make(chan []byte, 8)}
	hub.register <- client

	hub.Broadcast(wsEnvelope{
		Type: bus.EventSwitchStateChanged,
		Data: bus.SwitchStatePayload{Intensity: 70, RelayOn: true},
	})

	raw, ok := recvFrame(t, client.send)
	if !ok {
		t.Fatal("send channel closed")
	}
	var frame struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatal(err)
	}
	if frame.Type != bus.EventSwitchStateChanged {
		t.Errorf("type = %q, want %q", frame.Type, bus.EventSwitchStateChanged)
	}
	var state bus.SwitchStatePayload
	if err := json.Unmarshal(frame.Data, &state); err != nil {
		t.Fatal(err)
	}
	if state.Intensity != 70 || !state.RelayOn {
		t.Errorf("payload = %+v", state)
	}
}

func TestWSHubEvictsSlowClient(t *testing.T) {
	hub := NewWSHub(slog.Default())
	go hub.Run()
	defer hub.Stop()

	// Capacity one and nobody reading: the second frame marks it slow.
	client := &wsClient{send: make(chan []byte, 1)}
	hub.register <- client

	hub.Broadcast(wsEnvelope{Type: bus.EventTick})
	hub.Broadcast(wsEnvelope{Type: bus.EventTick})

	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("slow client never evicted")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if _, ok := recvFrame(t, client.send); !ok {
		t.Fatal("buffered frame lost on eviction")
	}
	if _, ok := recvFrame(t, client.send); ok {
		t.Error("send channel still open after eviction")
	}
}
