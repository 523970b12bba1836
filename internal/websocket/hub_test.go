package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, userID int64) *Client {
	return &Client{
		hub:    hub,
		conn:   nil,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 2)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestSendToUserTargetsOnlyOwner(t *testing.T) {
	hub := NewHub(slog.Default())

	// Two connections for user 1, one for user 2.
	c1a := mockClient(hub, 1)
	c1b := mockClient(hub, 1)
	c2 := mockClient(hub, 2)
	hub.Register(c1a)
	hub.Register(c1b)
	hub.Register(c2)

	msg := NewMessage("reminder", "updated", 42, map[string]any{"due": "2025-03-10"})
	hub.SendToUser(1, msg)

	for _, c := range []*Client{c1a, c1b} {
		select {
		case data := <-c.send:
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "reminder_updated" {
				t.Errorf("expected type reminder_updated, got %s", got.Type)
			}
			if got.ID != 42 {
				t.Errorf("expected id 42, got %d", got.ID)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	select {
	case <-c2.send:
		t.Fatal("user 2 must not receive user 1's message")
	default:
	}

	hub.Unregister(c1a)
	hub.Unregister(c1b)
	hub.Unregister(c2)
}

func TestSendToUserEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.SendToUser(1, NewMessage("reminder", "completed", 1, nil))
}

func TestSendToUserFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, 1)
	hub.Register(c)

	// Fill the send buffer
	for i := 0; i < sendBufferSize; i++ {
		hub.SendToUser(1, NewMessage("test", "fill", int64(i), nil))
	}

	// This should drop the message, not panic or block
	hub.SendToUser(1, NewMessage("test", "dropped", 999, nil))

	// Drain to verify buffer was full
	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestUserConnected(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 7)
	hub.Register(c)

	if !hub.UserConnected(7) {
		t.Error("user 7 should be connected")
	}
	if hub.UserConnected(8) {
		t.Error("user 8 should not be connected")
	}

	hub.Unregister(c)
	if hub.UserConnected(7) {
		t.Error("user 7 should be gone after unregister")
	}
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("reminder", "updated", 5, nil)
	if msg.Type != "reminder_updated" {
		t.Errorf("expected type reminder_updated, got %s", msg.Type)
	}
	if msg.Entity != "reminder" {
		t.Errorf("expected entity reminder, got %s", msg.Entity)
	}
	if msg.Action != "updated" {
		t.Errorf("expected action updated, got %s", msg.Action)
	}
	if msg.ID != 5 {
		t.Errorf("expected id 5, got %d", msg.ID)
	}
}

func TestAlertMessage(t *testing.T) {
	msg := AlertMessage("water plants", "Reminder is now due", "reminder-5")
	if msg.Type != "alert" {
		t.Errorf("expected type alert, got %s", msg.Type)
	}
	if msg.Tag != "reminder-5" {
		t.Errorf("expected tag reminder-5, got %s", msg.Tag)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	// Spawn goroutines that register, send, and unregister concurrently
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			c := mockClient(hub, userID)
			hub.Register(c)
			hub.SendToUser(userID, NewMessage("test", "concurrent", 0, nil))
			// Drain any messages
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}(int64(i % 5))
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
