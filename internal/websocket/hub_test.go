package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/sovaehr/internal/notify"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, clientID string) *Client {
	return &Client{
		hub:      hub,
		conn:     nil,
		clientID: clientID,
		send:     make(chan []byte, sendBufferSize),
	}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
	return Message{}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, "browser-a")
	c2 := mockClient(hub, "browser-a")
	c3 := mockClient(hub, "browser-b")

	hub.Register(c1)
	hub.Register(c2)
	hub.Register(c3)

	if got := hub.ClientCount(); got != 3 {
		t.Fatalf("expected 3 clients, got %d", got)
	}

	hub.Unregister(c1)
	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients after unregister, got %d", got)
	}

	hub.Unregister(c2)
	hub.Unregister(c3)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, "browser-a")
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestSendToTargetsOneBrowser(t *testing.T) {
	hub := NewHub(slog.Default())

	tab1 := mockClient(hub, "browser-a")
	tab2 := mockClient(hub, "browser-a")
	other := mockClient(hub, "browser-b")
	hub.Register(tab1)
	hub.Register(tab2)
	hub.Register(other)

	hub.SendTo("browser-a", NewMessage("notification", "fade", "n-1", nil))

	for _, c := range []*Client{tab1, tab2} {
		got := receive(t, c)
		if got.Type != "notification_fade" || got.ID != "n-1" {
			t.Errorf("got %+v, want notification_fade n-1", got)
		}
	}

	select {
	case <-other.send:
		t.Error("other browser should not receive the message")
	default:
	}
}

func TestSendToUnknownClient(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.SendTo("nobody", NewMessage("notification", "remove", "x", nil))
}

func TestSendToFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, "browser-a")
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.SendTo("browser-a", NewMessage("test", "fill", "", nil))
	}

	// This should drop the message, not panic or block
	hub.SendTo("browser-a", NewMessage("test", "dropped", "", nil))

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

func TestNotifyInsertCarriesMessage(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, "browser-a")
	hub.Register(c)
	defer hub.Unregister(c)

	hub.Notify("browser-a", "insert", notify.Notification{
		ID:      "n-1",
		Message: "Signed out. See you soon!",
		Tone:    notify.ToneSuccess,
		Dwell:   notify.DwellDashboard,
	})

	got := receive(t, c)
	if got.Type != "notification_insert" {
		t.Errorf("type = %s, want notification_insert", got.Type)
	}
	if got.Extra["message"] != "Signed out. See you soon!" {
		t.Errorf("message = %v", got.Extra["message"])
	}
	if got.Extra["dwell_ms"] != float64(3000) {
		t.Errorf("dwell_ms = %v, want 3000", got.Extra["dwell_ms"])
	}

	hub.Notify("browser-a", "remove", notify.Notification{ID: "n-1"})
	got = receive(t, c)
	if got.Action != "remove" || got.Extra != nil {
		t.Errorf("remove message = %+v, want bare remove", got)
	}
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("notification", "reveal", "n-5", nil)
	if msg.Type != "notification_reveal" {
		t.Errorf("expected type notification_reveal, got %s", msg.Type)
	}
	if msg.Entity != "notification" {
		t.Errorf("expected entity notification, got %s", msg.Entity)
	}
	if msg.Action != "reveal" {
		t.Errorf("expected action reveal, got %s", msg.Action)
	}
	if msg.ID != "n-5" {
		t.Errorf("expected id n-5, got %s", msg.ID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, "browser-a")
			hub.Register(c)
			hub.SendTo("browser-a", NewMessage("test", "concurrent", "", nil))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
