package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/pantrytracker/internal/apperr"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, householdID int64) *Client {
	return &Client{
		hub:         hub,
		householdID: householdID,
		send:        make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 1)
	c3 := mockClient(hub, 2)

	hub.Register(c1)
	hub.Register(c2)
	hub.Register(c3)

	if got := hub.ClientCount(1); got != 2 {
		t.Fatalf("ClientCount(1) = %d, want 2", got)
	}
	if got := hub.ClientCount(2); got != 1 {
		t.Fatalf("ClientCount(2) = %d, want 1", got)
	}

	hub.Unregister(c1)
	hub.Unregister(c1)
	hub.Unregister(c2)

	if got := hub.ClientCount(1); got != 0 {
		t.Fatalf("ClientCount(1) = %d, want 0", got)
	}
	hub.Unregister(c3)
}

func TestPublishIsScopedToHousehold(t *testing.T) {
	hub := NewHub(slog.Default())

	mine := mockClient(hub, 1)
	other := mockClient(hub, 2)
	hub.Register(mine)
	hub.Register(other)
	defer hub.Unregister(mine)
	defer hub.Unregister(other)

	hub.Publish(1, NewMessage("pantry_item", "updated", 42))

	select {
	case data := <-mine.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Type != "pantry_item_updated" {
			t.Errorf("Type = %q, want pantry_item_updated", got.Type)
		}
		if got.ID != 42 {
			t.Errorf("ID = %d, want 42", got.ID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}

	select {
	case data := <-other.send:
		t.Errorf("other household received %s", data)
	default:
	}
}

func TestPublishEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.Publish(7, NewMessage("household", "member_joined", 1))
}

func TestPublishFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, 1)
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Publish(1, NewMessage("test", "fill", int64(i)))
	}

	// This should drop the message, not panic or block
	hub.Publish(1, NewMessage("test", "dropped", 999))

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
		t.Errorf("received %d messages, want %d", count, sendBufferSize)
	}

	hub.Unregister(c)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(hid int64) {
			defer wg.Done()
			c := mockClient(hub, hid)
			hub.Register(c)
			hub.Publish(hid, NewMessage("test", "concurrent", 0))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}(int64(i % 3))
	}

	wg.Wait()

	for hid := int64(0); hid < 3; hid++ {
		if got := hub.ClientCount(hid); got != 0 {
			t.Errorf("ClientCount(%d) = %d, want 0", hid, got)
		}
	}
}

type fixedHousehold struct {
	id  int64
	err error
}

func (f fixedHousehold) CurrentHouseholdID(context.Context) (int64, error) {
	return f.id, f.err
}

func TestHandleDeliversPublishedMessages(t *testing.T) {
	hub := NewHub(slog.Default())
	srv := httptest.NewServer(Handle(hub, fixedHousehold{id: 5}, "", slog.Default()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount(5) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(5, NewMessage("pantry_item", "deleted", 9))

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "pantry_item_deleted" || got.ID != 9 {
		t.Errorf("message = %+v, want pantry_item_deleted id 9", got)
	}
}

func TestHandleRejectsCallerWithoutHousehold(t *testing.T) {
	hub := NewHub(slog.Default())
	h := Handle(hub, fixedHousehold{err: apperr.Validation("you are not part of a household")}, "", slog.Default())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/ws", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
