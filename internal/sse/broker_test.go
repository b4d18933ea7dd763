package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "source.edited", Data: map[string]string{"path": "a.tex"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: source.edited") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"a.tex"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishSessionEvent_ActivityThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First event should trigger sessions.updated.
	b.PublishSessionEvent("s1", "compile.started", 1)
	// Second event immediately should NOT trigger another sessions.updated.
	b.PublishSessionEvent("s1", "compile.succeeded", 1)

	// Drain and count events.
	time.Sleep(50 * time.Millisecond)
	aggregateCount := 0
	sessionCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "sessions.updated") {
				aggregateCount++
			} else {
				sessionCount++
			}
		default:
			break loop
		}
	}

	if sessionCount != 2 {
		t.Errorf("session events = %d, want 2", sessionCount)
	}
	if aggregateCount != 1 {
		t.Errorf("aggregate events = %d, want 1 (throttled)", aggregateCount)
	}
}

func TestSessionEventPayload(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishSessionEvent("abc", "compile.failed", 7)

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: compile.failed") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"session_id":"abc"`) || !strings.Contains(s, `"seq":7`) {
			t.Errorf("missing payload in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	b.Publish(Event{Type: "compile.succeeded", Data: map[string]string{"session_id": "s"}})
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit on context cancel")
	}

	body := w.Body.String()
	if !strings.Contains(body, "event: compile.succeeded") {
		t.Errorf("body = %q", body)
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	b.Close()
	// Must not panic or block.
	b.Publish(Event{Type: "x"})
	b.PublishSessionEvent("s", "compile.started", 1)
	if b.ClientCount() != 0 {
		t.Error("closed broker should report 0 clients")
	}
	ch := b.Subscribe()
	if _, ok := <-ch; ok {
		t.Error("subscribe after close should return a closed channel")
	}
}
