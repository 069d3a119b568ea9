package streaming

import (
	"context"
	"testing"
	"time"
)

func waitForEvent(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case event, ok := <-client.Events:
		if !ok {
			t.Fatal("client channel closed before event arrived")
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestHubBroadcastReachesSubscriber(t *testing.T) {
	hub := NewHub()
	client := hub.Subscribe(context.Background(), "session-1")
	defer hub.Unsubscribe("session-1", client)

	hub.Broadcast("session-1", Event{
		Type: EventTypeProgress,
		Data: ProgressEvent{FileName: "statement.csv", Processed: 5, Total: 10, Percentage: 50},
	})

	event := waitForEvent(t, client)
	if event.Type != EventTypeProgress {
		t.Errorf("event.Type = %s, want progress", event.Type)
	}
	if event.Timestamp.IsZero() {
		t.Error("Broadcast should stamp a timestamp")
	}
}

func TestHubBroadcastToMultipleSubscribers(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	a := hub.Subscribe(ctx, "session-1")
	b := hub.Subscribe(ctx, "session-1")
	defer hub.Unsubscribe("session-1", a)
	defer hub.Unsubscribe("session-1", b)

	hub.Broadcast("session-1", Event{Type: EventTypeFile, Data: FileEvent{FileName: "one.csv"}})

	for _, client := range []*Client{a, b} {
		if event := waitForEvent(t, client); event.Type != EventTypeFile {
			t.Errorf("event.Type = %s, want file", event.Type)
		}
	}
}

func TestHubSessionIsolation(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	one := hub.Subscribe(ctx, "session-1")
	two := hub.Subscribe(ctx, "session-2")
	defer hub.Unsubscribe("session-1", one)
	defer hub.Unsubscribe("session-2", two)

	hub.Broadcast("session-1", Event{Type: EventTypeProgress})

	waitForEvent(t, one)
	select {
	case event := <-two.Events:
		t.Errorf("session-2 client received event %+v from session-1", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubBroadcastWithoutSubscribersIsNoOp(t *testing.T) {
	hub := NewHub()
	hub.Broadcast("ghost-session", Event{Type: EventTypeProgress})
	if hub.IsRunning("ghost-session") {
		t.Error("broadcasting must not create a session")
	}
}

func TestHubLastUnsubscribeReapsSession(t *testing.T) {
	hub := NewHub()
	client := hub.Subscribe(context.Background(), "session-1")

	if !hub.IsRunning("session-1") {
		t.Fatal("session should be running after subscribe")
	}

	hub.Unsubscribe("session-1", client)
	if hub.IsRunning("session-1") {
		t.Error("session should be reaped after last unsubscribe")
	}

	// Channel must be closed so SSE handlers can exit their read loop.
	select {
	case _, ok := <-client.Events:
		if ok {
			t.Error("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Error("client channel not closed after unsubscribe")
	}
}

func TestCompleteEventTearsDownStream(t *testing.T) {
	hub := NewHub()
	client := hub.Subscribe(context.Background(), "session-1")

	hub.Broadcast("session-1", Event{Type: EventTypeComplete, Data: map[string]string{"status": "completed"}})

	if event := waitForEvent(t, client); event.Type != EventTypeComplete {
		t.Fatalf("event.Type = %s, want complete", event.Type)
	}

	// The broadcaster stops itself shortly after a complete event; the
	// client channel closes as part of teardown.
	select {
	case _, ok := <-client.Events:
		if ok {
			t.Error("expected channel close after complete event")
		}
	case <-time.After(2 * time.Second):
		t.Error("client channel not closed after complete event")
	}
}

func TestUnsubscribeUnknownSession(t *testing.T) {
	hub := NewHub()
	hub.Unsubscribe("never-existed", NewClient())
}
