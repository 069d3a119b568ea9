// Package streaming fans import-session events out to SSE subscribers. Each
// import session gets its own broadcaster; the hub creates and reaps them as
// clients come and go.
package streaming

import (
	"context"
	"log"
	"sync"
	"time"
)

// Client is one connected SSE subscriber.
type Client struct {
	Events chan Event
}

// NewClient creates a client with a small buffer; slow consumers drop
// non-critical events rather than stalling the import.
func NewClient() *Client {
	return &Client{Events: make(chan Event, 10)}
}

// broadcaster fans events out to the clients of a single import session.
type broadcaster struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	events   chan Event
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	stopped  bool
}

func newBroadcaster(ctx context.Context) *broadcaster {
	ctx, cancel := context.WithCancel(ctx)
	return &broadcaster{
		clients: make(map[*Client]struct{}),
		events:  make(chan Event, 100),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *broadcaster) register(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = struct{}{}
}

func (b *broadcaster) unregister(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		// stop() already closed every client channel.
		if !b.stopped {
			close(client.Events)
		}
	}
}

func (b *broadcaster) clientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// send queues an event. Complete and error events get a delivery timeout;
// anything else is dropped when the queue is full.
func (b *broadcaster) send(event Event) {
	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		return
	}
	b.mu.RUnlock()

	if event.Type == EventTypeComplete || event.Type == EventTypeError {
		select {
		case b.events <- event:
		case <-b.ctx.Done():
		case <-time.After(100 * time.Millisecond):
			log.Printf("ERROR: failed to queue critical %s event, clients may hang", event.Type)
		}
		return
	}

	select {
	case b.events <- event:
	case <-b.ctx.Done():
	default:
		log.Printf("WARN: event queue full, dropping %s event", event.Type)
	}
}

func (b *broadcaster) stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.stopped = true
		for client := range b.clients {
			close(client.Events)
			delete(b.clients, client)
		}
		b.mu.Unlock()
		b.cancel()
		close(b.events)
	})
}

// run pumps queued events to clients until the session completes or errors.
func (b *broadcaster) run() {
	go func() {
		defer b.stop()
		for {
			select {
			case <-b.ctx.Done():
				return
			case event, ok := <-b.events:
				if !ok {
					return
				}
				b.deliver(event)
				if event.Type == EventTypeComplete || event.Type == EventTypeError {
					// Give subscribers a beat to drain before teardown.
					time.Sleep(100 * time.Millisecond)
					return
				}
			}
		}
	}()
}

func (b *broadcaster) deliver(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		if event.Type == EventTypeComplete || event.Type == EventTypeError {
			select {
			case client.Events <- event:
			case <-time.After(50 * time.Millisecond):
				log.Printf("ERROR: failed to deliver critical %s event to client", event.Type)
			}
			continue
		}

		select {
		case client.Events <- event:
		default:
			log.Printf("WARN: client channel full, skipping %s event", event.Type)
		}
	}
}

// Hub manages broadcasters for all live import sessions.
type Hub struct {
	mu           sync.RWMutex
	broadcasters map[string]*broadcaster
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{broadcasters: make(map[string]*broadcaster)}
}

// Subscribe attaches a new client to a session's stream, creating the
// session broadcaster on first subscribe.
func (h *Hub) Subscribe(ctx context.Context, sessionID string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	client := NewClient()
	b, exists := h.broadcasters[sessionID]
	if !exists {
		b = newBroadcaster(ctx)
		h.broadcasters[sessionID] = b
		b.run()
		log.Printf("INFO: created broadcaster for import session %s", sessionID)
	}
	b.register(client)
	return client
}

// Unsubscribe detaches a client; the last client leaving reaps the
// broadcaster.
func (h *Hub) Unsubscribe(sessionID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, exists := h.broadcasters[sessionID]
	if !exists {
		return
	}
	b.unregister(client)

	if b.clientCount() == 0 {
		b.stop()
		delete(h.broadcasters, sessionID)
		log.Printf("INFO: reaped broadcaster for import session %s", sessionID)
	}
}

// Broadcast sends an event to every subscriber of a session. Broadcasting
// to a session nobody watches is a no-op.
func (h *Hub) Broadcast(sessionID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	b, exists := h.broadcasters[sessionID]
	if !exists {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	b.send(event)
}

// IsRunning reports whether a session has a live broadcaster.
func (h *Hub) IsRunning(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.broadcasters[sessionID]
	return exists
}
