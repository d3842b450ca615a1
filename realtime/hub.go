package realtime

import (
	"context"
	"sync"
	"time"
)

// Event types published by the gallery components.
const (
	EventCatalogReplaced  = "catalog.replaced"
	EventCatalogPatched   = "catalog.patched"
	EventViewChanged      = "view.changed"
	EventModeChanged      = "mode.changed"
	EventGroupsChanged    = "groups.changed"
	EventHistoryChanged   = "history.changed"
	EventToastShown       = "toast.shown"
	EventToastRemoved     = "toast.removed"
	EventFilesChanged     = "files.changed"
	EventThumbnailReady   = "thumbnail.ready"
	EventDirectoryChanged = "directories.changed"
)

// Event is a state-change notification delivered to subscribers.
type Event struct {
	Type      string         `json:"type"`
	ImageID   int64          `json:"image_id,omitempty"`
	GroupID   int64          `json:"group_id,omitempty"`
	Message   string         `json:"message,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

type subscriber struct {
	send chan Event
}

// Hub fans events out to in-process subscribers. Slow subscribers are
// dropped rather than allowed to block publishers.
type Hub struct {
	subscribers map[*subscriber]bool
	register    chan *subscriber
	unregister  chan *subscriber
	broadcast   chan Event
	done        chan struct{}
	mu          sync.RWMutex
	bufferSize  int
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]bool),
		register:    make(chan *subscriber),
		unregister:  make(chan *subscriber),
		broadcast:   make(chan Event, 256),
		done:        make(chan struct{}),
		bufferSize:  64,
	}
}

// Run delivers events until ctx is cancelled, then closes every subscription.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for sub := range h.subscribers {
				close(sub.send)
				delete(h.subscribers, sub)
			}
			h.mu.Unlock()
			return
		case sub := <-h.register:
			h.mu.Lock()
			h.subscribers[sub] = true
			h.mu.Unlock()
		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				close(sub.send)
			}
			h.mu.Unlock()
		case event := <-h.broadcast:
			h.mu.Lock()
			for sub := range h.subscribers {
				select {
				case sub.send <- event:
				default:
					close(sub.send)
					delete(h.subscribers, sub)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Subscribe registers a new listener. The returned cancel func is safe to call
// more than once and after the hub has stopped.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	sub := &subscriber{send: make(chan Event, h.bufferSize)}
	select {
	case h.register <- sub:
	case <-h.done:
		close(sub.send)
		return sub.send, func() {}
	}
	var once sync.Once
	return sub.send, func() {
		once.Do(func() {
			select {
			case h.unregister <- sub:
			case <-h.done:
			}
		})
	}
}

// Publish queues an event for delivery. It never blocks; events are dropped
// when the broadcast buffer is full or the hub has stopped.
func (h *Hub) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- event:
	default:
	}
}

// SubscriberCount is mostly useful in tests.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
