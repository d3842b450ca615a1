// Package notify keeps the queue of transient user-facing messages.
package notify

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/camden-git/mediacatalog/realtime"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

const DefaultDuration = 3 * time.Second

type Toast struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	Kind    Kind      `json:"type"`
	Created time.Time `json:"created_at"`
}

type Publisher interface {
	Publish(event realtime.Event)
}

// Notifier holds toasts in display order and expires each one after its TTL.
// Toasts are never merged, even when identical.
type Notifier struct {
	mu     sync.Mutex
	toasts []Toast
	timers map[string]*time.Timer
	ttl    time.Duration
	closed bool
	pub    Publisher
}

// New returns a notifier; ttl <= 0 uses DefaultDuration. pub may be nil.
func New(ttl time.Duration, pub Publisher) *Notifier {
	if ttl <= 0 {
		ttl = DefaultDuration
	}
	return &Notifier{
		timers: make(map[string]*time.Timer),
		ttl:    ttl,
		pub:    pub,
	}
}

// Show appends a toast and returns its id.
func (n *Notifier) Show(message string, kind Kind) string {
	toast := Toast{
		ID:      "toast-" + uuid.NewString(),
		Message: message,
		Kind:    kind,
		Created: time.Now(),
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return toast.ID
	}
	n.toasts = append(n.toasts, toast)
	id := toast.ID
	n.timers[id] = time.AfterFunc(n.ttl, func() { n.expire(id) })
	n.mu.Unlock()

	n.publish(realtime.Event{Type: realtime.EventToastShown, Message: message, Extra: map[string]any{"id": id, "kind": string(kind)}})
	return id
}

func (n *Notifier) Success(message string) string { return n.Show(message, KindSuccess) }
func (n *Notifier) Error(message string) string   { return n.Show(message, KindError) }
func (n *Notifier) Info(message string) string    { return n.Show(message, KindInfo) }

// Remove dismisses a toast early. Unknown ids are ignored.
func (n *Notifier) Remove(id string) bool {
	n.mu.Lock()
	removed := n.removeLocked(id)
	if t, ok := n.timers[id]; ok {
		t.Stop()
		delete(n.timers, id)
	}
	n.mu.Unlock()

	if removed {
		n.publish(realtime.Event{Type: realtime.EventToastRemoved, Extra: map[string]any{"id": id}})
	}
	return removed
}

func (n *Notifier) expire(id string) {
	n.mu.Lock()
	removed := n.removeLocked(id)
	delete(n.timers, id)
	n.mu.Unlock()

	if removed {
		n.publish(realtime.Event{Type: realtime.EventToastRemoved, Extra: map[string]any{"id": id}})
	}
}

func (n *Notifier) removeLocked(id string) bool {
	i := slices.IndexFunc(n.toasts, func(t Toast) bool { return t.ID == id })
	if i < 0 {
		return false
	}
	n.toasts = slices.Delete(n.toasts, i, i+1)
	return true
}

// List returns the visible toasts, oldest first.
func (n *Notifier) List() []Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.toasts)
}

// Close stops pending expiry timers and drops queued toasts.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, t := range n.timers {
		t.Stop()
		delete(n.timers, id)
	}
	n.toasts = nil
	n.closed = true
	return nil
}

func (n *Notifier) publish(event realtime.Event) {
	if n.pub != nil {
		n.pub.Publish(event)
	}
}
