package identity

import (
	"sync"

	"portal/internal/app/model"
)

type EventKind int

const (
	EventSignedIn EventKind = iota + 1
	EventSignedOut
	EventProfileUpdated
)

func (k EventKind) String() string {
	switch k {
	case EventSignedIn:
		return "signed_in"
	case EventSignedOut:
		return "signed_out"
	case EventProfileUpdated:
		return "profile_updated"
	}
	return "unknown"
}

// Event is a session change notification. Principal is nil for EventSignedOut.
type Event struct {
	Kind      EventKind
	SessionID string
	Principal *model.Principal
}

// Hub fans session changes out to subscribers. Callbacks run on the publishing
// goroutine and must not block.
type Hub struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns the function removing it
func (h *Hub) Subscribe(fn func(Event)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	h.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
		})
	}
}

func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	subs := make([]func(Event), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}
