package console

import (
	"context"
	"sync"

	"portal/internal/app/identity"
	"portal/internal/app/logger"
	"portal/internal/app/storage"
)

// Notifier delivers session change events
type Notifier interface {
	Subscribe(fn func(identity.Event)) func()
}

// Registry keeps one Console per admin session
type Registry struct {
	mu       sync.Mutex
	users    storage.UserRepository
	consoles map[string]*Console
}

func (r *Registry) LoggerComponent() string {
	return "Console.Registry"
}

func NewRegistry(users storage.UserRepository) *Registry {
	return &Registry{
		users:    users,
		consoles: make(map[string]*Console),
	}
}

// Get returns the console of the session, creating and loading it on first use.
// A console whose initial load failed is not kept.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Console, error) {
	r.mu.Lock()
	c, ok := r.consoles[sessionID]
	r.mu.Unlock()
	if ok {
		return c, nil
	}

	c = New(r.users)
	if err := c.Load(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// another request of the same session may have won
	if existing, ok := r.consoles[sessionID]; ok {
		return existing, nil
	}
	r.consoles[sessionID] = c

	return c, nil
}

// Drop forgets the console of the session
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.consoles, sessionID)
}

// Len returns the number of live consoles
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.consoles)
}

// Watch drops consoles of signed-out sessions. The returned function stops watching.
func (r *Registry) Watch(ctx context.Context, src Notifier) func() {
	l := logger.Get(ctx, r)

	return src.Subscribe(func(e identity.Event) {
		if e.Kind != identity.EventSignedOut {
			return
		}
		r.Drop(e.SessionID)
		l.Debug().Str("session_id", e.SessionID).Msg("Console dropped")
	})
}
