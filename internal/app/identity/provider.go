package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"portal/internal/app/logger"
	"portal/internal/app/model"
	"portal/internal/app/session"
)

// Authenticator is a credential backend
type Authenticator interface {
	// SignUp creates a credential and returns the new principal
	SignUp(ctx context.Context, email, password string) (*model.Principal, error)
	// SignIn verifies an email/password pair
	SignIn(ctx context.Context, email, password string) (*model.Principal, error)
	// SetDisplayName changes the principal's display name
	SetDisplayName(ctx context.Context, p *model.Principal, name string) (*model.Principal, error)
}

// Provider is the identity provider seen by the rest of the application:
// credentials, signed-in sessions and session change notifications.
// A session reaching its expiry is announced as EventSignedOut.
type Provider struct {
	auth     Authenticator
	sessions session.Manager
	hub      *Hub

	mu     sync.Mutex
	expiry map[string]*time.Timer
}

func (p *Provider) LoggerComponent() string {
	return "Identity.Provider"
}

func NewProvider(auth Authenticator, sessions session.Manager) *Provider {
	return &Provider{
		auth:     auth,
		sessions: sessions,
		hub:      NewHub(),
		expiry:   make(map[string]*time.Timer),
	}
}

// Authenticate signs in with email and password and opens a session
func (p *Provider) Authenticate(ctx context.Context, email, password string) (string, *model.Principal, error) {
	principal, err := p.auth.SignIn(ctx, email, password)
	if err != nil {
		return "", nil, err
	}

	return p.open(ctx, principal)
}

// Register creates a credential and opens a session for it
func (p *Provider) Register(ctx context.Context, email, password string) (string, *model.Principal, error) {
	principal, err := p.auth.SignUp(ctx, email, password)
	if err != nil {
		return "", nil, err
	}

	return p.open(ctx, principal)
}

// SetDisplayName updates the display name of the session's principal
func (p *Provider) SetDisplayName(ctx context.Context, token, name string) (*model.Principal, error) {
	s, err := p.sessions.Read(ctx, token)
	if err != nil {
		return nil, err
	}

	principal, err := p.auth.SetDisplayName(ctx, s.Principal(), name)
	if err != nil {
		return nil, err
	}

	s, err = p.sessions.Update(ctx, token, principal)
	if err != nil {
		return nil, fmt.Errorf("session update: %w", err)
	}

	p.hub.Publish(Event{Kind: EventProfileUpdated, SessionID: s.ID, Principal: s.Principal()})

	return s.Principal(), nil
}

// SignOut destroys the session. Signing out an unknown session is not an error.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	s, err := p.sessions.Destroy(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrInvalidToken) {
			return nil
		}
		return fmt.Errorf("session destroy: %w", err)
	}

	l := logger.Get(ctx, p)

	l.Debug().Str("session_id", s.ID).Msg("Signed out")
	p.hub.Publish(Event{Kind: EventSignedOut, SessionID: s.ID})

	return nil
}

// Current returns the live session of token
func (p *Provider) Current(ctx context.Context, token string) (*model.Session, error) {
	return p.sessions.Read(ctx, token)
}

// Subscribe to session changes, the returned function unsubscribes
func (p *Provider) Subscribe(fn func(Event)) func() {
	return p.hub.Subscribe(fn)
}

// Close stops expiry tracking of open sessions
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, t := range p.expiry {
		t.Stop()
		delete(p.expiry, id)
	}
}

func (p *Provider) open(ctx context.Context, principal *model.Principal) (string, *model.Principal, error) {
	token, s, err := p.sessions.Create(ctx, principal)
	if err != nil {
		return "", nil, fmt.Errorf("session create: %w", err)
	}

	l := logger.Get(ctx, p)
	l.Debug().
		Str("session_id", s.ID).
		Str("principal_id", principal.ID).
		Msg("Signed in")
	p.hub.Publish(Event{Kind: EventSignedIn, SessionID: s.ID, Principal: s.Principal()})
	p.expireAt(l, s)

	return token, s.Principal(), nil
}

// expireAt publishes EventSignedOut for the session once its lifetime is over
func (p *Provider) expireAt(l logger.Logger, s *model.Session) {
	id := s.ID

	p.mu.Lock()
	defer p.mu.Unlock()

	p.expiry[id] = time.AfterFunc(time.Until(s.ExpiresAt), func() {
		p.mu.Lock()
		_, ok := p.expiry[id]
		delete(p.expiry, id)
		p.mu.Unlock()

		if !ok {
			return
		}

		l.Debug().Str("session_id", id).Msg("Session expired")
		p.hub.Publish(Event{Kind: EventSignedOut, SessionID: id})
	})
}

func (p *Provider) forget(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.expiry[sessionID]; ok {
		t.Stop()
		delete(p.expiry, sessionID)
	}
}
