package session

import (
	"context"
	"sync"
	"time"

	"portal/internal/app/logger"
	"portal/internal/app/model"
)

// session.Manager interface implementation
var _ Manager = (*Memory)(nil)

type (
	Memory struct {
		mu     sync.RWMutex
		signer signer
		db     MemoryDB
	}
	MemoryDB map[string]model.Session
)

func (svc *Memory) LoggerComponent() string {
	return "Session.Memory"
}

func NewMemory(secretKey string, opts ...Option) *Memory {
	return &Memory{
		signer: newSigner(secretKey, opts),
		db:     make(MemoryDB),
	}
}

// Create method of session.Creator implementation
func (svc *Memory) Create(ctx context.Context, p *model.Principal) (string, *model.Session, error) {
	l := logger.Get(ctx, svc)
	l.Debug().Str("principal_id", p.ID).Msg("Create")

	m, token, err := svc.signer.newSession(p)
	if err != nil {
		l.Error().Err(err).Send()
		return "", nil, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.db[m.ID] = *m

	return token, m, nil
}

// Read method of session.Reader implementation
func (svc *Memory) Read(ctx context.Context, token string) (*model.Session, error) {
	l := logger.Get(ctx, svc)

	id, err := svc.signer.sessionID(token)
	if err != nil {
		l.Debug().Err(err).Msg("Token rejected")
		return nil, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, ok := svc.db[id]
	if !ok {
		l.Debug().Str("session_id", id).Msg("Session not found")
		return nil, ErrInvalidToken
	}

	if s.ExpiresAt.Before(time.Now()) {
		l.Debug().
			Str("session_id", id).
			Str("principal_id", s.PrincipalID).
			Msg("Session expired")
		delete(svc.db, id)
		return nil, ErrInvalidToken
	}

	return &s, nil
}

// Update method of session.Updater implementation
func (svc *Memory) Update(ctx context.Context, token string, p *model.Principal) (*model.Session, error) {
	s, err := svc.Read(ctx, token)
	if err != nil {
		return nil, err
	}

	applyPrincipal(s, p)

	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.db[s.ID] = *s

	return s, nil
}

// Destroy method of session.Destroyer implementation
func (svc *Memory) Destroy(ctx context.Context, token string) (*model.Session, error) {
	s, err := svc.Read(ctx, token)
	if err != nil {
		return nil, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	delete(svc.db, s.ID)
	l := logger.Get(ctx, svc)
	l.Debug().Str("session_id", s.ID).Msg("Session destroyed")

	return s, nil
}
