package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"portal/internal/app/logger"
	"portal/internal/app/model"
)

// session.Manager interface implementation
var _ Manager = (*Redis)(nil)

// Redis keeps sessions as JSON values expiring together with the token
type Redis struct {
	signer signer
	client redis.UniversalClient
	prefix string
}

func (svc *Redis) LoggerComponent() string {
	return "Session.Redis"
}

func NewRedis(client redis.UniversalClient, secretKey string, opts ...Option) *Redis {
	return &Redis{
		signer: newSigner(secretKey, opts),
		client: client,
		prefix: "session:",
	}
}

func (svc *Redis) key(id string) string {
	return svc.prefix + id
}

// Create method of session.Creator implementation
func (svc *Redis) Create(ctx context.Context, p *model.Principal) (string, *model.Session, error) {
	l := logger.Get(ctx, svc)
	l.Debug().Str("principal_id", p.ID).Msg("Create")

	m, token, err := svc.signer.newSession(p)
	if err != nil {
		l.Error().Err(err).Send()
		return "", nil, err
	}

	if err := svc.store(ctx, m); err != nil {
		return "", nil, err
	}

	return token, m, nil
}

// Read method of session.Reader implementation
func (svc *Redis) Read(ctx context.Context, token string) (*model.Session, error) {
	l := logger.Get(ctx, svc)

	id, err := svc.signer.sessionID(token)
	if err != nil {
		l.Debug().Err(err).Msg("Token rejected")
		return nil, err
	}

	raw, err := svc.client.Get(ctx, svc.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			l.Debug().Str("session_id", id).Msg("Session not found")
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	m := &model.Session{}
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}

	return m, nil
}

// Update method of session.Updater implementation
func (svc *Redis) Update(ctx context.Context, token string, p *model.Principal) (*model.Session, error) {
	m, err := svc.Read(ctx, token)
	if err != nil {
		return nil, err
	}

	applyPrincipal(m, p)

	if err := svc.store(ctx, m); err != nil {
		return nil, err
	}

	return m, nil
}

// Destroy method of session.Destroyer implementation
func (svc *Redis) Destroy(ctx context.Context, token string) (*model.Session, error) {
	m, err := svc.Read(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := svc.client.Del(ctx, svc.key(m.ID)).Err(); err != nil {
		return nil, fmt.Errorf("redis del: %w", err)
	}

	return m, nil
}

func (svc *Redis) store(ctx context.Context, m *model.Session) error {
	ttl := time.Until(m.ExpiresAt)
	if ttl <= 0 {
		return ErrInvalidToken
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	if err := svc.client.Set(ctx, svc.key(m.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}
