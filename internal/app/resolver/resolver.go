package resolver

import (
	"context"
	"errors"
	"sync"
	"time"

	"portal/internal/app/apperr"
	"portal/internal/app/identity"
	"portal/internal/app/logger"
	"portal/internal/app/model"
	"portal/internal/app/storage"
)

const minExpiryCheck = 100 * time.Millisecond

// State is the resolved identity of a caller. The zero value is the
// unauthenticated, non-admin state.
type State struct {
	User    *model.Principal `json:"user"`
	IsAdmin bool             `json:"isAdmin"`
	Loading bool             `json:"loading"`
}

// Authenticated reports whether a principal is signed in
func (s State) Authenticated() bool {
	return s.User != nil
}

// SessionSource is the part of the identity provider the resolver watches
type SessionSource interface {
	Current(ctx context.Context, token string) (*model.Session, error)
	Subscribe(fn func(identity.Event)) func()
}

// Resolver derives the admin flag of a principal from its user record.
// Any failure to read the record resolves to a non-admin state.
type Resolver struct {
	users storage.UserRepository
}

func (r *Resolver) LoggerComponent() string {
	return "Resolver"
}

func New(users storage.UserRepository) *Resolver {
	return &Resolver{users: users}
}

// Resolve never fails: a missing or unreadable record means not an admin
func (r *Resolver) Resolve(ctx context.Context, p *model.Principal) State {
	if p == nil {
		return State{}
	}

	s := State{User: p}

	u, err := r.users.Read(ctx, p.ID)
	if err != nil {
		l := logger.Get(ctx, r)
		if errors.Is(err, apperr.ErrNotFound) {
			l.Debug().Str("principal_id", p.ID).Msg("No user record")
		} else {
			l.Error().Err(err).Str("principal_id", p.ID).Msg("User record read failed")
		}
		return s
	}

	s.IsAdmin = u.IsAdmin

	return s
}

// Watch emits a loading state for the token's session, its resolved state, then
// a fresh state after every change of that session. When the session ends,
// by sign-out or expiry, the last value is the signed-out state. The channel is
// closed once ctx is done or the session has ended.
func (r *Resolver) Watch(ctx context.Context, src SessionSource, token string) (<-chan State, error) {
	var (
		mu        sync.Mutex
		sessionID string
	)
	changed := make(chan identity.Event, 1)

	// subscribed before the session is read, so a sign-out in between is not lost
	unsubscribe := src.Subscribe(func(e identity.Event) {
		mu.Lock()
		id := sessionID
		mu.Unlock()

		switch {
		case id == "":
			// session not read yet, recheck it once it is
			e = identity.Event{Kind: identity.EventProfileUpdated, SessionID: e.SessionID}
		case e.SessionID != id:
			return
		}

		select {
		case changed <- e:
		default:
			// a pending notification already triggers a recompute,
			// but a sign-out must win over it
			if e.Kind == identity.EventSignedOut {
				select {
				case <-changed:
				default:
				}
				select {
				case changed <- e:
				default:
				}
			}
		}
	})

	current, err := src.Current(ctx, token)
	if err != nil {
		unsubscribe()
		return nil, err
	}

	mu.Lock()
	sessionID = current.ID
	mu.Unlock()

	out := make(chan State, 1)
	out <- State{User: current.Principal(), Loading: true}

	go func() {
		defer close(out)
		defer unsubscribe()

		expired := time.NewTimer(untilExpiry(current))
		defer expired.Stop()

		send := func(s State) bool {
			select {
			case out <- s:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(r.Resolve(ctx, current.Principal())) {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-expired.C:
				s, err := src.Current(ctx, token)
				if err != nil {
					send(State{})
					return
				}
				expired.Reset(untilExpiry(s))
			case e := <-changed:
				if e.Kind == identity.EventSignedOut {
					send(State{})
					return
				}

				s, err := src.Current(ctx, token)
				if err != nil {
					send(State{})
					return
				}
				if !send(r.Resolve(ctx, s.Principal())) {
					return
				}
			}
		}
	}()

	return out, nil
}

// untilExpiry is the wait before a session is checked for expiry again
func untilExpiry(s *model.Session) time.Duration {
	d := time.Until(s.ExpiresAt)
	if d < minExpiryCheck {
		return minExpiryCheck
	}
	return d
}
