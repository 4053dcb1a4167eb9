package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal/internal/app/model"
	"portal/internal/app/session"
)

// fakeAuthenticator accepts any password equal to "secret1"
type fakeAuthenticator struct {
	mu    sync.Mutex
	names map[string]string
}

func (f *fakeAuthenticator) SignUp(_ context.Context, email, password string) (*model.Principal, error) {
	if password != "secret1" {
		return nil, errWeakPassword
	}
	return &model.Principal{ID: "uid-" + email, Email: email}, nil
}

func (f *fakeAuthenticator) SignIn(_ context.Context, email, password string) (*model.Principal, error) {
	if password != "secret1" {
		return nil, errInvalidCredentials
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &model.Principal{ID: "uid-" + email, Email: email, DisplayName: f.names["uid-"+email]}, nil
}

func (f *fakeAuthenticator) SetDisplayName(_ context.Context, p *model.Principal, name string) (*model.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.names == nil {
		f.names = map[string]string{}
	}
	f.names[p.ID] = name
	return &model.Principal{ID: p.ID, Email: p.Email, DisplayName: name}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]EventKind, 0, len(r.events))
	for _, e := range r.events {
		res = append(res, e.Kind)
	}
	return res
}

func TestProvider_RegisterFlow(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(&fakeAuthenticator{}, session.NewMemory("secret"))
	rec := &recorder{}
	unsubscribe := p.Subscribe(rec.record)

	token, principal, err := p.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "uid-a@x.com", principal.ID)

	principal, err = p.SetDisplayName(ctx, token, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", principal.DisplayName)

	s, err := p.Current(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", s.DisplayName)

	require.NoError(t, p.SignOut(ctx, token))
	_, err = p.Current(ctx, token)
	assert.ErrorIs(t, err, session.ErrInvalidToken)

	unsubscribe()
	_, _, err = p.Authenticate(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	assert.Equal(t, []EventKind{EventSignedIn, EventProfileUpdated, EventSignedOut}, rec.kinds())
	assert.Nil(t, rec.events[2].Principal)
	assert.Equal(t, s.ID, rec.events[2].SessionID)
}

func TestProvider_AuthenticateFailure(t *testing.T) {
	p := NewProvider(&fakeAuthenticator{}, session.NewMemory("secret"))
	rec := &recorder{}
	p.Subscribe(rec.record)

	_, _, err := p.Authenticate(context.Background(), "a@x.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, "INVALID_LOGIN_CREDENTIALS", err.Error())
	assert.Empty(t, rec.kinds())
}

func TestProvider_SignOutUnknownSession(t *testing.T) {
	p := NewProvider(&fakeAuthenticator{}, session.NewMemory("secret"))
	assert.NoError(t, p.SignOut(context.Background(), "not-a-token"))
}

func TestProvider_ExpiryIsSignOut(t *testing.T) {
	p := NewProvider(&fakeAuthenticator{}, session.NewMemory("secret", session.WithTokenLifetime(50*time.Millisecond)))
	t.Cleanup(p.Close)
	rec := &recorder{}
	p.Subscribe(rec.record)

	token, _, err := p.Authenticate(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(rec.kinds()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []EventKind{EventSignedIn, EventSignedOut}, rec.kinds())

	_, err = p.Current(context.Background(), token)
	assert.ErrorIs(t, err, session.ErrInvalidToken)
}

func TestProvider_SignOutStopsExpiry(t *testing.T) {
	p := NewProvider(&fakeAuthenticator{}, session.NewMemory("secret", session.WithTokenLifetime(50*time.Millisecond)))
	t.Cleanup(p.Close)
	rec := &recorder{}
	p.Subscribe(rec.record)

	token, _, err := p.Authenticate(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(context.Background(), token))

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []EventKind{EventSignedIn, EventSignedOut}, rec.kinds(), "signed out once")
}

func TestHub_UnsubscribeIsIdempotent(t *testing.T) {
	h := NewHub()
	calls := 0
	unsubscribe := h.Subscribe(func(Event) { calls++ })

	h.Publish(Event{Kind: EventSignedIn})
	unsubscribe()
	unsubscribe()
	h.Publish(Event{Kind: EventSignedOut})

	assert.Equal(t, 1, calls)
	assert.Equal(t, "signed_in", EventSignedIn.String())
}
