package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal/internal/app/apperr"
	"portal/internal/app/identity"
	"portal/internal/app/model"
	"portal/internal/app/session"
	storagemock "portal/internal/app/storage/mock"
)

func TestResolver_Resolve(t *testing.T) {
	principal := &model.Principal{ID: "uid-1", Email: "a@x.com"}

	tests := []struct {
		name      string
		principal *model.Principal
		setup     func(m *storagemock.MockUserRepository)
		want      State
	}{
		{
			name: "signed out",
			want: State{},
		},
		{
			name:      "admin",
			principal: principal,
			setup: func(m *storagemock.MockUserRepository) {
				m.EXPECT().Read(gomock.Any(), "uid-1").Return(&model.UserRecord{ID: "uid-1", IsAdmin: true}, nil)
			},
			want: State{User: principal, IsAdmin: true},
		},
		{
			name:      "regular user",
			principal: principal,
			setup: func(m *storagemock.MockUserRepository) {
				m.EXPECT().Read(gomock.Any(), "uid-1").Return(&model.UserRecord{ID: "uid-1"}, nil)
			},
			want: State{User: principal},
		},
		{
			name:      "missing record is not admin",
			principal: principal,
			setup: func(m *storagemock.MockUserRepository) {
				m.EXPECT().Read(gomock.Any(), "uid-1").Return(nil, apperr.ErrNotFound)
			},
			want: State{User: principal},
		},
		{
			name:      "store failure is not admin",
			principal: principal,
			setup: func(m *storagemock.MockUserRepository) {
				m.EXPECT().Read(gomock.Any(), "uid-1").Return(nil, errors.New("connection refused"))
			},
			want: State{User: principal},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			users := storagemock.NewMockUserRepository(ctrl)
			if tc.setup != nil {
				tc.setup(users)
			}

			got := New(users).Resolve(context.Background(), tc.principal)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.principal != nil, got.Authenticated())
		})
	}
}

func TestResolver_ResolveStringAdminFlag(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := storagemock.NewMockUserRepository(ctrl)

	// "true" stored as a string is not an admin flag
	rec := model.UserRecordFromDocument("uid-1", model.Document{model.FieldIsAdmin: "true"})
	users.EXPECT().Read(gomock.Any(), "uid-1").Return(rec, nil)

	got := New(users).Resolve(context.Background(), &model.Principal{ID: "uid-1"})
	assert.False(t, got.IsAdmin)
}

func receive(t *testing.T, ch <-chan State) State {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "channel closed")
		return s
	case <-time.After(time.Second):
		t.Fatal("no state received")
	}
	return State{}
}

func TestResolver_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := gomock.NewController(t)
	users := storagemock.NewMockUserRepository(ctrl)
	users.EXPECT().Read(gomock.Any(), gomock.Any()).Return(&model.UserRecord{IsAdmin: true}, nil).AnyTimes()

	sessions := session.NewMemory("secret")
	provider := identity.NewProvider(stubAuthenticator{}, sessions)

	token, _, err := provider.Authenticate(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	other, _, err := provider.Authenticate(ctx, "b@x.com", "secret1")
	require.NoError(t, err)

	ch, err := New(users).Watch(ctx, provider, token)
	require.NoError(t, err)

	s := receive(t, ch)
	assert.True(t, s.Loading)
	assert.False(t, s.IsAdmin)

	s = receive(t, ch)
	assert.False(t, s.Loading)
	assert.True(t, s.IsAdmin)
	assert.Equal(t, "a@x.com", s.User.Email)

	// changes of other sessions are not delivered
	require.NoError(t, provider.SignOut(ctx, other))

	_, err = provider.SetDisplayName(ctx, token, "alice")
	require.NoError(t, err)
	s = receive(t, ch)
	assert.Equal(t, "alice", s.User.DisplayName)

	require.NoError(t, provider.SignOut(ctx, token))
	s = receive(t, ch)
	assert.Equal(t, State{}, s)

	_, ok := <-ch
	assert.False(t, ok)
}

func TestResolver_WatchExpiry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := gomock.NewController(t)
	users := storagemock.NewMockUserRepository(ctrl)
	users.EXPECT().Read(gomock.Any(), gomock.Any()).Return(&model.UserRecord{IsAdmin: true}, nil).AnyTimes()

	sessions := session.NewMemory("secret", session.WithTokenLifetime(200*time.Millisecond))
	provider := identity.NewProvider(stubAuthenticator{}, sessions)
	t.Cleanup(provider.Close)

	token, _, err := provider.Authenticate(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	ch, err := New(users).Watch(ctx, provider, token)
	require.NoError(t, err)

	assert.True(t, receive(t, ch).Loading)
	assert.True(t, receive(t, ch).IsAdmin)

	assert.Equal(t, State{}, receive(t, ch), "expiry ends the session")
	_, ok := <-ch
	assert.False(t, ok)
}

// silentSource never publishes events
type silentSource struct {
	*identity.Provider
}

func (silentSource) Subscribe(func(identity.Event)) func() {
	return func() {}
}

func TestResolver_WatchExpiryWithoutEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := gomock.NewController(t)
	users := storagemock.NewMockUserRepository(ctrl)
	users.EXPECT().Read(gomock.Any(), gomock.Any()).Return(&model.UserRecord{}, nil).AnyTimes()

	provider := identity.NewProvider(stubAuthenticator{}, session.NewMemory("secret", session.WithTokenLifetime(200*time.Millisecond)))
	t.Cleanup(provider.Close)

	token, _, err := provider.Authenticate(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	ch, err := New(users).Watch(ctx, silentSource{provider}, token)
	require.NoError(t, err)

	receive(t, ch)
	assert.Equal(t, "a@x.com", receive(t, ch).User.Email)
	assert.Equal(t, State{}, receive(t, ch))
	_, ok := <-ch
	assert.False(t, ok)
}

// signOutOnRead signs the session out right after its first read
type signOutOnRead struct {
	*identity.Provider
	done bool
}

func (s *signOutOnRead) Current(ctx context.Context, token string) (*model.Session, error) {
	res, err := s.Provider.Current(ctx, token)
	if !s.done {
		s.done = true
		_ = s.Provider.SignOut(ctx, token)
	}
	return res, err
}

func TestResolver_WatchSignOutDuringRead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := gomock.NewController(t)
	users := storagemock.NewMockUserRepository(ctrl)
	users.EXPECT().Read(gomock.Any(), gomock.Any()).Return(&model.UserRecord{}, nil).AnyTimes()

	provider := identity.NewProvider(stubAuthenticator{}, session.NewMemory("secret"))
	t.Cleanup(provider.Close)

	token, _, err := provider.Authenticate(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	ch, err := New(users).Watch(ctx, &signOutOnRead{Provider: provider}, token)
	require.NoError(t, err)

	assert.True(t, receive(t, ch).Loading)
	assert.Equal(t, "a@x.com", receive(t, ch).User.Email)
	assert.Equal(t, State{}, receive(t, ch))
	_, ok := <-ch
	assert.False(t, ok)
}

func TestResolver_WatchCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	ctrl := gomock.NewController(t)
	users := storagemock.NewMockUserRepository(ctrl)
	users.EXPECT().Read(gomock.Any(), gomock.Any()).Return(nil, apperr.ErrNotFound).AnyTimes()

	provider := identity.NewProvider(stubAuthenticator{}, session.NewMemory("secret"))
	token, _, err := provider.Authenticate(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	ch, err := New(users).Watch(ctx, provider, token)
	require.NoError(t, err)
	receive(t, ch)

	cancel()
	for range ch {
	}
}

func TestResolver_WatchInvalidToken(t *testing.T) {
	provider := identity.NewProvider(stubAuthenticator{}, session.NewMemory("secret"))

	_, err := New(nil).Watch(context.Background(), provider, "garbage")
	assert.ErrorIs(t, err, session.ErrInvalidToken)
}

type stubAuthenticator struct{}

func (stubAuthenticator) SignUp(_ context.Context, email, _ string) (*model.Principal, error) {
	return &model.Principal{ID: "uid-" + email, Email: email}, nil
}

func (stubAuthenticator) SignIn(_ context.Context, email, _ string) (*model.Principal, error) {
	return &model.Principal{ID: "uid-" + email, Email: email}, nil
}

func (stubAuthenticator) SetDisplayName(_ context.Context, p *model.Principal, name string) (*model.Principal, error) {
	return &model.Principal{ID: p.ID, Email: p.Email, DisplayName: name}, nil
}
