package idp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, apiKey string) *Service {
	t.Helper()
	srv := httptest.NewServer(NewStub("test-key").Router())
	t.Cleanup(srv.Close)

	s, err := NewService(srv.URL, apiKey)
	require.NoError(t, err)
	return s
}

func TestService_SignUpSignInUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, "test-key")

	up := &SignUpResponse{}
	require.NoError(t, s.SignUp(ctx, &SignUpRequest{Email: "a@x.com", Password: "secret1"}, up))
	assert.NotEmpty(t, up.LocalID)
	assert.NotEmpty(t, up.IDToken)

	upd := &UpdateResponse{}
	require.NoError(t, s.Update(ctx, &UpdateRequest{IDToken: up.IDToken, DisplayName: "alice"}, upd))
	assert.Equal(t, "alice", upd.DisplayName)

	in := &SignInResponse{}
	require.NoError(t, s.SignInWithPassword(ctx, &SignInRequest{Email: "a@x.com", Password: "secret1"}, in))
	assert.Equal(t, up.LocalID, in.LocalID)
	assert.Equal(t, "alice", in.DisplayName)
}

func TestService_RemoteErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, "test-key")

	require.NoError(t, s.SignUp(ctx, &SignUpRequest{Email: "a@x.com", Password: "secret1"}, &SignUpResponse{}))

	tests := []struct {
		name string
		call func() error
		want string
	}{
		{"email exists", func() error {
			return s.SignUp(ctx, &SignUpRequest{Email: "a@x.com", Password: "secret1"}, &SignUpResponse{})
		}, MessageEmailExists},
		{"weak password", func() error {
			return s.SignUp(ctx, &SignUpRequest{Email: "b@x.com", Password: "123"}, &SignUpResponse{})
		}, MessageWeakPassword},
		{"invalid email", func() error {
			return s.SignUp(ctx, &SignUpRequest{Email: "nope", Password: "secret1"}, &SignUpResponse{})
		}, MessageInvalidEmail},
		{"wrong password", func() error {
			return s.SignInWithPassword(ctx, &SignInRequest{Email: "a@x.com", Password: "wrong!"}, &SignInResponse{})
		}, MessageInvalidCredentials},
		{"bad id token", func() error {
			return s.Update(ctx, &UpdateRequest{IDToken: "nope", DisplayName: "x"}, &UpdateResponse{})
		}, MessageInvalidIDToken},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			var re *RemoteError
			require.True(t, errors.As(err, &re), "got %v", err)
			assert.Equal(t, tc.want, re.Message)
			assert.Equal(t, http.StatusBadRequest, re.StatusCode)
		})
	}
}

func TestService_InvalidAPIKey(t *testing.T) {
	s := newTestService(t, "wrong-key")

	err := s.SignUp(context.Background(), &SignUpRequest{Email: "a@x.com", Password: "secret1"}, &SignUpResponse{})
	require.Error(t, err)
	assert.Equal(t, MessageInvalidAPIKey, err.Error())
}

func TestService_BreakerOpensOnOutage(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	s, err := NewService(srv.URL, "", WithBreaker(gobreaker.Settings{
		Name: "test",
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
	}))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		err := s.SignInWithPassword(ctx, &SignInRequest{Email: "a@x.com", Password: "secret1"}, &SignInResponse{})
		var re *RemoteError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, "upstream down\n", re.Message)
	}

	err = s.SignInWithPassword(ctx, &SignInRequest{Email: "a@x.com", Password: "secret1"}, &SignInResponse{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "open breaker must not reach the provider")
}

func TestService_RejectionsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(NewStub("").Router())
	t.Cleanup(srv.Close)

	s, err := NewService(srv.URL, "", WithBreaker(gobreaker.Settings{
		Name: "test",
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 1
		},
	}))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		err := s.SignInWithPassword(ctx, &SignInRequest{Email: "a@x.com", Password: "secret1"}, &SignInResponse{})
		assert.EqualError(t, err, MessageInvalidCredentials)
	}
}
