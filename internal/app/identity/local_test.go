package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"portal/internal/app/apperr"
	"portal/internal/app/model"
	storagemock "portal/internal/app/storage/mock"
)

func newTestLocal(t *testing.T) (*Local, *storagemock.MockCredentialRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := storagemock.NewMockCredentialRepository(ctrl)
	return NewLocal(repo, bcrypt.MinCost), repo
}

func TestLocal_SignUp(t *testing.T) {
	a, repo := newTestLocal(t)
	ctx := context.Background()

	repo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, c *model.Credential) (*model.Credential, error) {
		assert.Equal(t, "a@x.com", c.Email)
		assert.NotEmpty(t, c.ID)
		assert.NotEqual(t, "secret1", c.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte("secret1")))
		return c, nil
	})

	p, err := a.SignUp(ctx, " a@x.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", p.Email)
}

func TestLocal_SignUp_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		message  string
		kind     error
	}{
		{"invalid email", "not-an-email", "secret1", "INVALID_EMAIL", apperr.ErrInvalidInput},
		{"missing password", "a@x.com", "", "MISSING_PASSWORD", apperr.ErrInvalidInput},
		{"weak password", "a@x.com", "12345", "WEAK_PASSWORD : Password should be at least 6 characters", apperr.ErrInvalidInput},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, _ := newTestLocal(t)

			_, err := a.SignUp(context.Background(), tc.email, tc.password)
			assert.EqualError(t, err, tc.message)
			assert.ErrorIs(t, err, tc.kind)
		})
	}
}

func TestLocal_SignUp_EmailExists(t *testing.T) {
	a, repo := newTestLocal(t)
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, apperr.ErrConflict)

	_, err := a.SignUp(context.Background(), "a@x.com", "secret1")
	assert.EqualError(t, err, "EMAIL_EXISTS")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestLocal_SignIn(t *testing.T) {
	a, repo := newTestLocal(t)
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)

	stored := &model.Credential{ID: "uid-1", Email: "a@x.com", DisplayName: "alice", PasswordHash: string(hash)}
	repo.EXPECT().ReadByEmail(ctx, "a@x.com").Return(stored, nil).Times(2)
	repo.EXPECT().ReadByEmail(ctx, "nobody@x.com").Return(nil, apperr.ErrNotFound)
	repo.EXPECT().ReadByEmail(ctx, "broken@x.com").Return(nil, errors.New("db down"))

	p, err := a.SignIn(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.DisplayName)

	_, err = a.SignIn(ctx, "a@x.com", "wrong-password")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = a.SignIn(ctx, "nobody@x.com", "secret1")
	assert.EqualError(t, err, "INVALID_LOGIN_CREDENTIALS")

	_, err = a.SignIn(ctx, "broken@x.com", "secret1")
	require.Error(t, err)
	var ae *AuthError
	assert.False(t, errors.As(err, &ae), "storage failures are not provider rejections")
}

func TestLocal_SetDisplayName(t *testing.T) {
	a, repo := newTestLocal(t)
	ctx := context.Background()

	repo.EXPECT().UpdateDisplayName(ctx, "uid-1", "alice").Return(&model.Credential{ID: "uid-1", DisplayName: "alice"}, nil)
	repo.EXPECT().UpdateDisplayName(ctx, "uid-2", "bob").Return(nil, apperr.ErrNotFound)

	p, err := a.SetDisplayName(ctx, &model.Principal{ID: "uid-1"}, " alice ")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.DisplayName)

	_, err = a.SetDisplayName(ctx, &model.Principal{ID: "uid-2"}, "bob")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
