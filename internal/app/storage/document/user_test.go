package document

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal/internal/app/apperr"
	"portal/internal/app/model"
	storagemock "portal/internal/app/storage/mock"
)

func newUserRepository(t *testing.T) (*UserRepository, *storagemock.MockDocumentStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	docs := storagemock.NewMockDocumentStore(ctrl)

	r, err := NewUserRepository(docs)
	require.NoError(t, err)
	return r, docs
}

func TestUserRepository_Create(t *testing.T) {
	r, docs := newUserRepository(t)
	ctx := context.Background()

	docs.EXPECT().
		Set(ctx, "users", "uid-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, d model.Document) error {
			assert.Equal(t, "alice", d["username"])
			assert.Equal(t, "a@x.com", d["email"])
			assert.True(t, d.Decimal("balance").IsZero())
			assert.NotContains(t, d, "password")
			assert.NotContains(t, d, "isAdmin")
			return nil
		})

	u, err := r.Create(ctx, &model.UserRecord{ID: "uid-1", Username: "alice", Email: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "uid-1", u.ID)
}

func TestUserRepository_Create_EmptyID(t *testing.T) {
	r, _ := newUserRepository(t)

	_, err := r.Create(context.Background(), &model.UserRecord{Username: "alice"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestUserRepository_Read(t *testing.T) {
	r, docs := newUserRepository(t)
	ctx := context.Background()

	docs.EXPECT().Get(ctx, "users", "uid-1").Return(model.Document{"username": "alice", "isAdmin": true}, nil)
	docs.EXPECT().Get(ctx, "users", "uid-2").Return(nil, apperr.ErrNotFound)

	u, err := r.Read(ctx, "uid-1")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)
	assert.True(t, u.Balance.IsZero())

	_, err = r.Read(ctx, "uid-2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUserRepository_All(t *testing.T) {
	r, docs := newUserRepository(t)
	ctx := context.Background()

	docs.EXPECT().List(ctx, "users").Return([]model.DocumentSnapshot{
		{ID: "uid-1", Data: model.Document{"username": "alice"}},
		{ID: "uid-2", Data: model.Document{"username": "bob"}},
	}, nil)

	res, err := r.All(ctx)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "uid-2", res[1].ID)
	assert.Equal(t, "bob", res[1].Username)
}

func TestUserRepository_AdjustBalance(t *testing.T) {
	r, docs := newUserRepository(t)
	ctx := context.Background()
	delta := decimal.NewFromInt(50)

	docs.EXPECT().Increment(ctx, "users", "uid-1", "balance", delta, decimal.Zero).Return(decimal.NewFromInt(150), nil)

	res, err := r.AdjustBalance(ctx, "uid-1", delta)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(150).Equal(res))
}

func TestUserRepository_AdjustBalance_Errors(t *testing.T) {
	tests := []struct {
		name  string
		store error
		want  error
	}{
		{"below zero", apperr.ErrBelowMinimum, apperr.ErrNegativeBalance},
		{"missing", apperr.ErrNotFound, apperr.ErrNotFound},
		{"remote", errors.New("boom"), nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, docs := newUserRepository(t)
			docs.EXPECT().Increment(gomock.Any(), "users", "uid-1", "balance", gomock.Any(), gomock.Any()).Return(decimal.Zero, tc.store)

			_, err := r.AdjustBalance(context.Background(), "uid-1", decimal.NewFromInt(-100))
			require.Error(t, err)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}
