package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	pg "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal/internal/app/apperr"
	"portal/internal/app/model"
)

func newCredentialRepository(t *testing.T) (*CredentialRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	r, err := NewCredentialRepository(db)
	require.NoError(t, err)
	return r, mock
}

func TestCredentialRepository_Create(t *testing.T) {
	r, mock := newCredentialRepository(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO credentials`).
		WithArgs("5b0a8c1e-0000-4000-8000-000000000001", "a@x.com", "", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	m, err := r.Create(context.Background(), &model.Credential{
		ID:           "5b0a8c1e-0000-4000-8000-000000000001",
		Email:        " A@x.com ",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.Equal(t, now, m.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_Create_Conflict(t *testing.T) {
	r, mock := newCredentialRepository(t)

	mock.ExpectQuery(`INSERT INTO credentials`).
		WillReturnError(&pg.Error{Code: "23505"})

	_, err := r.Create(context.Background(), &model.Credential{ID: "id", Email: "a@x.com"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCredentialRepository_ReadByEmail(t *testing.T) {
	r, mock := newCredentialRepository(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, created_at, email, display_name, password_hash\s+FROM credentials`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "email", "display_name", "password_hash"}).
			AddRow("id-1", now, "a@x.com", "alice", "hash"))
	mock.ExpectQuery(`SELECT id, created_at, email, display_name, password_hash\s+FROM credentials`).
		WithArgs("nobody@x.com").
		WillReturnError(sql.ErrNoRows)

	m, err := r.ReadByEmail(context.Background(), "A@X.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", m.DisplayName)
	assert.Equal(t, "alice", m.Principal().DisplayName)

	_, err = r.ReadByEmail(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCredentialRepository_UpdateDisplayName(t *testing.T) {
	r, mock := newCredentialRepository(t)
	now := time.Now()

	mock.ExpectQuery(`UPDATE credentials`).
		WithArgs("alice", "id-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "email", "display_name", "password_hash"}).
			AddRow("id-1", now, "a@x.com", "alice", "hash"))

	m, err := r.UpdateDisplayName(context.Background(), "id-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", m.DisplayName)
	require.NoError(t, mock.ExpectationsWereMet())
}
