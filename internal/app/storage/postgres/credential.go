package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	pg "github.com/lib/pq"

	"portal/internal/app/apperr"
	"portal/internal/app/model"
	"portal/internal/app/storage"
)

// storage.CredentialRepository interface implementation
var _ storage.CredentialRepository = (*CredentialRepository)(nil)

type CredentialRepository struct {
	db *sql.DB
}

func (r *CredentialRepository) LoggerComponent() string {
	return "CredentialRepository"
}

func NewCredentialRepository(db *sql.DB) (*CredentialRepository, error) {
	s := &CredentialRepository{
		db: db,
	}
	return s, nil
}

// Create implementation of interface storage.CredentialRepository
func (r *CredentialRepository) Create(ctx context.Context, m *model.Credential) (*model.Credential, error) {
	const SQL = `
		INSERT INTO credentials (id, email, display_name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
`

	err := r.db.QueryRowContext(ctx, SQL, m.ID, normalizeEmail(m.Email), m.DisplayName, m.PasswordHash).Scan(&m.CreatedAt)
	if err != nil {
		var pgErr *pg.Error
		if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(string(pgErr.Code)) {
			return nil, apperr.ErrConflict
		}

		return nil, fmt.Errorf("insert: %w", err)
	}

	return m, nil
}

// ReadByEmail implementation of interface storage.CredentialRepository
func (r *CredentialRepository) ReadByEmail(ctx context.Context, email string) (*model.Credential, error) {
	const SQL = `
		SELECT id, created_at, email, display_name, password_hash
		FROM credentials
		WHERE email=$1
`
	m := &model.Credential{}

	err := r.db.QueryRowContext(ctx, SQL, normalizeEmail(email)).Scan(&m.ID, &m.CreatedAt, &m.Email, &m.DisplayName, &m.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return m, nil
}

// UpdateDisplayName implementation of interface storage.CredentialRepository
func (r *CredentialRepository) UpdateDisplayName(ctx context.Context, id string, name string) (*model.Credential, error) {
	const SQL = `
		UPDATE credentials
		SET display_name=$1
		WHERE id=$2
		RETURNING id, created_at, email, display_name, password_hash
`
	m := &model.Credential{}

	err := r.db.QueryRowContext(ctx, SQL, name, id).Scan(&m.ID, &m.CreatedAt, &m.Email, &m.DisplayName, &m.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("update: %w", err)
	}

	return m, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
