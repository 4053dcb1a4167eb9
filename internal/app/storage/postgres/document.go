package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"portal/internal/app/apperr"
	"portal/internal/app/logger"
	"portal/internal/app/model"
	"portal/internal/app/storage"
)

// storage.DocumentStore interface implementation
var _ storage.DocumentStore = (*DocumentStore)(nil)

// DocumentStore keeps schemaless documents as JSONB rows keyed by (collection, key)
type DocumentStore struct {
	db *sql.DB
}

func (r *DocumentStore) LoggerComponent() string {
	return "DocumentStore"
}

func NewDocumentStore(db *sql.DB) (*DocumentStore, error) {
	s := &DocumentStore{
		db: db,
	}
	return s, nil
}

// Get implementation of interface storage.DocumentStore
func (r *DocumentStore) Get(ctx context.Context, collection, key string) (model.Document, error) {
	const SQL = `
		SELECT data
		FROM documents
		WHERE collection=$1 AND key=$2
`
	var raw []byte

	err := r.db.QueryRowContext(ctx, SQL, collection, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return model.DecodeDocument(raw)
}

// Set implementation of interface storage.DocumentStore
func (r *DocumentStore) Set(ctx context.Context, collection, key string, doc model.Document) error {
	const SQL = `
		INSERT INTO documents (collection, key, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, key)
		DO UPDATE SET data=EXCLUDED.data, updated_at=NOW()
`
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, SQL, collection, key, string(raw)); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}

	return nil
}

// Update implementation of interface storage.DocumentStore
func (r *DocumentStore) Update(ctx context.Context, collection, key string, fields model.Document) error {
	const SQL = `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at=NOW()
		WHERE collection=$1 AND key=$2
`
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	res, err := r.db.ExecContext(ctx, SQL, collection, key, string(raw))
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}

	return nil
}

// List implementation of interface storage.DocumentStore
func (r *DocumentStore) List(ctx context.Context, collection string) ([]model.DocumentSnapshot, error) {
	l := logger.Get(ctx, r).With().Str("method", "List").Str("collection", collection).Logger()

	const SQL = `
		SELECT key, data
		FROM documents
		WHERE collection=$1
		ORDER BY created_at, key
`
	rows, err := r.db.QueryContext(ctx, SQL, collection)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	res := make([]model.DocumentSnapshot, 0)

	for rows.Next() {
		var (
			key string
			raw []byte
		)
		if err := rows.Scan(&key, &raw); err != nil {
			l.Debug().Err(err).Send()
			return nil, fmt.Errorf("scan: %w", err)
		}
		d, err := model.DecodeDocument(raw)
		if err != nil {
			l.Warn().Err(err).Str("key", key).Msg("Skipping undecodable document")
			continue
		}
		res = append(res, model.DocumentSnapshot{ID: key, Data: d})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return res, nil
}

// Increment implementation of interface storage.DocumentStore.
// The guard and the write are one statement, concurrent increments cannot lose updates.
func (r *DocumentStore) Increment(ctx context.Context, collection, key, field string, delta, min decimal.Decimal) (decimal.Decimal, error) {
	l := logger.Get(ctx, r).With().
		Str("method", "Increment").
		Str("collection", collection).
		Str("key", key).
		Str("field", field).
		Str("delta", delta.String()).
		Logger()

	// stored numbers and numeric strings count, any other value counts as zero
	const current = `
		CASE jsonb_typeof(data->$3::text)
			WHEN 'number' THEN (data->>$3::text)::numeric
			WHEN 'string' THEN CASE
				WHEN data->>$3::text ~ '^[-+]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][-+]?[0-9]+)?$'
				THEN (data->>$3::text)::numeric
				ELSE 0
			END
			ELSE 0
		END`

	const SQL = `
		UPDATE documents
		SET data = jsonb_set(data, ARRAY[$3::text], to_jsonb(` + current + ` + $4::numeric)),
			updated_at = NOW()
		WHERE collection=$1 AND key=$2
		AND ` + current + ` + $4::numeric >= $5::numeric
		RETURNING (data->>$3::text)::numeric
`
	var res decimal.Decimal

	err := r.db.QueryRowContext(ctx, SQL, collection, key, field, delta, min).Scan(&res)
	if err == nil {
		l.Debug().Str("value", res.String()).Msg("Incremented")
		return res, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("update: %w", err)
	}

	// nothing updated: either the document is missing or the guard rejected it
	const sqlExists = `SELECT EXISTS (SELECT 1 FROM documents WHERE collection=$1 AND key=$2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, sqlExists, collection, key).Scan(&exists); err != nil {
		return decimal.Zero, fmt.Errorf("select: %w", err)
	}
	if !exists {
		return decimal.Zero, apperr.ErrNotFound
	}

	l.Debug().Msg("Increment rejected by guard")
	return decimal.Zero, apperr.ErrBelowMinimum
}
