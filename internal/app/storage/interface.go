//go:generate mockgen -source=./interface.go -destination=./mock/storage.go -package=storagemock
package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"portal/internal/app/model"
)

type DocumentStore interface {
	// Get a document, apperr.ErrNotFound when absent
	Get(ctx context.Context, collection, key string) (model.Document, error)
	// Set replaces the whole document
	Set(ctx context.Context, collection, key string, doc model.Document) error
	// Update merges fields into an existing document
	Update(ctx context.Context, collection, key string, fields model.Document) error
	// List all documents of the collection
	List(ctx context.Context, collection string) ([]model.DocumentSnapshot, error)
	// Increment a numeric field by delta unless the result would drop below min.
	// Returns the stored value after the increment.
	Increment(ctx context.Context, collection, key, field string, delta, min decimal.Decimal) (decimal.Decimal, error)
}

type UserRepository interface {
	// Create a new model.UserRecord keyed by its ID
	Create(ctx context.Context, m *model.UserRecord) (*model.UserRecord, error)
	// Read instance of model.UserRecord
	Read(ctx context.Context, id string) (*model.UserRecord, error)
	// All returns every user record
	All(ctx context.Context) ([]*model.UserRecord, error)
	// AdjustBalance atomically adds delta keeping the balance non-negative
	AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error)
}

type CredentialRepository interface {
	// Create a new model.Credential
	Create(ctx context.Context, m *model.Credential) (*model.Credential, error)
	// ReadByEmail instance of model.Credential
	ReadByEmail(ctx context.Context, email string) (*model.Credential, error)
	// UpdateDisplayName of credential
	UpdateDisplayName(ctx context.Context, id string, name string) (*model.Credential, error)
}
