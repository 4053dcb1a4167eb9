package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"portal/internal/app/apperr"
	"portal/internal/app/model"
	"portal/internal/app/storage"
)

// storage.UserRepository interface implementation
var _ storage.UserRepository = (*UserRepository)(nil)

// UserRepository maps user records onto the users collection of a document store
type UserRepository struct {
	docs storage.DocumentStore
}

func (r *UserRepository) LoggerComponent() string {
	return "UserRepository"
}

func NewUserRepository(docs storage.DocumentStore) (*UserRepository, error) {
	if docs == nil {
		return nil, errors.New("document store is required")
	}
	return &UserRepository{docs: docs}, nil
}

// Create implementation of interface storage.UserRepository
func (r *UserRepository) Create(ctx context.Context, m *model.UserRecord) (*model.UserRecord, error) {
	if m.ID == "" {
		return nil, fmt.Errorf("%w: empty user id", apperr.ErrInvalidInput)
	}

	if err := r.docs.Set(ctx, model.CollectionUsers, m.ID, m.Document()); err != nil {
		return nil, fmt.Errorf("set document: %w", err)
	}

	return m, nil
}

// Read implementation of interface storage.UserRepository
func (r *UserRepository) Read(ctx context.Context, id string) (*model.UserRecord, error) {
	d, err := r.docs.Get(ctx, model.CollectionUsers, id)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	return model.UserRecordFromDocument(id, d), nil
}

// All implementation of interface storage.UserRepository
func (r *UserRepository) All(ctx context.Context) ([]*model.UserRecord, error) {
	snaps, err := r.docs.List(ctx, model.CollectionUsers)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	res := make([]*model.UserRecord, 0, len(snaps))
	for _, s := range snaps {
		res = append(res, model.UserRecordFromDocument(s.ID, s.Data))
	}

	return res, nil
}

// AdjustBalance implementation of interface storage.UserRepository
func (r *UserRepository) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	res, err := r.docs.Increment(ctx, model.CollectionUsers, id, model.FieldBalance, delta, decimal.Zero)
	if err != nil {
		if errors.Is(err, apperr.ErrBelowMinimum) {
			return decimal.Zero, apperr.ErrNegativeBalance
		}
		return decimal.Zero, fmt.Errorf("increment: %w", err)
	}

	return res, nil
}
