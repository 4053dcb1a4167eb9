package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"portal/internal/app/apperr"
	"portal/internal/app/logger"
	"portal/internal/app/model"
	"portal/internal/app/storage"
)

type Operation string

const (
	OperationIncrease Operation = "increase"
	OperationDecrease Operation = "decrease"
)

// ParseOperation accepts "increase" and "decrease"
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(s))); op {
	case OperationIncrease, OperationDecrease:
		return op, nil
	}
	return "", fmt.Errorf("%w: %q", apperr.ErrInvalidOperation, s)
}

// ParseAmount accepts a positive decimal number
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", apperr.ErrInvalidAmount, s)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: must be greater than zero", apperr.ErrInvalidAmount)
	}
	return amount, nil
}

// Console is the working state of one admin session: the user list loaded
// once, and the user selected for balance adjustment.
type Console struct {
	mu       sync.Mutex
	users    storage.UserRepository
	list     []*model.UserRecord
	selected *model.UserRecord
}

func (c *Console) LoggerComponent() string {
	return "Console"
}

func New(users storage.UserRepository) *Console {
	return &Console{users: users}
}

// Load replaces the user list with all user records and clears a selection
// that is no longer present.
func (c *Console) Load(ctx context.Context) error {
	list, err := c.users.All(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.list = list
	if c.selected != nil {
		c.selected = c.find(c.selected.ID)
	}

	l := logger.Get(ctx, c)

	l.Debug().Int("count", len(list)).Msg("Users loaded")

	return nil
}

// Users returns copies of the loaded user records
func (c *Console) Users() []model.UserRecord {
	return c.Search("")
}

// Search filters the loaded list by a case-insensitive substring of email or
// username. An empty term returns the whole list.
func (c *Console) Search(term string) []model.UserRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := make([]model.UserRecord, 0, len(c.list))
	for _, u := range c.list {
		if term == "" || u.Matches(term) {
			res = append(res, *u)
		}
	}
	return res
}

// Select makes a loaded user the adjustment target
func (c *Console) Select(id string) (model.UserRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u := c.find(id)
	if u == nil {
		return model.UserRecord{}, fmt.Errorf("select %s: %w", id, apperr.ErrNotFound)
	}
	c.selected = u

	return *u, nil
}

// Selected returns the adjustment target, false when none
func (c *Console) Selected() (model.UserRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selected == nil {
		return model.UserRecord{}, false
	}
	return *c.selected, true
}

// Adjust applies op with amount to the selected user's balance. A result below
// zero is refused without writing. On success the stored balance is reflected
// in the loaded list and the selection, on failure both are left unchanged.
func (c *Console) Adjust(ctx context.Context, op Operation, amount string) (model.UserRecord, error) {
	l := logger.Get(ctx, c)

	target, ok := c.Selected()
	if !ok {
		return model.UserRecord{}, apperr.ErrNoSelection
	}

	op, err := ParseOperation(string(op))
	if err != nil {
		return model.UserRecord{}, err
	}

	delta, err := ParseAmount(amount)
	if err != nil {
		return model.UserRecord{}, err
	}
	if op == OperationDecrease {
		delta = delta.Neg()
	}

	if target.Balance.Add(delta).IsNegative() {
		return model.UserRecord{}, apperr.ErrNegativeBalance
	}

	balance, err := c.users.AdjustBalance(ctx, target.ID, delta)
	if err != nil {
		if !errors.Is(err, apperr.ErrNegativeBalance) && !errors.Is(err, apperr.ErrNotFound) {
			l.Error().Err(err).Str("user_id", target.ID).Msg("Balance update failed")
		}
		return model.UserRecord{}, fmt.Errorf("adjust balance: %w", err)
	}

	l.Info().
		Str("user_id", target.ID).
		Str("delta", delta.String()).
		Str("balance", balance.String()).
		Msg("Balance adjusted")

	c.mu.Lock()
	defer c.mu.Unlock()

	// the list may have been reloaded meanwhile
	res := target
	if u := c.find(target.ID); u != nil {
		u.Balance = balance
		res = *u
	}
	res.Balance = balance

	return res, nil
}

// find must be called with the lock held
func (c *Console) find(id string) *model.UserRecord {
	for _, u := range c.list {
		if u.ID == id {
			return u
		}
	}
	return nil
}
