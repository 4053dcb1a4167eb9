package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"portal/internal/app/apperr"
	"portal/internal/app/logger"
	"portal/internal/app/model"
	"portal/internal/app/storage"
)

// Authenticator interface implementation
var _ Authenticator = (*Local)(nil)

// Local keeps credentials in the application database
type Local struct {
	credentials storage.CredentialRepository
	bcryptCost  int
	validate    *validator.Validate
}

func (a *Local) LoggerComponent() string {
	return "Identity.Local"
}

func NewLocal(credentials storage.CredentialRepository, bcryptCost int) *Local {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Local{
		credentials: credentials,
		bcryptCost:  bcryptCost,
		validate:    validator.New(),
	}
}

// SignUp implementation of interface Authenticator
func (a *Local) SignUp(ctx context.Context, email, password string) (*model.Principal, error) {
	email = strings.TrimSpace(email)
	if err := a.validate.Var(email, "required,email"); err != nil {
		return nil, errInvalidEmail
	}
	if password == "" {
		return nil, errMissingPassword
	}
	if len(password) < minPasswordLength {
		return nil, errWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	c, err := a.credentials.Create(ctx, &model.Credential{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, errEmailExists
		}
		return nil, fmt.Errorf("create credential: %w", err)
	}

	return c.Principal(), nil
}

// SignIn implementation of interface Authenticator
func (a *Local) SignIn(ctx context.Context, email, password string) (*model.Principal, error) {
	l := logger.Get(ctx, a)

	c, err := a.credentials.ReadByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			l.Debug().Msg("Unknown email")
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("read credential: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		l.Debug().Str("principal_id", c.ID).Msg("Password mismatch")
		return nil, errInvalidCredentials
	}

	return c.Principal(), nil
}

// SetDisplayName implementation of interface Authenticator
func (a *Local) SetDisplayName(ctx context.Context, p *model.Principal, name string) (*model.Principal, error) {
	c, err := a.credentials.UpdateDisplayName(ctx, p.ID, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("update credential: %w", err)
	}

	return c.Principal(), nil
}
