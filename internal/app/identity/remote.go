package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"portal/internal/app/apperr"
	"portal/internal/app/model"
	"portal/pkg/idp"
)

// Authenticator interface implementation
var _ Authenticator = (*Remote)(nil)

// Remote delegates credentials to the hosted identity provider
type Remote struct {
	client *idp.Service
}

func (a *Remote) LoggerComponent() string {
	return "Identity.Remote"
}

func NewRemote(client *idp.Service) *Remote {
	return &Remote{client: client}
}

// SignUp implementation of interface Authenticator
func (a *Remote) SignUp(ctx context.Context, email, password string) (*model.Principal, error) {
	out := &idp.SignUpResponse{}
	if err := a.client.SignUp(ctx, &idp.SignUpRequest{Email: email, Password: password}, out); err != nil {
		return nil, translate(err)
	}

	return &model.Principal{
		ID:            out.LocalID,
		Email:         out.Email,
		ProviderToken: out.IDToken,
	}, nil
}

// SignIn implementation of interface Authenticator
func (a *Remote) SignIn(ctx context.Context, email, password string) (*model.Principal, error) {
	out := &idp.SignInResponse{}
	if err := a.client.SignInWithPassword(ctx, &idp.SignInRequest{Email: email, Password: password}, out); err != nil {
		return nil, translate(err)
	}

	return &model.Principal{
		ID:            out.LocalID,
		Email:         out.Email,
		DisplayName:   out.DisplayName,
		ProviderToken: out.IDToken,
	}, nil
}

// SetDisplayName implementation of interface Authenticator
func (a *Remote) SetDisplayName(ctx context.Context, p *model.Principal, name string) (*model.Principal, error) {
	out := &idp.UpdateResponse{}
	in := &idp.UpdateRequest{IDToken: p.ProviderToken, DisplayName: strings.TrimSpace(name)}
	if err := a.client.Update(ctx, in, out); err != nil {
		return nil, translate(err)
	}

	return &model.Principal{
		ID:            p.ID,
		Email:         p.Email,
		DisplayName:   out.DisplayName,
		ProviderToken: p.ProviderToken,
	}, nil
}

// translate keeps provider rejections verbatim and classifies them; transport
// failures and an open breaker become apperr.ErrUnavailable.
func translate(err error) error {
	var re *idp.RemoteError
	if errors.As(err, &re) && re.StatusCode < http.StatusInternalServerError {
		return newAuthError(re.Message, classify(re.Message))
	}

	return fmt.Errorf("%w: %v", apperr.ErrUnavailable, err)
}

func classify(message string) error {
	code := message
	if i := strings.IndexAny(code, " :"); i > 0 {
		code = code[:i]
	}

	switch code {
	case idp.MessageEmailExists:
		return apperr.ErrConflict
	case "INVALID_LOGIN_CREDENTIALS", "INVALID_PASSWORD", "EMAIL_NOT_FOUND", "USER_DISABLED", "INVALID_ID_TOKEN", "TOKEN_EXPIRED":
		return apperr.ErrUnauthorized
	case "USER_NOT_FOUND":
		return apperr.ErrNotFound
	}
	return apperr.ErrInvalidInput
}
