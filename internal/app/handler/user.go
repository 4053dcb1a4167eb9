package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"portal/internal/app/apperr"
	"portal/internal/app/identity"
	"portal/internal/app/logger"
	"portal/internal/app/model"
	"portal/internal/app/resolver"
	"portal/internal/app/storage"
)

// IdentityProvider interface implementation
var _ IdentityProvider = (*identity.Provider)(nil)

type IdentityProvider interface {
	Authenticate(ctx context.Context, email, password string) (string, *model.Principal, error)
	Register(ctx context.Context, email, password string) (string, *model.Principal, error)
	SetDisplayName(ctx context.Context, token, name string) (*model.Principal, error)
	SignOut(ctx context.Context, token string) error
	Current(ctx context.Context, token string) (*model.Session, error)
	Subscribe(fn func(identity.Event)) func()
}

const redirectDashboard = "/dashboard"

type UserHandler struct {
	provider IdentityProvider
	users    storage.UserRepository
	resolver *resolver.Resolver
	cookies  Cookies
}

func NewUserHandler(provider IdentityProvider, users storage.UserRepository, res *resolver.Resolver, cookies Cookies) *UserHandler {
	return &UserHandler{
		provider: provider,
		users:    users,
		resolver: res,
		cookies:  cookies,
	}
}

type signedIn struct {
	Token    string `json:"token"`
	Redirect string `json:"redirect"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.User.Register")

	in := struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
		Username string `json:"username" validate:"required,max=64"`
		// identity document image, accepted but not kept
		Document string `json:"document"`
	}{}

	if err := readBody(r, &in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	if !validateData(w, in) {
		return
	}

	if in.Document != "" {
		l.Debug().Int("document_size", len(in.Document)).Msg("Identity document ignored")
	}

	token, p, err := h.provider.Register(ctx, in.Email, in.Password)
	if err != nil {
		writeAuthError(ctx, w, err, http.StatusBadRequest)
		return
	}

	if err := h.completeProfile(ctx, token, p, in.Username); err != nil {
		l.Error().Err(err).Str("principal_id", p.ID).Msg("Registration incomplete")
		if err := h.provider.SignOut(ctx, token); err != nil {
			l.Error().Err(err).Send()
		}
		writeAuthError(ctx, w, err, http.StatusBadRequest)
		return
	}

	h.cookies.Set(w, token)
	w.Header().Add("Authorization", "Bearer "+token)

	WriteResponse(w, signedIn{Token: token, Redirect: redirectDashboard}, http.StatusOK)
}

// completeProfile sets the display name and creates the user record with a zero balance
func (h *UserHandler) completeProfile(ctx context.Context, token string, p *model.Principal, username string) error {
	p, err := h.provider.SetDisplayName(ctx, token, username)
	if err != nil {
		return fmt.Errorf("set display name: %w", err)
	}

	_, err = h.users.Create(ctx, &model.UserRecord{
		ID:       p.ID,
		Username: username,
		Email:    p.Email,
		Balance:  decimal.Zero,
	})
	if err != nil {
		return fmt.Errorf("create user record: %w", err)
	}

	return nil
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	in := struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}{}

	if err := readBody(r, &in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	if !validateData(w, in) {
		return
	}

	token, _, err := h.provider.Authenticate(ctx, in.Email, in.Password)
	if err != nil {
		writeAuthError(ctx, w, err, http.StatusUnauthorized)
		return
	}

	h.cookies.Set(w, token)
	w.Header().Add("Authorization", "Bearer "+token)

	WriteResponse(w, signedIn{Token: token, Redirect: redirectDashboard}, http.StatusOK)
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.User.Logout")

	if a, err := ReadContextAuth(ctx); err == nil {
		if err := h.provider.SignOut(ctx, a.Token); err != nil {
			l.Error().Err(err).Msg("Sign out failed")
			WriteMessage(w, "Failed to sign out", http.StatusInternalServerError)
			return
		}
	}

	h.cookies.Clear(w)

	WriteResponse(w, struct {
		Redirect string `json:"redirect"`
	}{"/"}, http.StatusOK)
}

// Session answers the resolved state of the caller
func (h *UserHandler) Session(w http.ResponseWriter, r *http.Request) {
	WriteResponse(w, ReadContextState(r.Context()), http.StatusOK)
}

// Watch streams resolved states of the caller's session as server-sent events
func (h *UserHandler) Watch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.User.Watch")

	a, err := ReadContextAuth(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteMessage(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	states, err := h.resolver.Watch(ctx, h.provider, a.Token)
	if err != nil {
		l.Debug().Err(err).Msg("Watch refused")
		WriteError(w, apperr.ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for s := range states {
		b, err := json.Marshal(s)
		if err != nil {
			l.Error().Err(err).Send()
			return
		}
		if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", b); err != nil {
			l.Debug().Err(err).Msg("Client gone")
			return
		}
		flusher.Flush()
	}
}

func (h *UserHandler) Balance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	a, err := ReadContextAuth(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	out := struct {
		Balance float64 `json:"balance"`
	}{
		Balance: readBalance(ctx, h.users, a.Session.PrincipalID).InexactFloat64(),
	}

	WriteResponse(w, out, http.StatusOK)
}

// readBalance of the user record, zero when absent or unreadable
func readBalance(ctx context.Context, users storage.UserRepository, id string) decimal.Decimal {
	u, err := users.Read(ctx, id)
	if err != nil {
		l := logger.Get(ctx, "Handler.Balance")
		if errors.Is(err, apperr.ErrNotFound) {
			l.Debug().Str("user_id", id).Msg("No user record")
		} else {
			l.Error().Err(err).Str("user_id", id).Msg("User record read failed")
		}
		return decimal.Zero
	}
	return u.Balance
}

// writeAuthError passes provider rejections through verbatim. Other failures
// get a generic message.
func writeAuthError(ctx context.Context, w http.ResponseWriter, err error, rejectStatus int) {
	l := logger.Get(ctx, "Handler.User")

	var ae *identity.AuthError
	if errors.As(err, &ae) {
		l.Debug().Err(err).Msg("Rejected by identity provider")
		status := rejectStatus
		if errors.Is(err, apperr.ErrConflict) {
			status = http.StatusConflict
		}
		WriteMessage(w, ae.Message, status)
		return
	}

	if errors.Is(err, apperr.ErrUnavailable) {
		l.Error().Err(err).Msg("Identity provider unavailable")
		WriteMessage(w, "Identity provider is unavailable, try again later", http.StatusServiceUnavailable)
		return
	}

	l.Error().Err(err).Send()
	WriteMessage(w, "Internal error", http.StatusInternalServerError)
}
