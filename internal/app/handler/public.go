package handler

import (
	"context"
	"net/http"

	"portal/internal/app/logger"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type PublicHandler struct {
	db Pinger
}

func NewPublicHandler(db Pinger) *PublicHandler {
	return &PublicHandler{db: db}
}

// Home answers where the landing page leads the caller
func (h *PublicHandler) Home(w http.ResponseWriter, r *http.Request) {
	s := ReadContextState(r.Context())

	out := struct {
		Authenticated bool   `json:"authenticated"`
		DisplayName   string `json:"displayName,omitempty"`
		Next          string `json:"next"`
	}{
		Authenticated: s.Authenticated(),
		Next:          "/register",
	}
	if s.Authenticated() {
		out.DisplayName = s.User.DisplayName
		out.Next = redirectDashboard
	}

	WriteResponse(w, out, http.StatusOK)
}

type formField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

type formView struct {
	Action string      `json:"action"`
	Fields []formField `json:"fields"`
	Submit string      `json:"submit"`
	Switch string      `json:"switch"`
}

var (
	loginForm = formView{
		Action: "/api/user/login",
		Fields: []formField{
			{Name: "email", Type: "email", Label: "Email address", Required: true},
			{Name: "password", Type: "password", Label: "Password", Required: true},
		},
		Submit: "Sign in",
		Switch: "/register",
	}
	registerForm = formView{
		Action: "/api/user/register",
		Fields: []formField{
			{Name: "username", Type: "text", Label: "Username", Required: true},
			{Name: "email", Type: "email", Label: "Email address", Required: true},
			{Name: "password", Type: "password", Label: "Password", Required: true},
			{Name: "document", Type: "file", Label: "Identity document"},
		},
		Submit: "Sign up",
		Switch: "/login",
	}
)

func (h *PublicHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	WriteResponse(w, loginForm, http.StatusOK)
}

func (h *PublicHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	WriteResponse(w, registerForm, http.StatusOK)
}

func (h *PublicHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.db.PingContext(ctx); err != nil {
		l := logger.Get(ctx, "Handler.Public.Health")
		l.Error().Err(err).Msg("Database ping failed")
		WriteMessage(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	WriteResponse(w, struct {
		Status string `json:"status"`
	}{"ok"}, http.StatusOK)
}
