package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"portal/internal/app/apperr"
	"portal/internal/app/console"
	"portal/internal/app/logger"
	"portal/internal/app/model"
)

const (
	messageInvalidInput     = "Please select a user and enter a valid amount"
	messageInvalidOperation = "Operation must be increase or decrease"
	messageNegativeBalance  = "Balance cannot be negative"
	messageUserNotFound     = "User not found"
	messageFetchFailed      = "Failed to fetch users"
	messageUpdateFailed     = "Failed to update balance"
)

type AdminHandler struct {
	consoles *console.Registry
}

func NewAdminHandler(consoles *console.Registry) *AdminHandler {
	return &AdminHandler{consoles: consoles}
}

type consoleView struct {
	Query    string             `json:"query"`
	Users    []model.UserRecord `json:"users"`
	Selected *model.UserRecord  `json:"selected"`
}

// amountInput accepts both 10.5 and "10.5"
type amountInput string

func (a *amountInput) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = amountInput(s)
		return nil
	}
	*a = amountInput(strings.TrimSpace(string(b)))
	return nil
}

type adjustInput struct {
	Operation string      `json:"operation"`
	Amount    amountInput `json:"amount"`
}

// console of the caller's session, writes the error response when unavailable
func (h *AdminHandler) console(w http.ResponseWriter, r *http.Request) (*console.Console, bool) {
	ctx := r.Context()

	a, err := ReadContextAuth(ctx)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return nil, false
	}

	c, err := h.consoles.Get(ctx, a.Session.ID)
	if err != nil {
		l := logger.Get(ctx, "Handler.Admin")
		l.Error().Err(err).Msg("Users load failed")
		WriteMessage(w, messageFetchFailed, http.StatusInternalServerError)
		return nil, false
	}

	return c, true
}

func (h *AdminHandler) view(c *console.Console, query string) consoleView {
	out := consoleView{
		Query: query,
		Users: c.Search(query),
	}
	if u, ok := c.Selected(); ok {
		out.Selected = &u
	}
	return out
}

// Console answers the console view: loaded users filtered by ?q= and the selection
func (h *AdminHandler) Console(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}

	WriteResponse(w, h.view(c, r.URL.Query().Get("q")), http.StatusOK)
}

// Users searches the loaded list, ?reload=1 loads it again first
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, ok := h.console(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("reload") == "1" {
		if err := c.Load(ctx); err != nil {
			l := logger.Get(ctx, "Handler.Admin.Users")
			l.Error().Err(err).Msg("Users reload failed")
			WriteMessage(w, messageFetchFailed, http.StatusInternalServerError)
			return
		}
	}

	WriteResponse(w, c.Search(r.URL.Query().Get("q")), http.StatusOK)
}

func (h *AdminHandler) Select(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}

	if _, err := c.Select(chi.URLParam(r, "id")); err != nil {
		WriteMessage(w, messageUserNotFound, http.StatusNotFound)
		return
	}

	WriteResponse(w, h.view(c, ""), http.StatusOK)
}

// Adjust changes the balance of the selected user
func (h *AdminHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}

	h.adjust(w, r, c)
}

// AdjustUser selects the user of the path and changes its balance
func (h *AdminHandler) AdjustUser(w http.ResponseWriter, r *http.Request) {
	c, ok := h.console(w, r)
	if !ok {
		return
	}

	if _, err := c.Select(chi.URLParam(r, "id")); err != nil {
		WriteMessage(w, messageUserNotFound, http.StatusNotFound)
		return
	}

	h.adjust(w, r, c)
}

func (h *AdminHandler) adjust(w http.ResponseWriter, r *http.Request, c *console.Console) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Admin.Adjust")

	in := adjustInput{}
	if err := readBody(r, &in); err != nil {
		l.Debug().Err(err).Msg("Body read failed")
		WriteMessage(w, messageInvalidInput, http.StatusBadRequest)
		return
	}

	op := console.Operation(strings.ToLower(strings.TrimSpace(in.Operation)))
	u, err := c.Adjust(ctx, op, string(in.Amount))
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNoSelection), errors.Is(err, apperr.ErrInvalidAmount):
			WriteMessage(w, messageInvalidInput, http.StatusBadRequest)
		case errors.Is(err, apperr.ErrInvalidOperation):
			WriteMessage(w, messageInvalidOperation, http.StatusBadRequest)
		case errors.Is(err, apperr.ErrNegativeBalance):
			WriteMessage(w, messageNegativeBalance, http.StatusConflict)
		case errors.Is(err, apperr.ErrNotFound):
			WriteMessage(w, messageUserNotFound, http.StatusNotFound)
		default:
			WriteMessage(w, messageUpdateFailed, http.StatusInternalServerError)
		}
		return
	}

	out := struct {
		Message string           `json:"message"`
		User    model.UserRecord `json:"user"`
	}{
		Message: "Successfully " + string(op) + "d balance",
		User:    u,
	}

	WriteResponse(w, out, http.StatusOK)
}
