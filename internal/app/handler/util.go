package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/go-playground/validator/v10"

	"portal/internal/app/apperr"
	"portal/internal/app/model"
	"portal/internal/app/resolver"
)

// CookieSession carries the session token for page routes
const CookieSession = "session"

// readBody into json struct
func readBody(r *http.Request, v interface{}) error {
	body, err := ioutil.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return fmt.Errorf("body read: %w", err)
	}

	err = json.Unmarshal(body, v)
	if err != nil {
		return fmt.Errorf("json decode: %w", err)
	}

	return nil
}

type jsonError struct {
	Message string `json:"error"`
}

// WriteError formatted in json
func WriteError(w http.ResponseWriter, err error, statusCode int) {
	WriteResponse(w, &jsonError{Message: err.Error()}, statusCode)
}

// WriteMessage writes a json error with a fixed message
func WriteMessage(w http.ResponseWriter, message string, statusCode int) {
	WriteResponse(w, &jsonError{Message: message}, statusCode)
}

// WriteResponse formatted in json
func WriteResponse(w http.ResponseWriter, v interface{}, statusCode int) {
	resBody, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(resBody)
}

type ValidationErrorResponse struct {
	Errors ValidationErrors `json:"errors"`
}

type ValidationErrors []ValidationError

type ValidationError struct {
	Msg   string `json:"msg"`
	Param string `json:"param"`
	Value string `json:"value"`
}

var validate = validator.New()

// validateData and send errors, returns true if no validation errors
func validateData(w http.ResponseWriter, v interface{}) bool {
	err := validate.Struct(v)
	if err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			WriteError(w, err, http.StatusBadRequest)
			return false
		}
		errors := make(ValidationErrors, 0, len(verrs))
		for _, err := range verrs {
			errors = append(errors, ValidationError{
				Msg:   err.Error(),
				Param: err.Field(),
				Value: fmt.Sprintf("%v", err.Value()),
			})
		}
		writeValidationErrors(w, errors)
		return false
	}

	return true
}

// writeValidationErrors formatted in json
func writeValidationErrors(w http.ResponseWriter, errors ValidationErrors) {
	WriteResponse(w, ValidationErrorResponse{errors}, http.StatusBadRequest)
}

// Auth is the authenticated caller of a request
type Auth struct {
	Token   string
	Session *model.Session
	State   resolver.State
}

type ContextKeyAuth struct{}

// WithAuth stores the caller in the context
func WithAuth(ctx context.Context, a *Auth) context.Context {
	return context.WithValue(ctx, ContextKeyAuth{}, a)
}

// ReadContextAuth returns the authenticated caller or apperr.ErrUnauthorized
func ReadContextAuth(ctx context.Context) (*Auth, error) {
	v := ctx.Value(ContextKeyAuth{})
	if a, ok := v.(*Auth); ok && a.Session != nil {
		return a, nil
	}

	return nil, apperr.ErrUnauthorized
}

// ReadContextState returns the resolved state of the caller, the signed-out state when anonymous
func ReadContextState(ctx context.Context) resolver.State {
	a, err := ReadContextAuth(ctx)
	if err != nil {
		return resolver.State{}
	}
	return a.State
}

// Cookies sets and clears the session cookie
type Cookies struct {
	Secure bool
}

// Set the session cookie. It lives as long as the browser session, the token carries its own expiry.
func (c Cookies) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieSession,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieSession,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
