package middleware

import (
	"context"
	"net/http"
	"strings"

	"portal/internal/app/handler"
	"portal/internal/app/logger"
	"portal/internal/app/model"
	"portal/internal/app/resolver"
)

type SessionReader interface {
	Current(ctx context.Context, token string) (*model.Session, error)
}

// Session resolves the caller once per request and stores it in the request
// context. Requests without a live session pass through anonymous.
func Session(sessions SessionReader, res *resolver.Resolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.Get(ctx, "Middleware.Session")

			token := requestToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			s, err := sessions.Current(ctx, token)
			if err != nil {
				log.Debug().Err(err).Msg("Session rejected")
				next.ServeHTTP(w, r)
				return
			}

			a := &handler.Auth{
				Token:   token,
				Session: s,
				State:   res.Resolve(ctx, s.Principal()),
			}

			log.Debug().
				Str("session_id", s.ID).
				Str("principal_id", s.PrincipalID).
				Bool("admin", a.State.IsAdmin).
				Msg("Session resolved")
			next.ServeHTTP(w, r.WithContext(handler.WithAuth(ctx, a)))
		})
	}
}

// requestToken reads a bearer token, falling back to the session cookie
func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		splitToken := strings.Split(h, "Bearer ")
		if len(splitToken) == 2 {
			return strings.TrimSpace(splitToken[1])
		}
	}

	if c, err := r.Cookie(handler.CookieSession); err == nil {
		return c.Value
	}

	return ""
}

// RequireAuth answers 401 to anonymous callers, or redirects them when redirect is set
func RequireAuth(redirect string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := handler.ReadContextAuth(r.Context()); err != nil {
				if redirect != "" {
					http.Redirect(w, r, redirect, http.StatusSeeOther)
					return
				}
				handler.WriteError(w, err, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin answers 404 with an empty body unless the caller resolved as admin
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if !handler.ReadContextState(ctx).IsAdmin {
			l := logger.Get(ctx, "Middleware.RequireAdmin")
			l.Debug().Msg("Not an admin")
			w.WriteHeader(http.StatusNotFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}
