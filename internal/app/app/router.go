package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"portal/internal/app/handler"
	mw "portal/internal/app/middleware"
)

func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(mw.Log(a.logger))
	r.Use(mw.Session(a.provider, a.resolver))

	cookies := handler.Cookies{Secure: a.config.Server.CookieSecure}

	ph := handler.NewPublicHandler(a.db)
	uh := handler.NewUserHandler(a.provider, a.users, a.resolver, cookies)
	ah := handler.NewAdminHandler(a.consoles)

	// pages
	r.Get("/", ph.Home)
	r.Get("/login", ph.LoginForm)
	r.Get("/register", ph.RegisterForm)
	r.Get("/healthz", ph.Health)
	r.With(mw.RequireAuth("/login")).Get("/dashboard", a.dashboard.Show)
	r.With(mw.RequireAdmin).Get("/admin", ah.Console)

	// api
	r.Route("/api/user", func(r chi.Router) {
		r.Post("/login", uh.Login)
		r.Post("/register", uh.Register)
		r.Post("/logout", uh.Logout)
		r.Get("/session", uh.Session)

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireAuth(""))
			r.Get("/session/watch", uh.Watch)
			r.Get("/balance", uh.Balance)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(mw.RequireAdmin)
		r.Get("/users", ah.Users)
		r.Post("/users/{id}/select", ah.Select)
		r.Post("/users/{id}/balance", ah.AdjustUser)
		r.Post("/balance", ah.Adjust)
	})

	return r
}
