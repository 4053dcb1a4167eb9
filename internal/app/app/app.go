package app

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"

	"portal/internal/app/config"
	"portal/internal/app/console"
	"portal/internal/app/handler"
	"portal/internal/app/identity"
	"portal/internal/app/logger"
	"portal/internal/app/resolver"
	"portal/internal/app/session"
	"portal/internal/app/storage"
	"portal/internal/app/storage/document"
	"portal/internal/app/storage/postgres"
	"portal/pkg/idp"
)

type App struct {
	config    config.Config
	logger    logger.Logger
	db        *sql.DB
	redis     redis.UniversalClient
	users     storage.UserRepository
	provider  *identity.Provider
	resolver  *resolver.Resolver
	consoles  *console.Registry
	dashboard *handler.DashboardHandler
	unwatch   func()
	stopCh    chan struct{}
}

func New(cfg config.Config, l logger.Logger, e embed.FS) (*App, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := applyMigrations(e, db); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}

	docs, err := postgres.NewDocumentStore(db)
	if err != nil {
		return nil, fmt.Errorf("document store init: %w", err)
	}

	users, err := document.NewUserRepository(docs)
	if err != nil {
		return nil, fmt.Errorf("user repository init: %w", err)
	}

	var rdb redis.UniversalClient
	if cfg.Session.Backend == config.SessionBackendRedis {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}

	sessions := newSessionManager(cfg, rdb)

	auth, err := newAuthenticator(cfg, l, db)
	if err != nil {
		return nil, fmt.Errorf("authenticator init: %w", err)
	}

	a, err := build(cfg, l, db, users, sessions, auth)
	if err != nil {
		return nil, err
	}
	a.redis = rdb

	return a, nil
}

// build wires the application services on top of the storage and identity backends
func build(
	cfg config.Config,
	l logger.Logger,
	db *sql.DB,
	users storage.UserRepository,
	sessions session.Manager,
	auth identity.Authenticator,
) (*App, error) {
	dashboard, err := handler.NewDashboardHandler(users, cfg.Portal)
	if err != nil {
		return nil, fmt.Errorf("dashboard init: %w", err)
	}

	a := &App{
		config:    cfg,
		logger:    l,
		db:        db,
		users:     users,
		provider:  identity.NewProvider(auth, sessions),
		resolver:  resolver.New(users),
		consoles:  console.NewRegistry(users),
		dashboard: dashboard,
		stopCh:    make(chan struct{}),
	}

	a.unwatch = a.consoles.Watch(l.WithContext(context.Background()), a.provider)

	go func() {
		<-a.stopCh
		a.logger.Info().Msg("Shutting down application")
		a.unwatch()
		a.provider.Close()
		if a.redis != nil {
			_ = a.redis.Close()
		}
		_ = a.db.Close()
	}()

	return a, nil
}

func newSessionManager(cfg config.Config, rdb redis.UniversalClient) session.Manager {
	opts := []session.Option{
		session.WithTokenLifetime(cfg.Session.Lifetime),
	}

	if rdb != nil {
		return session.NewRedis(rdb, cfg.SecretKey, opts...)
	}
	return session.NewMemory(cfg.SecretKey, opts...)
}

func newAuthenticator(cfg config.Config, l logger.Logger, db *sql.DB) (identity.Authenticator, error) {
	if cfg.Identity.Backend == config.IdentityBackendRemote {
		client, err := idp.NewService(
			cfg.Identity.RemoteURL,
			cfg.Identity.APIKey,
			idp.WithLogger(l.Logger),
			idp.WithHTTPClient(&http.Client{Timeout: cfg.Identity.Timeout}),
			idp.WithBreaker(gobreaker.Settings{
				Name:    "identity",
				Timeout: cfg.Identity.Timeout * 3,
				OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
					l.Warn().
						Str("breaker", name).
						Stringer("from", from).
						Stringer("to", to).
						Msg("Identity provider breaker state changed")
				},
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("identity client: %w", err)
		}
		return identity.NewRemote(client), nil
	}

	credentials, err := postgres.NewCredentialRepository(db)
	if err != nil {
		return nil, fmt.Errorf("credential repository init: %w", err)
	}
	return identity.NewLocal(credentials, cfg.Identity.BcryptCost), nil
}

func (a *App) Stop() {
	close(a.stopCh)
}
