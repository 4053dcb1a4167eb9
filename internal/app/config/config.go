package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"

	IdentityBackendLocal  = "local"
	IdentityBackendRemote = "remote"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	Identity IdentityConfig
	Portal   PortalConfig

	SecretKey  string `env:"APP_SECRET_KEY,default=ChangeMe"`
	LogVerbose bool   `env:"APP_VERBOSE,default=0"`
	LogPretty  bool   `env:"APP_PRETTY,default=0"`
}

type ServerConfig struct {
	Listen       string        `env:"RUN_ADDRESS,default=localhost:8088"`
	TimeoutRead  time.Duration `env:"SERVER_TIMEOUT_READ,default=5s"`
	TimeoutWrite time.Duration `env:"SERVER_TIMEOUT_WRITE,default=10s"`
	TimeoutIdle  time.Duration `env:"SERVER_TIMEOUT_IDLE,default=1m"`
	CookieSecure bool          `env:"COOKIE_SECURE,default=0"`
}

type DatabaseConfig struct {
	DSN string `env:"DATABASE_URI,required"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD,default="`
	DB       int    `env:"REDIS_DB,default=0"`
}

type SessionConfig struct {
	Backend  string        `env:"SESSION_BACKEND,default=memory"`
	Lifetime time.Duration `env:"SESSION_LIFETIME,default=1h"`
}

type IdentityConfig struct {
	Backend    string        `env:"IDENTITY_BACKEND,default=local"`
	RemoteURL  string        `env:"IDENTITY_URL,default="`
	APIKey     string        `env:"IDENTITY_API_KEY,default="`
	Timeout    time.Duration `env:"IDENTITY_TIMEOUT,default=10s"`
	BcryptCost int           `env:"BCRYPT_COST,default=10"`
}

type PortalConfig struct {
	SupportEmail string `env:"SUPPORT_EMAIL,default=support@ej-investments.info"`
	// label=address pairs separated by ';'
	DepositWallets []string `env:"DEPOSIT_WALLETS,default=Litecoin (LTC)=ltc1qteqggu76z33dss0dpdgxfl2mr3vf7963wsgvxg;TRON (TRX) & Tether (USDT trc20)=TU7zipv2A1jdjCTFNDwzkaVL9ocWbogjem"`
}

// Wallet is a deposit address shown on the dashboard
type Wallet struct {
	Label   string `json:"label"`
	Address string `json:"address"`
}

// New config constructor
func New() Config {
	return Config{}
}

// Load config from environment and from .env file (if exists) and from flags
func (cfg *Config) Load(args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf(".env load: %w", err)
	}

	if err := envdecode.StrictDecode(cfg); err != nil {
		return fmt.Errorf("env decode: %w", err)
	}

	flags := pflag.NewFlagSet("portal", pflag.ContinueOnError)
	flags.StringVarP(&cfg.Server.Listen, "listen-addr", "a", cfg.Server.Listen, "Server address to listen on")
	flags.StringVarP(&cfg.Database.DSN, "database-uri", "d", cfg.Database.DSN, "Database URI")
	flags.StringVarP(&cfg.Session.Backend, "session-backend", "s", cfg.Session.Backend, "Session backend: memory or redis")
	flags.StringVarP(&cfg.Identity.Backend, "identity-backend", "i", cfg.Identity.Backend, "Identity backend: local or remote")
	flags.StringVarP(&cfg.Identity.RemoteURL, "identity-url", "r", cfg.Identity.RemoteURL, "Hosted identity provider base URL")
	flags.BoolVarP(&cfg.LogVerbose, "verbose", "v", cfg.LogVerbose, "Verbose output")
	flags.BoolVarP(&cfg.LogPretty, "pretty", "p", cfg.LogPretty, "Pretty output")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("flags parse: %w", err)
	}

	return cfg.Validate()
}

// Validate checks cross-field constraints not expressible in env tags
func (cfg *Config) Validate() error {
	switch cfg.Session.Backend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		return fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}

	switch cfg.Identity.Backend {
	case IdentityBackendLocal:
	case IdentityBackendRemote:
		if cfg.Identity.RemoteURL == "" {
			return errors.New("identity url is required for remote identity backend")
		}
	default:
		return fmt.Errorf("unknown identity backend %q", cfg.Identity.Backend)
	}

	if _, err := cfg.Portal.Wallets(); err != nil {
		return err
	}

	return nil
}

// Wallets parses configured deposit wallets
func (c PortalConfig) Wallets() ([]Wallet, error) {
	res := make([]Wallet, 0, len(c.DepositWallets))
	for _, raw := range c.DepositWallets {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		label, address, ok := cut(raw, "=")
		if !ok || strings.TrimSpace(address) == "" {
			return nil, fmt.Errorf("malformed deposit wallet %q", raw)
		}
		res = append(res, Wallet{
			Label:   strings.TrimSpace(label),
			Address: strings.TrimSpace(address),
		})
	}
	return res, nil
}

func cut(s, sep string) (string, string, bool) {
	if i := strings.Index(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}
