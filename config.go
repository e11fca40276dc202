package cvcweb

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
)

// EnvProduction is the APP_ENV value that enables the admin access gate.
const EnvProduction = "production"

// SiteConfig holds all configuration for the content backend.
type SiteConfig struct {
	Name        string `env:"SITE_NAME" envDefault:"CVC Web Solutions"`
	URL         string `env:"SITE_URL" envDefault:"http://localhost:3456"` // canonical URL for sitemap and feed
	Description string `env:"SITE_DESCRIPTION"`

	Addr         string `env:"ADDR" envDefault:":3456"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"data/content.db"`
	Environment  string `env:"APP_ENV" envDefault:"development"`

	AdminPassword string `env:"ADMIN_PASSWORD"` // empty leaves mutation routes open
	SessionSecret string `env:"SESSION_SECRET"`
	CookieSecure  bool   `env:"COOKIE_SECURE"`

	CacheTTL time.Duration `env:"PORTFOLIO_CACHE_TTL" envDefault:"5m"`
}

// LoadConfigFromEnv parses SiteConfig from environment variables.
func LoadConfigFromEnv() (SiteConfig, error) {
	var cfg SiteConfig
	if err := env.Parse(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

// Production reports whether the running environment is flagged as production.
func (c SiteConfig) Production() bool {
	return c.Environment == EnvProduction
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "CVC Web Solutions"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3456"
	}
	if c.Addr == "" {
		c.Addr = ":3456"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/content.db"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
}

func (c SiteConfig) validate() error {
	if c.AdminPassword != "" && c.SessionSecret == "" {
		return fmt.Errorf("cvcweb: SESSION_SECRET is required when ADMIN_PASSWORD is set")
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithStore uses an already opened store instead of opening DatabasePath.
func WithStore(s *Store) Option {
	return func(a *App) {
		a.handle = NewStoreHandle(func() (*Store, error) { return s, nil })
	}
}

// WithStoreOpener replaces how the store is opened on first use.
func WithStoreOpener(open func() (*Store, error)) Option {
	return func(a *App) {
		a.handle = NewStoreHandle(open)
	}
}

// WithLogger sets the application logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}
