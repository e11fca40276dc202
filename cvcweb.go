// Package cvcweb is the content backend for the CVC Web Solutions site.
// It serves the portfolio route handlers (featured, publish, bulk sync),
// the blog post routes, the admin access gate, and the sitemap and feed
// over a SQLite store.
//
// Operator maintenance tasks live in the maint package; the CMS REST
// client they use lives in the cms package.
package cvcweb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// App wires together the store handle, cache, handlers, and middleware.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Logger *zap.Logger
	Cache  *ContentCache

	handle       *StoreHandle
	loginLimiter *LoginLimiter
}

// New creates an App with routes and middleware registered. The store is
// opened lazily by the first request that needs it.
func New(cfg SiteConfig, opts ...Option) (*App, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
	}
	a.Echo.HideBanner = true
	for _, opt := range opts {
		opt(a)
	}

	if a.Logger == nil {
		logger, err := newLogger(cfg.Production())
		if err != nil {
			return nil, fmt.Errorf("cvcweb: init logger: %w", err)
		}
		a.Logger = logger
	}
	if a.handle == nil {
		path := cfg.DatabasePath
		a.handle = NewStoreHandle(func() (*Store, error) {
			s, err := NewStore(path)
			if err != nil {
				return nil, fmt.Errorf("open store %s: %w", path, err)
			}
			return s, nil
		})
	}
	a.Cache = NewContentCache(a.handle, cfg.CacheTTL)
	a.loginLimiter = NewLoginLimiter(5, 15*time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	return a, nil
}

func newLogger(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// Start listens on Config.Addr until the server is shut down.
func (a *App) Start() error {
	a.Logger.Info("starting server",
		zap.String("addr", a.Config.Addr),
		zap.String("env", a.Config.Environment),
		zap.Bool("admin_auth", a.Config.AdminPassword != ""))
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)

	api := e.Group("/api")
	api.POST("/auth/admin", a.handleAdminLogin)
	api.DELETE("/auth/admin", a.handleAdminLogout)

	p := api.Group("/portfolio")
	p.GET("", a.handleListProjects)
	p.POST("/sync", a.handleSync, a.requireAdmin)
	p.GET("/:id", a.handleGetProject)
	p.DELETE("/:id", a.handleDeleteProject, a.requireAdmin)
	p.POST("/:id/featured", a.handleFeatured, a.requireAdmin)
	p.POST("/:id/publish", a.handlePublish, a.requireAdmin)

	b := api.Group("/blog")
	b.GET("", a.handleListPosts)
	b.POST("", a.handleCreatePost, a.requireAdmin)
	b.GET("/:slug", a.handleGetPost)
	b.PUT("/:slug", a.handleUpdatePost, a.requireAdmin)
	b.DELETE("/:slug", a.handleDeletePost, a.requireAdmin)
}

// store returns the lazily opened store.
func (a *App) store(c echo.Context) (*Store, error) {
	return a.handle.Get(c.Request().Context())
}

// Close releases the store and background goroutines.
func (a *App) Close() error {
	a.loginLimiter.Stop()
	err := a.handle.Close()
	_ = a.Logger.Sync()
	return err
}
