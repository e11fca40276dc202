package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cvcweb "github.com/craigvc/cvcwebsolutions-sub003"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the portfolio content API",
		Long: `Serve the portfolio content API.

Settings come from the environment: ADDR, DATABASE_PATH, SITE_URL, APP_ENV,
ADMIN_PASSWORD, SESSION_SECRET, COOKIE_SECURE, PORTFOLIO_CACHE_TTL.
APP_ENV=production hides the admin paths.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cvcweb.LoadConfigFromEnv()
			if err != nil {
				return err
			}
			app, err := cvcweb.New(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() { errc <- app.Start() }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			app.Logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				app.Logger.Error("shutdown", zap.Error(err))
				return err
			}
			return <-errc
		},
	}
}
