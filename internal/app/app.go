// Package app provides application lifecycle management for the index data server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emory-libraries/fedora-indexdata/internal/config"
)

// IndexDataApp encapsulates all components needed to run the index data API server
type IndexDataApp struct {
	settings        config.Manager
	components      *AppComponents
	httpServer      *http.Server
	gracefulTimeout time.Duration
}

// Run serves HTTP and watches the configuration file until ctx is cancelled
// or either of them fails. The server is shut down gracefully before Run returns.
func (app *IndexDataApp) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "address", app.httpServer.Addr)
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		// Stop closes the watcher, so errors after cancellation are expected
		err := app.settings.WatchConfig(gctx)
		if err != nil && gctx.Err() == nil {
			return fmt.Errorf("config watcher failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return app.Stop(app.gracefulTimeout)
	})

	return g.Wait()
}

// Stop gracefully stops the HTTP server and releases the remaining resources
func (app *IndexDataApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}
	if err := app.settings.Close(); err != nil {
		errs = append(errs, err)
	}
	if app.components.Telemetry != nil {
		if err := app.components.Telemetry.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown failed: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the active configuration
func (app *IndexDataApp) GetConfig() *config.Config {
	return app.settings.GetConfig()
}

// GetComponents returns the wired application components
func (app *IndexDataApp) GetComponents() *AppComponents {
	return app.components
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *IndexDataApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
