package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/efficiencynow/efficiencynow/internal/domain/auth"
	"github.com/efficiencynow/efficiencynow/internal/infra/config"
)

// sweeper is implemented by session stores that expire entries in process.
type sweeper interface {
	Sweep(ctx context.Context) int
}

// App encapsulates the HTTP server lifecycle.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	server   *http.Server
	sessions auth.SessionStore
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, sessions auth.SessionStore) *App {
	return &App{cfg: cfg, logger: logger.With("component", "bootstrap"), server: server, sessions: sessions}
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if s, ok := a.sessions.(sweeper); ok && a.cfg.Auth.SessionTTL > 0 {
		go a.sweep(sweepCtx, s, a.cfg.Auth.SweepInterval)
	}

	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Info("shutdown signal received")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) sweep(ctx context.Context, s sweeper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Sweep(ctx); removed > 0 {
				a.logger.Debug("expired sessions swept", "removed", removed)
			}
		}
	}
}
