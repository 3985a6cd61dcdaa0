package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"riskwatch/internal/stubserver"
)

// ServeStub runs the development evaluation API until interrupted.
func (a *App) ServeStub(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; the stub needs PostgreSQL")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if dir := a.Config.Database.MigrationsPath; dir != "" {
		if err := store.Migrate(ctx, dir); err != nil {
			return err
		}
		a.Logger.Info().Str("dir", dir).Msg("migrations applied")
	}

	srv := stubserver.New(store, a.Config.Stub.SeedComponents, a.Logger)
	httpServer := &http.Server{
		Addr:              a.Config.Stub.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.Config.Stub.ListenAddr).Msg("stub evaluation api listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		a.Logger.Info().Msg("stub server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
