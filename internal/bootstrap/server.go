package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpadapter "github.com/kirillkom/cardsnap/internal/adapters/http"
)

// Serve runs the HTTP API until ctx is cancelled, then shuts down within the
// configured grace period.
func (a *App) Serve(ctx context.Context) error {
	router := httpadapter.NewRouter(a.Config, httpadapter.Dependencies{
		Lifecycle:  a.Lifecycle,
		Cards:      a.Cards,
		Credential: a.Credential,
		Session:    a.Session,
		Notices:    a.Notices,
		Metrics:    a.Metrics,
		Logger:     a.Logger,
	}).Handler()

	// WriteTimeout stays unset: /v1/events holds its response open.
	server := &http.Server{
		Addr:              ":" + a.Config.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	server.RegisterOnShutdown(a.Notices.Close)

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	grace := a.Config.ShutdownGracePeriod
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}
