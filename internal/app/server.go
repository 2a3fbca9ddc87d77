package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const shutdownTimeout = 10 * time.Second

// Run serves HTTP until ctx is done or the listener fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "http server listening", "address", l.Addr().String())

	var serveErr error
	select {
	case serveErr = <-a.Serve(l):
	case <-ctx.Done():
		slog.InfoContext(ctx, "shutdown signal received")
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	a.Stop(stopCtx)

	if errors.Is(serveErr, http.ErrServerClosed) {
		return nil
	}
	return serveErr
}

// Serve runs the HTTP server on l. The channel yields the serve error once.
func (a *App) Serve(l net.Listener) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		errc <- a.httpServer.Serve(l)
	}()
	return errc
}

// Stop drains HTTP requests, then background tasks, then closes resources.
func (a *App) Stop(ctx context.Context) {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "http server shutdown", "error", err)
	}

	if err := a.goroutine.Wait(); err != nil {
		slog.ErrorContext(ctx, "background tasks finished with errors", "error", err)
	}

	a.close(ctx)
	slog.InfoContext(ctx, "application stopped")
}
