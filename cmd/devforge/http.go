package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/devforge/internal/http"
)

const defaultShutdownTimeout = 10 * time.Second

func newHTTPCmd(opts *options) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "http",
		Short: "Serve the workflow commands over an HTTP JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				cfg := &httpserver.Config{
					Host:    a.cfg.HTTP.Host,
					Port:    a.cfg.HTTP.Port,
					Version: version,
				}
				if cmd.Flags().Changed("host") {
					cfg.Host = host
				}
				if cmd.Flags().Changed("port") {
					cfg.Port = port
				}

				server, err := httpserver.NewServer(a.dispatcher, a.store, a.logger, cfg)
				if err != nil {
					return fmt.Errorf("failed to create HTTP server: %w", err)
				}

				timeout := a.cfg.HTTP.ShutdownTimeout.Duration()
				if timeout <= 0 {
					timeout = defaultShutdownTimeout
				}
				return serveUntilDone(ctx, server, timeout, a)
			})
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "listen address (overrides http.host)")
	cmd.Flags().IntVar(&port, "port", 9090, "listen port (overrides http.port)")
	return cmd
}

// serveUntilDone runs the server until it fails or ctx is cancelled, then
// shuts it down within timeout.
func serveUntilDone(ctx context.Context, server *httpserver.Server, timeout time.Duration, a *app) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error(shutdownCtx, "http server shutdown failed", zap.Error(err))
		return err
	}
	a.logger.Info(shutdownCtx, "http server stopped")
	return nil
}
