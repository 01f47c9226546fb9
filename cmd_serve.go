package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"webshrink/engine"
	"webshrink/logger"
	"webshrink/routes"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// newHTTPServer derives every request context from ctx, so open event
// streams end as soon as shutdown begins instead of holding Shutdown open.
func newHTTPServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	var lazy bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("Starting webshrink server initialization")
			eng, err := engine.Open(runCtx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := eng.Close(closeCtx); err != nil {
					logger.Errorf("Engine shutdown: %v", err)
				}
			}()

			if !lazy {
				// load in the background; submissions answer engine_not_ready until it finishes
				go func() {
					if err := eng.EnsureReady(runCtx); err != nil {
						logger.Errorf("Codec backend not available: %v", err)
					}
				}()
			}
			eng.StartJanitor(runCtx)

			srv := newHTTPServer(runCtx, cfg.Server.Addr, routes.NewRouter(routes.NewHandler(eng)))
			errCh := make(chan error, 1)
			go func() {
				logger.Infof("webshrink server listening on %s", cfg.Server.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-runCtx.Done():
				logger.Info("Shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Errorf("HTTP shutdown: %v", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&lazy, "lazy", false, "Load the codec backend on the first POST /engine/ready instead of at startup")
	return cmd
}
