// Package server runs the HTTP listener with graceful shutdown and
// ordered cleanup hooks.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/escolaware/portaria-bridge/internal/config"
)

// Serve runs the HTTP server until the context is cancelled or a
// termination signal arrives, then drains in-flight requests within the
// configured timeout and executes the shutdown hooks.
func Serve(ctx context.Context, cfg config.ServerConfig, handler http.Handler, hooks *ShutdownHooks) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		MaxHeaderBytes:    20 << 10, // 20 KB
		ReadHeaderTimeout: 20 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("server starting")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		// listener failed before shutdown was requested
		hooks.Execute(context.Background())
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second,
	)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		log.Warn().Err(err).Msg("server drain failed")
	}

	hooks.Execute(shutdownCtx)

	if serveResult := <-serveErr; !errors.Is(serveResult, http.ErrServerClosed) {
		err = errors.Join(err, serveResult)
	}

	return err
}
