package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/checkin-runner/internal/api"
	"github.com/shehryarbajwa/checkin-runner/internal/proxy"
	"github.com/shehryarbajwa/checkin-runner/internal/ratelimit"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API for triggering and inspecting runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mgr, launcher, cleanup, err := newManager()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := ensureImage(ctx, launcher); err != nil {
			return err
		}

		proxyServer := proxy.NewServer(mgr, logger)
		rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerHour, cfg.RateLimitBurst).WithFallback(cfg.Username)
		router := api.NewHandler(mgr, logger).SetupRoutes(proxyServer, rateLimiter)

		srv := &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serveErr := make(chan error, 1)
		go func() {
			logger.Info("server starting",
				zap.String("addr", cfg.ListenAddr),
				zap.String("browser_mode", string(cfg.Browser.Mode)),
				zap.Int("rate_limit_per_hour", cfg.RateLimitPerHour),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			if err != nil {
				return err
			}
		case <-ctx.Done():
		}

		logger.Info("shutting down server gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}

		logger.Info("waiting for in-flight runs")
		mgr.Wait()

		logger.Info("server stopped cleanly")
		return nil
	},
}
