package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/checkin-runner/internal/browser"
	"github.com/shehryarbajwa/checkin-runner/pkg/models"
)

var runTimeout int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Check in once and exit",
	Long:  `Runs the check-in flow once with the configured account. Exits non-zero unless the site accepted the submission.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireCredentials(); err != nil {
			return err
		}

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

		result, err := mgr.Execute(ctx, models.CreateRunRequest{Timeout: runTimeout})
		if err != nil {
			return err
		}

		logger.Info("check-in finished",
			zap.String("run", result.ID),
			zap.String("status", string(result.Status)),
			zap.String("message", result.Message),
			zap.Strings("screenshots", result.Screenshots),
		)
		if result.Status != models.StatusSucceeded {
			return fmt.Errorf("check-in %s: %s", result.Status, result.Message)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&runTimeout, "timeout", 0, "run timeout in seconds (default RUN_TIMEOUT)")
}

// ensureImage pulls the Chrome image up front when runs use docker
func ensureImage(ctx context.Context, launcher browser.Launcher) error {
	docker, ok := launcher.(*browser.DockerLauncher)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	logger.Info("ensuring chrome image is available", zap.String("image", cfg.Browser.Image))
	if err := docker.EnsureImage(ctx); err != nil {
		return fmt.Errorf("failed to ensure image: %w", err)
	}
	return nil
}
