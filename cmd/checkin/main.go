package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shehryarbajwa/checkin-runner/internal/browser"
	"github.com/shehryarbajwa/checkin-runner/internal/checkin"
	"github.com/shehryarbajwa/checkin-runner/internal/config"
	"github.com/shehryarbajwa/checkin-runner/internal/run"
	"github.com/shehryarbajwa/checkin-runner/internal/runlog"
)

var (
	logger  *zap.Logger
	cfg     config.Config
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Automated daily check-in through a headless browser",
	Long: `checkin signs in to the check-in site with a headless Chrome, confirms
the stored location, submits the form and reports whether it was accepted.

Use "checkin run" for a single run or "checkin serve" to trigger runs over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := config.LoadEnvFile(envFile); err != nil {
			if envFile != "" || !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load env file: %w", err)
			}
			logger.Debug("no .env file found, using system environment variables")
		}

		cfg, err = config.FromEnv()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load (default .env if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd, serveCmd)
}

// newManager wires the browser launcher, run log and flow into a run manager.
// The returned cleanup releases the launcher.
func newManager() (*run.Manager, browser.Launcher, func(), error) {
	runLog, err := runlog.New(runlog.Options{
		FilePath:      cfg.LogFilePath,
		ScreenshotDir: cfg.ScreenshotPath,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	launcher, err := browser.NewLauncher(cfg.Browser)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		if err := launcher.Close(); err != nil {
			logger.Warn("failed to close launcher", zap.Error(err))
		}
	}

	opener := run.FromDriver(browser.NewDriver(launcher))
	return run.NewManager(opener, checkin.NewFlow(runLog), cfg, logger), launcher, cleanup, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
