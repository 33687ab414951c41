// Package browser starts Chrome for a check-in run and exposes its page
// through go-rod.
package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/shehryarbajwa/checkin-runner/internal/config"
)

// Instance is a running browser reachable over CDP
type Instance struct {
	ID          string
	ConnectURL  string
	ContainerID string
	stop        func(ctx context.Context) error
}

// Stop shuts the browser down if the launcher owns it
func (i *Instance) Stop(ctx context.Context) error {
	if i.stop == nil {
		return nil
	}
	return i.stop(ctx)
}

// Launcher provides a fresh browser per run
type Launcher interface {
	Launch(ctx context.Context, runID string) (*Instance, error)
	Close() error
}

// NewLauncher picks a launcher for the configured browser mode
func NewLauncher(cfg config.BrowserConfig) (Launcher, error) {
	switch cfg.Mode {
	case config.BrowserDocker:
		return NewDockerLauncher(cfg.Image)
	case config.BrowserRemote:
		return &RemoteLauncher{URL: cfg.URL}, nil
	case config.BrowserLocal, "":
		return &LocalLauncher{Headless: cfg.Headless, Bin: cfg.Bin}, nil
	}
	return nil, fmt.Errorf("unknown browser mode %q", cfg.Mode)
}

// LocalLauncher starts a Chrome process on this machine
type LocalLauncher struct {
	Headless bool
	Bin      string
}

func (l *LocalLauncher) Launch(ctx context.Context, runID string) (*Instance, error) {
	launch := launcher.New().Headless(l.Headless)
	if l.Bin != "" {
		launch = launch.Bin(l.Bin)
	}

	u, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	return &Instance{
		ID:         runID,
		ConnectURL: u,
		stop: func(context.Context) error {
			launch.Kill()
			launch.Cleanup()
			return nil
		},
	}, nil
}

func (l *LocalLauncher) Close() error { return nil }

// RemoteLauncher attaches to a Chrome that someone else manages
type RemoteLauncher struct {
	URL string
}

func (r *RemoteLauncher) Launch(ctx context.Context, runID string) (*Instance, error) {
	u, err := launcher.ResolveURL(r.URL)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", r.URL, err)
	}
	return &Instance{ID: runID, ConnectURL: u}, nil
}

func (r *RemoteLauncher) Close() error { return nil }
