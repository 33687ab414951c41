// Package config reads runner settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// BrowserMode selects where Chrome comes from
type BrowserMode string

const (
	BrowserLocal  BrowserMode = "local"
	BrowserDocker BrowserMode = "docker"
	BrowserRemote BrowserMode = "remote"
)

const (
	DefaultTargetURL = "https://onewechat.bnu.edu.cn/uc/wap/login"
	DefaultImage     = "browserless/chrome:latest"

	MinRunTimeout = 60
	MaxRunTimeout = 3600
)

// ErrMissingCredentials is returned when no account is configured
var ErrMissingCredentials = errors.New("CHECKIN_USERNAME and CHECKIN_PASSWORD are required")

type BrowserConfig struct {
	Mode     BrowserMode
	URL      string
	Headless bool
	Bin      string
	Image    string
}

type Config struct {
	Username  string
	Password  string
	TargetURL string

	LogFilePath    string
	ScreenshotPath string

	Browser BrowserConfig

	// RunTimeout is in seconds.
	RunTimeout int

	ListenAddr       string
	RateLimitPerHour int
	RateLimitBurst   int
}

// LoadEnvFile loads path into the environment without overriding values
// already set. An empty path means ".env" in the working directory.
func LoadEnvFile(path string) error {
	if path == "" {
		return godotenv.Load()
	}
	return godotenv.Load(path)
}

// FromEnv builds a Config from environment variables and validates it
func FromEnv() (Config, error) {
	cfg := Config{
		Username:       os.Getenv("CHECKIN_USERNAME"),
		Password:       os.Getenv("CHECKIN_PASSWORD"),
		TargetURL:      getenv("CHECKIN_TARGET_URL", DefaultTargetURL),
		LogFilePath:    getenv("LOG_FILE_PATH", "./logs/checkin.log"),
		ScreenshotPath: getenv("SCREENSHOT_PATH", "./screenshots"),
		Browser: BrowserConfig{
			Mode:  BrowserMode(getenv("BROWSER_MODE", string(BrowserLocal))),
			URL:   os.Getenv("BROWSER_URL"),
			Bin:   os.Getenv("BROWSER_BIN"),
			Image: getenv("BROWSER_IMAGE", DefaultImage),
		},
		ListenAddr: getenv("LISTEN_ADDR", ":8080"),
	}

	var err error
	if cfg.Browser.Headless, err = getbool("BROWSER_HEADLESS", true); err != nil {
		return Config{}, err
	}
	if cfg.RunTimeout, err = getint("RUN_TIMEOUT", 300); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerHour, err = getint("RATE_LIMIT_PER_HOUR", 24); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitBurst, err = getint("RATE_LIMIT_BURST", 3); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings every command needs
func (c Config) Validate() error {
	switch c.Browser.Mode {
	case BrowserLocal, BrowserDocker:
	case BrowserRemote:
		if c.Browser.URL == "" {
			return fmt.Errorf("BROWSER_URL is required when BROWSER_MODE=remote")
		}
	default:
		return fmt.Errorf("unknown BROWSER_MODE %q", c.Browser.Mode)
	}

	if err := ValidateTimeout(c.RunTimeout); err != nil {
		return err
	}
	if c.RateLimitPerHour <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	return nil
}

// ValidateTimeout checks a run timeout in seconds
func ValidateTimeout(seconds int) error {
	if seconds < MinRunTimeout || seconds > MaxRunTimeout {
		return fmt.Errorf("timeout must be between %d and %d seconds", MinRunTimeout, MaxRunTimeout)
	}
	return nil
}

// RequireCredentials fails when the default account is incomplete
func (c Config) RequireCredentials() error {
	if c.Username == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getbool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
