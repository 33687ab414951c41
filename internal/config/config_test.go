package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"CHECKIN_USERNAME", "CHECKIN_PASSWORD", "CHECKIN_TARGET_URL",
	"LOG_FILE_PATH", "SCREENSHOT_PATH",
	"BROWSER_MODE", "BROWSER_URL", "BROWSER_BIN", "BROWSER_IMAGE", "BROWSER_HEADLESS",
	"RUN_TIMEOUT", "LISTEN_ADDR", "RATE_LIMIT_PER_HOUR", "RATE_LIMIT_BURST",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultTargetURL, cfg.TargetURL)
	assert.Equal(t, "./logs/checkin.log", cfg.LogFilePath)
	assert.Equal(t, "./screenshots", cfg.ScreenshotPath)
	assert.Equal(t, BrowserLocal, cfg.Browser.Mode)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, DefaultImage, cfg.Browser.Image)
	assert.Equal(t, 300, cfg.RunTimeout)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.ErrorIs(t, cfg.RequireCredentials(), ErrMissingCredentials)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHECKIN_USERNAME", "u1")
	t.Setenv("CHECKIN_PASSWORD", "p1")
	t.Setenv("BROWSER_MODE", "remote")
	t.Setenv("BROWSER_URL", "ws://127.0.0.1:9222")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("RUN_TIMEOUT", "120")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.NoError(t, cfg.RequireCredentials())
	assert.Equal(t, BrowserRemote, cfg.Browser.Mode)
	assert.Equal(t, "ws://127.0.0.1:9222", cfg.Browser.URL)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 120, cfg.RunTimeout)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"remote without url": {"BROWSER_MODE": "remote"},
		"unknown mode":       {"BROWSER_MODE": "firefox"},
		"bad timeout":        {"RUN_TIMEOUT": "soon"},
		"timeout too short":  {"RUN_TIMEOUT": "5"},
		"bad headless":       {"BROWSER_HEADLESS": "maybe"},
		"zero rate":          {"RATE_LIMIT_PER_HOUR": "0"},
	}

	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CHECKIN_USERNAME=fromfile\nCHECKIN_PASSWORD=secret\n"), 0600))

	// godotenv does not override variables that are already set, even empty ones.
	os.Unsetenv("CHECKIN_USERNAME")
	os.Unsetenv("CHECKIN_PASSWORD")
	t.Cleanup(func() {
		os.Unsetenv("CHECKIN_USERNAME")
		os.Unsetenv("CHECKIN_PASSWORD")
	})

	require.NoError(t, LoadEnvFile(path))
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "fromfile", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
}

func TestLoadEnvFile_Missing(t *testing.T) {
	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "nope.env")))
}
