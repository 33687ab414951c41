package runlog

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 7, 8, 5, 9, 0, time.Local)

func newTestLogger(t *testing.T) (*Logger, *bytes.Buffer, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer
	l, err := New(Options{
		FilePath:      filepath.Join(dir, "logs", "checkin.log"),
		ScreenshotDir: filepath.Join(dir, "shots"),
		Stdout:        &stdout,
		Stderr:        &stderr,
		Now:           func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return l, &stdout, &stderr, dir
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestFormatLine(t *testing.T) {
	line := FormatLine(fixedNow, LevelInfo, "logging in as", "u1", 3)
	assert.Equal(t, "[2026/3/7 08:05:09] logging in as u1 3 (info)", line)
}

func TestLogger_Levels(t *testing.T) {
	l, stdout, stderr, dir := newTestLogger(t)

	l.Log("a")
	l.Error("b")
	l.Warn("c")
	l.Info("d")
	l.Success("e", "f")

	lines := readLines(t, filepath.Join(dir, "logs", "checkin.log"))
	assert.Equal(t, []string{
		"[2026/3/7 08:05:09] a (log)",
		"[2026/3/7 08:05:09] b (error)",
		"[2026/3/7 08:05:09] c (warn)",
		"[2026/3/7 08:05:09] d (info)",
		"[2026/3/7 08:05:09] e f (success)",
	}, lines)

	assert.Contains(t, stdout.String(), "a\n")
	assert.Contains(t, stdout.String(), "e f\n")
	assert.Contains(t, stderr.String(), "b\n")
	assert.Contains(t, stderr.String(), "c\n")
	assert.NotContains(t, stdout.String(), "(info)")
}

func TestLogger_Appends(t *testing.T) {
	l, _, _, dir := newTestLogger(t)
	l.Log("first")

	again, err := New(Options{
		FilePath: filepath.Join(dir, "logs", "checkin.log"),
		Stdout:   &bytes.Buffer{},
		Now:      func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	again.Log("second")

	assert.Len(t, readLines(t, filepath.Join(dir, "logs", "checkin.log")), 2)
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestScreenshotName(t *testing.T) {
	at := time.UnixMilli(1700000000123)

	assert.Equal(t, "success-1700000000123.png", ScreenshotName("success", at))
	assert.Equal(t, "a-b-c-d-e-f-g-h-i-j-1700000000123.png", ScreenshotName(`a<b>c:d"e/f\g|h?i*j`, at))

	for _, kind := range []string{"login/page", `C:\tmp`, "what?", "<*>", `"|"`} {
		name := ScreenshotName(kind, at)
		assert.False(t, strings.ContainsAny(name, `<>:"/\|?*`), name)
	}
}

type fakeCapturer struct {
	data     []byte
	err      error
	fullPage bool
}

func (f *fakeCapturer) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	f.fullPage = fullPage
	return f.data, f.err
}

func TestLogger_Screenshot(t *testing.T) {
	l, _, _, dir := newTestLogger(t)
	c := &fakeCapturer{data: []byte("png")}

	path := l.Screenshot(context.Background(), c, "result", true)
	require.NotEmpty(t, path)
	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, filepath.Join(dir, "shots", ScreenshotName("result", fixedNow)), path)
	assert.True(t, c.fullPage)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	lines := readLines(t, filepath.Join(dir, "logs", "checkin.log"))
	assert.Equal(t, "[2026/3/7 08:05:09] screenshot saved to "+path+" (log)", lines[len(lines)-1])
}

func TestLogger_ScreenshotFailure(t *testing.T) {
	l, _, _, dir := newTestLogger(t)

	path := l.Screenshot(context.Background(), &fakeCapturer{err: errors.New("target closed")}, "result", false)
	assert.Empty(t, path)

	lines := readLines(t, filepath.Join(dir, "logs", "checkin.log"))
	assert.Equal(t, []string{
		"[2026/3/7 08:05:09] screenshot failed (error)",
		"[2026/3/7 08:05:09] target closed (log)",
	}, lines)
}
