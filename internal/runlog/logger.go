// Package runlog writes the human-readable log of check-in runs and saves
// page screenshots next to it.
package runlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Level names a run log line kind
type Level string

const (
	LevelLog     Level = "log"
	LevelError   Level = "error"
	LevelWarn    Level = "warn"
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
)

const timestampLayout = "2006/1/2 15:04:05"

var prefixStyles = map[Level]lipgloss.Style{
	LevelLog:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	LevelWarn:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	LevelSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
}

// Options configures a Logger
type Options struct {
	FilePath      string
	ScreenshotDir string
	Stdout        io.Writer
	Stderr        io.Writer
	Now           func() time.Time
}

// Logger mirrors every line to the console and appends it to a log file as
// "[<timestamp>] <message...> (<level>)".
type Logger struct {
	mu            sync.Mutex
	filePath      string
	screenshotDir string
	stdout        io.Writer
	stderr        io.Writer
	now           func() time.Time
}

// New creates a Logger, making sure the log and screenshot directories exist
func New(opts Options) (*Logger, error) {
	if opts.FilePath == "" {
		return nil, fmt.Errorf("log file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if opts.ScreenshotDir != "" {
		if err := os.MkdirAll(opts.ScreenshotDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
		}
	}

	l := &Logger{
		filePath:      opts.FilePath,
		screenshotDir: opts.ScreenshotDir,
		stdout:        opts.Stdout,
		stderr:        opts.Stderr,
		now:           opts.Now,
	}
	if l.stdout == nil {
		l.stdout = os.Stdout
	}
	if l.stderr == nil {
		l.stderr = os.Stderr
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l, nil
}

func (l *Logger) Log(args ...any)     { l.write(LevelLog, args) }
func (l *Logger) Error(args ...any)   { l.write(LevelError, args) }
func (l *Logger) Warn(args ...any)    { l.write(LevelWarn, args) }
func (l *Logger) Info(args ...any)    { l.write(LevelInfo, args) }
func (l *Logger) Success(args ...any) { l.write(LevelSuccess, args) }

// FormatLine renders one file line without the trailing newline
func FormatLine(at time.Time, level Level, args ...any) string {
	return strings.Join([]string{prefix(at), joinArgs(args), "(" + string(level) + ")"}, " ")
}

func prefix(at time.Time) string {
	return "[" + at.Format(timestampLayout) + "]"
}

func joinArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, " ")
}

func (l *Logger) write(level Level, args []any) {
	at := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	console := l.stdout
	if level == LevelError || level == LevelWarn {
		console = l.stderr
	}
	fmt.Fprintln(console, prefixStyles[level].Render(prefix(at)), joinArgs(args))

	if err := appendLine(l.filePath, FormatLine(at, level, args...)); err != nil {
		fmt.Fprintf(l.stderr, "runlog: %v\n", err)
	}
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.WriteString(f, line+"\n")
	return err
}
