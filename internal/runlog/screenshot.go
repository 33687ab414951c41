package runlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Capturer is anything that can render a PNG of itself
type Capturer interface {
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
}

var illegalFilenameChars = strings.NewReplacer(
	"<", "-", ">", "-", ":", "-", `"`, "-", "/", "-", `\`, "-", "|", "-", "?", "-", "*", "-",
)

// ScreenshotName returns "<kind>-<epoch-ms>.png" with characters that are
// illegal in filenames replaced by "-".
func ScreenshotName(kind string, at time.Time) string {
	return illegalFilenameChars.Replace(fmt.Sprintf("%s-%d.png", kind, at.UnixMilli()))
}

// Screenshot captures c into the screenshot directory and returns the saved
// path. Failures are logged and reported as an empty path.
func (l *Logger) Screenshot(ctx context.Context, c Capturer, kind string, fullPage bool) string {
	path, err := filepath.Abs(filepath.Join(l.screenshotDir, ScreenshotName(kind, l.now())))
	if err == nil {
		var data []byte
		data, err = c.Screenshot(ctx, fullPage)
		if err == nil {
			err = os.WriteFile(path, data, 0644)
		}
	}
	if err != nil {
		l.Error("screenshot failed")
		l.Log(err)
		return ""
	}

	l.Log("screenshot saved to", path)
	return path
}
