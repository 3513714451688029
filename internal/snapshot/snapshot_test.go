package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Defaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultWidth, o.Width)
	assert.Equal(t, DefaultHeight, o.Height)
	assert.Equal(t, DefaultTimeout, o.Timeout)

	o = Options{Width: 800, Height: 600, Timeout: time.Second}.withDefaults()
	assert.Equal(t, 800, o.Width)
	assert.Equal(t, 600, o.Height)
	assert.Equal(t, time.Second, o.Timeout)
}

func TestFileURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "my map.html")
	require.NoError(t, os.WriteFile(path, []byte("<html></html>"), 0644))

	u, err := fileURL(path)
	require.NoError(t, err)
	assert.Contains(t, u, "file://")
	assert.Contains(t, u, "my%20map.html")

	_, err = fileURL(filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)
}

func TestCapture_MissingPage(t *testing.T) {
	err := Capture(context.Background(), filepath.Join(t.TempDir(), "nope.html"), filepath.Join(t.TempDir(), "out.png"), Options{})
	assert.Error(t, err)
}

// Note: requires Chrome or chromedp/headless-shell.
func TestCapture_WritesPNG(t *testing.T) {
	if testing.Short() || os.Getenv("CHROME_TESTS") == "" {
		t.Skip("set CHROME_TESTS=1 to run browser tests")
	}

	dir := t.TempDir()
	page := filepath.Join(dir, "map.html")
	html := `<html><body><div id="map-container"><svg width="200" height="100"><circle cx="50" cy="50" r="40" fill="green"/></svg></div></body></html>`
	require.NoError(t, os.WriteFile(page, []byte(html), 0644))

	out := filepath.Join(dir, "shots", "map.png")
	require.NoError(t, Capture(context.Background(), page, out, Options{Width: 400, Height: 300}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}
