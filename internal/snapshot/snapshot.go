// Package snapshot renders a generated map page to PNG with headless Chrome.
package snapshot

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/blockedby/channel-map/internal/logger"
)

// defaults
const (
	DefaultWidth   = 1600
	DefaultHeight  = 1000
	DefaultTimeout = 60 * time.Second

	// marker fade in takes up to 2s
	settleDelay = 2500 * time.Millisecond
)

// Options configures a capture.
type Options struct {
	Width   int
	Height  int
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Capture loads the map page at htmlPath and writes a PNG of the viewport
// to outputPath.
func Capture(ctx context.Context, htmlPath, outputPath string, opts Options) error {
	opts = opts.withDefaults()

	target, err := fileURL(htmlPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	cctx, cancel := chromedp.NewExecAllocator(ctx,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	defer cancel()

	cctx, cancel = chromedp.NewContext(cctx)
	defer cancel()

	var png []byte
	if err := chromedp.Run(cctx,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(target),
		chromedp.WaitVisible("#map-container svg", chromedp.ByQuery),
		chromedp.Sleep(settleDelay),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			png, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(ctx)
			return err
		}),
	); err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}

	if err := os.WriteFile(outputPath, png, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	logger.Get().Info().Str("path", outputPath).Int("bytes", len(png)).Msg("map snapshot saved")
	return nil
}

func fileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("map page: %w", err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}
