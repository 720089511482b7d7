package capture

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Default capture parameters. The viewport matches a landscape A4 page at
// 96 dpi so that the dashboard lays out the same way it prints.
const (
	DefaultWidth      = 1123
	DefaultHeight     = 794
	DefaultTimeoutSec = 30
)

// Format selects the snapshot output.
type Format string

const (
	FormatPDF Format = "pdf"
	FormatPNG Format = "png"
)

// Options defines parameters for a Chromium-based snapshot.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/dashboard".
	URL string

	// OutputPath, if set, receives the snapshot bytes.
	OutputPath string

	Format Format

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// ChromePath overrides the browser binary.
	ChromePath string

	// Timeout bounds the entire capture operation. If zero,
	// DefaultTimeoutSec is used.
	Timeout time.Duration
}

// Snapshot launches a headless Chromium instance via chromedp, navigates
// to opts.URL, waits until the page exposes `[data-ready="true"]` and
// prints it to PDF (landscape, with backgrounds) or takes a full-page PNG.
func Snapshot(parentCtx context.Context, opts Options) ([]byte, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("capture: URL is required")
	}
	if opts.Format == "" {
		opts.Format = FormatPDF
	}
	if opts.Format != FormatPDF && opts.Format != FormatPNG {
		return nil, fmt.Errorf("capture: unknown format %q", opts.Format)
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	allocCtx := parentCtx
	if opts.ChromePath != "" {
		var allocCancel context.CancelFunc
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.ExecPath(opts.ChromePath))
		allocCtx, allocCancel = chromedp.NewExecAllocator(parentCtx, allocOpts...)
		defer allocCancel()
	}

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var out []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		// Small extra delay to allow final paints.
		chromedp.Sleep(300 * time.Millisecond),
	}
	if opts.Format == FormatPNG {
		tasks = append(tasks, chromedp.FullScreenshot(&out, 100))
	} else {
		tasks = append(tasks, chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithLandscape(true).
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			out = buf
			return err
		}))
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if opts.OutputPath != "" {
		if err := os.WriteFile(opts.OutputPath, out, 0o644); err != nil {
			return nil, fmt.Errorf("capture: failed to write %s: %w", opts.Format, err)
		}
	}
	return out, nil
}
