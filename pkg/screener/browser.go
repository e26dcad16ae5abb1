package screener

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoResponse is returned by Page.Navigate when the navigation finished
// without a document response.
var ErrNoResponse = errors.New("no response received")

// ErrUnknownDriver is returned by Launch for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown browser driver")

// Browser is one headless browser process shared by a run.
type Browser interface {
	// NewPage opens an isolated page context with the given viewport.
	NewPage(ctx context.Context, width, height int) (Page, error)
	// Close terminates the browser process.
	Close() error
}

// Page is a single page context owned by one capture.
type Page interface {
	// Navigate loads url and blocks until the document response has been
	// received and the network is almost idle, or ctx is done. It returns
	// the document's HTTP status code.
	Navigate(ctx context.Context, url string) (int, error)
	// Screenshot captures a PNG of the clip rectangle.
	Screenshot(ctx context.Context, clip Clip) ([]byte, error)
	// Close releases the page context.
	Close() error
}

// Clip is a screenshot rectangle in CSS pixels.
type Clip struct {
	X, Y          float64
	Width, Height float64
}

const (
	DriverRod      = "rod"
	DriverChromedp = "chromedp"
)

// LaunchOptions configures the browser process.
type LaunchOptions struct {
	Driver    string // rod (default) or chromedp
	Bin       string // browser binary; looked up when empty
	UserAgent string // optional user agent override
}

// Launch starts a headless browser with sandboxing and GPU acceleration
// disabled.
func Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverRod:
		return launchRod(ctx, opts)
	case DriverChromedp:
		return launchChromedp(ctx, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, opts.Driver)
	}
}
