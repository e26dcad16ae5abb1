package screener

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/root4loot/goutils/log"
)

// Screener captures the GitHub Pages site of repositories through a shared
// Browser.
type Screener struct {
	Debug          bool
	CaptureOptions Options
	browser        Browser
}

// Options contains the options for capturing screenshots.
type Options struct {
	CaptureHeight      int    // Height of the viewport and capture
	CaptureWidth       int    // Width of the viewport and capture
	Timeout            int    // Timeout for navigation and capture (seconds)
	DelayBeforeCapture int    // Fixed settle delay before capture (milliseconds)
	Owner              string // Owner whose Pages site is visited
	PagesDomain        string // Pages domain, e.g. github.io
}

// NewOptions returns an Options struct initialized with default values.
func NewOptions() Options {
	return Options{
		CaptureHeight:      800,
		CaptureWidth:       1200,
		Timeout:            60,
		DelayBeforeCapture: 3000,
		PagesDomain:        "github.io",
	}
}

// NewScreener creates a Screener with default options.
func NewScreener(browser Browser) *Screener {
	return &Screener{
		CaptureOptions: NewOptions(),
		browser:        browser,
	}
}

// NewScreenerWithOptions creates a Screener with the provided options.
func NewScreenerWithOptions(browser Browser, options Options) *Screener {
	return &Screener{
		CaptureOptions: options,
		browser:        browser,
	}
}

// SetDebug enables or disables debug mode.
func (s *Screener) SetDebug(debug bool) {
	s.Debug = debug
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// TargetURL returns https://<owner>.<pages-domain>/<name>/ with the owner
// lowercased, as Pages hostnames are.
func (s *Screener) TargetURL(name string) (string, error) {
	owner := strings.ToLower(strings.TrimSpace(s.CaptureOptions.Owner))
	if owner == "" {
		return "", errors.New("owner is required")
	}
	if err := validateName(name); err != nil {
		return "", err
	}

	u := &url.URL{
		Scheme: "https",
		Host:   owner + "." + strings.Trim(s.CaptureOptions.PagesDomain, "."),
		Path:   "/" + name + "/",
	}
	return u.String(), nil
}

// Capture visits the Pages site of the named repository and takes a
// screenshot clipped to the viewport. Failures never escape as errors: they
// are reported through the Status of the returned Result.
func (s *Screener) Capture(ctx context.Context, name string) *Result {
	result := &Result{Repository: name, Status: StatusPending}
	opts := s.CaptureOptions

	targetURL, err := s.TargetURL(name)
	if err != nil {
		return result.fail(err)
	}
	result.TargetURL = targetURL
	log.Debugf("Attempting capture on %s", targetURL)

	page, err := s.browser.NewPage(ctx, opts.CaptureWidth, opts.CaptureHeight)
	if err != nil {
		return result.fail(err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debugf("Could not close page for %s: %v", name, err)
		}
	}()

	timeout := time.Duration(opts.Timeout) * time.Second

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	result.StatusCode, err = page.Navigate(navCtx, targetURL)
	cancel()

	if errors.Is(err, ErrNoResponse) {
		result.Status = StatusBadResponse
		result.Error = err
		return result
	}
	if err != nil {
		return result.fail(err)
	}
	if result.StatusCode < 200 || result.StatusCode > 299 {
		result.Status = StatusBadResponse
		result.Error = fmt.Errorf("received status code %d", result.StatusCode)
		return result
	}

	// Client-side rendered sites keep painting after the network settles.
	if opts.DelayBeforeCapture > 0 {
		select {
		case <-time.After(time.Duration(opts.DelayBeforeCapture) * time.Millisecond):
		case <-ctx.Done():
			return result.fail(ctx.Err())
		}
	}

	shotCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result.Image, err = page.Screenshot(shotCtx, Clip{
		Width:  float64(opts.CaptureWidth),
		Height: float64(opts.CaptureHeight),
	})
	if err != nil {
		return result.fail(fmt.Errorf("error capturing screenshot for %s: %w", targetURL, err))
	}

	result.Status = StatusCaptured
	return result
}

// IsTimeout reports whether err was caused by a deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
