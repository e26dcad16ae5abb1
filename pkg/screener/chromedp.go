package screener

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/root4loot/goutils/log"
)

type cdpBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

func launchChromedp(ctx context.Context, opts LaunchOptions) (Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)

	if opts.Bin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.Bin))
	}

	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Debugf))

	// An empty run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	return &cdpBrowser{ctx: browserCtx, cancel: cancel, allocCancel: allocCancel}, nil
}

func (b *cdpBrowser) NewPage(ctx context.Context, width, height int) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.ctx)
	stop := context.AfterFunc(ctx, cancel)

	if err := chromedp.Run(tabCtx, chromedp.EmulateViewport(int64(width), int64(height))); err != nil {
		stop()
		cancel()
		return nil, fmt.Errorf("opening page: %w", err)
	}

	return &cdpPage{ctx: tabCtx, cancel: cancel, stop: stop}, nil
}

func (b *cdpBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	if err != nil {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}

type cdpPage struct {
	ctx    context.Context
	cancel context.CancelFunc
	stop   func() bool
}

// bind derives a context for running actions on the tab that also carries
// the deadline and cancellation of ctx.
func (p *cdpPage) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(p.ctx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(p.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *cdpPage) Navigate(ctx context.Context, url string) (int, error) {
	runCtx, cancel := p.bind(ctx)
	defer cancel()

	// The main frame shares its ID with the target.
	frameID := cdp.FrameID(chromedp.FromContext(p.ctx).Target.TargetID)

	var (
		mu       sync.Mutex
		status   int64
		loaderID cdp.LoaderID
		idleOnce sync.Once
		idle     = make(chan struct{})
	)

	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			if e.Type != network.ResourceTypeDocument || e.FrameID != frameID || e.Response == nil {
				return
			}
			mu.Lock()
			status = e.Response.Status
			loaderID = e.LoaderID
			mu.Unlock()
		case *page.EventLifecycleEvent:
			mu.Lock()
			match := loaderID != "" && e.FrameID == frameID && e.LoaderID == loaderID
			mu.Unlock()
			if match && e.Name == "networkAlmostIdle" {
				idleOnce.Do(func() { close(idle) })
			}
		}
	})

	err := chromedp.Run(runCtx,
		network.Enable(),
		page.SetLifecycleEventsEnabled(true),
		chromedp.Navigate(url),
	)
	if err != nil {
		return 0, fmt.Errorf("navigating to %s: %w", url, err)
	}

	select {
	case <-idle:
	case <-runCtx.Done():
	}

	mu.Lock()
	code := int(status)
	mu.Unlock()

	if err := runCtx.Err(); err != nil {
		if code == 0 {
			return 0, fmt.Errorf("waiting for response from %s: %w", url, err)
		}
		return code, fmt.Errorf("waiting for %s to settle: %w", url, err)
	}
	if code == 0 {
		return 0, ErrNoResponse
	}

	return code, nil
}

func (p *cdpPage) Screenshot(ctx context.Context, clip Clip) ([]byte, error) {
	runCtx, cancel := p.bind(ctx)
	defer cancel()

	var buf []byte
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithClip(&page.Viewport{
				X:      clip.X,
				Y:      clip.Y,
				Width:  clip.Width,
				Height: clip.Height,
				Scale:  1,
			}).
			Do(ctx)
		return err
	}))
	return buf, err
}

func (p *cdpPage) Close() error {
	p.stop()
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}
