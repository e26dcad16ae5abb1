package screener

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/root4loot/goutils/log"
)

type rodBrowser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
}

func launchRod(ctx context.Context, opts LaunchOptions) (Browser, error) {
	bin := opts.Bin
	if bin == "" {
		bin, _ = launcher.LookPath()
	}

	l := launcher.New().
		Context(ctx).
		Headless(true).
		NoSandbox(true).
		Set("disable-gpu")

	if bin != "" {
		l = l.Bin(bin)
	}

	if opts.UserAgent != "" {
		l.Set("user-agent", opts.UserAgent)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	log.Debugf("Browser listening on %s", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	return &rodBrowser{launcher: l, browser: browser}, nil
}

func (b *rodBrowser) NewPage(ctx context.Context, width, height int) (Page, error) {
	incognito, err := b.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("creating browser context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("opening page: %w", err)
	}

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
		Mobile:            false,
	})
	if err != nil {
		_ = page.Close()
		_ = incognito.Close()
		return nil, fmt.Errorf("setting viewport: %w", err)
	}

	return &rodPage{page: page, incognito: incognito}, nil
}

func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Cleanup()
	if err != nil {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}

type rodPage struct {
	page      *rod.Page
	incognito *rod.Browser
}

func (p *rodPage) Navigate(ctx context.Context, url string) (int, error) {
	page := p.page.Context(ctx)
	frameID := p.page.FrameID

	if err := (proto.PageSetLifecycleEventsEnabled{Enabled: true}).Call(page); err != nil {
		return 0, fmt.Errorf("enabling lifecycle events: %w", err)
	}

	// Lifecycle events replayed for the initial blank document carry another
	// loader ID, so only the loader that served the document response counts.
	var (
		status   int
		loaderID proto.NetworkLoaderID
	)
	wait := page.EachEvent(
		func(e *proto.NetworkResponseReceived) {
			if e.Type != proto.NetworkResourceTypeDocument || e.FrameID != frameID {
				return
			}
			status = e.Response.Status
			loaderID = e.LoaderID
		},
		func(e *proto.PageLifecycleEvent) bool {
			return loaderID != "" &&
				e.FrameID == frameID &&
				e.LoaderID == loaderID &&
				string(e.Name) == string(proto.PageLifecycleEventNameNetworkAlmostIdle)
		},
	)

	if err := page.Navigate(url); err != nil {
		return 0, fmt.Errorf("navigating to %s: %w", url, err)
	}

	wait()

	if err := ctx.Err(); err != nil {
		if status == 0 {
			return 0, fmt.Errorf("waiting for response from %s: %w", url, err)
		}
		return status, fmt.Errorf("waiting for %s to settle: %w", url, err)
	}
	if status == 0 {
		return 0, ErrNoResponse
	}

	return status, nil
}

func (p *rodPage) Screenshot(ctx context.Context, clip Clip) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
		Clip: &proto.PageViewport{
			X:      clip.X,
			Y:      clip.Y,
			Width:  clip.Width,
			Height: clip.Height,
			Scale:  1,
		},
	})
}

func (p *rodPage) Close() error {
	err := p.page.Close()
	if cerr := p.incognito.Close(); err == nil {
		err = cerr
	}
	return err
}
