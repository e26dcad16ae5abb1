package screener

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

type fakePage struct {
	navigate  func(ctx context.Context, url string) (int, error)
	shot      []byte
	shotErr   error
	navigated []string
	clips     []Clip
	closed    int
}

func (p *fakePage) Navigate(ctx context.Context, url string) (int, error) {
	p.navigated = append(p.navigated, url)
	return p.navigate(ctx, url)
}

func (p *fakePage) Screenshot(ctx context.Context, clip Clip) ([]byte, error) {
	p.clips = append(p.clips, clip)
	return p.shot, p.shotErr
}

func (p *fakePage) Close() error {
	p.closed++
	return nil
}

type fakeBrowser struct {
	page          *fakePage
	err           error
	width, height int
}

func (b *fakeBrowser) NewPage(ctx context.Context, width, height int) (Page, error) {
	b.width, b.height = width, height
	if b.err != nil {
		return nil, b.err
	}
	return b.page, nil
}

func (b *fakeBrowser) Close() error { return nil }

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 30, G: 90, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func status(code int) func(context.Context, string) (int, error) {
	return func(context.Context, string) (int, error) { return code, nil }
}

func testScreener(b Browser) *Screener {
	options := NewOptions()
	options.Owner = "Octo-Org"
	options.DelayBeforeCapture = 0
	return NewScreenerWithOptions(b, options)
}

func TestNewOptions(t *testing.T) {
	options := NewOptions()
	if options.CaptureWidth != 1200 || options.CaptureHeight != 800 {
		t.Errorf("Expected 1200x800 capture, got %dx%d", options.CaptureWidth, options.CaptureHeight)
	}
	if options.Timeout != 60 {
		t.Errorf("Expected 60 second timeout, got %d", options.Timeout)
	}
	if options.DelayBeforeCapture != 3000 {
		t.Errorf("Expected 3000ms delay, got %d", options.DelayBeforeCapture)
	}
}

func TestTargetURL(t *testing.T) {
	s := testScreener(nil)

	got, err := s.TargetURL("my-site")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if want := "https://octo-org.github.io/my-site/"; got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	for _, name := range []string{"", "a/b", "..", `a\b`} {
		if _, err := s.TargetURL(name); err == nil {
			t.Errorf("Expected error for name %q", name)
		}
	}

	s.CaptureOptions.Owner = ""
	if _, err := s.TargetURL("my-site"); err == nil {
		t.Error("Expected error for empty owner")
	}
}

func TestCapture_Success(t *testing.T) {
	shot := pngBytes(t, 1200, 800)
	page := &fakePage{navigate: status(200), shot: shot}
	browser := &fakeBrowser{page: page}

	result := testScreener(browser).Capture(context.Background(), "my-site")

	if result.Status != StatusCaptured {
		t.Fatalf("Expected captured, got %s (%v)", result.Status, result.Error)
	}
	if !bytes.Equal(result.Image, shot) {
		t.Error("Expected the screenshot bytes on the result")
	}
	if browser.width != 1200 || browser.height != 800 {
		t.Errorf("Expected a 1200x800 page, got %dx%d", browser.width, browser.height)
	}
	if len(page.navigated) != 1 || page.navigated[0] != "https://octo-org.github.io/my-site/" {
		t.Errorf("Unexpected navigation: %v", page.navigated)
	}
	if len(page.clips) != 1 || page.clips[0] != (Clip{X: 0, Y: 0, Width: 1200, Height: 800}) {
		t.Errorf("Expected a single clip of the viewport, got %v", page.clips)
	}
	if page.closed != 1 {
		t.Errorf("Expected the page to be closed once, got %d", page.closed)
	}
}

func TestCapture_BadResponses(t *testing.T) {
	tests := []struct {
		name     string
		navigate func(context.Context, string) (int, error)
		code     int
	}{
		{"not found", status(404), 404},
		{"server error", status(503), 503},
		{"redirect status", status(304), 304},
		{"no response", func(context.Context, string) (int, error) { return 0, ErrNoResponse }, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := &fakePage{navigate: tt.navigate, shot: []byte("unused")}
			result := testScreener(&fakeBrowser{page: page}).Capture(context.Background(), "my-site")

			if result.Status != StatusBadResponse {
				t.Fatalf("Expected bad-response, got %s", result.Status)
			}
			if result.StatusCode != tt.code {
				t.Errorf("Expected status code %d, got %d", tt.code, result.StatusCode)
			}
			if len(page.clips) != 0 {
				t.Error("Expected no screenshot for a bad response")
			}
			if page.closed != 1 {
				t.Errorf("Expected the page to be closed once, got %d", page.closed)
			}
		})
	}
}

func TestCapture_NavigationTimeout(t *testing.T) {
	var hadDeadline bool
	page := &fakePage{navigate: func(ctx context.Context, url string) (int, error) {
		_, hadDeadline = ctx.Deadline()
		return 0, fmt.Errorf("waiting for response from %s: %w", url, context.DeadlineExceeded)
	}}

	result := testScreener(&fakeBrowser{page: page}).Capture(context.Background(), "slow-site")

	if !hadDeadline {
		t.Error("Expected navigation to run under a deadline")
	}
	if result.Status != StatusErrored {
		t.Fatalf("Expected errored, got %s", result.Status)
	}
	if !IsTimeout(result.Error) {
		t.Errorf("Expected a timeout error, got %v", result.Error)
	}
	if page.closed != 1 {
		t.Errorf("Expected the page to be closed once, got %d", page.closed)
	}
}

func TestCapture_Errors(t *testing.T) {
	t.Run("new page", func(t *testing.T) {
		result := testScreener(&fakeBrowser{err: errors.New("target crashed")}).Capture(context.Background(), "my-site")
		if result.Status != StatusErrored || result.Error == nil {
			t.Errorf("Expected errored result, got %s (%v)", result.Status, result.Error)
		}
	})

	t.Run("screenshot", func(t *testing.T) {
		page := &fakePage{navigate: status(200), shotErr: errors.New("capture failed")}
		result := testScreener(&fakeBrowser{page: page}).Capture(context.Background(), "my-site")
		if result.Status != StatusErrored {
			t.Errorf("Expected errored result, got %s", result.Status)
		}
		if page.closed != 1 {
			t.Errorf("Expected the page to be closed once, got %d", page.closed)
		}
	})

	t.Run("cancelled while settling", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		page := &fakePage{navigate: func(context.Context, string) (int, error) {
			cancel()
			return 200, nil
		}}
		s := testScreener(&fakeBrowser{page: page})
		s.CaptureOptions.DelayBeforeCapture = 60000

		result := s.Capture(ctx, "my-site")
		if result.Status != StatusErrored || !errors.Is(result.Error, context.Canceled) {
			t.Errorf("Expected a cancelled result, got %s (%v)", result.Status, result.Error)
		}
		if len(page.clips) != 0 {
			t.Error("Expected no screenshot after cancellation")
		}
	})
}

func TestSaveImageToFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "previews")
	result := &Result{Repository: "my-site", Status: StatusCaptured, Image: []byte("png")}

	filename, err := result.SaveImageToFolder(dir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if want := filepath.Join(dir, "my-site.png"); filename != want || result.Path != want {
		t.Errorf("Expected %s, got %s (path %s)", want, filename, result.Path)
	}
	data, err := os.ReadFile(filename)
	if err != nil || string(data) != "png" {
		t.Errorf("Unexpected file content %q (%v)", data, err)
	}

	skipped := &Result{Repository: "missing", Status: StatusBadResponse}
	if _, err := skipped.SaveImageToFolder(dir); err == nil {
		t.Error("Expected an error when nothing was captured")
	}
	if skipped.Status != StatusBadResponse {
		t.Errorf("Expected status to stay bad-response, got %s", skipped.Status)
	}

	bad := &Result{Repository: "../escape", Status: StatusCaptured, Image: []byte("png")}
	if _, err := bad.SaveImageToFolder(dir); err == nil {
		t.Error("Expected an error for a name with a path separator")
	}
	if bad.Status != StatusErrored {
		t.Errorf("Expected a failed write to mark the result errored, got %s", bad.Status)
	}
}

func TestSaveImageToFolder_FailedWriteLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	createFile = func(name string) (*os.File, error) {
		f, err := os.Create(name)
		if err != nil {
			return nil, err
		}
		// closed up front so the write fails
		f.Close()
		return f, nil
	}
	t.Cleanup(func() { createFile = os.Create })

	result := &Result{Repository: "my-site", Status: StatusCaptured, Image: []byte("png")}
	if _, err := result.SaveImageToFolder(dir); err == nil {
		t.Fatal("Expected a write error")
	}
	if result.Status != StatusErrored || result.Path != "" {
		t.Errorf("Expected an errored result without a path, got %s (%q)", result.Status, result.Path)
	}
	if _, err := os.Stat(filepath.Join(dir, "my-site.png")); !os.IsNotExist(err) {
		t.Errorf("Expected no file to be left behind, got %v", err)
	}
}

func TestResetFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "previews")

	// missing folder
	if err := ResetFolder(dir); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "stale.png"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ResetFolder(dir); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Expected folder to exist: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected an empty folder, found %d entries", len(entries))
	}

	if err := ResetFolder(""); err == nil {
		t.Error("Expected an error for an empty path")
	}
}

func TestAddTextToImage(t *testing.T) {
	src := Image(pngBytes(t, 1200, 800))

	out, err := src.AddTextToImage("my-site")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	if img.Bounds().Dx() != 1200 || img.Bounds().Dy() != 800 {
		t.Errorf("Expected dimensions to stay 1200x800, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}

	r, g, b, _ := img.At(5, 795).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("Expected a white bar at the bottom, got rgb(%d,%d,%d)", r>>8, g>>8, b>>8)
	}
	r, g, b, _ = img.At(5, 5).RGBA()
	if r>>8 != 30 || g>>8 != 90 || b>>8 != 200 {
		t.Errorf("Expected the top of the image untouched, got rgb(%d,%d,%d)", r>>8, g>>8, b>>8)
	}

	if _, err := Image("not a png").AddTextToImage("x"); err == nil {
		t.Error("Expected an error for invalid image data")
	}
}

func TestLaunch_UnknownDriver(t *testing.T) {
	_, err := Launch(context.Background(), LaunchOptions{Driver: "netscape"})
	if !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("Expected ErrUnknownDriver, got %v", err)
	}
}

func TestStatusString(t *testing.T) {
	for status, want := range map[Status]string{
		StatusPending:     "pending",
		StatusCaptured:    "captured",
		StatusBadResponse: "bad-response",
		StatusErrored:     "errored",
		Status(42):        "Status(42)",
	} {
		if got := status.String(); got != want {
			t.Errorf("Expected %s, got %s", want, got)
		}
	}
}
