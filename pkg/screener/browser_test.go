package screener

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

// TestBrowserDrivers drives a real Chromium; set PAGESHOTS_BROWSER_TESTS=1
// (and optionally PAGESHOTS_CHROME_BIN) to run it.
func TestBrowserDrivers(t *testing.T) {
	if os.Getenv("PAGESHOTS_BROWSER_TESTS") == "" {
		t.Skip("PAGESHOTS_BROWSER_TESTS not set")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/site/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body style="background:#1e5ac8"><h1>site</h1></body></html>`)
	})
	mux.HandleFunc("/hang/", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	for _, driver := range []string{DriverRod, DriverChromedp} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			browser, err := Launch(ctx, LaunchOptions{Driver: driver, Bin: os.Getenv("PAGESHOTS_CHROME_BIN")})
			if err != nil {
				t.Fatalf("Failed to launch %s: %v", driver, err)
			}
			defer browser.Close()

			page, err := browser.NewPage(ctx, 1200, 800)
			if err != nil {
				t.Fatalf("Failed to open page: %v", err)
			}
			defer page.Close()

			navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			status, err := page.Navigate(navCtx, server.URL+"/site/")
			cancel()
			if err != nil || status != 200 {
				t.Fatalf("Expected status 200, got %d (%v)", status, err)
			}

			data, err := page.Screenshot(ctx, Clip{Width: 1200, Height: 800})
			if err != nil {
				t.Fatalf("Failed to capture: %v", err)
			}
			img, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("Expected a PNG: %v", err)
			}
			if img.Bounds().Dx() != 1200 || img.Bounds().Dy() != 800 {
				t.Errorf("Expected 1200x800, got %v", img.Bounds())
			}

			notFound, err := browser.NewPage(ctx, 1200, 800)
			if err != nil {
				t.Fatalf("Failed to open page: %v", err)
			}
			defer notFound.Close()

			navCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
			status, err = notFound.Navigate(navCtx, server.URL+"/missing/")
			cancel()
			if err != nil || status != 404 {
				t.Errorf("Expected status 404, got %d (%v)", status, err)
			}

			hanging, err := browser.NewPage(ctx, 1200, 800)
			if err != nil {
				t.Fatalf("Failed to open page: %v", err)
			}
			defer hanging.Close()

			navCtx, cancel = context.WithTimeout(ctx, 2*time.Second)
			_, err = hanging.Navigate(navCtx, server.URL+"/hang/")
			cancel()
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("Expected a deadline error, got %v", err)
			}
		})
	}
}
