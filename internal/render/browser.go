package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/JonMunkholm/SoilMap/internal/core"
	"github.com/JonMunkholm/SoilMap/internal/logging"
)

// DocumentFunc renders the standalone HTML document of a surface, the same
// Leaflet page the browser shows.
type DocumentFunc func(ctx context.Context, s *core.MapSurface) (string, error)

// settleTime is how long the page must be quiet (tiles loaded, DOM stable)
// before the screenshot is taken.
const settleTime = 500 * time.Millisecond

// Browser rasterizes through headless Chrome. The browser process is started
// on first use and reused; each call gets its own page.
type Browser struct {
	bin           string
	width, height int
	document      DocumentFunc

	mu      sync.Mutex
	browser *rod.Browser
}

// NewBrowser creates a browser rasterizer. bin may be empty, in which case
// rod looks up or downloads a Chromium build.
func NewBrowser(bin string, width, height int, document DocumentFunc) *Browser {
	return &Browser{bin: bin, width: width, height: height, document: document}
}

// Name implements Rasterizer.
func (b *Browser) Name() string { return BackendBrowser }

// Rasterize implements Rasterizer.
func (b *Browser) Rasterize(ctx context.Context, s *core.MapSurface) ([]byte, error) {
	data, err := b.rasterize(ctx, s)
	if err != nil {
		return nil, &RasterizationError{Backend: BackendBrowser, Err: err}
	}
	return data, nil
}

func (b *Browser) rasterize(ctx context.Context, s *core.MapSurface) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil surface")
	}

	html, err := b.document(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	browser, err := b.ensureStarted()
	if err != nil {
		return nil, err
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	// Close on a detached context so a cancelled export still frees its tab.
	defer func() { _ = page.Context(context.WithoutCancel(ctx)).Close() }()

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             b.width,
		Height:            b.height,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}
	if err := page.WaitStable(settleTime); err != nil {
		return nil, fmt.Errorf("wait stable: %w", err)
	}

	data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return data, nil
}

// ensureStarted launches or reconnects the browser. A launch failure means
// there is no display backend; the error is returned to the caller and the
// next call tries again.
func (b *Browser) ensureStarted() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		if _, err := b.browser.Version(); err == nil {
			return b.browser, nil
		}
		slog.Warn("stale browser connection, relaunching")
		_ = b.browser.Close()
		b.browser = nil
	}

	l := launcher.New().Headless(true)
	if b.bin != "" {
		l = l.Bin(b.bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	b.browser = browser
	logging.WithFields(context.Background(), "control_url", controlURL).Info("headless browser started")
	return browser, nil
}

// Close shuts down the browser process if one was started.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}
