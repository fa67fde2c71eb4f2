package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"frameworks/pkg/logging"
)

const (
	captureTimeout    = 30 * time.Second
	captureStableDur  = 500 * time.Millisecond
	maxConcurrentTabs = 3
	viewportWidth     = 1280
	viewportHeight    = 1600
)

var blockedResourceTypes = []proto.NetworkResourceType{
	proto.NetworkResourceTypeFont,
	proto.NetworkResourceTypeMedia,
}

// RodShooter drives a headless Chromium instance.
type RodShooter struct {
	browser *rod.Browser
}

// Config configures the browser-backed capturer.
type Config struct {
	BrowserBin string
	Tabs       int
}

// NewRodService launches Chromium and returns a capture service writing
// into sink. Call Close on the returned shooter when done.
func NewRodService(cfg Config, sink Sink, logger logging.Logger) (*Service, *RodShooter, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-dev-shm-usage")
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("launch headless browser: %w", err)
	}
	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, nil, fmt.Errorf("connect to headless browser: %w", err)
	}
	sh := &RodShooter{browser: browser}
	return newService(sh, sink, cfg.Tabs, logger), sh, nil
}

// Shoot navigates to url, waits for the DOM to settle and returns a PNG of
// the viewport.
func (r *RodShooter) Shoot(ctx context.Context, url string) ([]byte, error) {
	page, err := stealth.Page(r.browser)
	if err != nil {
		return nil, fmt.Errorf("create tab: %w", err)
	}
	defer page.Close()

	shotCtx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()
	page = page.Context(shotCtx)

	router := page.HijackRequests()
	for _, rt := range blockedResourceTypes {
		_ = router.Add("*", rt, func(h *rod.Hijack) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		})
	}
	go router.Run()
	defer router.MustStop()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             viewportWidth,
		Height:            viewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	_ = page.WaitStable(captureStableDur)

	png, err := page.Screenshot(false, &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng})
	if err != nil {
		return nil, fmt.Errorf("screenshot %s: %w", url, err)
	}
	return png, nil
}

func (r *RodShooter) Close() {
	_ = r.browser.Close()
}
