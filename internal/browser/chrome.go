// File: internal/browser/chrome.go
// Description: chromedp-backed Driver. One ChromeDriver owns one allocator
// and one tab; the orchestrator opens a fresh one per run and closes it when
// the run ends, success or not.
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/opsweld/rootreset/internal/config"
)

// ChromeDriver drives a locally launched Chrome over CDP.
type ChromeDriver struct {
	cfg config.BrowserConfig
	nav time.Duration
	elm time.Duration
	log *zap.Logger

	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc

	closeOnce sync.Once
}

var _ Driver = (*ChromeDriver)(nil)

// NewChromeFactory returns a Factory that launches Chrome with the given
// configuration.
func NewChromeFactory(cfg config.BrowserConfig, auto config.AutomationConfig, logger *zap.Logger) Factory {
	return func(ctx context.Context) (Driver, error) {
		return NewChromeDriver(ctx, cfg, auto, logger)
	}
}

// NewChromeDriver launches Chrome and opens a tab. The returned driver is
// ready for Navigate.
func NewChromeDriver(ctx context.Context, cfg config.BrowserConfig, auto config.AutomationConfig, logger *zap.Logger) (*ChromeDriver, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	d := &ChromeDriver{
		cfg:         cfg,
		nav:         auto.NavigationTimeout,
		elm:         auto.ElementTimeout,
		log:         logger.Named("browser"),
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
	}

	// Connecting eagerly surfaces a missing or broken Chrome binary here
	// instead of on the first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	d.log.Debug("Browser session started",
		zap.Bool("headless", cfg.Headless),
		zap.Int("window_width", cfg.WindowWidth),
		zap.Int("window_height", cfg.WindowHeight))
	return d, nil
}

// execOptions translates the browser configuration into allocator options.
func execOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		// Required on hardened hosts where the sandbox cannot start.
		chromedp.NoSandbox,
		// /dev/shm is tiny in most containers.
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.DisableGPU,
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	for _, arg := range cfg.Args {
		key, value, hasValue := strings.Cut(arg, "=")
		key = strings.TrimPrefix(key, "--")
		if hasValue {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(key, true))
		}
	}
	return opts
}

// selector converts a Locator into a chromedp selector plus query option.
func selector(loc Locator) (string, chromedp.QueryOption) {
	switch loc.By {
	case ByID:
		return "#" + loc.Value, chromedp.ByQuery
	case ByCSS:
		return loc.Value, chromedp.ByQuery
	case ByXPath:
		return loc.Value, chromedp.BySearch
	case ByPartialLinkText:
		return fmt.Sprintf(`//a[contains(., %q)]`, loc.Value), chromedp.BySearch
	default:
		return loc.Value, chromedp.ByQuery
	}
}

func (d *ChromeDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(d.tabCtx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	d.log.Debug("Navigating", zap.String("url", url))
	err := d.run(ctx, d.nav,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (d *ChromeDriver) WaitClickable(ctx context.Context, loc Locator) error {
	sel, by := selector(loc)
	err := d.run(ctx, d.elm,
		chromedp.WaitVisible(sel, by),
		chromedp.WaitEnabled(sel, by),
	)
	if err != nil {
		return elementErr("wait clickable", loc, err)
	}
	return nil
}

func (d *ChromeDriver) WaitPresent(ctx context.Context, loc Locator) error {
	sel, by := selector(loc)
	if err := d.run(ctx, d.elm, chromedp.WaitReady(sel, by)); err != nil {
		return elementErr("wait present", loc, err)
	}
	return nil
}

func (d *ChromeDriver) Click(ctx context.Context, loc Locator) error {
	if err := d.WaitClickable(ctx, loc); err != nil {
		return err
	}
	sel, by := selector(loc)
	if err := d.run(ctx, d.elm, chromedp.Click(sel, by)); err != nil {
		return elementErr("click", loc, err)
	}
	d.log.Debug("Clicked element", zap.Stringer("locator", loc))
	return nil
}

func (d *ChromeDriver) ClearAndType(ctx context.Context, loc Locator, text string) error {
	if err := d.WaitPresent(ctx, loc); err != nil {
		return err
	}
	sel, by := selector(loc)
	err := d.run(ctx, d.elm,
		chromedp.Clear(sel, by),
		chromedp.SendKeys(sel, text, by),
	)
	if err != nil {
		return elementErr("type into", loc, err)
	}
	return nil
}

func (d *ChromeDriver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := d.run(ctx, d.elm, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read current URL: %w", err)
	}
	return url, nil
}

func (d *ChromeDriver) PageContainsText(ctx context.Context, text string) (bool, error) {
	var html string
	if err := d.run(ctx, d.elm, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return false, fmt.Errorf("failed to read page source: %w", err)
	}
	return strings.Contains(strings.ToLower(html), strings.ToLower(text)), nil
}

// Screenshot captures the viewport into the artifact directory. It is used
// around failure points so operators can see what the automation saw.
func (d *ChromeDriver) Screenshot(ctx context.Context, label string) (string, error) {
	var buf []byte
	capture := chromedp.ActionFunc(func(c context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(c)
		return err
	})
	if err := d.run(ctx, d.elm, capture); err != nil {
		return "", fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if err := os.MkdirAll(d.cfg.ArtifactDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	path := artifactPath(d.cfg.ArtifactDir, label, time.Now())
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	d.log.Info("Saved screenshot", zap.String("path", path))
	return path, nil
}

// artifactPath names screenshot files so repeated runs never collide.
func artifactPath(dir, label string, at time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("rootreset-%s-%d.png", label, at.Unix()))
}

// Close tears down the tab and the browser process. Safe to call repeatedly.
func (d *ChromeDriver) Close() error {
	d.closeOnce.Do(func() {
		d.tabCancel()
		d.allocCancel()
		d.log.Debug("Browser session closed")
	})
	return nil
}
