package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/mindsgn-studio/novawatch/internal/model"
	"github.com/mindsgn-studio/novawatch/vending"
)

const (
	browserInitTimeout = 30 * time.Second
	pageCreateTimeout  = 10 * time.Second
)

// BrowserScraper renders vending pages in a headless Chromium.
type BrowserScraper struct {
	bin         string
	userDataDir string
	headless    bool
	settle      time.Duration
	site        vending.Site
	logger      *slog.Logger
}

func NewBrowserScraper(cfg model.Config, logger *slog.Logger) *BrowserScraper {
	return &BrowserScraper{
		bin:         cfg.BrowserBin,
		userDataDir: cfg.UserDataDir,
		headless:    cfg.BrowserHeadless,
		settle:      cfg.SettleDelay,
		site:        vending.NewSite(cfg.BaseURL),
		logger:      logger.With(slog.String("component", "browser")),
	}
}

// Open launches a browser with a single stealth page. The session owns the
// browser process until Close.
func (b *BrowserScraper) Open(ctx context.Context) (Session, error) {
	bin := b.bin
	if bin == "" {
		b.logger.Info("no browser binary specified, downloading default...")
		path, err := launcher.NewBrowser().Get()
		if err != nil {
			return nil, fmt.Errorf("download browser: %w", err)
		}
		bin = path
	}

	l := launcher.New().
		Headless(b.headless).
		Bin(bin).
		NoSandbox(true).
		Set("disable-dev-shm-usage", "true").
		Set("disable-gpu", "true").
		Set("disable-software-rasterizer", "true")
	if b.userDataDir != "" {
		l = l.UserDataDir(b.userDataDir)
	}

	type launched struct {
		url string
		err error
	}
	launchCh := make(chan launched, 1)
	go func() {
		u, err := l.Launch()
		launchCh <- launched{u, err}
	}()

	var wsURL string
	select {
	case res := <-launchCh:
		if res.err != nil {
			// the launcher has already killed whatever it started
			if b.userDataDir == "" {
				_ = os.RemoveAll(l.Get(flags.UserDataDir))
			}
			return nil, fmt.Errorf("launch browser: %w", res.err)
		}
		wsURL = res.url
	case <-time.After(browserInitTimeout):
		b.abort(l)
		return nil, fmt.Errorf("launch browser timeout after %v", browserInitTimeout)
	case <-ctx.Done():
		b.abort(l)
		return nil, fmt.Errorf("launch browser: %w", ctx.Err())
	}

	browser := rod.New().ControlURL(wsURL)
	if err := browser.Connect(); err != nil {
		b.abort(l)
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	pageCtx, cancel := context.WithTimeout(ctx, pageCreateTimeout)
	defer cancel()
	page, err := browser.Context(pageCtx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		b.abort(l)
		return nil, fmt.Errorf("create page: %w", err)
	}
	page = page.Context(context.Background())

	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		_ = browser.Close()
		b.abort(l)
		return nil, fmt.Errorf("apply stealth script: %w", err)
	}

	b.logger.Info("browser started", slog.String("bin", bin), slog.Bool("headless", b.headless))
	return &browserSession{
		launcher:       l,
		browser:        browser,
		page:           page,
		settle:         b.settle,
		site:           b.site,
		logger:         b.logger,
		managedProfile: b.userDataDir == "",
	}, nil
}

// browserProcess is the part of *launcher.Launcher that owns the process and
// its profile directory.
type browserProcess interface {
	PID() int
	Kill()
	Cleanup()
	Get(name flags.Flag) string
}

// abort kills a browser that never became a session. A profile directory
// picked by the launcher is removed too.
func (b *BrowserScraper) abort(p browserProcess) {
	p.Kill()
	if b.userDataDir == "" {
		removeProfile(p)
	}
}

// removeProfile deletes the launcher-generated profile directory. Cleanup
// waits for the process to exit, so it is only used when one was started.
func removeProfile(p browserProcess) {
	if p.PID() == 0 {
		if dir := p.Get(flags.UserDataDir); dir != "" {
			_ = os.RemoveAll(dir)
		}
		return
	}
	p.Cleanup()
}

type browserSession struct {
	launcher       browserProcess
	browser        *rod.Browser
	page           *rod.Page
	settle         time.Duration
	site           vending.Site
	logger         *slog.Logger
	managedProfile bool
}

func (s *browserSession) Scrape(ctx context.Context, itemID int) (*model.Listing, error) {
	url := s.site.ItemURL(itemID)
	page := s.page.Context(ctx)

	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load %s: %w", url, err)
	}

	// the vending table is filled in by scripts after load
	if s.settle > 0 {
		timer := time.NewTimer(s.settle)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read html %s: %w", url, err)
	}

	listing, err := ParseHTML(html)
	if err != nil {
		return nil, err
	}
	if listing.Name == "" {
		if info, err := page.Info(); err == nil {
			listing.Name = vending.ItemNameFromTitle(info.Title)
		}
	}
	listing.ItemID = itemID

	s.logger.Debug("page scraped",
		slog.Int("item_id", itemID),
		slog.String("name", listing.Name),
		slog.Int("offers", len(listing.Offers)))
	return listing, nil
}

func (s *browserSession) Close() error {
	var errs []error
	if err := s.page.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close page: %w", err))
	}
	if err := s.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
		s.launcher.Kill()
	}
	s.releaseProfile()
	return errors.Join(errs...)
}

func (s *browserSession) releaseProfile() {
	if s.managedProfile {
		removeProfile(s.launcher)
	}
}
