package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gocolly/colly"
	"github.com/mindsgn-studio/novawatch/internal/model"
	"github.com/mindsgn-studio/novawatch/vending"
)

const DefaultHTTPTimeout = 20 * time.Second

// HTTPScraper fetches vending pages without a browser. It only sees the
// server-rendered table.
type HTTPScraper struct {
	userAgent string
	timeout   time.Duration
	site      vending.Site
	logger    *slog.Logger
}

func NewHTTPScraper(cfg model.Config, logger *slog.Logger) *HTTPScraper {
	timeout := cfg.ItemTimeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPScraper{
		userAgent: cfg.UserAgent,
		timeout:   timeout,
		site:      vending.NewSite(cfg.BaseURL),
		logger:    logger.With(slog.String("component", "http_scraper")),
	}
}

func (h *HTTPScraper) Open(_ context.Context) (Session, error) {
	return &httpSession{scraper: h}, nil
}

type httpSession struct {
	scraper *HTTPScraper
}

type visitResult struct {
	listing *model.Listing
	err     error
}

func (s *httpSession) Scrape(ctx context.Context, itemID int) (*model.Listing, error) {
	url := s.scraper.site.ItemURL(itemID)

	collyClient := colly.NewCollector(colly.AllowURLRevisit())
	if s.scraper.userAgent != "" {
		collyClient.UserAgent = s.scraper.userAgent
	}
	timeout := s.scraper.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left > 0 && left < timeout {
			timeout = left
		}
	}
	collyClient.SetRequestTimeout(timeout)

	var listing *model.Listing
	var parseErr error
	collyClient.OnHTML("html", func(e *colly.HTMLElement) {
		listing, parseErr = ParseListing(e.DOM)
	})

	// colly has no context support, so the visit runs aside and is abandoned
	// on cancellation; the request timeout bounds it.
	done := make(chan visitResult, 1)
	go func() {
		if err := collyClient.Visit(url); err != nil {
			done <- visitResult{err: fmt.Errorf("visit %s: %w", url, err)}
			return
		}
		collyClient.Wait()
		if parseErr != nil {
			done <- visitResult{err: parseErr}
			return
		}
		if listing == nil {
			done <- visitResult{err: fmt.Errorf("visit %s: no html document", url)}
			return
		}
		done <- visitResult{listing: listing}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		res.listing.ItemID = itemID
		s.scraper.logger.Debug("page scraped",
			slog.Int("item_id", itemID),
			slog.String("name", res.listing.Name),
			slog.Int("offers", len(res.listing.Offers)))
		return res.listing, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("visit %s: %w", url, ctx.Err())
	}
}

func (s *httpSession) Close() error {
	return nil
}
