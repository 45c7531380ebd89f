package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mindsgn-studio/novawatch/internal/config"
	"github.com/mindsgn-studio/novawatch/internal/model"
	"github.com/mindsgn-studio/novawatch/vending"
)

const (
	tableSelector  = "table#itemtable"
	priceHeader    = "Price"
	locationHeader = "Location"
)

var ErrColumnsNotFound = errors.New("vending table has no Price/Location columns")

// Scraper opens a session that is reused for every item of a polling cycle.
type Scraper interface {
	Open(ctx context.Context) (Session, error)
}

type Session interface {
	Scrape(ctx context.Context, itemID int) (*model.Listing, error)
	Close() error
}

// New picks the backend named by cfg.ScraperBackend.
func New(cfg model.Config, logger *slog.Logger) Scraper {
	if cfg.ScraperBackend == config.BackendHTTP {
		return NewHTTPScraper(cfg, logger)
	}
	return NewBrowserScraper(cfg, logger)
}

// ParseHTML parses a rendered vending page.
func ParseHTML(html string) (*model.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return ParseListing(doc.Selection)
}

// ParseListing reads the item name from the page title and the offers from
// the vending table. The first table row is the header. A missing table means
// nobody is vending the item and yields no offers.
func ParseListing(root *goquery.Selection) (*model.Listing, error) {
	listing := &model.Listing{
		Name:   vending.ItemNameFromTitle(strings.TrimSpace(root.Find("title").First().Text())),
		Offers: []model.Offer{},
	}

	rows := root.Find(tableSelector).First().Find("tr")
	if rows.Length() < 2 {
		return listing, nil
	}

	header := cellTexts(rows.First())
	priceCol := indexOf(header, priceHeader)
	locationCol := indexOf(header, locationHeader)
	if priceCol < 0 || locationCol < 0 {
		return listing, fmt.Errorf("%w: header %q", ErrColumnsNotFound, header)
	}

	rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
		cells := cellTexts(row)
		if len(cells) <= priceCol || len(cells) <= locationCol {
			return
		}
		listing.Offers = append(listing.Offers, model.Offer{
			Price:    cells[priceCol],
			Location: cells[locationCol],
		})
	})
	return listing, nil
}

func cellTexts(row *goquery.Selection) []string {
	cells := row.Find("th, td")
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, cell *goquery.Selection) {
		out = append(out, strings.Join(strings.Fields(cell.Text()), " "))
	})
	return out
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}
