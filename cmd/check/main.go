// Command check runs a single polling cycle and exits. With -item it only
// scrapes that item and prints what the watcher would see.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mindsgn-studio/novawatch/bot"
	"github.com/mindsgn-studio/novawatch/database"
	"github.com/mindsgn-studio/novawatch/internal/config"
	"github.com/mindsgn-studio/novawatch/internal/model"
	"github.com/mindsgn-studio/novawatch/internal/pkg/logger"
	"github.com/mindsgn-studio/novawatch/scraper"
	"github.com/mindsgn-studio/novawatch/vending"
	"github.com/mindsgn-studio/novawatch/watch"
)

func main() {
	itemID := flag.Int("item", 0, "scrape a single item ID and print the parsed listing")
	flag.Parse()

	load := config.LoadConfig
	if *itemID > 0 {
		load = config.LoadScraperConfig
	}
	cfg, err := load()
	if err != nil {
		logger.NewDefault("info").Error("config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	appLogger := logger.NewDefault(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if *itemID > 0 {
		err = probe(ctx, cfg, *itemID, appLogger)
	} else {
		err = checkOnce(ctx, cfg, appLogger)
	}
	stop()
	if err != nil {
		appLogger.Error("check failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func checkOnce(ctx context.Context, cfg model.Config, logger *slog.Logger) error {
	store, err := database.NewStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect to mongodb: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			logger.Warn("error disconnecting mongo", slog.String("error", err.Error()))
		}
	}()

	// Direct messages go through the REST API, so the gateway stays closed.
	discord, err := bot.New(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("create discord bot: %w", err)
	}

	watcher := watch.New(cfg, store, scraper.New(cfg, logger), discord, nil, logger)
	stats := watcher.RunCycle(ctx)
	fmt.Printf("items=%d scraped=%d skipped=%d failed=%d alerts=%d\n",
		stats.Items, stats.Scraped, stats.Skipped, stats.Failed, stats.Alerts)
	return nil
}

func probe(ctx context.Context, cfg model.Config, itemID int, logger *slog.Logger) error {
	session, err := scraper.New(cfg, logger).Open(ctx)
	if err != nil {
		return fmt.Errorf("open scraper: %w", err)
	}
	defer session.Close()

	itemCtx, cancel := context.WithTimeout(ctx, cfg.ItemTimeout)
	defer cancel()
	listing, err := session.Scrape(itemCtx, itemID)
	if err != nil {
		return fmt.Errorf("scrape item %d: %w", itemID, err)
	}

	fmt.Printf("%s (%d): %d offers\n", listing.Name, itemID, len(listing.Offers))
	for _, offer := range listing.Offers {
		price, perr := vending.SanitizePrice(offer.Price)
		location, lerr := vending.MapPosition(offer.Location)
		if perr != nil || lerr != nil {
			fmt.Printf("  %q %q (unparsable)\n", offer.Price, offer.Location)
			continue
		}
		fmt.Printf("  %sz  %s\n", vending.FormatPrice(price), location)
	}
	return nil
}
