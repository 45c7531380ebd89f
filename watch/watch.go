package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mindsgn-studio/novawatch/internal/config"
	"github.com/mindsgn-studio/novawatch/internal/model"
	"github.com/mindsgn-studio/novawatch/internal/pkg/cyclelock"
	"github.com/mindsgn-studio/novawatch/internal/pkg/metrics"
	"github.com/mindsgn-studio/novawatch/scraper"
	"github.com/mindsgn-studio/novawatch/vending"
	"github.com/robfig/cron/v3"
)

type Store interface {
	ListAll(ctx context.Context) []model.TrackedItem
	SetDisplayName(ctx context.Context, userID string, itemID int, name string) bool
}

type Alerter interface {
	SendAlert(ctx context.Context, alert model.Alert) error
}

// CycleStats summarizes one polling cycle. Alerts counts prices under the
// threshold that were handed to the Alerter without error.
type CycleStats struct {
	Items   int
	Scraped int
	Skipped int
	Failed  int
	Alerts  int
}

type Watcher struct {
	store       Store
	scraper     scraper.Scraper
	alerter     Alerter
	locker      cyclelock.Locker
	logger      *slog.Logger
	schedule    string
	runOnStart  bool
	itemTimeout time.Duration
}

func New(cfg model.Config, store Store, sc scraper.Scraper, alerter Alerter, locker cyclelock.Locker, logger *slog.Logger) *Watcher {
	if locker == nil {
		locker = cyclelock.NewLocal()
	}
	schedule := cfg.CronSchedule
	if schedule == "" {
		schedule = config.DefaultCronSchedule
	}
	itemTimeout := cfg.ItemTimeout
	if itemTimeout <= 0 {
		itemTimeout = config.DefaultItemTimeout
	}
	return &Watcher{
		store:       store,
		scraper:     sc,
		alerter:     alerter,
		locker:      locker,
		logger:      logger.With(slog.String("component", "watch")),
		schedule:    schedule,
		runOnStart:  cfg.RunOnStart,
		itemTimeout: itemTimeout,
	}
}

// Start runs a cycle on every tick of the cron schedule until ctx is done.
// It returns once the scheduler has stopped and any running cycle finished.
func (w *Watcher) Start(ctx context.Context) error {
	cl := cronLogger{logger: w.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(w.schedule, func() { w.RunGuarded(ctx) }); err != nil {
		return fmt.Errorf("cron schedule %q: %w", w.schedule, err)
	}

	w.logger.Info("watcher started", slog.String("schedule", w.schedule))
	if w.runOnStart {
		w.RunGuarded(ctx)
	}
	c.Start()

	<-ctx.Done()
	w.logger.Info("stopping watcher")
	<-c.Stop().Done()
	return nil
}

// RunGuarded runs one cycle if no other cycle holds the lock.
func (w *Watcher) RunGuarded(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	release, ok, err := w.locker.TryLock(ctx)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		w.logger.Warn("could not acquire cycle lock", slog.String("error", err.Error()))
		return
	}
	if !ok {
		metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		w.logger.Info("previous cycle still running, skipping")
		return
	}
	defer release()

	w.RunCycle(ctx)
}

// RunCycle checks every tracked item once. One scraper session serves the
// whole cycle and is closed on every exit path.
func (w *Watcher) RunCycle(ctx context.Context) CycleStats {
	start := time.Now()
	items := w.store.ListAll(ctx)
	stats := CycleStats{Items: len(items)}

	if len(items) == 0 {
		metrics.CyclesTotal.WithLabelValues("idle").Inc()
		w.logger.Debug("nothing tracked, idle cycle")
		return stats
	}

	w.logger.Info("cycle started", slog.Int("items", len(items)))
	session, err := w.scraper.Open(ctx)
	if err != nil {
		stats.Failed = len(items)
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		w.logger.Error("open scraper session", slog.String("error", err.Error()))
		return stats
	}
	defer func() {
		if err := session.Close(); err != nil {
			w.logger.Warn("close scraper session", slog.String("error", err.Error()))
		}
	}()

	for i, item := range items {
		if ctx.Err() != nil {
			w.logger.Info("cycle interrupted", slog.Int("remaining", len(items)-i))
			break
		}
		w.processItem(ctx, session, item, &stats)
	}

	status := "completed"
	if ctx.Err() != nil {
		status = "canceled"
	}
	elapsed := time.Since(start)
	metrics.CyclesTotal.WithLabelValues(status).Inc()
	metrics.CycleDuration.Observe(elapsed.Seconds())
	w.logger.Info("cycle finished",
		slog.String("status", status),
		slog.Int("items", stats.Items),
		slog.Int("scraped", stats.Scraped),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed),
		slog.Int("alerts", stats.Alerts),
		slog.Duration("elapsed", elapsed))
	return stats
}

func (w *Watcher) processItem(ctx context.Context, session scraper.Session, item model.TrackedItem, stats *CycleStats) {
	log := w.logger.With(slog.String("uuid", item.UserID), slog.Int("id", item.ItemID))
	defer func() {
		if r := recover(); r != nil {
			stats.Failed++
			metrics.ItemsTotal.WithLabelValues("failed").Inc()
			log.Error("panic while checking item", slog.Any("panic", r))
		}
	}()

	itemCtx, cancel := context.WithTimeout(ctx, w.itemTimeout)
	defer cancel()

	listing, err := session.Scrape(itemCtx, item.ItemID)
	if err != nil {
		stats.Failed++
		metrics.ItemsTotal.WithLabelValues("failed").Inc()
		log.Warn("scrape failed", slog.String("error", err.Error()))
		return
	}
	stats.Scraped++

	if item.ItemName == "" && listing.Name != "" {
		w.store.SetDisplayName(ctx, item.UserID, item.ItemID, listing.Name)
		item.ItemName = listing.Name
	}

	if len(listing.Offers) == 0 {
		stats.Skipped++
		metrics.ItemsTotal.WithLabelValues("empty").Inc()
		log.Debug("nobody is vending this item")
		return
	}

	offer := listing.Offers[0]
	price, err := vending.SanitizePrice(offer.Price)
	if err != nil {
		stats.Skipped++
		metrics.ItemsTotal.WithLabelValues("unparsable").Inc()
		log.Warn("unparsable price", slog.String("raw", offer.Price), slog.String("error", err.Error()))
		return
	}
	location, err := vending.MapPosition(offer.Location)
	if err != nil {
		stats.Skipped++
		metrics.ItemsTotal.WithLabelValues("unparsable").Inc()
		log.Warn("unparsable location", slog.String("raw", offer.Location), slog.String("error", err.Error()))
		return
	}
	metrics.ItemsTotal.WithLabelValues("scraped").Inc()

	if price >= item.WantedPrice {
		log.Debug("price above threshold", slog.Int("price", price), slog.Int("wanted_price", item.WantedPrice))
		return
	}

	err = w.alerter.SendAlert(ctx, model.Alert{
		UserID:   item.UserID,
		ItemID:   item.ItemID,
		ItemName: item.ItemName,
		Price:    price,
		Location: location,
	})
	if err != nil {
		log.Warn("alert failed", slog.String("error", err.Error()))
		return
	}
	stats.Alerts++
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
