package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mindsgn-studio/novawatch/internal/model"
	"github.com/spf13/viper"
)

const (
	DefaultDBName       = "novawatch"
	DefaultTrackedColl  = "tracked"
	DefaultBaseURL      = "https://www.novaragnarok.com"
	DefaultCronSchedule = "*/5 * * * *"
	DefaultSettleDelay  = time.Second
	DefaultItemTimeout  = 60 * time.Second
	DefaultCycleLockTTL = 10 * time.Minute
	DefaultMetricsAddr  = ":2112"
	DefaultUserAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	BackendBrowser = "browser"
	BackendHTTP    = "http"
)

var (
	ErrMissingMongoURI     = errors.New("MONGODB_URI not set")
	ErrMissingDiscordToken = errors.New("DISCORD_TOKEN not set")
	ErrMissingGuildID      = errors.New("SERVER_ID not set")
)

func LoadConfig() (model.Config, error) {
	// load .env if present but don't error if not present
	_ = godotenv.Load()

	return fromEnv(newViper())
}

// LoadScraperConfig reads the same settings as LoadConfig but does not
// require the MongoDB and Discord credentials. Only scraping works with it.
func LoadScraperConfig() (model.Config, error) {
	_ = godotenv.Load()

	return settingsFromEnv(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	v.SetDefault("db_name", "")
	v.SetDefault("browser_headless", true)
	v.SetDefault("scraper_backend", BackendBrowser)
	v.SetDefault("vending_base_url", DefaultBaseURL)
	v.SetDefault("user_agent", DefaultUserAgent)
	v.SetDefault("cron_schedule", DefaultCronSchedule)
	v.SetDefault("run_on_start", false)
	v.SetDefault("settle_delay", DefaultSettleDelay)
	v.SetDefault("item_timeout", DefaultItemTimeout)
	v.SetDefault("cycle_lock_ttl", DefaultCycleLockTTL)
	v.SetDefault("metrics_addr", DefaultMetricsAddr)
	v.SetDefault("log_level", "info")
	return v
}

func fromEnv(v *viper.Viper) (model.Config, error) {
	mongoURI := v.GetString("mongodb_uri")
	if mongoURI == "" {
		return model.Config{}, ErrMissingMongoURI
	}

	token := v.GetString("discord_token")
	if token == "" {
		return model.Config{}, ErrMissingDiscordToken
	}

	guild := v.GetString("server_id")
	if guild == "" {
		return model.Config{}, ErrMissingGuildID
	}

	cfg, err := settingsFromEnv(v)
	if err != nil {
		return model.Config{}, err
	}
	cfg.MongoURI = mongoURI
	cfg.DiscordToken = token
	cfg.GuildID = guild
	return cfg, nil
}

func settingsFromEnv(v *viper.Viper) (model.Config, error) {
	db := v.GetString("db_name")
	if db == "" {
		db = v.GetString("mongo_db_name")
	}
	if db == "" {
		db = DefaultDBName
	}

	backend := strings.ToLower(strings.TrimSpace(v.GetString("scraper_backend")))
	if backend == "" {
		backend = BackendBrowser
	}
	if backend != BackendBrowser && backend != BackendHTTP {
		return model.Config{}, fmt.Errorf("SCRAPER_BACKEND: unknown backend %q", backend)
	}

	itemTimeout := v.GetDuration("item_timeout")
	if itemTimeout <= 0 {
		itemTimeout = DefaultItemTimeout
	}
	settle := v.GetDuration("settle_delay")
	if settle < 0 {
		settle = 0
	}
	schedule := strings.TrimSpace(v.GetString("cron_schedule"))
	if schedule == "" {
		schedule = DefaultCronSchedule
	}
	lockTTL := v.GetDuration("cycle_lock_ttl")
	if lockTTL <= 0 {
		lockTTL = DefaultCycleLockTTL
	}

	return model.Config{
		DBName:      db,
		TrackedColl: DefaultTrackedColl,

		BrowserBin:      v.GetString("exec_path"),
		UserDataDir:     v.GetString("user_dir"),
		BrowserHeadless: v.GetBool("browser_headless"),
		ScraperBackend:  backend,
		BaseURL:         strings.TrimRight(v.GetString("vending_base_url"), "/"),
		UserAgent:       v.GetString("user_agent"),

		CronSchedule: schedule,
		RunOnStart:   v.GetBool("run_on_start"),
		SettleDelay:  settle,
		ItemTimeout:  itemTimeout,

		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		CycleLockTTL:  lockTTL,

		MetricsAddr: v.GetString("metrics_addr"),
		LogLevel:    v.GetString("log_level"),
	}, nil
}
