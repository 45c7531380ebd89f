package model

import "time"

type Config struct {
	MongoURI    string
	DBName      string
	TrackedColl string

	DiscordToken string
	GuildID      string

	BrowserBin      string
	UserDataDir     string
	BrowserHeadless bool
	ScraperBackend  string
	BaseURL         string
	UserAgent       string

	CronSchedule string
	RunOnStart   bool
	SettleDelay  time.Duration
	ItemTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	CycleLockTTL  time.Duration

	MetricsAddr string
	LogLevel    string
}
