// Package config loads process configuration from the environment and the
// instrument universe from YAML.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all stage configuration loaded from environment variables.
type Config struct {
	// SQLite databases, one per stage output.
	TicksDB     string `env:"TICKS_DB" envDefault:"data/ticks.db"`
	CandlesDB   string `env:"CANDLES_DB" envDefault:"data/minute_candles.db"`
	OIDB        string `env:"OI_DB" envDefault:"data/oi_analysis.db"`
	AnalyticsDB string `env:"ANALYTICS_DB" envDefault:"data/market_analytics.db"`
	AlertsDB    string `env:"ALERTS_DB" envDefault:"data/alerts_pro.db"`

	// Live fan-out.
	RedisEnabled     bool          `env:"REDIS_ENABLED" envDefault:"true"`
	RedisAddr        string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	RedisMaxFailures int           `env:"REDIS_MAX_FAILURES" envDefault:"5"`
	RedisResetAfter  time.Duration `env:"REDIS_RESET_AFTER" envDefault:"10s"`
	RedisMaxBuffered int           `env:"REDIS_MAX_BUFFERED" envDefault:"10000"`

	// Stage loops.
	CandleInterval       time.Duration `env:"CANDLE_INTERVAL" envDefault:"5s"`
	OIInterval           time.Duration `env:"OI_INTERVAL" envDefault:"5s"`
	AnalyticsInterval    time.Duration `env:"ANALYTICS_INTERVAL" envDefault:"5s"`
	AlertInterval        time.Duration `env:"ALERT_INTERVAL" envDefault:"5s"`
	MaxConsecutiveErrors int           `env:"MAX_CONSECUTIVE_ERRORS" envDefault:"10"`
	RetryPause           time.Duration `env:"RETRY_PAUSE" envDefault:"5s"`
	AlertCatchUp         int           `env:"ALERT_CATCH_UP" envDefault:"5"`
	MarketHoursOnly      bool          `env:"MARKET_HOURS_ONLY" envDefault:"false"`
	ExtraHolidays        []string      `env:"EXTRA_HOLIDAYS" envSeparator:","`

	// Tick feed.
	TickFeedURL    string        `env:"TICK_FEED_URL" envDefault:"ws://localhost:9001/ws"`
	TickServerAddr string        `env:"TICK_SERVER_ADDR" envDefault:":9001"`
	TickServerRate time.Duration `env:"TICK_SERVER_RATE" envDefault:"250ms"`

	// Delivery.
	TelegramToken  string `env:"TELEGRAM_TOKEN"`
	TelegramChatID string `env:"TELEGRAM_CHAT_ID"`
	WebhookURL     string `env:"ALERT_WEBHOOK_URL"`

	// Observability.
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	UniversePath string `env:"UNIVERSE_PATH"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.MaxConsecutiveErrors <= 0 {
		return nil, fmt.Errorf("parse config: MAX_CONSECUTIVE_ERRORS must be positive, got %d", cfg.MaxConsecutiveErrors)
	}
	return cfg, nil
}
