package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"trading-analyticsv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultLatestTTL = 30 * time.Minute
	alertsMaxLen     = 5000

	AlertsStream    = "alerts"
	AlertsChannel   = "pub:alerts"
	latestPrefix    = "analytics:latest:"
	analyticsPrefix = "pub:analytics:"
)

// WriterConfig configures the Redis connection.
type WriterConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// LatestKey is the key holding a symbol's most recent indicator row.
func LatestKey(symbol string) string { return latestPrefix + symbol }

// AnalyticsChannel is the pubsub channel for a symbol's rows.
func AnalyticsChannel(symbol string) string { return analyticsPrefix + symbol }

// Publisher fans analytics rows and alerts out to Redis. Failures are
// logged and never returned to the pipeline.
type Publisher struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// NewPublisher connects and pings the server.
func NewPublisher(cfg WriterConfig) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client}, nil
}

// PublishAnalytics writes the latest row of every symbol and publishes it,
// all in one pipeline.
func (p *Publisher) PublishAnalytics(ctx context.Context, rows []model.IndicatorRow) {
	if err := p.writeAnalytics(ctx, rows); err != nil {
		log.Printf("[redis] analytics pipeline error (%d rows): %v", len(rows), err)
	}
}

// PublishAlert appends the alert to the alerts stream and publishes it.
func (p *Publisher) PublishAlert(ctx context.Context, rec model.AlertRecord) {
	if err := p.writeAlert(ctx, rec.JSON()); err != nil {
		log.Printf("[redis] alert pipeline error for %s %s: %v", rec.Symbol, rec.Minute, err)
	}
}

func (p *Publisher) writeAnalytics(ctx context.Context, rows []model.IndicatorRow) error {
	if len(rows) == 0 {
		return nil
	}
	pipe := p.client.Pipeline()
	for i := range rows {
		data := string(rows[i].JSON())
		pipe.Set(ctx, LatestKey(rows[i].Symbol), data, defaultLatestTTL)
		pipe.Publish(ctx, AnalyticsChannel(rows[i].Symbol), data)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (p *Publisher) writeAlert(ctx context.Context, payload []byte) error {
	data := string(payload)
	pipe := p.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: AlertsStream,
		MaxLen: alertsMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": data},
	})
	pipe.Publish(ctx, AlertsChannel, data)
	_, err := pipe.Exec(ctx)
	return err
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
