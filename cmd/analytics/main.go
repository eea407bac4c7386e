// cmd/analytics computes the indicator basket, sector rollups and market
// direction for every new candle minute, and fans rows out over Redis.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"trading-analyticsv1/config"
	"trading-analyticsv1/internal/analytics"
	"trading-analyticsv1/internal/logger"
	"trading-analyticsv1/internal/markethours"
	"trading-analyticsv1/internal/metrics"
	"trading-analyticsv1/internal/pipeline"
	redisstore "trading-analyticsv1/internal/store/redis"
	sqlitestore "trading-analyticsv1/internal/store/sqlite"
)

const stage = "analytics"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	if err := run(); err != nil {
		log.Printf("[analytics] fatal: %v", err)
		os.Exit(1)
	}
	log.Println("[analytics] stopped")
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slogger := logger.Init("analytics", logger.ParseLevel(cfg.LogLevel))
	u, err := config.LoadUniverse(cfg.UniversePath)
	if err != nil {
		return err
	}
	if err := markethours.AddHolidays(cfg.ExtraHolidays); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.MarketHoursOnly {
		log.Printf("[analytics] gated on market hours: %s", markethours.StatusString(time.Now()))
	}

	// ---- Stores ----
	os.MkdirAll(filepath.Dir(cfg.AnalyticsDB), 0o755)
	candles, err := sqlitestore.NewCandleStore(cfg.CandlesDB)
	if err != nil {
		return fmt.Errorf("candle store: %w", err)
	}
	defer candles.Close()
	oi, err := sqlitestore.NewOIStore(cfg.OIDB)
	if err != nil {
		return fmt.Errorf("oi store: %w", err)
	}
	defer oi.Close()
	store, err := sqlitestore.NewAnalyticsStore(cfg.AnalyticsDB)
	if err != nil {
		return fmt.Errorf("analytics store: %w", err)
	}
	defer store.Close()

	// ---- Metrics & health ----
	prom := metrics.NewMetrics(stage, prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus(stage)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Stop(shutdownCtx)
	}()

	svc := analytics.NewService(candles, oi, store, u)

	// ---- Redis fan-out (optional) ----
	var rdb *goredis.Client
	if cfg.RedisEnabled {
		pub, err := redisstore.NewPublisher(redisstore.WriterConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Printf("[analytics] WARNING: redis init failed: %v (continuing without redis)", err)
		} else {
			defer pub.Close()
			rdb = pub.Client()
			health.RequireRedis = true
			health.SetRedisConnected(true)

			cb := redisstore.NewCircuitBreaker(cfg.RedisMaxFailures, cfg.RedisResetAfter)
			cb.OnStateChange = func(from, to redisstore.State) {
				prom.RedisCircuitBreakerState.Set(float64(to))
				if to == redisstore.StateOpen {
					prom.RedisCircuitBreakerTrips.Inc()
				}
				log.Printf("[analytics] redis breaker %s -> %s", from, to)
			}
			buffered := redisstore.NewBufferedPublisher(ctx, pub, cb, cfg.RedisMaxBuffered)
			buffered.OnBuffer = prom.RedisBufferedWrites.Inc
			svc.Publisher = buffered
		}
	}
	health.StartLivenessChecker(ctx, rdb, []*sql.DB{candles.DB(), oi.DB(), store.DB()}, 10*time.Second)

	// ---- Restart recovery ----
	if err := svc.Warmup(ctx); err != nil {
		return fmt.Errorf("warmup: %w", err)
	}
	log.Printf("[analytics] warmed %d instruments (window 1m=%d 5m=%d)",
		svc.Engine().Instruments(), u.Window1m, u.Window5m)

	runner := &pipeline.Runner{
		Stage:                stage,
		Interval:             cfg.AnalyticsInterval,
		RetryPause:           cfg.RetryPause,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
		Cycle: func(ctx context.Context, _ time.Time) (int, error) {
			return svc.RunCycle(ctx)
		},
		Open:   markethours.SessionGate(cfg.MarketHoursOnly),
		Logger: slogger,
		Observe: func(res pipeline.Result) {
			prom.ObserveCycle(res.Elapsed, res.Rows, res.Err)
			wm, _ := store.LastMinute(ctx)
			prom.ObserveWatermark(wm, time.Now(), markethours.IST)
			health.SetCycle(res.Started, wm, res.Err)
		},
	}
	return runner.Run(ctx)
}
