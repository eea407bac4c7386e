// cmd/alertengine turns committed analytics minutes into confidence-graded
// alerts, persists them and delivers A+/A alerts to the configured notifiers.
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
	"trading-analyticsv1/internal/alert"
	"trading-analyticsv1/internal/logger"
	"trading-analyticsv1/internal/markethours"
	"trading-analyticsv1/internal/metrics"
	"trading-analyticsv1/internal/notification"
	"trading-analyticsv1/internal/pipeline"
	redisstore "trading-analyticsv1/internal/store/redis"
	sqlitestore "trading-analyticsv1/internal/store/sqlite"
)

const stage = "alerts"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	if err := run(); err != nil {
		log.Printf("[alertengine] fatal: %v", err)
		os.Exit(1)
	}
	log.Println("[alertengine] stopped")
}

func notifiers(cfg *config.Config) notification.Notifier {
	multi := notification.Multi{notification.NewLogNotifier()}
	if tg := notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID); tg.Enabled() {
		multi = append(multi, tg)
		log.Println("[alertengine] telegram delivery enabled")
	}
	if cfg.WebhookURL != "" {
		multi = append(multi, notification.NewWebhookNotifier(cfg.WebhookURL))
		log.Println("[alertengine] webhook delivery enabled")
	}
	return multi
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slogger := logger.Init("alertengine", logger.ParseLevel(cfg.LogLevel))
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
		log.Printf("[alertengine] gated on market hours: %s", markethours.StatusString(time.Now()))
	}

	// ---- Stores ----
	os.MkdirAll(filepath.Dir(cfg.AlertsDB), 0o755)
	src, err := sqlitestore.NewAnalyticsStore(cfg.AnalyticsDB)
	if err != nil {
		return fmt.Errorf("analytics store: %w", err)
	}
	defer src.Close()
	alerts, err := sqlitestore.NewAlertStore(cfg.AlertsDB)
	if err != nil {
		return fmt.Errorf("alert store: %w", err)
	}
	defer alerts.Close()

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

	// ---- Engine ----
	engine := alert.NewEngine(src, alerts, u.AlertSymbols)
	engine.CatchUp = cfg.AlertCatchUp
	engine.Notifier = notifiers(cfg)
	engine.OnDecision = func(d alert.Decision) {
		prom.AlertDecisions.WithLabelValues(d.Outcome).Inc()
		if d.Outcome == alert.OutcomeFired {
			prom.AlertsTotal.WithLabelValues(d.Grade).Inc()
		}
	}
	engine.OnDeliveryFailure = func(error) { prom.NotifyFailures.Inc() }

	// ---- Redis fan-out (optional) ----
	var rdb *goredis.Client
	if cfg.RedisEnabled {
		pub, err := redisstore.NewPublisher(redisstore.WriterConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Printf("[alertengine] WARNING: redis init failed: %v (continuing without redis)", err)
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
				log.Printf("[alertengine] redis breaker %s -> %s", from, to)
			}
			buffered := redisstore.NewBufferedPublisher(ctx, pub, cb, cfg.RedisMaxBuffered)
			buffered.OnBuffer = prom.RedisBufferedWrites.Inc
			engine.Publisher = buffered
		}
	}
	health.StartLivenessChecker(ctx, rdb, []*sql.DB{src.DB(), alerts.DB()}, 10*time.Second)

	runner := &pipeline.Runner{
		Stage:                stage,
		Interval:             cfg.AlertInterval,
		RetryPause:           cfg.RetryPause,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
		Cycle: func(ctx context.Context, _ time.Time) (int, error) {
			return engine.RunCycle(ctx)
		},
		Open:   markethours.SessionGate(cfg.MarketHoursOnly),
		Logger: slogger,
		Observe: func(res pipeline.Result) {
			prom.ObserveCycle(res.Elapsed, res.Rows, res.Err)
			wm, _ := alerts.Watermark(ctx)
			prom.ObserveWatermark(wm, time.Now(), markethours.IST)
			health.SetCycle(res.Started, wm, res.Err)
		},
	}

	log.Printf("[alertengine] symbols=%d catch-up=%d", len(u.AlertSymbols), engine.CatchUp)
	return runner.Run(ctx)
}
