package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trading-analyticsv1/internal/model"
)

// Metrics holds the Prometheus metrics of one pipeline stage. Every series
// carries a constant "stage" label.
type Metrics struct {
	Stage string

	CyclesTotal   prometheus.Counter
	CycleErrors   prometheus.Counter
	CycleDuration prometheus.Histogram
	RowsWritten   prometheus.Counter
	WatermarkLag  prometheus.Gauge

	// Ingestion
	TicksRecorded  prometheus.Counter
	MalformedTicks prometheus.Counter
	WSReconnects   prometheus.Counter

	// Alert engine
	AlertsTotal      *prometheus.CounterVec // labels: grade
	AlertDecisions   *prometheus.CounterVec // labels: outcome
	NotifyFailures   prometheus.Counter
	OISkippedBuckets prometheus.Counter

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisBufferedWrites      prometheus.Counter

	// Market session
	MarketState prometheus.Gauge // 0=closed, 1=open
}

// NewMetrics creates the metrics of stage and registers them with reg.
// A nil reg uses the default registerer.
func NewMetrics(stage string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := prometheus.Labels{"stage": stage}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help, ConstLabels: labels})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help, ConstLabels: labels})
	}

	m := &Metrics{
		Stage:        stage,
		CyclesTotal:  counter("pipeline_cycles_total", "Completed pipeline cycles"),
		CycleErrors:  counter("pipeline_cycle_errors_total", "Pipeline cycles that returned an error"),
		RowsWritten:  counter("pipeline_rows_written_total", "Rows committed by the stage"),
		WatermarkLag: gauge("pipeline_watermark_lag_seconds", "Wall clock minus the stage's committed watermark"),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "pipeline_cycle_duration_seconds",
			Help:        "Pipeline cycle latency",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}),

		TicksRecorded:  counter("pipeline_ticks_recorded_total", "Ticks appended to the tick store"),
		MalformedTicks: counter("pipeline_malformed_ticks_total", "Ticks skipped because their payload did not parse"),
		WSReconnects:   counter("pipeline_ws_reconnects_total", "WebSocket reconnection attempts"),

		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "pipeline_alerts_total",
			Help:        "Persisted alerts by quality grade",
			ConstLabels: labels,
		}, []string{"grade"}),
		AlertDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "pipeline_alert_decisions_total",
			Help:        "Alert evaluations by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		NotifyFailures:   counter("pipeline_notify_failures_total", "Alert deliveries rejected by a notifier"),
		OISkippedBuckets: counter("pipeline_oi_skipped_buckets_total", "Futures buckets without a usable OI category"),

		RedisCircuitBreakerState: gauge("pipeline_redis_circuit_breaker_state", "Redis circuit breaker state (0=closed, 1=open, 2=half-open)"),
		RedisCircuitBreakerTrips: counter("pipeline_redis_circuit_breaker_trips_total", "Times the Redis circuit breaker tripped open"),
		RedisBufferedWrites:      counter("pipeline_redis_buffered_writes_total", "Publishes buffered locally while the breaker was open"),

		MarketState: gauge("pipeline_market_state", "Market session state (0=closed, 1=open)"),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.CycleErrors,
		m.CycleDuration,
		m.RowsWritten,
		m.WatermarkLag,
		m.TicksRecorded,
		m.MalformedTicks,
		m.WSReconnects,
		m.AlertsTotal,
		m.AlertDecisions,
		m.NotifyFailures,
		m.OISkippedBuckets,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisBufferedWrites,
		m.MarketState,
	)
	return m
}

// ObserveCycle records one cycle's outcome.
func (m *Metrics) ObserveCycle(elapsed time.Duration, rows int, err error) {
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.CycleErrors.Inc()
		return
	}
	m.RowsWritten.Add(float64(rows))
}

// ObserveWatermark sets the lag between now and a minute key interpreted in
// loc. Empty or unparsable watermarks are ignored.
func (m *Metrics) ObserveWatermark(watermark string, now time.Time, loc *time.Location) {
	if watermark == "" {
		return
	}
	t, err := time.ParseInLocation(model.MinuteLayout, watermark, loc)
	if err != nil {
		return
	}
	m.WatermarkLag.Set(now.Sub(t).Seconds())
}

// HealthStatus represents the health of one stage process.
type HealthStatus struct {
	mu sync.RWMutex

	Stage string

	// Which dependencies count toward overall health.
	RequireRedis bool
	RequireWS    bool

	WSConnected    bool
	RedisConnected bool
	SQLiteOK       bool

	LastCycleAt   time.Time
	LastCycleErr  string
	LastWatermark string

	// Liveness probe results
	RedisLatencyMs  float64
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
	StartedAt       time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus(stage string) *HealthStatus {
	return &HealthStatus{
		Stage:     stage,
		SQLiteOK:  true,
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetWSConnected(v bool) {
	h.mu.Lock()
	h.WSConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

// SetCycle records the end of a cycle.
func (h *HealthStatus) SetCycle(at time.Time, watermark string, err error) {
	h.mu.Lock()
	h.LastCycleAt = at
	if watermark != "" {
		h.LastWatermark = watermark
	}
	h.LastCycleErr = ""
	if err != nil {
		h.LastCycleErr = err.Error()
	}
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings every database and records the slowest latency. Any
// failure marks SQLite unhealthy.
func (h *HealthStatus) CheckSQLite(ctx context.Context, dbs ...*sql.DB) {
	ok := true
	var worst time.Duration
	for _, db := range dbs {
		start := time.Now()
		if err := db.PingContext(ctx); err != nil {
			ok = false
		}
		if d := time.Since(start); d > worst {
			worst = d
		}
	}

	h.mu.Lock()
	h.SQLiteOK = ok
	h.SQLiteLatencyMs = float64(worst.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, dbs []*sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if len(dbs) > 0 {
					h.CheckSQLite(probeCtx, dbs...)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.SQLiteOK || (h.RequireRedis && !h.RedisConnected) || (h.RequireWS && !h.WSConnected) || h.LastCycleErr != "" {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.SQLiteOK && (!h.RequireRedis || !h.RedisConnected) {
		overallStatus = "unhealthy"
	}

	lastCycle := ""
	if !h.LastCycleAt.IsZero() {
		lastCycle = h.LastCycleAt.Format(time.RFC3339)
	}

	status := struct {
		Status          string  `json:"status"`
		Stage           string  `json:"stage"`
		Uptime          string  `json:"uptime"`
		WSConnected     bool    `json:"ws_connected"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCycleAt     string  `json:"last_cycle_at"`
		LastCycleError  string  `json:"last_cycle_error,omitempty"`
		Watermark       string  `json:"watermark"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Stage:           h.Stage,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		WSConnected:     h.WSConnected,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCycleAt:     lastCycle,
		LastCycleError:  h.LastCycleErr,
		Watermark:       h.LastWatermark,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
