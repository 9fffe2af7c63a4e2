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
)

// Metrics holds all Prometheus metrics for the detection engine.
type Metrics struct {
	CandlesTotal     prometheus.Counter
	CandlesRejected  prometheus.Counter
	FeedGapsTotal    prometheus.Counter
	WSReconnects     prometheus.Counter
	BreachesTotal    *prometheus.CounterVec // labels: direction
	SetupsCompleted  prometheus.Counter
	SetupsInvalid    *prometheus.CounterVec // labels: reason
	ActiveCandidates prometheus.Gauge
	DetectDur        prometheus.Histogram

	RedisWriteDur   prometheus.Histogram
	SQLiteCommitDur prometheus.Histogram

	// Fan-out bus backpressure
	FanoutDropsTotal *prometheus.CounterVec // labels: subscriber
	FanoutQueueDepth *prometheus.GaugeVec   // labels: subscriber
	RingBufOverflow  prometheus.Counter

	DispatchTotal     prometheus.Counter
	DispatchDuplicate prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		CandlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slob_candles_total",
			Help: "Total candles processed by the detection engine",
		}),
		CandlesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slob_candles_rejected_total",
			Help: "Candles rejected as malformed or out of order",
		}),
		FeedGapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slob_feed_gaps_total",
			Help: "Missing candle buckets detected in the feed",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slob_ws_reconnects_total",
			Help: "Total WebSocket feed reconnection attempts",
		}),
		BreachesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slob_breaches_total",
			Help: "Liquidity breaches detected (by direction)",
		}, []string{"direction"}),
		SetupsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slob_setups_completed_total",
			Help: "Setups reaching COMPLETE with a full trade proposal",
		}),
		SetupsInvalid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slob_setups_invalidated_total",
			Help: "Candidates invalidated (by reason)",
		}, []string{"reason"}),
		ActiveCandidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slob_active_candidates",
			Help: "In-flight setup candidates",
		}),
		DetectDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slob_detect_duration_seconds",
			Help:    "Detection engine processing latency per candle",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
		}),
		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slob_redis_write_duration_seconds",
			Help:    "Redis setup publish latency",
			Buckets: prometheus.DefBuckets,
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slob_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slob_fanout_drops_total",
			Help: "Candles dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),
		FanoutQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "slob_fanout_queue_depth",
			Help: "Buffered candles per fan-out subscriber channel",
		}, []string{"subscriber"}),
		RingBufOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slob_ringbuf_overflow_total",
			Help: "Ring buffer push overflows (evicted candles)",
		}),
		DispatchTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slob_dispatch_total",
			Help: "Completed setups handed to the order dispatcher",
		}),
		DispatchDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slob_dispatch_duplicate_total",
			Help: "Dispatch attempts suppressed by the idempotency guard",
		}),
	}

	prometheus.MustRegister(
		m.CandlesTotal,
		m.CandlesRejected,
		m.FeedGapsTotal,
		m.WSReconnects,
		m.BreachesTotal,
		m.SetupsCompleted,
		m.SetupsInvalid,
		m.ActiveCandidates,
		m.DetectDur,
		m.RedisWriteDur,
		m.SQLiteCommitDur,
		m.FanoutDropsTotal,
		m.FanoutQueueDepth,
		m.RingBufOverflow,
		m.DispatchTotal,
		m.DispatchDuplicate,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected  bool      `json:"feed_connected"`
	LastCandleTime time.Time `json:"last_candle_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	DetectorOK     bool      `json:"detector_ok"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCandleTime(t time.Time) {
	h.mu.Lock()
	h.LastCandleTime = t
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

func (h *HealthStatus) SetDetectorOK(v bool) {
	h.mu.Lock()
	h.DetectorOK = v
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

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
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
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
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

	if !h.FeedConnected || !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.DetectorOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	candleAge := ""
	if !h.LastCandleTime.IsZero() {
		candleAge = time.Since(h.LastCandleTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		FeedConnected   bool    `json:"feed_connected"`
		LastCandleTime  string  `json:"last_candle_time"`
		CandleAge       string  `json:"candle_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		DetectorOK      bool    `json:"detector_ok"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected:   h.FeedConnected,
		LastCandleTime:  h.LastCandleTime.Format(time.RFC3339),
		CandleAge:       candleAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		DetectorOK:      h.DetectorOK,
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
