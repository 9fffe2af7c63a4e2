// cmd/detector is the live 5/1 SLOB detection engine. It consumes a
// candle stream (WebSocket feed or Redis Stream), runs the multi-stage
// setup detector, and publishes completed setups and invalidations to
// SQLite, Redis, notifications and the order dispatcher.
//
// Usage:
//
//	go run ./cmd/detector --config=config.yaml
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"slobengine/config"
	"slobengine/internal/detect"
	"slobengine/internal/dispatch"
	"slobengine/internal/logger"
	"slobengine/internal/marketdata/bus"
	"slobengine/internal/marketdata/feed"
	"slobengine/internal/metrics"
	"slobengine/internal/model"
	"slobengine/internal/notification"
	"slobengine/internal/session"
	"slobengine/internal/stats"
	redisstore "slobengine/internal/store/redis"
	sqlitestore "slobengine/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfgPath := flag.String("config", "", "Path to YAML config (empty = defaults + env)")
	seekLatest := flag.Bool("seek-latest", false, "Skip the Redis stream backlog and start from new candles")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("[detector] config: %v", err)
	}

	slogger := logger.Init("detector", slog.LevelInfo)
	slogger.Info("starting", "symbol", cfg.Symbol, "timezone", cfg.Timezone)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("[detector] timezone: %v", err)
	}
	accWin, brWin, err := cfg.Windows()
	if err != nil {
		log.Fatalf("[detector] session windows: %v", err)
	}

	tracker := session.NewTracker(accWin, brWin, loc)
	manager, err := detect.NewManager(cfg.Detect, tracker)
	if err != nil {
		log.Fatalf("[detector] manager init failed: %v", err)
	}

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.NewServer(cfg.Metrics.Addr, health)
		metricsSrv.Start()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite journal (off hot path) ----
	if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLite.Path})
	if err != nil {
		log.Fatalf("[detector] sqlite init failed: %v", err)
	}
	defer sqlWriter.Close()
	sqlWriter.OnCommit = func(n int, d time.Duration) {
		prom.SQLiteCommitDur.Observe(d.Seconds())
	}
	health.SetSQLiteOK(true)
	if last, err := sqlWriter.GetLastTimestamp(cfg.Symbol); err != nil {
		log.Printf("[detector] WARNING: archive tail lookup failed: %v", err)
	} else if last > 0 {
		log.Printf("[detector] sqlite writer ready, archive for %s resumes after %s",
			cfg.Symbol, time.Unix(last, 0).In(loc).Format(time.RFC3339))
	} else {
		log.Println("[detector] sqlite writer ready, empty archive")
	}

	// A read handle on the same journal: seeds dispatch idempotency and
	// guards against re-publishing setups re-derived from replayed candles.
	journal, err := sqlitestore.NewReader(cfg.SQLite.Path)
	if err != nil {
		log.Fatalf("[detector] sqlite reader init failed: %v", err)
	}
	defer journal.Close()

	// ---- Redis publisher (optional) ----
	var redisWriter *redisstore.Writer
	if cfg.Redis.Enabled {
		redisWriter, err = redisstore.New(redisstore.WriterConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Printf("[detector] WARNING: redis init failed: %v (continuing without redis)", err)
			health.SetRedisConnected(false)
		} else {
			redisWriter.OnPublish = func(d time.Duration) {
				prom.RedisWriteDur.Observe(d.Seconds())
			}
			health.SetRedisConnected(true)
			log.Println("[detector] redis writer ready")
		}
	}

	if redisWriter != nil {
		health.StartLivenessChecker(ctx, redisWriter.Client(), sqlWriter.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, sqlWriter.DB(), 10*time.Second)
	}

	// ---- Notifier ----
	var notifier notification.Notifier
	switch {
	case cfg.Notification.TelegramToken != "":
		notifier = notification.NewTelegramNotifier(
			cfg.Notification.TelegramToken, cfg.Notification.TelegramChatID)
		log.Println("[detector] telegram notifications enabled")
	case cfg.Notification.WebhookURL != "":
		notifier = notification.NewWebhookNotifier(cfg.Notification.WebhookURL)
		log.Println("[detector] webhook notifications enabled")
	default:
		notifier = notification.NewLogNotifier()
	}

	// ---- Order dispatcher (paper), seeded from the journal so a restart
	// never re-places a setup already dispatched ----
	var dispatcher *dispatch.Dispatcher
	if cfg.Dispatch.Enabled {
		seed, err := journalSetupIDs(journal, cfg.Symbol)
		if err != nil {
			log.Printf("[detector] WARNING: journal seed failed: %v (dispatching unseeded)", err)
		}
		dispatcher = dispatch.New(dispatch.NewPaperBackend(), cfg.Dispatch.BufferSize, seed)
		dispatcher.OnDuplicate = func(string) { prom.DispatchDuplicate.Inc() }
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case r := <-dispatcher.Results():
					log.Printf("[detector] dispatch %s: order=%s setup=%s %s",
						r.Status, r.OrderID, r.Setup.ID, r.Message)
				}
			}
		}()
		log.Printf("[detector] paper dispatch enabled (%d journaled setups suppressed)", len(seed))
	}

	// ---- Stats ----
	collector := stats.NewCollector()

	// ---- Manager hooks: every downstream effect hangs off these ----
	manager.OnBreach = func(dir model.Direction) {
		prom.BreachesTotal.WithLabelValues(string(dir)).Inc()
		collector.BreachDetected(dir)
	}
	manager.OnComplete = func(s model.Setup) {
		// Candles replayed from the stream re-derive old setups; the
		// journal decides whether this one already went out.
		if seen, err := journal.HasSetup(s.ID); err != nil {
			log.Printf("[detector] journal lookup failed for %s: %v", s.ID, err)
		} else if seen {
			log.Printf("[detector] setup %s already journaled, skipping re-publish", s.ID)
			return
		}
		prom.SetupsCompleted.Inc()
		collector.SetupCompleted(s)

		tctx := logger.WithTraceID(ctx, logger.GenerateTraceID(s.ID, s.CompletedAt))
		attrs := []any{
			"id", s.ID, "direction", string(s.Direction),
			"entry", s.EntryPrice, "sl", s.SLPrice, "tp", s.TPPrice,
			"rr", s.RiskRewardRatio, "quality", s.ConsolidationQuality,
		}
		slogger.Info("setup complete", append(attrs, logger.LogWithTrace(tctx)...)...)

		if err := sqlWriter.SaveSetup(s); err != nil {
			log.Printf("[detector] setup journal write failed: %v", err)
		}
		if redisWriter != nil {
			redisWriter.PublishSetup(tctx, s)
		}
		if err := notifier.Send(tctx, notification.ForSetup(s)); err != nil {
			log.Printf("[detector] notification failed: %v", err)
		}
		if dispatcher != nil {
			prom.DispatchTotal.Inc()
			dispatcher.Dispatch(tctx, s)
		}
	}
	manager.OnInvalidate = func(inv model.Invalidation) {
		prom.SetupsInvalid.WithLabelValues(inv.Reason).Inc()
		collector.SetupInvalidated(inv)
		if err := sqlWriter.SaveInvalidation(inv); err != nil {
			log.Printf("[detector] invalidation journal write failed: %v", err)
		}
		if redisWriter != nil {
			redisWriter.PublishInvalidation(ctx, inv)
		}
	}
	health.SetDetectorOK(true)

	// ---- Candle pipeline: source -> fanout -> {detector, sqlite archive} ----
	candleCh := make(chan model.Candle, cfg.Feed.BufferSize)

	fanout := bus.New(cfg.Feed.BufferSize)
	fanout.OnDrop = func(subscriberIdx int) {
		prom.FanoutDropsTotal.WithLabelValues(strconv.Itoa(subscriberIdx)).Inc()
	}
	detectCh := fanout.SubscribeBlocking()
	archiveCh := fanout.Subscribe()
	go fanout.Run(ctx, candleCh)
	go sqlWriter.Run(ctx, archiveCh)

	// Sample subscriber queue depths so saturation shows up before drops do.
	go func() {
		tick := time.NewTicker(15 * time.Second)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				for i, st := range fanout.ChannelStats() {
					prom.FanoutQueueDepth.WithLabelValues(strconv.Itoa(i)).Set(float64(st.Len))
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-detectCh:
				if !ok {
					return
				}
				start := time.Now()
				// Downstream effects are delivered through the manager
				// hooks; the returned result is for callers that poll.
				_, err := manager.Process(c)
				prom.DetectDur.Observe(time.Since(start).Seconds())
				if err != nil {
					prom.CandlesRejected.Inc()
					log.Printf("[detector] candle rejected: %v", err)
					continue
				}
				prom.CandlesTotal.Inc()
				prom.ActiveCandidates.Set(float64(manager.ActiveCount()))
				collector.CandleProcessed()
				health.SetLastCandleTime(c.TS)
			}
		}
	}()

	// ---- Candle source: Redis Stream or WebSocket feed ----
	if cfg.Redis.Enabled && cfg.Redis.CandleStream != "" {
		source, err := redisstore.NewSource(redisstore.SourceConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Stream:   cfg.Redis.CandleStream,
		})
		if err != nil {
			log.Fatalf("[detector] redis source init failed: %v", err)
		}
		if *seekLatest {
			source.SeekLatest()
		}
		health.SetFeedConnected(true)
		go func() {
			defer source.Close()
			if err := source.Run(ctx, candleCh); err != nil {
				log.Printf("[detector] redis source stopped: %v", err)
				health.SetFeedConnected(false)
			}
		}()
		log.Printf("[detector] consuming candles from redis stream %q", cfg.Redis.CandleStream)
	} else {
		ingest, err := feed.New(feed.Config{
			URL:               cfg.Feed.URL,
			Interval:          cfg.Feed.Interval,
			ReconnectDelay:    cfg.Feed.ReconnectDelay,
			MaxReconnectDelay: cfg.Feed.MaxReconnectDelay,
			BufferSize:        cfg.Feed.BufferSize,
		})
		if err != nil {
			log.Fatalf("[detector] feed init failed: %v", err)
		}
		ingest.OnReconnect = func() { prom.WSReconnects.Inc() }
		ingest.OnGap = func(missing int) { prom.FeedGapsTotal.Add(float64(missing)) }
		ingest.OnConnState = health.SetFeedConnected
		ingest.OnBackpressure = func() { prom.RingBufOverflow.Inc() }
		go func() {
			if err := ingest.Start(ctx, candleCh); err != nil {
				log.Printf("[detector] feed stopped: %v", err)
				health.SetFeedConnected(false)
			}
		}()
		log.Printf("[detector] consuming candles from %s", cfg.Feed.URL)
	}

	log.Printf("[detector] pipeline ready: %s accumulation=%s breakout=%s",
		cfg.Symbol, accWin, brWin)

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[detector] shutdown signal received, cleaning up...")
	cancel()

	snap := collector.Snapshot()
	slogger.Info("session stats",
		"candles", snap.CandlesProcessed,
		"breaches", snap.BreachesDetected,
		"completed", snap.SetupsCompleted,
		"invalidated", snap.SetupsInvalidated)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if metricsSrv != nil {
		metricsSrv.Stop(shutdownCtx)
	}
	if redisWriter != nil {
		redisWriter.Close()
	}
	log.Println("[detector] shutdown complete.")
}

// journalSetupIDs returns the IDs of setups already persisted for the
// symbol, used to seed dispatch idempotency across restarts.
func journalSetupIDs(journal *sqlitestore.Reader, symbol string) ([]string, error) {
	setups, err := journal.ReadSetups(symbol)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(setups))
	for _, s := range setups {
		ids = append(ids, s.ID)
	}
	return ids, nil
}
