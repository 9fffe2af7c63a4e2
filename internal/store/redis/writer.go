// Package redis publishes detection output to Redis (setup stream +
// latest key + pubsub) and consumes the inbound candle stream.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"slobengine/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: a few trading days of setups is plenty
	setupStreamMaxLen = 10000
	defaultLatestTTL  = 30 * time.Minute
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer publishes completed setups and invalidation notices.
type Writer struct {
	client *goredis.Client

	// OnPublish is called with the pipeline round-trip time after each
	// setup publish (metrics hook).
	OnPublish func(d time.Duration)
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client}, nil
}

// Run reads completed setups from setupCh and publishes them.
// Blocks until ctx is cancelled or setupCh is closed.
func (w *Writer) Run(ctx context.Context, setupCh <-chan model.Setup) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-setupCh:
			if !ok {
				return
			}
			w.PublishSetup(ctx, s)
		}
	}
}

// PublishSetup performs the pipelined XADD + SET + PUBLISH for one setup.
func (w *Writer) PublishSetup(ctx context.Context, s model.Setup) {
	streamKey := "setup:" + s.Symbol
	latestKey := "setup:latest:" + s.Symbol
	pubsubCh := "pub:setup:" + s.Symbol
	jsonData := string(s.JSON())

	pipe := w.client.Pipeline()

	// XADD to stream with auto-trimming
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: streamKey,
		MaxLen: setupStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":   s.ID,
			"data": jsonData,
		},
	})

	// SET latest setup with TTL
	pipe.Set(ctx, latestKey, jsonData, defaultLatestTTL)

	// PUBLISH to pubsub channel
	pipe.Publish(ctx, pubsubCh, jsonData)

	start := time.Now()
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] setup publish error (id=%s): %v", s.ID, err)
		return
	}
	if w.OnPublish != nil {
		w.OnPublish(time.Since(start))
	}
}

// PublishInvalidation publishes one invalidation notice for diagnostics
// subscribers. Invalidations are high-volume and low-value, so they go to
// pubsub only (no stream).
func (w *Writer) PublishInvalidation(ctx context.Context, inv model.Invalidation) {
	payload := fmt.Sprintf(`{"id":%q,"symbol":%q,"reason":%q,"at":%q}`,
		inv.ID, inv.Symbol, inv.Reason, inv.At.UTC().Format(time.RFC3339))
	if err := w.client.Publish(ctx, "pub:invalidation:"+inv.Symbol, payload).Err(); err != nil {
		log.Printf("[redis] invalidation publish error (id=%s): %v", inv.ID, err)
	}
}

// Close closes the client.
func (w *Writer) Close() error {
	return w.client.Close()
}
