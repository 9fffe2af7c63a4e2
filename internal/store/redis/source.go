package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"slobengine/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// SourceConfig configures the Redis candle source.
type SourceConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string // candle stream key, e.g. "candle:5m:NIFTY"
}

// Source consumes finalized candles from a Redis Stream. It is one of the
// two feed implementations the detector can run on (the other being the
// WebSocket feed).
type Source struct {
	client *goredis.Client
	stream string
	lastID string
}

// NewSource connects and positions the cursor at the start of the stream.
func NewSource(cfg SourceConfig) (*Source, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis source ping: %w", err)
	}

	log.Printf("[redis-source] consuming stream %s from %s", cfg.Stream, cfg.Addr)
	return &Source{client: client, stream: cfg.Stream, lastID: "0"}, nil
}

// SeekLatest positions the cursor so only candles arriving after now are
// delivered.
func (s *Source) SeekLatest() { s.lastID = "$" }

// Run blocks on XREAD and sends parsed candles to out, in stream order.
// Returns when ctx is cancelled. Malformed entries are logged and skipped
// so one bad producer write cannot wedge the feed.
func (s *Source) Run(ctx context.Context, out chan<- model.Candle) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		res, err := s.client.XRead(ctx, &goredis.XReadArgs{
			Streams: []string{s.stream, s.lastID},
			Count:   100,
			Block:   5 * time.Second,
		}).Result()
		if err != nil {
			if err == goredis.Nil {
				continue // block timeout, re-poll
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[redis-source] XREAD error: %v", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				s.lastID = msg.ID
				c, err := parseCandle(msg)
				if err != nil {
					log.Printf("[redis-source] skipping entry %s: %v", msg.ID, err)
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func parseCandle(msg goredis.XMessage) (model.Candle, error) {
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return model.Candle{}, fmt.Errorf("entry has no data field")
	}
	var c model.Candle
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return model.Candle{}, fmt.Errorf("unmarshal candle: %w", err)
	}
	return c, nil
}

// Close closes the client.
func (s *Source) Close() error {
	return s.client.Close()
}
