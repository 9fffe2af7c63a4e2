// Package feed provides a WebSocket candle feed client. It connects to a
// JSON candle server, reconnects with exponential backoff, and surfaces
// detected bucket gaps. The detector itself assumes a gap-free stream,
// so gaps are flagged here, at the edge.
//
// The expected JSON message format on the wire is identical to
// model.Candle:
//
//	{"symbol":"NIFTY","ts":"...","open":100,"high":101,"low":99.5,"close":100.5,"volume":1200}
package feed

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"time"

	"slobengine/internal/model"
	"slobengine/internal/ringbuf"

	"github.com/gorilla/websocket"
)

// Config holds configuration for the candle feed.
type Config struct {
	// URL of the candle WebSocket server, e.g. "ws://localhost:9001/ws"
	URL string

	// Interval is the expected candle bucket spacing, used for gap
	// detection. Zero disables gap detection.
	Interval time.Duration

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration

	// BufferSize is the capacity of the ring buffer between the socket
	// read loop and the downstream channel. Defaults to 1024. Rounded up
	// to a power of two.
	BufferSize int
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.BufferSize == 0 {
		c.BufferSize = 1024
	}
}

// Feed connects to a plain-JSON WebSocket candle server and pushes
// model.Candle values into candleCh. A single-producer single-consumer
// ring buffer sits between the socket read loop and the channel so a
// slow downstream never stalls the read loop into a server-side
// disconnect.
type Feed struct {
	cfg    Config
	ring   *ringbuf.Ring
	lastTS time.Time

	// Optional hooks.
	OnReconnect    func()
	OnGap          func(missing int) // called with the number of missing buckets
	OnConnState    func(connected bool)
	OnBackpressure func() // called each time the ring is found full
}

// New creates a new Feed. Returns an error if the URL is unparseable.
func New(cfg Config) (*Feed, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	return &Feed{cfg: cfg, ring: ringbuf.New(cfg.BufferSize)}, nil
}

// Start connects to the WebSocket and streams candles into candleCh.
// Blocks until ctx is cancelled. Reconnects automatically on disconnect.
func (f *Feed) Start(ctx context.Context, candleCh chan<- model.Candle) error {
	go f.drain(ctx, candleCh)

	delay := f.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := f.runOnce(ctx, candleCh)
		if err == nil {
			// Context cancelled cleanly
			return nil
		}

		log.Printf("[feed] disconnected (%v), reconnecting in %s...", err, delay)
		if f.OnReconnect != nil {
			f.OnReconnect()
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		// Exponential backoff
		delay *= 2
		if delay > f.cfg.MaxReconnectDelay {
			delay = f.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or
// ctx cancel.
func (f *Feed) runOnce(ctx context.Context, candleCh chan<- model.Candle) error {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("[feed] connected to %s", f.cfg.URL)
	if f.OnConnState != nil {
		f.OnConnState(true)
	}
	defer func() {
		if f.OnConnState != nil {
			f.OnConnState(false)
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		var c model.Candle
		if err := json.Unmarshal(raw, &c); err != nil {
			log.Printf("[feed] parse error: %v (raw: %s)", err, raw)
			continue
		}
		if err := c.Validate(); err != nil {
			log.Printf("[feed] skipping candle: %v", err)
			continue
		}

		f.checkGap(c.TS)

		// The detection loop must see every candle, so a full ring means
		// spin, never drop. At candle rates the ring is effectively
		// always empty; the hook exists so sustained backpressure shows
		// up in metrics instead of silently delaying the stream.
		for !f.ring.Push(c) {
			if f.OnBackpressure != nil {
				f.OnBackpressure()
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Millisecond):
			}
		}
	}
}

// drain is the ring consumer: it pops candles and forwards them to the
// downstream channel in order.
func (f *Feed) drain(ctx context.Context, candleCh chan<- model.Candle) {
	for {
		c, ok := f.ring.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Millisecond):
			}
			continue
		}
		select {
		case candleCh <- c:
		case <-ctx.Done():
			return
		}
	}
}

// checkGap flags missing buckets between consecutive candles.
func (f *Feed) checkGap(ts time.Time) {
	defer func() { f.lastTS = ts }()
	if f.cfg.Interval <= 0 || f.lastTS.IsZero() {
		return
	}
	gap := ts.Sub(f.lastTS)
	if gap <= f.cfg.Interval {
		return
	}
	missing := int(gap/f.cfg.Interval) - 1
	if missing <= 0 {
		return
	}
	log.Printf("[feed] gap: %d missing bucket(s) between %s and %s",
		missing, f.lastTS.Format("15:04:05"), ts.Format("15:04:05"))
	if f.OnGap != nil {
		f.OnGap(missing)
	}
}
