package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Candle represents one finalized OHLCV candle for a single instrument.
// The detection engine operates on one instrument's single-timeframe
// stream, delivered in strictly increasing timestamp order.
type Candle struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"` // bucket start time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Validate rejects impossible candles before they reach the state machine:
// zero timestamps, NaN/Inf fields, negative prices or volume, and
// high/low bounds that do not contain open/close.
func (c *Candle) Validate() error {
	if c.TS.IsZero() {
		return fmt.Errorf("candle %s: zero timestamp", c.Symbol)
	}
	for _, f := range [...]struct {
		name string
		v    float64
	}{
		{"open", c.Open}, {"high", c.High}, {"low", c.Low},
		{"close", c.Close}, {"volume", c.Volume},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("candle %s @ %v: %s is not finite", c.Symbol, c.TS, f.name)
		}
		if f.v < 0 {
			return fmt.Errorf("candle %s @ %v: negative %s %v", c.Symbol, c.TS, f.name, f.v)
		}
	}
	if c.High < c.Low {
		return fmt.Errorf("candle %s @ %v: high %v below low %v", c.Symbol, c.TS, c.High, c.Low)
	}
	if c.Open > c.High || c.Open < c.Low || c.Close > c.High || c.Close < c.Low {
		return fmt.Errorf("candle %s @ %v: open/close outside [low, high]", c.Symbol, c.TS)
	}
	return nil
}

// Body returns the absolute open-to-close distance.
func (c *Candle) Body() float64 {
	return math.Abs(c.Close - c.Open)
}

// UpperWick returns the distance from the body top to the high.
func (c *Candle) UpperWick() float64 {
	return c.High - math.Max(c.Open, c.Close)
}

// LowerWick returns the distance from the body bottom to the low.
func (c *Candle) LowerWick() float64 {
	return math.Min(c.Open, c.Close) - c.Low
}

// TrueRange computes the true range against the previous close.
// With no previous close (start of stream), it falls back to high-low.
func (c *Candle) TrueRange(prevClose float64, hasPrev bool) float64 {
	hl := c.High - c.Low
	if !hasPrev {
		return hl
	}
	hc := math.Abs(c.High - prevClose)
	lc := math.Abs(c.Low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
