package volatility

import (
	"math"
	"testing"
	"time"

	"slobengine/internal/model"
)

func makeCandle(i int, open, high, low, close_ float64) model.Candle {
	return model.Candle{
		Symbol: "NIFTY",
		TS:     time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close_,
		Volume: 1,
	}
}

func TestATR_NotReadyUntilPeriod(t *testing.T) {
	a := NewATR(3)

	for i := 0; i < 2; i++ {
		a.Update(makeCandle(i, 100, 101, 99, 100))
		if a.Ready() {
			t.Fatalf("ready after %d candles, want not ready until 3", i+1)
		}
		if _, ok := a.Value(); ok {
			t.Fatal("Value must report unavailable before period is filled")
		}
	}

	a.Update(makeCandle(2, 100, 101, 99, 100))
	if !a.Ready() {
		t.Fatal("should be ready after 3 candles")
	}
	v, ok := a.Value()
	if !ok || math.Abs(v-2.0) > 1e-9 {
		t.Errorf("ATR = %v ok=%v, want 2.0 true", v, ok)
	}
}

func TestATR_TrueRangeUsesPrevClose(t *testing.T) {
	a := NewATR(2)

	// First candle: no previous close, TR = high-low = 2.
	a.Update(makeCandle(0, 100, 101, 99, 100))
	// Gap up: high-low = 1, but |high - prevClose| = 5 dominates.
	a.Update(makeCandle(1, 105, 105, 104, 104.5))

	v, ok := a.Value()
	if !ok {
		t.Fatal("should be ready")
	}
	want := (2.0 + 5.0) / 2
	if math.Abs(v-want) > 1e-9 {
		t.Errorf("ATR = %v, want %v", v, want)
	}
}

func TestATR_RollingWindow(t *testing.T) {
	a := NewATR(2)
	a.Update(makeCandle(0, 100, 110, 90, 100)) // TR 20
	a.Update(makeCandle(1, 100, 102, 98, 100)) // TR 4
	a.Update(makeCandle(2, 100, 101, 99, 100)) // TR 2, evicts 20

	v, _ := a.Value()
	if math.Abs(v-3.0) > 1e-9 {
		t.Errorf("ATR = %v, want 3.0 after eviction", v)
	}
}

func TestATR_Reset(t *testing.T) {
	a := NewATR(2)
	a.Update(makeCandle(0, 100, 110, 90, 100))
	a.Update(makeCandle(1, 100, 102, 98, 100))
	if !a.Ready() {
		t.Fatal("should be ready before reset")
	}

	a.Reset()
	if a.Ready() {
		t.Fatal("must not be ready after reset")
	}

	// After reset the first candle has no previous close again.
	a.Update(makeCandle(2, 50, 51, 49, 50))
	a.Update(makeCandle(3, 50, 51, 49, 50))
	v, ok := a.Value()
	if !ok || math.Abs(v-2.0) > 1e-9 {
		t.Errorf("ATR after reset = %v ok=%v, want 2.0 true", v, ok)
	}
}
