package detect

import (
	"testing"
	"time"

	"slobengine/internal/model"
)

// wickCandle builds an up candle with the given upper wick and body, so
// the short-direction wick/body ratio is wick/body exactly.
func wickCandle(i int, wick, body float64) model.Candle {
	ts := time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC).Add(time.Duration(i) * 5 * time.Minute)
	open := 100.0
	close := open + body
	return model.Candle{
		Symbol: "NIFTY",
		TS:     ts,
		Open:   open,
		High:   close + wick,
		Low:    open - 0.1,
		Close:  close,
		Volume: 1000,
	}
}

func TestFindNoWick_MinSamples(t *testing.T) {
	candles := []model.Candle{
		wickCandle(0, 0.0, 0.5),
		wickCandle(1, 0.5, 0.5),
	}
	if _, found := FindNoWick(candles, model.DirectionShort, 0.5, 3); found {
		t.Fatal("found no-wick below minimum sample size")
	}
}

func TestFindNoWick_FlatDistribution(t *testing.T) {
	// Every candle has the same ratio: none is unusual, none qualifies.
	var candles []model.Candle
	for i := 0; i < 10; i++ {
		candles = append(candles, wickCandle(i, 0.25, 0.5))
	}
	if _, found := FindNoWick(candles, model.DirectionShort, 0.5, 3); found {
		t.Fatal("elected a no-wick candle from a flat wick distribution")
	}
}

func TestFindNoWick_PicksSmallestRatio(t *testing.T) {
	candles := []model.Candle{
		wickCandle(0, 0.5, 0.5),  // ratio 1.0
		wickCandle(1, 0.05, 0.5), // ratio 0.1 <- winner
		wickCandle(2, 0.4, 0.5),  // ratio 0.8
		wickCandle(3, 0.3, 0.5),  // ratio 0.6
		wickCandle(4, 0.6, 0.5),  // ratio 1.2
	}
	nw, found := FindNoWick(candles, model.DirectionShort, 0.5, 3)
	if !found {
		t.Fatal("no-wick candle not found")
	}
	if !nw.TS.Equal(candles[1].TS) {
		t.Fatalf("picked candle at %v, want %v", nw.TS, candles[1].TS)
	}
}

func TestFindNoWick_TieBreaksEarliest(t *testing.T) {
	candles := []model.Candle{
		wickCandle(0, 0.5, 0.5),
		wickCandle(1, 0.0, 0.5), // first zero-wick
		wickCandle(2, 0.0, 0.5), // later duplicate
		wickCandle(3, 0.4, 0.5),
		wickCandle(4, 0.3, 0.5),
	}
	nw, found := FindNoWick(candles, model.DirectionShort, 0.8, 3)
	if !found {
		t.Fatal("no-wick candle not found")
	}
	if !nw.TS.Equal(candles[1].TS) {
		t.Fatalf("tie resolved to %v, want earliest %v", nw.TS, candles[1].TS)
	}
}

func TestWickBodyRatio_Directional(t *testing.T) {
	// Up candle with only a lower wick: wickless for a short setup,
	// all wick for a long one.
	c := model.Candle{
		Symbol: "NIFTY",
		TS:     time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC),
		Open:   100.0, High: 100.5, Low: 99.5, Close: 100.5,
		Volume: 1000,
	}
	if got := wickBodyRatio(c, model.DirectionShort); got != 0 {
		t.Fatalf("short ratio = %v, want 0", got)
	}
	if got := wickBodyRatio(c, model.DirectionLong); got != 1.0 {
		t.Fatalf("long ratio = %v, want 1.0", got)
	}
}
