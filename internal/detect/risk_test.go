package detect

import (
	"math"
	"testing"
	"time"

	"slobengine/internal/model"
)

func riskCandle(o, h, l, c float64) model.Candle {
	return model.Candle{
		Symbol: "NIFTY",
		TS:     time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC),
		Open:   o, High: h, Low: l, Close: c,
		Volume: 1000,
	}
}

func TestSpikeStop_BoundaryExactlyAtRatio(t *testing.T) {
	// body = 1.0 (10 -> 11), upper wick controlled by the high.
	tests := []struct {
		name string
		high float64
		want float64
	}{
		// ratio exactly 2.0: non-spike branch, stop above the high
		{"ratio 2.0 non-spike", 13.0, 13.0 + 0.05},
		// ratio 2.0001: spike branch, stop above the body top
		{"ratio 2.0001 spike", 13.0001, 11.0 + 0.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := riskCandle(10.0, tt.high, 9.9, 11.0)
			got := SpikeStop(c, model.DirectionShort, 2.0, 0.05)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("SpikeStop = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSpikeStop_LongMirrors(t *testing.T) {
	// down candle 11 -> 10, lower wick 2.5 -> spike, stop below body bottom
	c := riskCandle(11.0, 11.1, 7.5, 10.0)
	got := SpikeStop(c, model.DirectionLong, 2.0, 0.05)
	want := 10.0 - 0.05
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("SpikeStop long spike = %v, want %v", got, want)
	}

	// modest wick: normal stop below the low
	c = riskCandle(11.0, 11.1, 9.8, 10.0)
	got = SpikeStop(c, model.DirectionLong, 2.0, 0.05)
	want = 9.8 - 0.05
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("SpikeStop long normal = %v, want %v", got, want)
	}
}

func TestSpikeStop_ZeroBody(t *testing.T) {
	// doji with an upper wick is all spike
	c := riskCandle(10.0, 10.5, 9.9, 10.0)
	got := SpikeStop(c, model.DirectionShort, 2.0, 0.05)
	want := 10.0 + 0.05
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("SpikeStop doji = %v, want %v", got, want)
	}
}

func TestTakeProfit(t *testing.T) {
	if got := TakeProfit(model.DirectionShort, 100.0, 99.0, 0.05); math.Abs(got-98.95) > 1e-9 {
		t.Fatalf("short TP = %v, want 98.95", got)
	}
	if got := TakeProfit(model.DirectionLong, 100.0, 99.0, 0.05); math.Abs(got-100.05) > 1e-9 {
		t.Fatalf("long TP = %v, want 100.05", got)
	}
}

func TestRiskReward(t *testing.T) {
	if got := RiskReward(100.0, 101.0, 98.0); math.Abs(got-2.0) > 1e-9 {
		t.Fatalf("rr = %v, want 2.0", got)
	}
	if got := RiskReward(100.0, 100.0, 98.0); got != 0 {
		t.Fatalf("zero-risk rr = %v, want 0", got)
	}
}
