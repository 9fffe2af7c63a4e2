package detect

import "fmt"

// Config enumerates every detection parameter. Nothing in the detection
// logic falls back to an implicit literal; all gates read from here.
//
// All durations are counted in CANDLES of the input timeframe, not in
// wall-clock minutes.
type Config struct {
	// ATRPeriod is the rolling true-range lookback. The ATR resets on day
	// rollover, so it must fit inside a session.
	ATRPeriod int `yaml:"atr_period"`

	// MinBreachDistance is how far beyond a level a close must print to
	// count as a liquidity breach (LIQ-1 and LIQ-2). Zero accepts any
	// close strictly beyond the level.
	MinBreachDistance float64 `yaml:"min_breach_distance"`

	// Consolidation gates.
	ConsolMinDuration int     `yaml:"consol_min_duration"` // candles
	ConsolMaxDuration int     `yaml:"consol_max_duration"` // candles
	MinQuality        float64 `yaml:"min_quality"`         // [0,1]
	ATRMultiplierMin  float64 `yaml:"atr_multiplier_min"`  // range/ATR lower bound
	ATRMultiplierMax  float64 `yaml:"atr_multiplier_max"`  // range/ATR upper bound

	// No-wick detector.
	NoWickPercentile float64 `yaml:"no_wick_percentile"` // [0,1]; lower admits fewer candles
	NoWickMinSamples int     `yaml:"no_wick_min_samples"`

	// Risk levels.
	SpikeRatio float64 `yaml:"spike_ratio"` // wick/body ratio; strictly above = spike
	SLBuffer   float64 `yaml:"sl_buffer"`
	TPBuffer   float64 `yaml:"tp_buffer"`

	// Stage timeouts (candles) and the entry invalidation distance.
	MaxSecondBreachWait int     `yaml:"max_second_breach_wait"`
	MaxEntryWait        int     `yaml:"max_entry_wait"`
	MaxRetracement      float64 `yaml:"max_retracement"` // distance past the no-wick level
}

// DefaultConfig returns the documented defaults. The quality and
// percentile gates are known to be strict; field calibration relaxes them
// through configuration, never by editing detection code.
func DefaultConfig() Config {
	return Config{
		ATRPeriod:           14,
		MinBreachDistance:   0,
		ConsolMinDuration:   15,
		ConsolMaxDuration:   40,
		MinQuality:          0.6,
		ATRMultiplierMin:    0.3,
		ATRMultiplierMax:    2.5,
		NoWickPercentile:    0.3,
		NoWickMinSamples:    3,
		SpikeRatio:          2.0,
		SLBuffer:            0.05,
		TPBuffer:            0.05,
		MaxSecondBreachWait: 20,
		MaxEntryWait:        20,
		MaxRetracement:      5.0,
	}
}

// Validate rejects inconsistent parameter combinations.
func (c Config) Validate() error {
	if c.ATRPeriod < 1 {
		return fmt.Errorf("atr_period must be >= 1, got %d", c.ATRPeriod)
	}
	if c.MinBreachDistance < 0 {
		return fmt.Errorf("min_breach_distance must be >= 0, got %v", c.MinBreachDistance)
	}
	if c.ConsolMinDuration < 1 {
		return fmt.Errorf("consol_min_duration must be >= 1, got %d", c.ConsolMinDuration)
	}
	if c.ConsolMaxDuration < c.ConsolMinDuration {
		return fmt.Errorf("consol_max_duration %d below consol_min_duration %d",
			c.ConsolMaxDuration, c.ConsolMinDuration)
	}
	if c.MinQuality < 0 || c.MinQuality > 1 {
		return fmt.Errorf("min_quality must be in [0,1], got %v", c.MinQuality)
	}
	if c.ATRMultiplierMin < 0 || c.ATRMultiplierMax < c.ATRMultiplierMin {
		return fmt.Errorf("atr multiplier bounds invalid: [%v, %v]",
			c.ATRMultiplierMin, c.ATRMultiplierMax)
	}
	if c.NoWickPercentile <= 0 || c.NoWickPercentile > 1 {
		return fmt.Errorf("no_wick_percentile must be in (0,1], got %v", c.NoWickPercentile)
	}
	if c.NoWickMinSamples < 3 {
		return fmt.Errorf("no_wick_min_samples must be >= 3, got %d", c.NoWickMinSamples)
	}
	if c.SpikeRatio <= 0 {
		return fmt.Errorf("spike_ratio must be > 0, got %v", c.SpikeRatio)
	}
	if c.SLBuffer < 0 || c.TPBuffer < 0 {
		return fmt.Errorf("sl/tp buffers must be >= 0, got %v / %v", c.SLBuffer, c.TPBuffer)
	}
	if c.MaxSecondBreachWait < 1 {
		return fmt.Errorf("max_second_breach_wait must be >= 1, got %d", c.MaxSecondBreachWait)
	}
	if c.MaxEntryWait < 1 {
		return fmt.Errorf("max_entry_wait must be >= 1, got %d", c.MaxEntryWait)
	}
	if c.MaxRetracement <= 0 {
		return fmt.Errorf("max_retracement must be > 0, got %v", c.MaxRetracement)
	}
	return nil
}
