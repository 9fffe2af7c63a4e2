package model

import (
	"encoding/json"
	"time"
)

// Direction is the trade direction of a setup proposal.
//
// A sweep of the accumulation high spawns a SHORT candidate (the setup
// fades the breach back into the range, targeting the accumulation low);
// a sweep of the accumulation low spawns a LONG candidate.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// SweepsHigh reports whether this direction's candidate was spawned by a
// breach of the accumulation high (both liquidity breaches point upward).
func (d Direction) SweepsHigh() bool { return d == DirectionShort }

// Invalidation reason codes. These are normal-path outcomes recorded for
// diagnostics, never errors.
const (
	ReasonTimeout        = "timeout"
	ReasonNoSecondBreach = "no second breach"
	ReasonEntryExpired   = "entry window expired"
	ReasonRetracedTooFar = "retraced too far"
	ReasonNewDay         = "new day"
)

// Setup is a fully-detected, terminal trade proposal. All price fields are
// set exactly once at completion and never recomputed.
type Setup struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`

	Liq1Price float64   `json:"liq1_price"`
	Liq1Time  time.Time `json:"liq1_time"`
	Liq2Price float64   `json:"liq2_price"`
	Liq2Time  time.Time `json:"liq2_time"`

	EntryPrice      float64 `json:"entry_price"`
	SLPrice         float64 `json:"sl_price"`
	TPPrice         float64 `json:"tp_price"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`

	ConsolidationQuality float64 `json:"consolidation_quality"`
	ATRAtCreation        float64 `json:"atr_at_creation"`

	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// JSON returns the JSON-encoded setup.
func (s *Setup) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// Invalidation describes a candidate retired without completing.
type Invalidation struct {
	ID     string    `json:"id"`
	Symbol string    `json:"symbol"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}
