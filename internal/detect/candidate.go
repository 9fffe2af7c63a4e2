package detect

import (
	"fmt"
	"time"

	"slobengine/internal/model"
)

// State is a candidate's position in the setup state machine.
type State int

const (
	StateWatchingConsolidation State = iota
	StateWatchingSecondBreach
	StateWaitingEntry
	StateComplete
	StateInvalidated
)

func (s State) String() string {
	switch s {
	case StateWatchingConsolidation:
		return "WATCHING_CONSOLIDATION"
	case StateWatchingSecondBreach:
		return "WATCHING_SECOND_BREACH"
	case StateWaitingEntry:
		return "WAITING_ENTRY"
	case StateComplete:
		return "COMPLETE"
	case StateInvalidated:
		return "INVALIDATED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether the state retires the candidate.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateInvalidated
}

// validTransitions is the complete state table. INVALIDATED is reachable
// from every non-terminal state; COMPLETE only from WAITING_ENTRY.
var validTransitions = map[State][]State{
	StateWatchingConsolidation: {StateWatchingSecondBreach, StateInvalidated},
	StateWatchingSecondBreach:  {StateWaitingEntry, StateInvalidated},
	StateWaitingEntry:          {StateComplete, StateInvalidated},
	StateComplete:              {},
	StateInvalidated:           {},
}

// Candidate is one in-flight setup instance, spawned by a LIQ-1 breach.
// All fields are always present; optional-until-computed fields use the
// zero value plus an explicit "set" flag as their unset sentinel.
type Candidate struct {
	ID        string
	Symbol    string
	State     State
	Direction model.Direction

	Liq1Price float64
	Liq1Time  time.Time

	// Consolidation sequence. Append-only: never rewritten from future
	// data. Bounds and quality are recomputed on every append.
	Consolidation []model.Candle
	ConsolHigh    float64
	ConsolLow     float64
	Quality       float64

	ATRAtCreation float64 // 0 when ATR was unavailable at creation

	NoWick      model.Candle
	NoWickLevel float64 // entry reference: low for short setups, high for long

	Liq2Price float64
	Liq2Time  time.Time

	SLPrice         float64
	EntryPrice      float64
	TPPrice         float64
	RiskRewardRatio float64

	InvalidationReason string
	CreatedAt          time.Time

	// Candle counts inside the current waiting state.
	secondBreachWait int
	entryWait        int
}

// breachID derives the unique candidate id from the breach that spawned
// it, so re-processing the same breach can never mint a second id.
// Nanosecond resolution keeps distinct sub-second bars distinct.
func breachID(dir model.Direction, ts time.Time, price float64) string {
	return fmt.Sprintf("%s-%d-%.4f", dir, ts.UnixNano(), price)
}

// newCandidate creates a candidate in WATCHING_CONSOLIDATION for the
// given LIQ-1 breach. The breach candle itself is not part of the
// consolidation sequence; that window starts at the following candle.
func newCandidate(dir model.Direction, breach model.Candle, atrAtCreation float64) *Candidate {
	return &Candidate{
		ID:            breachID(dir, breach.TS, breach.Close),
		Symbol:        breach.Symbol,
		State:         StateWatchingConsolidation,
		Direction:     dir,
		Liq1Price:     breach.Close,
		Liq1Time:      breach.TS,
		ATRAtCreation: atrAtCreation,
		CreatedAt:     breach.TS,
	}
}

// transitionTo moves the candidate to next, panicking on any transition
// absent from the state table. An illegal transition is a logic defect in
// the detector, not bad input, so it must abort loudly.
func (c *Candidate) transitionTo(next State) {
	for _, allowed := range validTransitions[c.State] {
		if allowed == next {
			c.State = next
			return
		}
	}
	panic(fmt.Sprintf("detect: illegal candidate transition %s -> %s (id=%s)", c.State, next, c.ID))
}

// appendConsolidation grows the consolidation sequence and maintains the
// running bounds in O(1).
func (c *Candidate) appendConsolidation(candle model.Candle) {
	if len(c.Consolidation) == 0 {
		c.ConsolHigh, c.ConsolLow = candle.High, candle.Low
	} else {
		if candle.High > c.ConsolHigh {
			c.ConsolHigh = candle.High
		}
		if candle.Low < c.ConsolLow {
			c.ConsolLow = candle.Low
		}
	}
	c.Consolidation = append(c.Consolidation, candle)
}

// invalidate records the reason and retires the candidate.
func (c *Candidate) invalidate(reason string, at time.Time) model.Invalidation {
	c.InvalidationReason = reason
	c.transitionTo(StateInvalidated)
	return model.Invalidation{
		ID:     c.ID,
		Symbol: c.Symbol,
		Reason: reason,
		At:     at,
	}
}
