// Package detect implements the 5/1 SLOB setup detector: a deterministic,
// incrementally-maintained multi-stage state machine over a stream of
// time-ordered candles. Every decision at time T depends only on candles
// with timestamp <= T, and the incremental results match what a batch
// replay of the same stream would produce.
package detect

import (
	"fmt"
	"time"

	"slobengine/internal/model"
	"slobengine/internal/session"
	"slobengine/internal/volatility"
)

// Result is the per-candle output: at most one newly completed setup and
// zero or more invalidation notices.
type Result struct {
	Completed     *model.Setup
	Invalidations []model.Invalidation
}

// Manager owns the set of in-flight candidates: it creates them on LIQ-1
// breaches, routes each incoming candle to every active candidate's state
// handler, and retires candidates on completion or invalidation.
//
// Designed for single-goroutine usage: all state mutation happens
// synchronously inside Process before the next candle is admitted.
type Manager struct {
	cfg     Config
	tracker *session.Tracker
	atr     *volatility.ATR

	// Active candidates in creation order. Oldest-first routing makes the
	// one-completion-per-candle rule deterministic.
	active []*Candidate
	byID   map[string]*Candidate

	lastTS time.Time

	// Optional event hooks (set before the first Process call).
	OnBreach     func(dir model.Direction)
	OnComplete   func(s model.Setup)
	OnInvalidate func(inv model.Invalidation)
}

// NewManager creates a Manager with a validated config.
func NewManager(cfg Config, tracker *session.Tracker) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("detect config: %w", err)
	}
	if tracker == nil {
		return nil, fmt.Errorf("detect: nil session tracker")
	}
	return &Manager{
		cfg:     cfg,
		tracker: tracker,
		atr:     volatility.NewATR(cfg.ATRPeriod),
		byID:    make(map[string]*Candidate),
	}, nil
}

// ActiveCount returns the number of in-flight candidates.
func (m *Manager) ActiveCount() int { return len(m.active) }

// Process advances the detector by one candle. Candles must arrive in
// strictly increasing timestamp order; re-delivering the last candle is
// an idempotent no-op, and a timestamp regression is an error. Malformed
// candles are rejected before touching any state.
func (m *Manager) Process(c model.Candle) (Result, error) {
	var res Result

	if err := c.Validate(); err != nil {
		return res, err
	}
	if !m.lastTS.IsZero() {
		if c.TS.Equal(m.lastTS) {
			return res, nil // idempotent re-delivery
		}
		if c.TS.Before(m.lastTS) {
			return res, fmt.Errorf("non-monotonic candle: %v after %v", c.TS, m.lastTS)
		}
	}
	m.lastTS = c.TS

	// Day rollover: mass-invalidate before any of today's state forms.
	if rolled := m.tracker.Observe(c); rolled {
		for _, cand := range m.active {
			inv := cand.invalidate(model.ReasonNewDay, c.TS)
			res.Invalidations = append(res.Invalidations, inv)
			m.notifyInvalidate(inv)
		}
		m.active = m.active[:0]
		m.byID = make(map[string]*Candidate)
		m.atr.Reset()
	}

	m.atr.Update(c)

	// Advance existing candidates oldest-first. Only the first completion
	// is emitted this candle; younger WAITING_ENTRY candidates skip their
	// trigger check and try again on the next candle.
	if len(m.active) > 0 {
		kept := m.active[:0]
		for _, cand := range m.active {
			setup, inv := m.advance(cand, c, res.Completed == nil)
			if setup != nil {
				res.Completed = setup
				m.notifyComplete(*setup)
			}
			if inv != nil {
				res.Invalidations = append(res.Invalidations, *inv)
				m.notifyInvalidate(*inv)
			}
			if cand.State.Terminal() {
				delete(m.byID, cand.ID)
			} else {
				kept = append(kept, cand)
			}
		}
		m.active = kept
	}

	// Candidate creation happens after routing so the breach candle never
	// doubles as the new candidate's first consolidation candle.
	m.maybeCreate(c)

	return res, nil
}

// maybeCreate spawns a candidate when a breakout-window candle breaches
// the accumulation extrema and no active candidate owns that breach.
func (m *Manager) maybeCreate(c model.Candle) {
	if m.tracker.Phase(c.TS) != session.PhaseBreakout {
		return
	}
	accHigh, accLow, ok := m.tracker.AccumulationRange()
	if !ok {
		return
	}
	dir, breached := DetectFirstBreach(c, accHigh, accLow, m.cfg.MinBreachDistance)
	if !breached {
		return
	}
	id := breachID(dir, c.TS, c.Close)
	if _, exists := m.byID[id]; exists {
		return
	}

	atrNow, _ := m.atr.Value() // 0 when unavailable; quality gate fails closed
	cand := newCandidate(dir, c, atrNow)
	m.active = append(m.active, cand)
	m.byID[cand.ID] = cand
	if m.OnBreach != nil {
		m.OnBreach(dir)
	}
}

// advance routes one candle to one candidate's state handler.
// allowComplete gates the entry trigger so at most one setup completes
// per candle across all candidates.
func (m *Manager) advance(cand *Candidate, c model.Candle, allowComplete bool) (*model.Setup, *model.Invalidation) {
	switch cand.State {
	case StateWatchingConsolidation:
		inv := m.handleConsolidation(cand, c)
		return nil, inv
	case StateWatchingSecondBreach:
		inv := m.handleSecondBreach(cand, c)
		return nil, inv
	case StateWaitingEntry:
		return m.handleEntry(cand, c, allowComplete)
	default:
		// Terminal candidates are removed on the same step they
		// terminate, so reaching here is a logic defect.
		panic(fmt.Sprintf("detect: advancing terminal candidate %s in %s", cand.ID, cand.State))
	}
}

// handleConsolidation grows the consolidation and, once the window and
// quality gates pass, hunts for the no-wick candle.
func (m *Manager) handleConsolidation(cand *Candidate, c model.Candle) *model.Invalidation {
	cand.appendConsolidation(c)

	// Timeout is evaluated before qualification.
	if len(cand.Consolidation) > m.cfg.ConsolMaxDuration {
		inv := cand.invalidate(model.ReasonTimeout, c.TS)
		return &inv
	}

	atr := m.candidateATR(cand)
	if atr > 0 {
		cand.Quality = QualityScore(cand.Consolidation, atr, cand.Direction)
	} else {
		cand.Quality = 0 // ATR unavailable: cannot validate, gate fails closed
	}

	if len(cand.Consolidation) < m.cfg.ConsolMinDuration {
		return nil
	}
	if atr <= 0 || cand.Quality < m.cfg.MinQuality {
		return nil
	}
	ratio := (cand.ConsolHigh - cand.ConsolLow) / atr
	if ratio < m.cfg.ATRMultiplierMin || ratio > m.cfg.ATRMultiplierMax {
		return nil
	}

	nw, found := FindNoWick(cand.Consolidation, cand.Direction, m.cfg.NoWickPercentile, m.cfg.NoWickMinSamples)
	if !found {
		return nil // more candles may later produce one, or the timeout fires
	}
	cand.NoWick = nw
	if cand.Direction.SweepsHigh() {
		cand.NoWickLevel = nw.Low
	} else {
		cand.NoWickLevel = nw.High
	}
	cand.transitionTo(StateWatchingSecondBreach)
	return nil
}

// handleSecondBreach waits for the close through the consolidation bound
// in the breach direction, then computes the spike-rule stop.
func (m *Manager) handleSecondBreach(cand *Candidate, c model.Candle) *model.Invalidation {
	if DetectSecondBreach(c, cand.ConsolHigh, cand.ConsolLow, m.cfg.MinBreachDistance, cand.Direction) {
		cand.Liq2Price = c.Close
		cand.Liq2Time = c.TS
		cand.SLPrice = SpikeStop(c, cand.Direction, m.cfg.SpikeRatio, m.cfg.SLBuffer)
		cand.transitionTo(StateWaitingEntry)
		return nil
	}
	cand.secondBreachWait++
	if cand.secondBreachWait >= m.cfg.MaxSecondBreachWait {
		inv := cand.invalidate(model.ReasonNoSecondBreach, c.TS)
		return &inv
	}
	return nil
}

// handleEntry waits for the close back through the no-wick level. The
// trigger is checked before the retracement and timeout rules, so a
// candle that both triggers and overshoots completes the setup.
func (m *Manager) handleEntry(cand *Candidate, c model.Candle, allowComplete bool) (*model.Setup, *model.Invalidation) {
	triggered := false
	if cand.Direction.SweepsHigh() {
		triggered = c.Close < cand.NoWickLevel
	} else {
		triggered = c.Close > cand.NoWickLevel
	}
	if triggered && allowComplete {
		setup := m.complete(cand, c)
		return setup, nil
	}
	if triggered {
		return nil, nil // another candidate completed this candle; retry next
	}

	// Price running away from the no-wick level kills the setup.
	overshoot := false
	if cand.Direction.SweepsHigh() {
		overshoot = c.High > cand.NoWickLevel+m.cfg.MaxRetracement
	} else {
		overshoot = c.Low < cand.NoWickLevel-m.cfg.MaxRetracement
	}
	if overshoot {
		inv := cand.invalidate(model.ReasonRetracedTooFar, c.TS)
		return nil, &inv
	}

	cand.entryWait++
	if cand.entryWait >= m.cfg.MaxEntryWait {
		inv := cand.invalidate(model.ReasonEntryExpired, c.TS)
		return nil, &inv
	}
	return nil, nil
}

// complete sets entry/tp/rr exactly once and transitions to COMPLETE.
func (m *Manager) complete(cand *Candidate, c model.Candle) *model.Setup {
	accHigh, accLow, _ := m.tracker.AccumulationRange()

	cand.EntryPrice = c.Close
	cand.TPPrice = TakeProfit(cand.Direction, accHigh, accLow, m.cfg.TPBuffer)
	cand.RiskRewardRatio = RiskReward(cand.EntryPrice, cand.SLPrice, cand.TPPrice)
	cand.transitionTo(StateComplete)

	return &model.Setup{
		ID:                   cand.ID,
		Symbol:               cand.Symbol,
		Direction:            cand.Direction,
		Liq1Price:            cand.Liq1Price,
		Liq1Time:             cand.Liq1Time,
		Liq2Price:            cand.Liq2Price,
		Liq2Time:             cand.Liq2Time,
		EntryPrice:           cand.EntryPrice,
		SLPrice:              cand.SLPrice,
		TPPrice:              cand.TPPrice,
		RiskRewardRatio:      cand.RiskRewardRatio,
		ConsolidationQuality: cand.Quality,
		ATRAtCreation:        cand.ATRAtCreation,
		CreatedAt:            cand.CreatedAt,
		CompletedAt:          c.TS,
	}
}

// candidateATR prefers the ATR snapshot taken at creation and falls back
// to the live ATR when the snapshot was unavailable. Returns 0 when
// neither is available (gate fails closed).
func (m *Manager) candidateATR(cand *Candidate) float64 {
	if cand.ATRAtCreation > 0 {
		return cand.ATRAtCreation
	}
	if v, ok := m.atr.Value(); ok {
		return v
	}
	return 0
}

func (m *Manager) notifyComplete(s model.Setup) {
	if m.OnComplete != nil {
		m.OnComplete(s)
	}
}

func (m *Manager) notifyInvalidate(inv model.Invalidation) {
	if m.OnInvalidate != nil {
		m.OnInvalidate(inv)
	}
}
