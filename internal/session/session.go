// Package session partitions the trading day into the accumulation and
// breakout windows and maintains the accumulation-session high/low
// incrementally. Day rollover resets the extrema and signals the caller
// so it can invalidate every in-flight candidate.
package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"slobengine/internal/model"
)

// Phase classifies a candle timestamp within the trading day.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseAccumulation
	PhaseBreakout
)

func (p Phase) String() string {
	switch p {
	case PhaseAccumulation:
		return "accumulation"
	case PhaseBreakout:
		return "breakout"
	default:
		return "none"
	}
}

// Window is an intraday half-open time-of-day range [start, end).
// Windows do not wrap midnight; the daily reset model requires both
// sessions to fall inside one trading day.
type Window struct {
	StartHour, StartMin int
	EndHour, EndMin     int
}

// Contains reports whether t's time of day falls inside the window.
func (w Window) Contains(t time.Time) bool {
	hm := t.Hour()*60 + t.Minute()
	return hm >= w.StartHour*60+w.StartMin && hm < w.EndHour*60+w.EndMin
}

// Validate checks that the window is well-formed and non-empty.
func (w Window) Validate() error {
	for _, v := range [...]struct {
		name string
		val  int
		max  int
	}{
		{"start hour", w.StartHour, 23}, {"start minute", w.StartMin, 59},
		{"end hour", w.EndHour, 23}, {"end minute", w.EndMin, 59},
	} {
		if v.val < 0 || v.val > v.max {
			return fmt.Errorf("window %s out of range: %d", v.name, v.val)
		}
	}
	if w.StartHour*60+w.StartMin >= w.EndHour*60+w.EndMin {
		return fmt.Errorf("window start %02d:%02d not before end %02d:%02d",
			w.StartHour, w.StartMin, w.EndHour, w.EndMin)
	}
	return nil
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.StartHour, w.StartMin, w.EndHour, w.EndMin)
}

// ParseWindow parses "HH:MM-HH:MM" into a Window.
func ParseWindow(s string) (Window, error) {
	var w Window
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return w, fmt.Errorf("window %q: want HH:MM-HH:MM", s)
	}
	var err error
	if w.StartHour, w.StartMin, err = parseHM(parts[0]); err != nil {
		return w, fmt.Errorf("window %q: %w", s, err)
	}
	if w.EndHour, w.EndMin, err = parseHM(parts[1]); err != nil {
		return w, fmt.Errorf("window %q: %w", s, err)
	}
	if err := w.Validate(); err != nil {
		return w, err
	}
	return w, nil
}

func parseHM(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("time %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("time %q: bad minute", s)
	}
	return h, m, nil
}

// Tracker maintains the accumulation-session extrema for the current
// trading day. Single-goroutine usage, one Observe per candle in order.
type Tracker struct {
	loc          *time.Location
	accumulation Window
	breakout     Window

	day    time.Time // midnight of the tracked day in loc; zero before first candle
	high   float64
	low    float64
	seeded bool // extrema defined (at least one accumulation candle seen today)
}

// NewTracker creates a Tracker for the given windows and time zone.
func NewTracker(accumulation, breakout Window, loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{loc: loc, accumulation: accumulation, breakout: breakout}
}

// Phase classifies a timestamp into accumulation, breakout, or neither.
func (t *Tracker) Phase(ts time.Time) Phase {
	local := ts.In(t.loc)
	switch {
	case t.accumulation.Contains(local):
		return PhaseAccumulation
	case t.breakout.Contains(local):
		return PhaseBreakout
	default:
		return PhaseNone
	}
}

// Observe advances the tracker with one candle. It returns true when the
// candle opens a new trading day, in which case the extrema have been
// reset and the caller must invalidate all active candidates.
//
// Calling Observe once per candle in order reproduces exactly the extrema
// a full replay of that day's accumulation-window candles would produce.
func (t *Tracker) Observe(c model.Candle) (rolled bool) {
	day := dayOf(c.TS.In(t.loc))
	if t.day.IsZero() {
		t.day = day
	} else if !day.Equal(t.day) {
		t.day = day
		t.high, t.low, t.seeded = 0, 0, false
		rolled = true
	}

	if t.accumulation.Contains(c.TS.In(t.loc)) {
		if !t.seeded {
			t.high, t.low, t.seeded = c.High, c.Low, true
		} else {
			if c.High > t.high {
				t.high = c.High
			}
			if c.Low < t.low {
				t.low = c.Low
			}
		}
	}
	return rolled
}

// AccumulationRange returns the running accumulation extrema for the
// current day. ok is false before any accumulation candle has been seen
// (extrema undefined).
func (t *Tracker) AccumulationRange() (high, low float64, ok bool) {
	return t.high, t.low, t.seeded
}

// Day returns midnight of the tracked trading day (zero before the first
// candle).
func (t *Tracker) Day() time.Time {
	return t.day
}

func dayOf(local time.Time) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
}
