package notification

import (
	"strings"
	"testing"
	"time"

	"slobengine/internal/model"
)

func TestForSetup(t *testing.T) {
	s := model.Setup{
		ID:                   "SHORT-1709550000000000000-101.0000",
		Symbol:               "NIFTY",
		Direction:            model.DirectionShort,
		Liq1Price:            101.0,
		Liq1Time:             time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC),
		Liq2Price:            101.3,
		Liq2Time:             time.Date(2024, 3, 4, 12, 20, 0, 0, time.UTC),
		EntryPrice:           100.9,
		SLPrice:              101.45,
		TPPrice:              98.95,
		RiskRewardRatio:      3.55,
		ConsolidationQuality: 0.79,
	}

	a := ForSetup(s)
	if a.Level != AlertInfo {
		t.Errorf("level = %s, want INFO", a.Level)
	}
	if a.Title != "SLOB setup NIFTY SHORT" {
		t.Errorf("title = %q", a.Title)
	}
	for _, want := range []string{
		"entry=100.90", "sl=101.45", "tp=98.95",
		"liq1=101.00@11:00:00", "liq2=101.30@12:20:00",
		s.ID,
	} {
		if !strings.Contains(a.Message, want) {
			t.Errorf("message missing %q: %s", want, a.Message)
		}
	}
}
