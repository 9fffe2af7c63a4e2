package dispatch

import (
	"context"
	"testing"

	"slobengine/internal/model"
)

func TestDispatcher_IdempotentByID(t *testing.T) {
	backend := NewPaperBackend()
	d := New(backend, 10, nil)

	s := model.Setup{ID: "SHORT-1709550000000000000-101.0000", Symbol: "NIFTY", Direction: model.DirectionShort, EntryPrice: 100.9}
	ctx := context.Background()

	d.Dispatch(ctx, s)
	d.Dispatch(ctx, s) // replay of the same candidate

	if got := len(backend.Fills()); got != 1 {
		t.Fatalf("backend placed %d orders, want 1", got)
	}

	r1 := <-d.Results()
	r2 := <-d.Results()
	if r1.Status != "PLACED" {
		t.Errorf("first result status = %s, want PLACED", r1.Status)
	}
	if r2.Status != "DUPLICATE" {
		t.Errorf("second result status = %s, want DUPLICATE", r2.Status)
	}
}

func TestDispatcher_SeededFromJournal(t *testing.T) {
	backend := NewPaperBackend()
	d := New(backend, 10, []string{"SHORT-1709550000000000000-101.0000"})

	dup := 0
	d.OnDuplicate = func(string) { dup++ }

	d.Dispatch(context.Background(), model.Setup{ID: "SHORT-1709550000000000000-101.0000", Symbol: "NIFTY"})
	if len(backend.Fills()) != 0 {
		t.Fatal("journal-seeded id was re-dispatched")
	}
	if dup != 1 {
		t.Fatalf("duplicate hook called %d times, want 1", dup)
	}
}

func TestDispatcher_DistinctSetups(t *testing.T) {
	backend := NewPaperBackend()
	d := New(backend, 10, nil)
	ctx := context.Background()

	d.Dispatch(ctx, model.Setup{ID: "a", Symbol: "NIFTY"})
	d.Dispatch(ctx, model.Setup{ID: "b", Symbol: "NIFTY"})

	if got := len(backend.Fills()); got != 2 {
		t.Fatalf("backend placed %d orders, want 2", got)
	}
}
