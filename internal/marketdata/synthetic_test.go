package marketdata

import (
	"context"
	"testing"

	"strategy-validator/internal/types"
)

func TestGenerateSeriesDeterministic(t *testing.T) {
	a := GenerateSeries(42, 300)
	b := GenerateSeries(42, 300)
	if len(a) != 300 || len(b) != 300 {
		t.Fatalf("unexpected lengths %d, %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("bar %d differs across identical seeds", i)
		}
	}

	c := GenerateSeries(43, 300)
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical series")
	}
}

func TestGenerateSeriesInvariants(t *testing.T) {
	bars := GenerateSeries(7, 500)
	if err := types.ValidateBars(bars); err != nil {
		t.Fatalf("generated series violates bar invariants: %v", err)
	}
	for i := 1; i < len(bars); i++ {
		if bars[i].Ts <= bars[i-1].Ts {
			t.Fatalf("timestamps not strictly increasing at %d", i)
		}
		if bars[i].Open != bars[i-1].Close {
			t.Fatalf("bar %d does not open at previous close", i)
		}
	}
}

func TestSyntheticRecentBars(t *testing.T) {
	s := NewSynthetic(1, 200)

	all, err := s.RecentBars(context.Background(), "SYNTH", 0)
	if err != nil {
		t.Fatalf("RecentBars: %v", err)
	}
	if len(all) != 200 {
		t.Fatalf("expected full series of 200, got %d", len(all))
	}

	tail, err := s.RecentBars(context.Background(), "SYNTH", 50)
	if err != nil {
		t.Fatalf("RecentBars tail: %v", err)
	}
	if len(tail) != 50 {
		t.Fatalf("expected 50 bars, got %d", len(tail))
	}
	if tail[len(tail)-1] != all[len(all)-1] {
		t.Error("tail does not end at the last bar of the series")
	}

	// Memoized: same backing series on every call.
	again, _ := s.RecentBars(context.Background(), "OTHER", 0)
	if &again[0] != &all[0] {
		t.Error("expected memoized series to be shared between calls")
	}
}
