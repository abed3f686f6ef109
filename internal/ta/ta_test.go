package ta

import (
	"math"
	"testing"
)

func TestSMA(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	if got := SMA(closes, 5); got != 3 {
		t.Errorf("SMA(5) = %v, want 3", got)
	}
	if got := SMA(closes, 2); got != 4.5 {
		t.Errorf("SMA(2) = %v, want 4.5", got)
	}
	if got := SMA(closes, 6); !math.IsNaN(got) {
		t.Errorf("SMA with short history = %v, want NaN", got)
	}
}

func TestRSIBounds(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	if got := RSI(up, 14); got != 100 {
		t.Errorf("RSI of pure uptrend = %v, want 100", got)
	}
	down := []float64{15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
	if got := RSI(down, 14); got >= 1 {
		t.Errorf("RSI of pure downtrend = %v, want near 0", got)
	}
	if got := RSI(up[:5], 14); !math.IsNaN(got) {
		t.Errorf("RSI with short history = %v, want NaN", got)
	}
}

func TestSMASeriesAlignsWithTrailingSMA(t *testing.T) {
	closes := []float64{10, 11, 9, 12, 13, 12, 14, 15}
	series := SMASeries(closes, 3)
	if len(series) != len(closes) {
		t.Fatalf("series length %d, want %d", len(series), len(closes))
	}
	for i := range closes {
		want := SMA(closes[:i+1], 3)
		got := series[i]
		if math.IsNaN(want) != math.IsNaN(got) {
			t.Fatalf("index %d: NaN mismatch, got %v want %v", i, got, want)
		}
		if !math.IsNaN(want) && got != want {
			t.Errorf("index %d: got %v want %v", i, got, want)
		}
	}
	// Warmup positions are NaN.
	if !math.IsNaN(series[0]) || !math.IsNaN(series[1]) {
		t.Errorf("expected NaN warmup, got %v %v", series[0], series[1])
	}
}

func TestSeriesWarmupNaN(t *testing.T) {
	closes := make([]float64, 30)
	highs := make([]float64, 30)
	lows := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
		highs[i] = closes[i] + 1
		lows[i] = closes[i] - 1
	}

	rsi := RSISeries(closes, 14)
	for i := 0; i < 14; i++ {
		if !math.IsNaN(rsi[i]) {
			t.Fatalf("RSISeries[%d] = %v, want NaN during warmup", i, rsi[i])
		}
	}
	if math.IsNaN(rsi[14]) {
		t.Error("RSISeries[14] unexpectedly NaN after warmup")
	}

	atr := ATRSeries(highs, lows, closes, 14)
	for i := 0; i < 14; i++ {
		if !math.IsNaN(atr[i]) {
			t.Fatalf("ATRSeries[%d] = %v, want NaN during warmup", i, atr[i])
		}
	}
	if math.IsNaN(atr[len(atr)-1]) {
		t.Error("ATRSeries tail unexpectedly NaN")
	}
}

func TestReturns(t *testing.T) {
	got := Returns([]float64{100, 110, 99})
	if got[0] != 0 {
		t.Errorf("Returns[0] = %v, want 0", got[0])
	}
	if math.Abs(got[1]-0.1) > 1e-12 {
		t.Errorf("Returns[1] = %v, want 0.1", got[1])
	}
	if math.Abs(got[2]-(-0.1)) > 1e-12 {
		t.Errorf("Returns[2] = %v, want -0.1", got[2])
	}
}
