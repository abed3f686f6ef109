package types

import (
	"fmt"
	"math"
	"time"
)

// Bar is one OHLCV record at a time step.
type Bar struct {
	Ts                          int64
	Open, High, Low, Close, Vol float64
}

// ValidateBars checks the OHLCV ordering invariants on a series.
func ValidateBars(bars []Bar) error {
	for i, b := range bars {
		if b.High < math.Max(b.Open, b.Close) {
			return fmt.Errorf("bar %d: high %.6f below max(open, close)", i, b.High)
		}
		if b.Low > math.Min(b.Open, b.Close) {
			return fmt.Errorf("bar %d: low %.6f above min(open, close)", i, b.Low)
		}
		if b.Vol < 0 {
			return fmt.Errorf("bar %d: negative volume %.6f", i, b.Vol)
		}
	}
	return nil
}

// Direction is the discrete action a strategy emits at a bar.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
	Close Direction = "CLOSE"
	None  Direction = "NONE"
)

// Decision is a strategy's output at a bar. StopMult and TakeMult are
// optional risk multipliers; zero means unset.
type Decision struct {
	Direction Direction `json:"direction"`
	StopMult  float64   `json:"stop_mult,omitempty"`
	TakeMult  float64   `json:"take_mult,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// DecisionsEqual reports whether two decisions match: direction must be
// identical, and when strict is set the risk multipliers must also agree
// within tol.
func DecisionsEqual(a, b Decision, strict bool, tol float64) bool {
	if a.Direction != b.Direction {
		return false
	}
	if !strict {
		return true
	}
	return floatsClose(a.StopMult, b.StopMult, tol) && floatsClose(a.TakeMult, b.TakeMult, tol)
}

func floatsClose(a, b, tol float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return math.Abs(a-b) <= tol
}

// IndicatorFrame is a bar series augmented with strategy-computed columns.
// Columns are aligned 1:1 with Bars. A frame is built fresh per plugin call
// and never mutated afterwards.
type IndicatorFrame struct {
	Bars    []Bar
	Columns map[string][]float64
}

// NewIndicatorFrame allocates a frame over the given bars.
func NewIndicatorFrame(bars []Bar) *IndicatorFrame {
	return &IndicatorFrame{Bars: bars, Columns: map[string][]float64{}}
}

// SetColumn attaches a named indicator column. The column must be aligned
// with the bar series.
func (f *IndicatorFrame) SetColumn(name string, vals []float64) error {
	if len(vals) != len(f.Bars) {
		return fmt.Errorf("column %q length %d does not match %d bars", name, len(vals), len(f.Bars))
	}
	f.Columns[name] = vals
	return nil
}

// ColumnNames returns the attached column names in unspecified order.
func (f *IndicatorFrame) ColumnNames() []string {
	names := make([]string, 0, len(f.Columns))
	for n := range f.Columns {
		names = append(names, n)
	}
	return names
}

// TestVerdict is the immutable result of one bias-detection test run.
type TestVerdict struct {
	Passed         bool     `json:"passed"`
	FlaggedBars    []int    `json:"flagged_bars,omitempty"`
	FlaggedColumns []string `json:"flagged_columns,omitempty"`
	Rate           float64  `json:"rate"`
	BarsTested     int      `json:"bars_tested"`
	ExecErrors     int      `json:"exec_errors"`
	Detail         string   `json:"detail"`
}

// State is the lifecycle state of a stored strategy.
type State string

const (
	StateCandidate State = "CANDIDATE"
	StateClaimed   State = "CLAIMED"
	StateValidated State = "VALIDATED"
	StateFailed    State = "FAILED"
)

// StrategyRecord is one stored strategy plus its lifecycle metadata.
type StrategyRecord struct {
	ID         string
	Name       string
	Source     string
	State      State
	ClaimedBy  string
	FailReason string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ScanResult is the outcome of the static pre-filter.
type ScanResult struct {
	Passed     bool
	Violations []string
	TypeName   string
}
