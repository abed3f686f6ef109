package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"strategy-validator/internal/analyzer"
	"strategy-validator/internal/bias"
	"strategy-validator/internal/interfaces"
	"strategy-validator/internal/marketdata"
	"strategy-validator/internal/plugin"
	"strategy-validator/internal/repository"
	"strategy-validator/internal/store"
	"strategy-validator/internal/types"
)

const cleanSource = `package strategy

type SMACross struct {
	fast, slow int
}
`

const leakySource = `package strategy

type LeakyStrategy struct{}
`

const forbiddenSource = `package strategy

import "time"

type ClockStrategy struct{}

func (s *ClockStrategy) now() int64 { return time.Now().Unix() }
`

// leakyTestStrategy reads the final row of whatever series it is given.
type leakyTestStrategy struct{}

func (s *leakyTestStrategy) IndicatorColumns() []string { return nil }
func (s *leakyTestStrategy) MinLookback() int           { return 50 }

func (s *leakyTestStrategy) CalculateIndicators(bars []types.Bar) (*types.IndicatorFrame, error) {
	frame := types.NewIndicatorFrame(bars)
	gate := make([]float64, len(bars))
	if len(bars) > 0 {
		last := bars[len(bars)-1].Close
		for i := range gate {
			gate[i] = last
		}
	}
	_ = frame.SetColumn("gate", gate)
	return frame, nil
}

func (s *leakyTestStrategy) GenerateSignal(frame *types.IndicatorFrame) (types.Decision, error) {
	n := len(frame.Bars)
	if n == 0 {
		return types.Decision{Direction: types.None}, nil
	}
	if frame.Columns["gate"][n-1] > frame.Bars[n-1].Close*1.001 {
		return types.Decision{Direction: types.Long}, nil
	}
	return types.Decision{Direction: types.None}, nil
}

// fragileStrategy cannot survive an empty series.
type fragileStrategy struct{}

func (s *fragileStrategy) IndicatorColumns() []string { return nil }
func (s *fragileStrategy) MinLookback() int           { return 50 }

func (s *fragileStrategy) CalculateIndicators(bars []types.Bar) (*types.IndicatorFrame, error) {
	_ = bars[len(bars)-1] // panics on empty input
	return types.NewIndicatorFrame(bars), nil
}

func (s *fragileStrategy) GenerateSignal(_ *types.IndicatorFrame) (types.Decision, error) {
	return types.Decision{Direction: types.None}, nil
}

func testConfig(t *testing.T) *store.Config {
	t.Helper()
	cfg := store.DefaultConfig()
	cfg.Workers = 2
	cfg.StatusLogSeconds = 1
	cfg.MarketData.Bars = 300
	cfg.BiasTests.MinHistory = 100
	cfg.BiasTests.Contamination.SamplePoints = 10
	cfg.BiasTests.Differential.SamplePoints = 5
	return cfg
}

func testRegistry() *plugin.Registry {
	r := plugin.DefaultRegistry()
	r.Register("LeakyStrategy", func() interfaces.StrategyPlugin { return &leakyTestStrategy{} })
	r.Register("FragileStrategy", func() interfaces.StrategyPlugin { return &fragileStrategy{} })
	return r
}

func newTestOrchestrator(t *testing.T, cfg *store.Config, st interfaces.StrategyStore) *Orchestrator {
	t.Helper()
	t.Setenv("VALIDATOR_LOG_DIR", t.TempDir())
	detector := bias.New(bias.Config{
		MinHistory:           cfg.BiasTests.MinHistory,
		Tolerance:            cfg.BiasTests.Tolerance,
		Seed:                 cfg.MarketData.Seed,
		ContaminationSamples: cfg.BiasTests.Contamination.SamplePoints,
		FutureWindow:         cfg.BiasTests.Contamination.FutureWindow,
		FakeFutures:          cfg.BiasTests.Contamination.FakeFutures,
		DifferentialSamples:  cfg.BiasTests.Differential.SamplePoints,
		Lookahead:            cfg.BiasTests.Differential.Lookahead,
		DeterminismRepeats:   cfg.BiasTests.DeterminismRepeats,
	})
	market := marketdata.NewSynthetic(cfg.MarketData.Seed, cfg.MarketData.Bars)
	return New(cfg, st, analyzer.New(), plugin.NewLoader(testRegistry()), detector, market)
}

func TestValidatePromotesCleanStrategy(t *testing.T) {
	cfg := testConfig(t)
	st := repository.NewMemory("proc-test")
	o := newTestOrchestrator(t, cfg, st)

	outcome := o.validate(context.Background(), &types.StrategyRecord{
		ID: "s1", Name: "sma", Source: cleanSource,
	})
	if !outcome.Promoted {
		t.Fatalf("expected promotion, failed at %s: %s", outcome.FailPhase, outcome.Reason)
	}
	if len(outcome.Verdicts) != 3 {
		t.Errorf("expected 3 verdicts, got %d", len(outcome.Verdicts))
	}
}

func TestValidateRejectsForbiddenSourceAtStaticScan(t *testing.T) {
	cfg := testConfig(t)
	o := newTestOrchestrator(t, cfg, repository.NewMemory("proc-test"))

	outcome := o.validate(context.Background(), &types.StrategyRecord{
		ID: "s2", Name: "clock", Source: forbiddenSource,
	})
	if outcome.Promoted {
		t.Fatal("expected rejection")
	}
	if outcome.FailPhase != PhaseStaticScan {
		t.Errorf("expected failure at %s, got %s", PhaseStaticScan, outcome.FailPhase)
	}
	if !strings.Contains(outcome.Reason, "time") {
		t.Errorf("reason should name the forbidden import, got %q", outcome.Reason)
	}
}

func TestValidateRejectsLeakyStrategyAtBiasPhase(t *testing.T) {
	cfg := testConfig(t)
	o := newTestOrchestrator(t, cfg, repository.NewMemory("proc-test"))

	outcome := o.validate(context.Background(), &types.StrategyRecord{
		ID: "s3", Name: "leaky", Source: leakySource,
	})
	if outcome.Promoted {
		t.Fatal("expected rejection of leaky strategy")
	}
	if outcome.FailPhase != PhaseDifferential && outcome.FailPhase != PhaseContaminate {
		t.Errorf("expected a bias phase failure, got %s", outcome.FailPhase)
	}
	v, ok := outcome.Verdicts[outcome.FailPhase]
	if !ok || len(v.FlaggedBars) == 0 {
		t.Errorf("expected failing verdict with flagged bars, got %+v", v)
	}
}

func TestValidateRejectsFragileStrategyAtSmokeTest(t *testing.T) {
	cfg := testConfig(t)
	o := newTestOrchestrator(t, cfg, repository.NewMemory("proc-test"))

	outcome := o.validate(context.Background(), &types.StrategyRecord{
		ID: "s4", Name: "fragile", Source: `package strategy

type FragileStrategy struct{}
`,
	})
	if outcome.Promoted {
		t.Fatal("expected rejection")
	}
	if outcome.FailPhase != PhaseSmokeTest {
		t.Errorf("expected failure at %s, got %s", PhaseSmokeTest, outcome.FailPhase)
	}
}

func TestDeterminismPhaseCanBeDisabled(t *testing.T) {
	cfg := testConfig(t)
	off := false
	cfg.BiasTests.Determinism = &off
	o := newTestOrchestrator(t, cfg, repository.NewMemory("proc-test"))

	outcome := o.validate(context.Background(), &types.StrategyRecord{
		ID: "s5", Name: "sma", Source: cleanSource,
	})
	if !outcome.Promoted {
		t.Fatalf("expected promotion, failed at %s: %s", outcome.FailPhase, outcome.Reason)
	}
	if _, ok := outcome.Verdicts[PhaseDeterminism]; ok {
		t.Error("determinism verdict present despite being disabled")
	}
}

func TestDeterminismPhaseRunsWithBiasTestsDisabled(t *testing.T) {
	cfg := testConfig(t)
	off := false
	cfg.BiasTests.Enabled = &off
	o := newTestOrchestrator(t, cfg, repository.NewMemory("proc-test"))

	outcome := o.validate(context.Background(), &types.StrategyRecord{
		ID: "s6", Name: "sma", Source: cleanSource,
	})
	if !outcome.Promoted {
		t.Fatalf("expected promotion, failed at %s: %s", outcome.FailPhase, outcome.Reason)
	}
	if _, ok := outcome.Verdicts[PhaseDeterminism]; !ok {
		t.Error("determinism verdict missing despite being enabled")
	}
	if len(outcome.Verdicts) != 1 {
		t.Errorf("expected only the determinism verdict, got %d", len(outcome.Verdicts))
	}
}

func TestRunPromotesAndRemovesFromBacklog(t *testing.T) {
	cfg := testConfig(t)
	st := repository.NewMemory("proc-test")
	ctx := context.Background()
	if _, err := st.Add(ctx, "sma", cleanSource); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Add(ctx, "clock", forbiddenSource); err != nil {
		t.Fatal(err)
	}

	o := newTestOrchestrator(t, cfg, st)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- o.Run(runCtx) }()

	deadline := time.After(20 * time.Second)
	for {
		validated, err := st.CountAvailable(ctx, types.StateValidated)
		if err != nil {
			t.Fatal(err)
		}
		candidates, _ := st.CountAvailable(ctx, types.StateCandidate)
		claimed, _ := st.CountAvailable(ctx, types.StateClaimed)
		if validated == 1 && candidates == 0 && claimed == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("pipeline did not settle: validated=%d candidates=%d claimed=%d",
				validated, candidates, claimed)
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// The forbidden strategy was rejected and deleted.
	depths, err := st.QueueDepths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if depths[types.StateFailed] != 0 {
		t.Errorf("rejected strategies should be deleted, found %d failed", depths[types.StateFailed])
	}
}

func TestShutdownReleasesClaimedStrategies(t *testing.T) {
	cfg := testConfig(t)
	st := repository.NewMemory("proc-test")
	ctx := context.Background()
	if _, err := st.Add(ctx, "sma", cleanSource); err != nil {
		t.Fatal(err)
	}
	if rec, err := st.Claim(ctx, types.StateCandidate); err != nil || rec == nil {
		t.Fatalf("claim failed: rec=%v err=%v", rec, err)
	}

	o := newTestOrchestrator(t, cfg, st)
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := o.Run(cancelled); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	available, err := st.CountAvailable(ctx, types.StateCandidate)
	if err != nil {
		t.Fatal(err)
	}
	if available != 1 {
		t.Errorf("expected claimed strategy released back to candidate, available=%d", available)
	}
}

func TestBackpressureBlocksClaimsAtLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.ValidatedLimit = 1
	st := repository.NewMemory("proc-test")
	ctx := context.Background()

	// Fill the downstream backlog to its limit.
	id, err := st.Add(ctx, "done", cleanSource)
	if err != nil {
		t.Fatal(err)
	}
	if rec, err := st.Claim(ctx, types.StateCandidate); err != nil || rec == nil || rec.ID != id {
		t.Fatalf("setup claim failed: rec=%v err=%v", rec, err)
	}
	if err := st.Release(ctx, id, types.StateValidated); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Add(ctx, "waiting", cleanSource); err != nil {
		t.Fatal(err)
	}

	o := newTestOrchestrator(t, cfg, st)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- o.Run(runCtx) }()

	// The base cooldown is 5s; within 1.5s no claim may happen.
	time.Sleep(1500 * time.Millisecond)
	candidates, err := st.CountAvailable(ctx, types.StateCandidate)
	if err != nil {
		t.Fatal(err)
	}
	if candidates != 1 {
		t.Errorf("expected candidate to remain unclaimed while throttled, available=%d", candidates)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}
