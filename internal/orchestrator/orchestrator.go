package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"strategy-validator/internal/interfaces"
	"strategy-validator/internal/logger"
	"strategy-validator/internal/marketdata"
	"strategy-validator/internal/metrics"
	"strategy-validator/internal/store"
	"strategy-validator/internal/types"
	"strategy-validator/internal/verdictlog"
)

const (
	// poolBusyDelay is the wait when every worker slot is occupied.
	poolBusyDelay = 500 * time.Millisecond
	// emptyBacklogDelay is the wait when no candidate strategies exist.
	emptyBacklogDelay = 2 * time.Second
)

type task struct {
	rec *types.StrategyRecord
}

type result struct {
	strategyID string
	outcome    Outcome
}

// Orchestrator drains the candidate backlog through the validation pipeline.
// One coordinating goroutine claims strategies and submits them to a fixed
// worker pool; workers run the full phase sequence independently and commit
// their outcome to the store. The in-flight tracking map is touched only by
// the coordinator, so it needs no lock.
type Orchestrator struct {
	cfg      *store.Config
	store    interfaces.StrategyStore
	analyzer interfaces.StaticAnalyzer
	loader   interfaces.PluginLoader
	detector interfaces.BiasDetector
	market   interfaces.MarketDataProvider

	tasks   chan task
	results chan result

	fallbackOnce sync.Once
	fallback     []types.Bar
}

func New(
	cfg *store.Config,
	st interfaces.StrategyStore,
	analyzer interfaces.StaticAnalyzer,
	loader interfaces.PluginLoader,
	detector interfaces.BiasDetector,
	market interfaces.MarketDataProvider,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		store:    st,
		analyzer: analyzer,
		loader:   loader,
		detector: detector,
		market:   market,
		tasks:    make(chan task, cfg.Workers),
		results:  make(chan result, cfg.Workers),
	}
}

func (o *Orchestrator) generateFallback() []types.Bar {
	return marketdata.GenerateSeries(o.cfg.MarketData.Seed, o.cfg.MarketData.Bars)
}

// Run drives the validation loop until ctx is cancelled. On shutdown all
// strategies this process holds claimed are released back to the backlog so
// another process can retry them.
func (o *Orchestrator) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.worker(ctx)
		}()
	}

	bp := newBackpressure(
		o.cfg.Backpressure.BaseSeconds,
		o.cfg.Backpressure.IncrementSeconds,
		o.cfg.Backpressure.MaxSeconds,
	)
	statusTick := time.NewTicker(time.Duration(o.cfg.StatusLogSeconds) * time.Second)
	defer statusTick.Stop()

	// task id -> strategy id; coordinator-owned, never touched by workers.
	inFlight := map[string]string{}

	logger.Info(ctx, "Orchestrator started",
		"workers", o.cfg.Workers,
		"validated_limit", o.cfg.ValidatedLimit,
	)

	for {
		select {
		case <-ctx.Done():
			return o.shutdown(inFlight)
		case res := <-o.results:
			o.finish(inFlight, res)
			continue
		case <-statusTick.C:
			o.logQueueDepths(ctx)
			continue
		default:
		}

		if len(inFlight) >= o.cfg.Workers {
			if !o.pause(ctx, poolBusyDelay) {
				return o.shutdown(inFlight)
			}
			continue
		}

		validated, err := o.store.CountAvailable(ctx, types.StateValidated)
		if err != nil {
			logger.ErrorWithErr(ctx, "Failed to read downstream backlog depth", err)
			if !o.pause(ctx, emptyBacklogDelay) {
				return o.shutdown(inFlight)
			}
			continue
		}
		if validated >= o.cfg.ValidatedLimit {
			cooldown := bp.next()
			metrics.ThrottleSeconds.Add(cooldown.Seconds())
			logger.Info(ctx, "Downstream backlog full, throttling",
				"validated", validated,
				"limit", o.cfg.ValidatedLimit,
				"cooldown_s", cooldown.Seconds(),
			)
			if !o.pause(ctx, cooldown) {
				return o.shutdown(inFlight)
			}
			continue
		}
		bp.reset()

		rec, err := o.store.Claim(ctx, types.StateCandidate)
		if err != nil {
			logger.ErrorWithErr(ctx, "Claim failed", err)
			if !o.pause(ctx, emptyBacklogDelay) {
				return o.shutdown(inFlight)
			}
			continue
		}
		if rec == nil {
			if !o.pause(ctx, emptyBacklogDelay) {
				return o.shutdown(inFlight)
			}
			continue
		}

		inFlight[rec.ID] = rec.Name
		metrics.WorkersBusy.Set(float64(len(inFlight)))
		logger.Debug(ctx, "Strategy claimed", "strategy_id", rec.ID, "name", rec.Name)

		select {
		case o.tasks <- task{rec: rec}:
		case <-ctx.Done():
			return o.shutdown(inFlight)
		}
	}
}

// pause sleeps for d or until ctx is cancelled; false means shutting down.
func (o *Orchestrator) pause(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (o *Orchestrator) finish(inFlight map[string]string, res result) {
	delete(inFlight, res.strategyID)
	metrics.WorkersBusy.Set(float64(len(inFlight)))
}

// shutdown stops claiming, releases everything this process holds claimed and
// drains the pool without waiting for stragglers. In-flight phases finish or
// fail naturally; their late store commits lose ownership and are logged as
// no-ops by the store.
func (o *Orchestrator) shutdown(inFlight map[string]string) error {
	ctx := context.Background()
	logger.Info(ctx, "Orchestrator shutting down", "in_flight", len(inFlight))

	close(o.tasks)
	if err := o.store.ReleaseAllClaimed(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Failed to release claimed strategies on shutdown", err)
		return fmt.Errorf("release claimed on shutdown: %w", err)
	}
	logger.Info(ctx, "Released all claimed strategies")
	return nil
}

// worker runs claimed strategies to completion, one at a time.
func (o *Orchestrator) worker(ctx context.Context) {
	for t := range o.tasks {
		o.process(ctx, t.rec)
	}
}

// process runs one strategy's full phase sequence and commits the terminal
// outcome. A panic anywhere in the pipeline is an orchestrator fault: the
// strategy is marked failed and deleted, never left claimed.
func (o *Orchestrator) process(ctx context.Context, rec *types.StrategyRecord) {
	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("orchestrator fault: %v", r)
			logger.Error(ctx, "Panic while validating strategy",
				"strategy_id", rec.ID, "panic", r)
			if err := o.store.MarkFailed(ctx, rec.ID, reason, true); err != nil {
				logger.ErrorWithErr(ctx, "Failed to mark faulted strategy", err, "strategy_id", rec.ID)
			}
			metrics.StrategiesProcessed.WithLabelValues("fault").Inc()
			o.report(result{strategyID: rec.ID, outcome: failed("orchestrator", reason)})
		}
	}()

	start := time.Now()
	outcome := o.validate(ctx, rec)

	if outcome.Promoted {
		if err := o.store.Release(ctx, rec.ID, types.StateValidated); err != nil {
			logger.ErrorWithErr(ctx, "Failed to promote strategy", err, "strategy_id", rec.ID)
		} else {
			logger.Lifecycle(ctx, rec.ID, string(types.StateClaimed), string(types.StateValidated), "all phases passed",
				"duration_ms", time.Since(start).Milliseconds())
			metrics.StrategiesProcessed.WithLabelValues("promoted").Inc()
		}
	} else {
		reason := outcome.FailPhase + ": " + outcome.Reason
		if err := o.store.MarkFailed(ctx, rec.ID, reason, true); err != nil {
			logger.ErrorWithErr(ctx, "Failed to reject strategy", err, "strategy_id", rec.ID)
		} else {
			logger.Lifecycle(ctx, rec.ID, string(types.StateClaimed), string(types.StateFailed), reason,
				"duration_ms", time.Since(start).Milliseconds())
			metrics.StrategiesProcessed.WithLabelValues("rejected").Inc()
			metrics.PhaseFailures.WithLabelValues(outcome.FailPhase).Inc()
		}
	}

	entry := verdictlog.Entry{
		StrategyID: rec.ID,
		Name:       rec.Name,
		FailPhase:  outcome.FailPhase,
		Reason:     outcome.Reason,
		Verdicts:   outcome.Verdicts,
	}
	if outcome.Promoted {
		entry.Outcome = "promoted"
	} else {
		entry.Outcome = "rejected"
	}
	if err := verdictlog.Append(entry); err != nil {
		logger.Warn(ctx, "Failed to append verdict log entry", "error", err)
	}

	o.report(result{strategyID: rec.ID, outcome: outcome})
}

// report hands the completion back to the coordinator without blocking
// forever if the coordinator already exited.
func (o *Orchestrator) report(res result) {
	select {
	case o.results <- res:
	default:
	}
}

func (o *Orchestrator) logQueueDepths(ctx context.Context) {
	depths, err := o.store.QueueDepths(ctx)
	if err != nil {
		logger.Warn(ctx, "Failed to read queue depths", "error", err)
		return
	}
	fields := make([]any, 0, len(depths)*2)
	for state, n := range depths {
		fields = append(fields, string(state), n)
		metrics.QueueDepth.WithLabelValues(string(state)).Set(float64(n))
	}
	logger.Info(ctx, "Queue depths", fields...)
}
