package orchestrator

import "time"

// backpressure computes the cooldown applied while the downstream validated
// backlog sits at its limit. The cooldown starts at base and grows by a fixed
// increment per consecutive throttled cycle, capped at max, so the loop
// neither busy-spins nor lets a queue grow that a later stage cannot absorb.
type backpressure struct {
	base, increment, max time.Duration
	consecutive          int
}

func newBackpressure(baseSec, incSec, maxSec int) *backpressure {
	return &backpressure{
		base:      time.Duration(baseSec) * time.Second,
		increment: time.Duration(incSec) * time.Second,
		max:       time.Duration(maxSec) * time.Second,
	}
}

// next returns the cooldown for the current throttled cycle and advances the
// consecutive counter.
func (b *backpressure) next() time.Duration {
	d := b.base + b.increment*time.Duration(b.consecutive)
	if d > b.max {
		d = b.max
	}
	b.consecutive++
	return d
}

// reset clears the streak after a cycle that was not throttled.
func (b *backpressure) reset() {
	b.consecutive = 0
}
