package orchestrator

import (
	"testing"
	"time"
)

func TestBackpressureCooldownGrowsAndCaps(t *testing.T) {
	bp := newBackpressure(5, 5, 60)

	var prev time.Duration
	for i := 0; i < 20; i++ {
		d := bp.next()
		if d < prev {
			t.Fatalf("cooldown decreased from %v to %v on cycle %d", prev, d, i)
		}
		if d > 60*time.Second {
			t.Fatalf("cooldown %v exceeded cap on cycle %d", d, i)
		}
		prev = d
	}
	if prev != 60*time.Second {
		t.Errorf("expected cooldown to reach cap, got %v", prev)
	}
}

func TestBackpressureFirstCycleUsesBase(t *testing.T) {
	bp := newBackpressure(5, 10, 60)
	if d := bp.next(); d != 5*time.Second {
		t.Errorf("expected base cooldown 5s, got %v", d)
	}
	if d := bp.next(); d != 15*time.Second {
		t.Errorf("expected base+increment 15s, got %v", d)
	}
}

func TestBackpressureReset(t *testing.T) {
	bp := newBackpressure(5, 5, 60)
	bp.next()
	bp.next()
	bp.reset()
	if d := bp.next(); d != 5*time.Second {
		t.Errorf("expected reset to return to base, got %v", d)
	}
}
