package tune

import (
	"math"
	"testing"
)

func TestConvergenceTracker_BasicConvergence(t *testing.T) {
	config := ConvergenceConfig{
		Enabled:   true,
		Patience:  3,
		Threshold: 0.01, // 1% improvement required
	}
	tracker := NewConvergenceTracker(config)

	if tracker.Best() != math.Inf(1) {
		t.Errorf("Expected initial best to be Inf, got %v", tracker.Best())
	}

	if tracker.Update(0.2) {
		t.Error("Should not converge on first round")
	}

	if tracker.Update(0.16) { // 20% improvement
		t.Error("Should not converge after improvement")
	}
	if tracker.StaleCount() != 0 {
		t.Errorf("Expected stale count 0 after improvement, got %v", tracker.StaleCount())
	}

	// Below 1% of 0.16
	if tracker.Update(0.1599) {
		t.Error("Should not converge yet (1/3)")
	}
	if tracker.Update(0.1598) {
		t.Error("Should not converge yet (2/3)")
	}
	if !tracker.Update(0.1597) {
		t.Error("Should converge after patience exceeded (3/3)")
	}
	if tracker.StaleCount() != 3 {
		t.Errorf("Expected stale count 3, got %v", tracker.StaleCount())
	}
	if tracker.Best() != 0.1597 {
		t.Errorf("Expected best 0.1597, got %v", tracker.Best())
	}
}

func TestConvergenceTracker_ImprovementResetsStaleCount(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{Enabled: true, Patience: 2, Threshold: 0.05})

	tracker.Update(1.0)
	tracker.Update(0.99)
	if tracker.StaleCount() != 1 {
		t.Errorf("Expected stale count 1, got %v", tracker.StaleCount())
	}

	tracker.Update(0.94)
	if tracker.StaleCount() != 0 {
		t.Errorf("Expected stale count reset to 0, got %v", tracker.StaleCount())
	}
}

func TestConvergenceTracker_PerfectFit(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{Enabled: true, Patience: 1, Threshold: 0.001})

	tracker.Update(0)
	if !tracker.Update(0) {
		t.Error("Expected convergence once the error is zero")
	}
}

func TestConvergenceTracker_Disabled(t *testing.T) {
	tracker := NewConvergenceTracker(DisabledConvergenceConfig())

	for i := 0; i < 100; i++ {
		if tracker.Update(1.0) {
			t.Fatal("Should never converge when disabled")
		}
	}
	// History is still recorded for reporting
	if len(tracker.History()) != 100 {
		t.Errorf("Expected 100 history entries, got %d", len(tracker.History()))
	}
}

func TestConvergenceTracker_HistoryIsCopy(t *testing.T) {
	tracker := NewConvergenceTracker(DefaultConvergenceConfig())
	for _, v := range []float64{0.3, 0.2, 0.1} {
		tracker.Update(v)
	}

	history := tracker.History()
	history[0] = 999
	if tracker.History()[0] == 999 {
		t.Error("History() should return a copy, not a reference")
	}
}

func TestConvergenceTracker_Reset(t *testing.T) {
	tracker := NewConvergenceTracker(DefaultConvergenceConfig())
	tracker.Update(1.0)
	tracker.Update(0.99)

	tracker.Reset()

	if len(tracker.History()) != 0 {
		t.Error("Expected empty history after reset")
	}
	if tracker.Best() != math.Inf(1) {
		t.Error("Expected best reset to Inf")
	}
	if tracker.StaleCount() != 0 {
		t.Error("Expected stale count reset to 0")
	}
}
