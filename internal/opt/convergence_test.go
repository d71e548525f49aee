package opt

import (
	"math"
	"testing"
)

func TestStallTracker_BasicStall(t *testing.T) {
	tracker := NewStallTracker(StallConfig{
		Enabled:   true,
		Patience:  3,
		Threshold: 0.01, // 1% improvement required
	})

	if tracker.BestCost() != math.Inf(1) {
		t.Errorf("Expected initial best cost to be Inf, got %v", tracker.BestCost())
	}

	if tracker.Update(1.0) {
		t.Error("Should not stall on first update")
	}

	if tracker.Update(0.8) { // 20% improvement
		t.Error("Should not stall after improvement")
	}
	if tracker.StaleCount() != 0 {
		t.Errorf("Expected stale count 0 after improvement, got %v", tracker.StaleCount())
	}

	// Last significant was 0.8, improvements below 1% are stale
	if tracker.Update(0.795) {
		t.Error("Should not stall yet (1/3)")
	}
	if tracker.Update(0.794) {
		t.Error("Should not stall yet (2/3)")
	}
	if !tracker.Update(0.793) {
		t.Error("Should stall after patience exceeded (3/3)")
	}
	if tracker.BestCost() != 0.793 {
		t.Errorf("Expected best cost 0.793, got %v", tracker.BestCost())
	}
}

func TestStallTracker_ImprovementResetsStaleCount(t *testing.T) {
	tracker := NewStallTracker(StallConfig{Enabled: true, Patience: 2, Threshold: 0.05})

	tracker.Update(1.0)
	tracker.Update(0.99)
	if tracker.StaleCount() != 1 {
		t.Errorf("Expected stale count 1, got %v", tracker.StaleCount())
	}

	tracker.Update(0.94) // 5.05% below the last significant cost
	if tracker.StaleCount() != 0 {
		t.Errorf("Expected stale count reset to 0, got %v", tracker.StaleCount())
	}
}

func TestStallTracker_ZeroCost(t *testing.T) {
	tracker := NewStallTracker(StallConfig{Enabled: true, Patience: 2, Threshold: 1e-6})

	tracker.Update(0)
	if tracker.Update(0) {
		t.Error("Should not stall yet (1/2)")
	}
	if !tracker.Update(0) {
		t.Error("A zero cost should count as stalled")
	}
}

func TestStallTracker_Disabled(t *testing.T) {
	tracker := NewStallTracker(StallConfig{Enabled: false, Patience: 1})
	for i := 0; i < 10; i++ {
		if tracker.Update(1.0) {
			t.Fatal("Disabled tracker should never stall")
		}
	}
}

func TestStallTracker_Reset(t *testing.T) {
	tracker := NewStallTracker(DefaultStallConfig())
	tracker.Update(3)
	tracker.Update(3)
	tracker.Reset()

	if tracker.StaleCount() != 0 || tracker.BestCost() != math.Inf(1) {
		t.Errorf("Reset did not clear state: stale=%d best=%v", tracker.StaleCount(), tracker.BestCost())
	}
}
