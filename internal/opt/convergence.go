package opt

import "math"

// StallConfig defines when a population-based search has stopped making progress
type StallConfig struct {
	// Enabled controls whether stall detection is active
	Enabled bool `yaml:"enabled"`

	// Patience is the number of generations with no significant improvement
	// of the best cost before stopping
	Patience int `yaml:"patience"`

	// Threshold is the minimum relative improvement required to count as progress.
	// Relative improvement = (oldCost - newCost) / oldCost
	Threshold float64 `yaml:"threshold"`
}

// DefaultStallConfig returns a patience of 50 generations at 1e-6 relative improvement
func DefaultStallConfig() StallConfig {
	return StallConfig{
		Enabled:   true,
		Patience:  50,
		Threshold: 1e-6,
	}
}

// StallTracker tracks the best cost per generation and detects stagnation
type StallTracker struct {
	config          StallConfig
	generations     int
	bestCost        float64 // Best cost ever seen
	lastSignificant float64 // Last cost that was a significant improvement
	staleCount      int     // Generations without significant improvement
}

// NewStallTracker creates a new tracker with the given config
func NewStallTracker(config StallConfig) *StallTracker {
	return &StallTracker{
		config:          config,
		bestCost:        math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records the best cost of a generation and returns true once the
// search has stalled for Patience generations
func (s *StallTracker) Update(cost float64) bool {
	if !s.config.Enabled {
		return false
	}

	s.generations++
	if cost < s.bestCost {
		s.bestCost = cost
	}

	if s.generations == 1 {
		s.lastSignificant = cost
		return false
	}

	// A zero cost cannot improve any further
	var relative float64
	if s.lastSignificant > 0 {
		relative = (s.lastSignificant - cost) / s.lastSignificant
	}

	if relative >= s.config.Threshold && relative > 0 {
		s.lastSignificant = cost
		s.staleCount = 0
		return false
	}

	s.staleCount++
	return s.staleCount >= s.config.Patience
}

// BestCost returns the best cost seen so far
func (s *StallTracker) BestCost() float64 {
	return s.bestCost
}

// StaleCount returns the current number of generations without improvement
func (s *StallTracker) StaleCount() int {
	return s.staleCount
}

// Reset clears the tracker's state
func (s *StallTracker) Reset() {
	s.generations = 0
	s.bestCost = math.Inf(1)
	s.lastSignificant = math.Inf(1)
	s.staleCount = 0
}
