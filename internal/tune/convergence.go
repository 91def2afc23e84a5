package tune

import (
	"log/slog"
	"math"
)

// ConvergenceConfig defines when a multi-round search stops early
type ConvergenceConfig struct {
	// Enabled controls whether convergence detection is active
	Enabled bool

	// Patience is the number of rounds with no significant improvement before stopping
	Patience int

	// Threshold is the minimum relative improvement required to count as progress
	// Relative improvement = (oldRMSE - newRMSE) / oldRMSE
	Threshold float64
}

// DefaultConvergenceConfig returns the defaults used by the tune command
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  2,
		Threshold: 0.001, // 0.1% improvement
	}
}

// DisabledConvergenceConfig returns a config with convergence detection disabled
func DisabledConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled: false,
	}
}

// ConvergenceTracker records the best RMSE of each round and detects stagnation
type ConvergenceTracker struct {
	config          ConvergenceConfig
	history         []float64
	best            float64
	lastSignificant float64
	staleCount      int
}

// NewConvergenceTracker creates a new convergence tracker with the given config
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		history:         []float64{},
		best:            math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records a round result and returns true if the search has converged
func (c *ConvergenceTracker) Update(rmse float64) bool {
	c.history = append(c.history, rmse)
	if rmse < c.best {
		c.best = rmse
	}

	if !c.config.Enabled {
		return false
	}

	if len(c.history) == 1 {
		c.lastSignificant = rmse
		return false
	}

	// A perfect fit cannot improve further
	if c.lastSignificant == 0 {
		c.staleCount++
		return c.staleCount >= c.config.Patience
	}

	improvement := (c.lastSignificant - rmse) / c.lastSignificant
	if improvement >= c.config.Threshold && improvement > 0 {
		c.lastSignificant = rmse
		c.staleCount = 0
		slog.Debug("Round improved",
			"rmse", rmse,
			"relative_improvement", improvement,
		)
		return false
	}

	c.staleCount++
	slog.Debug("No significant improvement",
		"rmse", rmse,
		"last_significant", c.lastSignificant,
		"relative_improvement", improvement,
		"stale_count", c.staleCount,
		"patience", c.config.Patience,
	)

	if c.staleCount >= c.config.Patience {
		slog.Info("Convergence detected - stopping early",
			"stale_count", c.staleCount,
			"patience", c.config.Patience,
			"best_rmse", c.best,
		)
		return true
	}
	return false
}

// Best returns the lowest RMSE seen so far
func (c *ConvergenceTracker) Best() float64 {
	return c.best
}

// History returns a copy of the per-round results
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.history...)
}

// StaleCount returns the current number of rounds without improvement
func (c *ConvergenceTracker) StaleCount() int {
	return c.staleCount
}

// Reset clears the tracker's state
func (c *ConvergenceTracker) Reset() {
	c.history = []float64{}
	c.best = math.Inf(1)
	c.lastSignificant = math.Inf(1)
	c.staleCount = 0
}
