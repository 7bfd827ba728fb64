package health

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gamestatushq/statusbot/internal/metrics"
)

const defaultCycleStale = 3 * time.Minute

// Checker evaluates readiness conditions for the bot process.
type Checker struct {
	metrics    *metrics.Store
	staleAfter time.Duration

	mu               sync.RWMutex
	lastCycleSuccess time.Time
	cycleErr         string
	lastCycleError   time.Time
}

// NewChecker constructs a readiness checker bound to the provided metrics
// store. staleAfter should comfortably exceed the reconciliation interval.
func NewChecker(store *metrics.Store, staleAfter time.Duration) *Checker {
	if staleAfter <= 0 {
		staleAfter = defaultCycleStale
	}
	return &Checker{
		metrics:    store,
		staleAfter: staleAfter,
	}
}

// ObserveCycle records the outcome of one reconciliation cycle.
func (c *Checker) ObserveCycle(ts time.Time, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.cycleErr = err.Error()
		c.lastCycleError = ts
		return
	}
	c.lastCycleSuccess = ts
	c.cycleErr = ""
	c.lastCycleError = time.Time{}
}

// Ready evaluates all readiness conditions and returns the overall status
// and reasons for failure.
func (c *Checker) Ready(now time.Time) (bool, []string) {
	c.mu.RLock()
	lastSuccess := c.lastCycleSuccess
	cycleErr := c.cycleErr
	lastErr := c.lastCycleError
	staleAfter := c.staleAfter
	c.mu.RUnlock()

	reasons := make([]string, 0, 2)

	if lastSuccess.IsZero() {
		reasons = append(reasons, "no reconciliation cycle completed yet")
	} else if now.Sub(lastSuccess) > staleAfter {
		reasons = append(reasons, fmt.Sprintf("last cycle stale (%s)", now.Sub(lastSuccess).Round(time.Second)))
	}

	if cycleErr != "" && now.Sub(lastErr) <= staleAfter {
		reasons = append(reasons, fmt.Sprintf("cycle failing: %s", cycleErr))
	}

	ready := len(reasons) == 0
	if c.metrics != nil {
		c.metrics.ObserveReadiness(ready, strings.Join(reasons, "; "))
	}
	if !ready {
		return false, reasons
	}
	return true, nil
}
