// Package retry provides the exponential backoff used between failed reconciliation sweeps.
package retry

import (
	"fmt"
	"math"
	"time"
)

// Backoff configures how long a periodic job waits after consecutive failures.
//
// The wait after n consecutive failures follows:
// delay = min(BaseDelay * ExponentialBase^(n-1), MaxDelay)
//
// Example with defaults (10s base, 2.0 exponential, 10m max):
//
//	Failure 1: 10s
//	Failure 2: 20s
//	Failure 3: 40s
//	Failure 4: 1m20s
//	Failure 5: 2m40s (→ escalate)
type Backoff struct {
	BaseDelay       time.Duration // Wait after the first failure
	MaxDelay        time.Duration // Cap on any single wait
	ExponentialBase float64       // Multiplier per consecutive failure
	EscalateAfter   int           // Failures after which the job reports itself as degraded
}

// DefaultBackoff returns the backoff used by the reconciliation sweep.
func DefaultBackoff() Backoff {
	return Backoff{
		BaseDelay:       10 * time.Second,
		MaxDelay:        10 * time.Minute,
		ExponentialBase: 2.0,
		EscalateAfter:   5,
	}
}

// Delay returns the extra wait after failures consecutive failures.
// Zero failures means no extra wait.
func (b Backoff) Delay(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}

	delay := float64(b.BaseDelay) * math.Pow(b.ExponentialBase, float64(failures-1))
	if delay > float64(b.MaxDelay) {
		return b.MaxDelay
	}
	return time.Duration(delay)
}

// Escalate reports whether failures consecutive failures should be surfaced as an error
// rather than a warning.
func (b Backoff) Escalate(failures int) bool {
	return b.EscalateAfter > 0 && failures >= b.EscalateAfter
}

// Schedule returns a human-readable description of the first n waits.
//
// Example output:
//
//	Backoff Schedule:
//	  Failure 1: wait 10s
//	  Failure 2: wait 20s
//	  ...
//	  → Escalate
func (b Backoff) Schedule(n int) string {
	schedule := "Backoff Schedule:\n"
	for i := 1; i <= n; i++ {
		schedule += fmt.Sprintf("  Failure %d: wait %v\n", i, b.Delay(i))
		if i == b.EscalateAfter {
			schedule += "  → Escalate\n"
		}
	}
	return schedule
}
