// internal/control/runner.go
package control

import (
	"context"
	"time"
)

// Run calls Compute on every tick until ctx is done, then stops the loop so the
// output is driven to zero. fn, if set, receives every tick. No retries: a failed
// tick is reported and the next tick tries again.
func Run(ctx context.Context, c *Controller, interval time.Duration, fn func(Tick, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t, err := c.Stop()
			if fn != nil {
				fn(t, err)
			}
			return
		case <-ticker.C:
			t, err := c.Compute()
			if fn != nil {
				fn(t, err)
			}
		}
	}
}
