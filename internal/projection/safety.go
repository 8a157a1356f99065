package projection

import (
	"context"
	"time"
)

const DefaultSafetyRebuildInterval = 6 * time.Hour

// RunPeriodicRebuild requests a full rebuild every interval until ctx is
// done, recovering any snapshot left stale by a dropped signal. A
// non-positive interval disables it.
func RunPeriodicRebuild(ctx context.Context, inv Invalidator, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			inv.InvalidateFull()
		}
	}
}
