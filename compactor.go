package embeddb

import (
	"context"
	"time"
)

// startCompactor runs compactDue every interval until Close.
func (cl *Client) startCompactor(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	cl.cancel = cancel

	cl.wg.Add(1)
	go func() {
		defer cl.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cl.compactDue(ctx)
			}
		}
	}()
}

// compactDue compacts every collection whose tombstone ratio exceeds its
// threshold. A collection is skipped until the next tick when no background
// slot is free.
func (cl *Client) compactDue(ctx context.Context) {
	for _, c := range cl.list() {
		if ctx.Err() != nil {
			return
		}
		if !c.needsCompaction() {
			continue
		}
		if !cl.resources.TryAcquireBackground() {
			cl.logger.DebugContext(ctx, "compaction deferred",
				"collection", c.Name(),
				"active", cl.resources.BackgroundActive(),
			)
			return
		}
		// Errors are logged and counted by Compact.
		_ = c.Compact(ctx)
		cl.resources.ReleaseBackground()
	}
}
