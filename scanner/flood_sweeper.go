package scanner

import (
	"time"

	"guardbot/utils/logger"

	"go.uber.org/zap"
)

// Sweeper drops flood windows that ended before now.
type Sweeper interface {
	Sweep(now time.Time, span time.Duration) int
}

// StartFloodSweeper evicts stale flood windows every interval until done is
// closed. The returned channel is closed when the goroutine exits.
func StartFloodSweeper(store Sweeper, interval, span time.Duration, done <-chan struct{}) <-chan struct{} {
	stopped := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(stopped)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				if n := store.Sweep(now, span); n > 0 {
					logger.Debug("swept flood windows", zap.Int("removed", n))
				}
			case <-done:
				return
			}
		}
	}()
	return stopped
}
