package history

import (
	"context"
	"time"
)

// Logger defines the logging interface used by the pruner.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// RunPruner deletes entries older than retention every interval until ctx
// is cancelled. It prunes once immediately on start.
func RunPruner(ctx context.Context, s *SQLiteStore, retention, interval time.Duration, logger Logger) {
	if retention <= 0 || interval <= 0 {
		return
	}

	prune := func() {
		n, err := s.Prune(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("history prune failed", "error", err)
			}
			return
		}
		if n > 0 {
			logger.Info("history pruned", "rows", n, "retention", retention.String())
		}
	}

	prune()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
