package db

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Pruner removes archived document revisions replaced before a cutoff.
type Pruner interface {
	PruneHistory(ctx context.Context, before time.Time) (int64, error)
}

// StartHistoryCleaner prunes archived revisions older than retention every
// interval until ctx is done.
func StartHistoryCleaner(
	ctx context.Context,
	p Pruner,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rows, err := p.PruneHistory(ctx, time.Now().Add(-retention))
				if err != nil {
					log.Error("failed to prune document history", zap.Error(err))
					continue
				}
				if rows > 0 {
					log.Info("pruned document history", zap.Int64("removed", rows))
				}
			}
		}
	}()
}
