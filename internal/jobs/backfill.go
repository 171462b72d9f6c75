// Package jobs runs background maintenance loops.
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/anniejean/castingdesk/internal/services"
)

// Backfiller is the part of SizeReconciler the loop needs.
type Backfiller interface {
	BackfillSizes(ctx context.Context) (services.BackfillReport, error)
}

// StartBackfillLoop re-derives every child's sizes every interval until
// ctx is done. A zero interval disables the loop. The returned channel is
// closed once the loop has exited.
func StartBackfillLoop(ctx context.Context, b Backfiller, every time.Duration, log *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if every <= 0 {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runBackfill(ctx, b, log)
			}
		}
	}()
	return done
}

func runBackfill(ctx context.Context, b Backfiller, log *zap.Logger) {
	rep, err := b.BackfillSizes(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Error("scheduled size backfill failed", zap.Error(err))
		}
		return
	}
	if len(rep.Skipped) > 0 || len(rep.Failed) > 0 {
		log.Warn("scheduled size backfill incomplete",
			zap.Int("processed", rep.Processed),
			zap.Uints("skipped", rep.Skipped),
			zap.Int("failed", len(rep.Failed)),
		)
	}
}
