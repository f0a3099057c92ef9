package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"slidereel/internal/logging"
	"slidereel/internal/store"
)

// watch touches the job record on every tick and cancels the run context
// once the record reaches a terminal state behind its back. The returned func stops the loop.
func (o *Orchestrator) watch(ctx context.Context, cancel context.CancelCauseFunc, jobID string, logger *slog.Logger) func() {
	interval := o.watchInterval
	if interval <= 0 {
		return func() {}
	}
	watchCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
			}
			err := o.store.Touch(watchCtx, jobID)
			if err == nil {
				continue
			}
			if !errors.Is(err, store.ErrTerminal) {
				if !errors.Is(err, context.Canceled) {
					logger.Debug("job heartbeat failed", logging.Error(err))
				}
				continue
			}
			current, getErr := o.store.GetJob(watchCtx, jobID)
			switch {
			case getErr != nil:
			case current.Status == store.StatusCancelled:
				logger.Info("job cancellation observed")
				cancel(errJobCancelled)
			default:
				cancel(fmt.Errorf("job %s became %s while running: %w", jobID, current.Status, store.ErrTerminal))
			}
			return
		}
	}()
	return func() {
		stop()
		wg.Wait()
	}
}
