package janitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"slidereel/internal/logging"
)

// Schedule registers RunOnce on c using a standard cron spec such as
// "@every 15m". Overlapping ticks are skipped.
func (j *Janitor) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := j.RunOnce(ctx); err != nil {
			if errors.Is(err, ErrBusy) {
				j.logger.Debug("janitor pass skipped; lock held elsewhere")
				return
			}
			logging.ErrorWithContext(j.logger, "janitor pass failed", "janitor_failed",
				logging.String(logging.FieldErrorHint, "check database connectivity"),
				logging.Error(err),
			)
		}
	}))
	id, err := c.AddJob(spec, job)
	if err != nil {
		return 0, fmt.Errorf("schedule janitor %q: %w", spec, err)
	}
	return id, nil
}
