package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RetentionJob deletes rows that are no longer needed and reports how many.
type RetentionJob struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// RunRetention runs every job once per interval until ctx is cancelled. A
// failing job is logged and retried on the next tick.
func RunRetention(ctx context.Context, interval time.Duration, logger zerolog.Logger, jobs ...RetentionJob) error {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		for _, job := range jobs {
			n, err := job.Run(ctx)
			if err != nil {
				logger.Warn().Err(err).Str("job", job.Name).Msg("Retention job failed")
				continue
			}
			if n > 0 {
				logger.Info().Str("job", job.Name).Int64("deleted", n).Msg("Expired rows removed")
			}
		}
	}
}
