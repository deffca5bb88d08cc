package tasks

import (
	"context"
	"fmt"
	"time"
)

// newArchiveCleanupTask creates the scheduled task trimming archive rows past
// the configured retention window.
func newArchiveCleanupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "archive_cleanup")

	return func(ctx context.Context) error {
		cutoff := time.Now().UTC().Add(-deps.Retention)
		startTime := time.Now()

		deleted, err := deps.Archive.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			log.ErrorContext(ctx, "Archive cleanup failed", "error", err, "cutoff", cutoff)
			return fmt.Errorf("archive cleanup failed: %w", err)
		}

		log.InfoContext(ctx, "Archive cleanup completed",
			"deleted", deleted, "cutoff", cutoff, "duration", time.Since(startTime))
		return nil
	}
}
