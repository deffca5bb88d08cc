package tasks

import (
	"context"
)

// ScheduledTaskFunc defines the standard signature for all scheduled tasks.
// The context provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks initializes and returns a map of all registered scheduled
// tasks, keyed by the identifier used in configuration and logging.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	registered := make(map[string]ScheduledTaskFunc)

	if deps.Archive != nil {
		registered["archive_cleanup"] = newArchiveCleanupTask(deps)
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(registered))
	return registered
}
