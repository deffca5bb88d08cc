// Package tasks implements the scheduled maintenance tasks of the comment
// bot, along with their registration mechanism.
package tasks

import (
	"log/slog"
	"time"

	"github.com/Biaslan-git/goals-comment-bot/internal/archive"
)

// TaskDeps contains the dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger    *slog.Logger
	Archive   archive.Store
	Retention time.Duration
}
