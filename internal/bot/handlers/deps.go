package handlers

import (
	"log/slog"

	"github.com/Biaslan-git/goals-comment-bot/internal/archive"
	"github.com/Biaslan-git/goals-comment-bot/internal/config"
	"github.com/Biaslan-git/goals-comment-bot/internal/llm"
	"github.com/Biaslan-git/goals-comment-bot/internal/state"
)

// HandlerDeps provides dependencies for one bot identity's handlers.
// Each identity gets its own State manager; the completion client is shared
// across identities. Archive is nil when archiving is disabled.
type HandlerDeps struct {
	Logger   *slog.Logger
	Bot      config.BotConfig
	Messages config.Messages
	State    *state.Manager
	LLM      llm.Client
	Archive  archive.Store
}
