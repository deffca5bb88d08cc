// Package llm provides clients for the completion service that generates
// chat comments. Two backends are available behind one interface: an
// OpenAI-compatible chat-completions API (the default, used with Groq) and
// Google's Gemini API.
package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Biaslan-git/goals-comment-bot/internal/config"
	"github.com/Biaslan-git/goals-comment-bot/internal/state"
)

// Client generates one comment for a new chat message. The prompt is built
// as: system entry = role, then the history entries in stored order, then the
// new user message. A single attempt is made per call; the caller decides
// what to do on failure.
type Client interface {
	Complete(ctx context.Context, role string, history []state.HistoryEntry, message string) (string, error)
}

// UpstreamError is returned when the completion service answers with a
// non-success status. It carries the upstream status and response body so
// the failure can be logged with full detail while the user only sees a
// generic apology.
type UpstreamError struct {
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion service error: status %d: %s", e.Status, e.Detail)
}

// New creates a completion client for the configured provider.
func New(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return newOpenAIClient(cfg, logger)
	case "gemini":
		return newGeminiClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
