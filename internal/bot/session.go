package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"

	"github.com/Biaslan-git/goals-comment-bot/internal/archive"
	"github.com/Biaslan-git/goals-comment-bot/internal/bot/handlers"
	"github.com/Biaslan-git/goals-comment-bot/internal/config"
	"github.com/Biaslan-git/goals-comment-bot/internal/llm"
	"github.com/Biaslan-git/goals-comment-bot/internal/logger"
	"github.com/Biaslan-git/goals-comment-bot/internal/state"
	"github.com/Biaslan-git/goals-comment-bot/internal/telegram"
)

// Session runs one bot identity: it owns that identity's state manager and
// Telegram bot instance, and drives the response policy for every inbound
// message. The completion client and archive are shared across sessions.
type Session struct {
	logger *slog.Logger
	cfg    config.BotConfig
	tgBot  *tgbot.Bot
}

// NewSession builds a session for one configured identity. The identity's
// state lives in a private file under dataDir, derived from the bot token.
func NewSession(
	log *slog.Logger,
	cfg *config.Config,
	botCfg config.BotConfig,
	llmClient llm.Client,
	archiveStore archive.Store,
) (*Session, error) {
	sessionLog := log.With("bot", botCfg.Name)

	store, err := state.NewStore(botCfg.Token, cfg.Store.DataDir, sessionLog)
	if err != nil {
		return nil, fmt.Errorf("failed to create state store: %w", err)
	}
	manager := state.NewManager(store, cfg.Store.HistoryLimit, sessionLog)

	deps := handlers.HandlerDeps{
		Logger:   sessionLog,
		Bot:      botCfg,
		Messages: cfg.Messages,
		State:    manager,
		LLM:      llmClient,
		Archive:  archiveStore,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(sessionLog)),
		tgbot.WithDefaultHandler(handlers.NewCommentHandler(deps)),
	}
	tg, err := telegram.NewTelegramBot(botCfg.Token, sessionLog, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	if err := telegram.RegisterHandlers(tg, sessionLog, handlers.RegisterAllCommands(deps)); err != nil {
		return nil, fmt.Errorf("failed to register handlers: %w", err)
	}

	return &Session{
		logger: sessionLog,
		cfg:    botCfg,
		tgBot:  tg,
	}, nil
}

// Name returns the identity's display name.
func (s *Session) Name() string {
	return s.cfg.Name
}

// Run publishes the command menu and polls for updates until the context is
// cancelled. A command-menu failure is logged but does not stop the session.
func (s *Session) Run(ctx context.Context) error {
	me, err := s.tgBot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	s.logger.Info("Starting bot session", "bot_id", me.ID, "bot_username", me.Username)

	if err := telegram.SetupCommands(ctx, s.tgBot, s.logger); err != nil {
		s.logger.Warn("Failed to set up bot commands", "error", err)
	}

	s.tgBot.Start(ctx)
	s.logger.Info("Bot session stopped")

	if ctx.Err() == nil {
		return fmt.Errorf("telegram listener stopped unexpectedly")
	}
	return nil
}
