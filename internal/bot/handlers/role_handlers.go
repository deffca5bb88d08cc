package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Biaslan-git/goals-comment-bot/internal/state"
)

// NewSetRoleHandler returns a handler for the /setrole command. It is
// admin-gated through the AdminOnly middleware at registration time.
func NewSetRoleHandler(deps HandlerDeps) bot.HandlerFunc {
	h := setRoleHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.Handle(ctx, b, update)
	}
}

type setRoleHandler struct {
	deps HandlerDeps
}

func (h setRoleHandler) Handle(ctx context.Context, tp sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "setrole")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Setrole handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	role := commandArgs(update.Message.Text)
	if role == "" {
		sendText(ctx, tp, log, chatID, h.deps.Messages.RoleUsage)
		return
	}

	if err := h.deps.State.SetRole(chatID, role); err != nil {
		if errors.Is(err, state.ErrEmptyRole) {
			sendText(ctx, tp, log, chatID, h.deps.Messages.RoleUsage)
			return
		}
		log.ErrorContext(ctx, "Failed to persist role", "error", err, "chat_id", chatID)
		sendText(ctx, tp, log, chatID, h.deps.Messages.Apology)
		return
	}

	log.InfoContext(ctx, "Role set", "chat_id", chatID, "user_id", userID, "role_preview", truncate(role, 50))
	sendText(ctx, tp, log, chatID, fmt.Sprintf(h.deps.Messages.RoleSet, role))
}

// NewGetRoleHandler returns a handler for the /getrole command.
func NewGetRoleHandler(deps HandlerDeps) bot.HandlerFunc {
	h := getRoleHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.Handle(ctx, b, update)
	}
}

type getRoleHandler struct {
	deps HandlerDeps
}

func (h getRoleHandler) Handle(ctx context.Context, tp sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "getrole")

	if update.Message == nil {
		log.WarnContext(ctx, "Getrole handler received update with nil message", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	role := h.deps.State.Role(chatID)
	sendText(ctx, tp, log, chatID, fmt.Sprintf(h.deps.Messages.RoleCurrent, role))
}

// NewDeleteRoleHandler returns a handler for the /deleterole command. It is
// admin-gated through the AdminOnly middleware at registration time.
func NewDeleteRoleHandler(deps HandlerDeps) bot.HandlerFunc {
	h := deleteRoleHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.Handle(ctx, b, update)
	}
}

type deleteRoleHandler struct {
	deps HandlerDeps
}

func (h deleteRoleHandler) Handle(ctx context.Context, tp sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "deleterole")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Deleterole handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	existed, err := h.deps.State.DeleteRole(chatID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to persist role reset", "error", err, "chat_id", chatID)
		sendText(ctx, tp, log, chatID, h.deps.Messages.Apology)
		return
	}

	log.InfoContext(ctx, "Role reset to default", "chat_id", chatID, "user_id", userID, "had_custom_role", existed)
	sendText(ctx, tp, log, chatID, h.deps.Messages.RoleDeleted)
}

func sendText(ctx context.Context, tp sender, log *slog.Logger, chatID int64, text string) {
	if _, err := tp.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
