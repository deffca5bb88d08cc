// Package handlers contains the Telegram command and message handlers for
// one bot identity, along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// AdminOnly creates a middleware gating mutating commands behind the
// identity's admin allow-list. An empty list means open mode: every user is
// authorized. Rejected attempts get a fixed denial message and are logged
// with the offending user id; the wrapped handler never runs for them.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				return
			}
			if !authorizeCommand(ctx, deps, b, update.Message) {
				return
			}
			next(ctx, b, update)
		}
	}
}

// authorizeCommand checks the sender against the admin allow-list. A rejected
// attempt gets the denial message and is logged with the offending user id.
func authorizeCommand(ctx context.Context, deps HandlerDeps, tp sender, msg *models.Message) bool {
	userID := msg.From.ID
	if deps.Bot.IsAdmin(userID) {
		return true
	}

	chatID := msg.Chat.ID
	log := deps.Logger.With("middleware", "admin_only")
	log.WarnContext(ctx, "Unauthorized command attempt", "user_id", userID, "chat_id", chatID)

	_, err := tp.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   deps.Messages.Denied,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send denial message", "error", err, "chat_id", chatID)
	}
	return false
}
