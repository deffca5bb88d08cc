package handlers

import (
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/Biaslan-git/goals-comment-bot/internal/config"
)

// decision is the admission outcome for one inbound message.
type decision int

const (
	// decisionSkip drops the message without any reply.
	decisionSkip decision = iota
	// decisionPrivateHint answers with the "I work in groups" hint.
	decisionPrivateHint
	// decisionAdmit forwards the message to the completion service.
	decisionAdmit
)

// admit decides whether an inbound message triggers a comment. Drop
// conditions are checked in order, first match wins: empty or command text
// (commands are routed by their own handlers), private chats (answered with
// a hint instead of a comment), bot senders without a channel identity (loop
// prevention), and a configured channel restriction the sender does not
// match.
func admit(msg *models.Message, cfg config.BotConfig) decision {
	if msg == nil || msg.Text == "" {
		return decisionSkip
	}
	if strings.HasPrefix(msg.Text, "/") {
		return decisionSkip
	}

	switch msg.Chat.Type {
	case models.ChatTypePrivate:
		return decisionPrivateHint
	case models.ChatTypeGroup, models.ChatTypeSupergroup:
	default:
		return decisionSkip
	}

	if msg.From != nil && msg.From.IsBot && msg.SenderChat == nil {
		return decisionSkip
	}

	if cfg.ChannelID != 0 && msg.SenderChat != nil && msg.SenderChat.ID != cfg.ChannelID {
		return decisionSkip
	}

	return decisionAdmit
}

// commandArgs returns the argument text after a command, with the command
// itself (including any @botname suffix) stripped.
func commandArgs(text string) string {
	_, args, found := strings.Cut(text, " ")
	if !found {
		return ""
	}
	return strings.TrimSpace(args)
}
