package handlers

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Biaslan-git/goals-comment-bot/internal/archive"
	"github.com/Biaslan-git/goals-comment-bot/internal/state"
)

const (
	aiProcessingTimeout = 2 * time.Minute
	sendMessageTimeout  = 10 * time.Second
	archiveSaveTimeout  = 5 * time.Second
)

// sender is the slice of the Telegram client the command handlers use.
// *bot.Bot satisfies it.
type sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// transport adds the delete call the comment cycle needs on top of sender.
type transport interface {
	sender
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
}

// NewCommentHandler creates the default handler: it admits group messages,
// relays them to the completion service with the chat's persona and history,
// and posts the generated comment, replacing the bot's previous one.
func NewCommentHandler(deps HandlerDeps) bot.HandlerFunc {
	h := commentHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.Handle(ctx, b, update)
	}
}

type commentHandler struct {
	deps HandlerDeps
}

func (h commentHandler) Handle(ctx context.Context, tp transport, update *models.Update) {
	log := h.deps.Logger.With("handler", "comment")

	msg := update.Message
	switch admit(msg, h.deps.Bot) {
	case decisionSkip:
		return
	case decisionPrivateHint:
		if _, err := tp.SendMessage(ctx, &bot.SendMessageParams{ChatID: msg.Chat.ID, Text: h.deps.Messages.PrivateHint}); err != nil {
			log.ErrorContext(ctx, "Failed to send private chat hint", "error", err, "chat_id", msg.Chat.ID)
		}
		return
	case decisionAdmit:
	}

	chatID := msg.Chat.ID

	// One comment cycle at a time per chat: the previous message's state
	// mutations must be durable before the next message starts its read.
	h.deps.State.LockChat(chatID)
	defer h.deps.State.UnlockChat(chatID)

	role := h.deps.State.Role(chatID)
	var history []state.HistoryEntry
	if h.deps.Bot.HistoryEnabled() {
		history = h.deps.State.History(chatID)
	}

	aiCtx, cancel := context.WithTimeout(ctx, aiProcessingTimeout)
	comment, err := h.deps.LLM.Complete(aiCtx, role, history, msg.Text)
	cancel()
	if err != nil {
		log.ErrorContext(ctx, "Comment generation failed", "error", err, "chat_id", chatID)
		if _, sendErr := tp.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: h.deps.Messages.Apology}); sendErr != nil {
			log.ErrorContext(ctx, "Failed to send apology message", "error", sendErr, "chat_id", chatID)
		}
		return
	}

	if h.deps.Bot.DeletePreviousEnabled() {
		h.deleteLastComment(ctx, tp, chatID)
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	params := &bot.SendMessageParams{ChatID: chatID, Text: comment}
	if h.deps.Bot.ReplyEnabled() {
		params.ReplyParameters = &models.ReplyParameters{MessageID: msg.ID}
	}
	sent, err := tp.SendMessage(sendCtx, params)
	cancel()
	if err != nil {
		// No state is mutated for this cycle; the next message starts from
		// the previous durable state.
		log.ErrorContext(ctx, "Failed to send comment", "error", err, "chat_id", chatID)
		return
	}

	log.InfoContext(ctx, "Commented", "chat_id", chatID, "message_id", sent.ID)

	if h.deps.Bot.HistoryEnabled() {
		if err := h.deps.State.AppendHistory(chatID, state.RoleUser, msg.Text); err != nil {
			log.ErrorContext(ctx, "Failed to persist user history entry", "error", err, "chat_id", chatID)
		}
		if err := h.deps.State.AppendHistory(chatID, state.RoleAssistant, comment); err != nil {
			log.ErrorContext(ctx, "Failed to persist assistant history entry", "error", err, "chat_id", chatID)
		}
	}

	if err := h.deps.State.SetLastMessageID(chatID, sent.ID); err != nil {
		log.ErrorContext(ctx, "Failed to persist last message id", "error", err, "chat_id", chatID)
	}

	h.archiveExchange(ctx, msg, comment)
}

// deleteLastComment removes the bot's previous comment in the chat, if one is
// stored. The stored id is cleared whether or not the delete succeeds: after
// a successful delete it no longer references anything, and after a failed
// one (the message was likely removed by hand) keeping it would leave a
// stale reference.
func (h commentHandler) deleteLastComment(ctx context.Context, tp transport, chatID int64) {
	log := h.deps.Logger.With("handler", "comment")

	lastID, ok := h.deps.State.LastMessageID(chatID)
	if !ok {
		return
	}

	if _, err := tp.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: lastID}); err != nil {
		log.WarnContext(ctx, "Could not delete previous comment", "error", err, "chat_id", chatID, "message_id", lastID)
	} else {
		log.DebugContext(ctx, "Deleted previous comment", "chat_id", chatID, "message_id", lastID)
	}

	if err := h.deps.State.ClearLastMessageID(chatID); err != nil {
		log.ErrorContext(ctx, "Failed to clear last message id", "error", err, "chat_id", chatID)
	}
}

// archiveExchange records the admitted message and the sent comment when the
// archive is enabled. Archive failures are logged and never affect the cycle.
func (h commentHandler) archiveExchange(ctx context.Context, msg *models.Message, comment string) {
	if h.deps.Archive == nil {
		return
	}
	log := h.deps.Logger.With("handler", "comment")

	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	} else if msg.SenderChat != nil {
		userID = msg.SenderChat.ID
	}

	archiveCtx, cancel := context.WithTimeout(ctx, archiveSaveTimeout)
	defer cancel()

	entries := []*archive.Message{
		{
			BotName:   h.deps.Bot.Name,
			ChatID:    msg.Chat.ID,
			UserID:    userID,
			Role:      state.RoleUser,
			Content:   msg.Text,
			Timestamp: time.Unix(int64(msg.Date), 0).UTC(),
		},
		{
			BotName:   h.deps.Bot.Name,
			ChatID:    msg.Chat.ID,
			Role:      state.RoleAssistant,
			Content:   comment,
			Timestamp: time.Now().UTC(),
		},
	}
	for _, entry := range entries {
		if err := h.deps.Archive.SaveMessage(archiveCtx, entry); err != nil {
			log.WarnContext(ctx, "Failed to archive message", "error", err, "chat_id", msg.Chat.ID)
		}
	}
}
