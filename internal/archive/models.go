package archive

import "time"

// Message is one archived chat message: either an admitted group message
// (role "user") or the comment the bot sent in response (role "assistant").
type Message struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	BotName   string    `db:"bot_name"`
	ChatID    int64     `db:"chat_id"`
	UserID    int64     `db:"user_id"`
	Role      string    `db:"role"`
	Content   string    `db:"content"`
	Timestamp time.Time `db:"timestamp"`
}
