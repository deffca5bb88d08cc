// Package state implements the per-identity conversation state: the active
// persona for each chat, the rolling message history supplied as LLM context,
// and the id of the bot's last comment in each chat. State is persisted as a
// single JSON document per bot identity.
package state

// History entry roles as sent to the completion service.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultRole is the built-in persona used when no custom role is set.
const DefaultRole = "You are a friendly assistant who comments on messages in a group chat."

// HistoryEntry is one past turn of the rolling conversation window.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// State is the full persisted state of one bot identity, keyed by chat id.
//
// BaseRole carries the legacy identity-wide persona written by earlier
// revisions of the state file; it is honored as the fallback for chats
// without a specific role and preserved on save.
type State struct {
	BaseRole       string
	ChatRoles      map[int64]string
	LastMessageIDs map[int64]int
	ChatHistories  map[int64][]HistoryEntry
}

// NewState returns an empty state with all maps initialized.
func NewState() *State {
	return &State{
		ChatRoles:      make(map[int64]string),
		LastMessageIDs: make(map[int64]int),
		ChatHistories:  make(map[int64][]HistoryEntry),
	}
}
