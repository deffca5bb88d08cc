package state

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// ErrEmptyRole is returned when a caller tries to set a blank persona.
var ErrEmptyRole = errors.New("role text cannot be empty")

// Manager is the policy layer over one identity's Store. It enforces the
// history window limit and the default-persona fallback, and serializes all
// read-modify-persist cycles under one lock. The store lock is never held
// across network calls; whole comment cycles for a chat are serialized
// separately via LockChat/UnlockChat.
type Manager struct {
	store        *Store
	log          *slog.Logger
	historyLimit int

	mu    sync.Mutex
	state *State

	chatMu    sync.Mutex
	chatLocks map[int64]*sync.Mutex
}

// NewManager loads the identity's state from the store and returns a manager
// enforcing the given history limit.
func NewManager(store *Store, historyLimit int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if historyLimit < 1 {
		historyLimit = 1
	}
	return &Manager{
		store:        store,
		log:          logger.With("component", "state_manager"),
		historyLimit: historyLimit,
		state:        store.Load(),
		chatLocks:    make(map[int64]*sync.Mutex),
	}
}

// LockChat acquires the per-chat processing lock. It serializes whole comment
// cycles for one chat so an inbound message never starts its read before the
// previous message's mutations are durable. Cycles for different chats run
// concurrently.
func (m *Manager) LockChat(chatID int64) {
	m.chatMu.Lock()
	lock, ok := m.chatLocks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		m.chatLocks[chatID] = lock
	}
	m.chatMu.Unlock()

	lock.Lock()
}

// UnlockChat releases the per-chat processing lock.
func (m *Manager) UnlockChat(chatID int64) {
	m.chatMu.Lock()
	lock := m.chatLocks[chatID]
	m.chatMu.Unlock()

	if lock != nil {
		lock.Unlock()
	}
}

// Role returns the active persona for a chat: the chat's own role if set,
// otherwise the identity's legacy base role, otherwise the built-in default.
func (m *Manager) Role(chatID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if role, ok := m.state.ChatRoles[chatID]; ok && role != "" {
		return role
	}
	if m.state.BaseRole != "" {
		return m.state.BaseRole
	}
	return DefaultRole
}

// HasCustomRole reports whether the chat has a persona differing from the
// built-in default.
func (m *Manager) HasCustomRole(chatID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.ChatRoles[chatID]; ok {
		return true
	}
	return m.state.BaseRole != ""
}

// SetRole overwrites the chat's persona and persists immediately.
// Returns ErrEmptyRole for blank text; no state is mutated in that case.
func (m *Manager) SetRole(chatID int64, role string) error {
	if strings.TrimSpace(role) == "" {
		return ErrEmptyRole
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.ChatRoles[chatID] = role
	if err := m.store.Save(m.state); err != nil {
		return fmt.Errorf("failed to persist role: %w", err)
	}
	return nil
}

// DeleteRole resets the chat to the default persona. The returned bool
// reports whether a custom role had existed; calling it again yields the
// same default state and false.
func (m *Manager) DeleteRole(chatID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, hadChatRole := m.state.ChatRoles[chatID]
	hadBaseRole := m.state.BaseRole != ""
	if !hadChatRole && !hadBaseRole {
		return false, nil
	}

	delete(m.state.ChatRoles, chatID)
	m.state.BaseRole = ""
	if err := m.store.Save(m.state); err != nil {
		return true, fmt.Errorf("failed to persist role reset: %w", err)
	}
	return true, nil
}

// History returns a copy of the chat's rolling window, oldest first.
func (m *Manager) History(chatID int64) []HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.state.ChatHistories[chatID]
	out := make([]HistoryEntry, len(history))
	copy(out, history)
	return out
}

// AppendHistory appends one entry to the chat's window, evicts the oldest
// entries beyond the configured limit, and persists.
func (m *Manager) AppendHistory(chatID int64, role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := append(m.state.ChatHistories[chatID], HistoryEntry{Role: role, Content: content})
	if len(history) > m.historyLimit {
		history = history[len(history)-m.historyLimit:]
	}
	m.state.ChatHistories[chatID] = history

	if err := m.store.Save(m.state); err != nil {
		return fmt.Errorf("failed to persist history: %w", err)
	}
	return nil
}

// ClearHistory drops the chat's rolling window and persists.
func (m *Manager) ClearHistory(chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.ChatHistories[chatID]; !ok {
		return nil
	}
	delete(m.state.ChatHistories, chatID)

	if err := m.store.Save(m.state); err != nil {
		return fmt.Errorf("failed to persist history reset: %w", err)
	}
	return nil
}

// LastMessageID returns the id of the bot's most recent comment in the chat,
// if one is stored.
func (m *Manager) LastMessageID(chatID int64) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.state.LastMessageIDs[chatID]
	return id, ok
}

// SetLastMessageID stores the id of the bot's new comment and persists.
func (m *Manager) SetLastMessageID(chatID int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.LastMessageIDs[chatID] = messageID
	if err := m.store.Save(m.state); err != nil {
		return fmt.Errorf("failed to persist last message id: %w", err)
	}
	return nil
}

// ClearLastMessageID removes the stored comment id, so the state never
// references a message that no longer exists.
func (m *Manager) ClearLastMessageID(chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.LastMessageIDs[chatID]; !ok {
		return nil
	}
	delete(m.state.LastMessageIDs, chatID)

	if err := m.store.Save(m.state); err != nil {
		return fmt.Errorf("failed to persist last message id reset: %w", err)
	}
	return nil
}
