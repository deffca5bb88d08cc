package state

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"
)

func newTestManager(t *testing.T, historyLimit int) *Manager {
	t.Helper()

	store := newTestStore(t)
	return NewManager(store, historyLimit, testLogger())
}

func TestManagerRoleFallback(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 10)
	chatID := int64(-100)

	if got := m.Role(chatID); got != DefaultRole {
		t.Errorf("Role() without custom role = %q, want default", got)
	}
	if m.HasCustomRole(chatID) {
		t.Error("HasCustomRole() = true for fresh chat")
	}

	if err := m.SetRole(chatID, "strict coach"); err != nil {
		t.Fatalf("SetRole() error = %v", err)
	}
	if got := m.Role(chatID); got != "strict coach" {
		t.Errorf("Role() = %q, want %q", got, "strict coach")
	}
	if !m.HasCustomRole(chatID) {
		t.Error("HasCustomRole() = false after SetRole")
	}

	// Other chats are unaffected.
	if got := m.Role(-200); got != DefaultRole {
		t.Errorf("Role() for other chat = %q, want default", got)
	}
}

func TestManagerLegacyBaseRoleFallback(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	legacy := `{"role": "inherited persona", "last_message_ids": {}}`
	if err := os.WriteFile(store.Path(), []byte(legacy), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	m := NewManager(store, 10, testLogger())

	// Every chat inherits the legacy base role until it sets its own.
	if got := m.Role(-1); got != "inherited persona" {
		t.Errorf("Role() = %q, want legacy base role", got)
	}

	if err := m.SetRole(-1, "chat-specific"); err != nil {
		t.Fatalf("SetRole() error = %v", err)
	}
	if got := m.Role(-1); got != "chat-specific" {
		t.Errorf("Role() = %q, want chat role over base role", got)
	}
	if got := m.Role(-2); got != "inherited persona" {
		t.Errorf("Role() for other chat = %q, want legacy base role", got)
	}
}

func TestManagerSetRoleEmpty(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 10)

	for _, role := range []string{"", "   ", "\n\t "} {
		if err := m.SetRole(-1, role); !errors.Is(err, ErrEmptyRole) {
			t.Errorf("SetRole(%q) error = %v, want ErrEmptyRole", role, err)
		}
	}
	if m.HasCustomRole(-1) {
		t.Error("rejected SetRole still recorded a custom role")
	}
}

func TestManagerDeleteRole(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 10)
	chatID := int64(-100)

	if err := m.SetRole(chatID, "custom"); err != nil {
		t.Fatalf("SetRole() error = %v", err)
	}

	existed, err := m.DeleteRole(chatID)
	if err != nil {
		t.Fatalf("DeleteRole() error = %v", err)
	}
	if !existed {
		t.Error("DeleteRole() existed = false, want true")
	}
	if got := m.Role(chatID); got != DefaultRole {
		t.Errorf("Role() after delete = %q, want default", got)
	}

	// Deleting again is a no-op on an already-default chat.
	existed, err = m.DeleteRole(chatID)
	if err != nil {
		t.Fatalf("DeleteRole() second call error = %v", err)
	}
	if existed {
		t.Error("DeleteRole() second call existed = true, want false")
	}
	if got := m.Role(chatID); got != DefaultRole {
		t.Errorf("Role() after second delete = %q, want default", got)
	}
}

func TestManagerDeleteRoleClearsLegacyBaseRole(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	legacy := `{"role": "old persona", "last_message_ids": {}}`
	if err := os.WriteFile(store.Path(), []byte(legacy), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	m := NewManager(store, 10, testLogger())

	existed, err := m.DeleteRole(-1)
	if err != nil {
		t.Fatalf("DeleteRole() error = %v", err)
	}
	if !existed {
		t.Error("DeleteRole() existed = false with legacy base role present")
	}
	if got := m.Role(-2); got != DefaultRole {
		t.Errorf("Role() for other chat after delete = %q, want default", got)
	}
}

func TestManagerHistoryWindow(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 3)
	chatID := int64(-100)

	for i := 1; i <= 4; i++ {
		role := RoleUser
		if i%2 == 0 {
			role = RoleAssistant
		}
		if err := m.AppendHistory(chatID, role, fmt.Sprintf("entry %d", i)); err != nil {
			t.Fatalf("AppendHistory() error = %v", err)
		}
	}

	history := m.History(chatID)
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	for i, want := range []string{"entry 2", "entry 3", "entry 4"} {
		if history[i].Content != want {
			t.Errorf("history[%d].Content = %q, want %q", i, history[i].Content, want)
		}
	}
}

func TestManagerHistoryWindowSizes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		limit   int
		appends int
		wantLen int
	}{
		{limit: 1, appends: 5, wantLen: 1},
		{limit: 4, appends: 2, wantLen: 2},
		{limit: 4, appends: 4, wantLen: 4},
		{limit: 20, appends: 35, wantLen: 20},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("limit=%d/appends=%d", tt.limit, tt.appends), func(t *testing.T) {
			t.Parallel()

			m := newTestManager(t, tt.limit)
			for i := 0; i < tt.appends; i++ {
				if err := m.AppendHistory(-1, RoleUser, fmt.Sprintf("m%d", i)); err != nil {
					t.Fatalf("AppendHistory() error = %v", err)
				}
			}

			history := m.History(-1)
			if len(history) != tt.wantLen {
				t.Fatalf("history length = %d, want %d", len(history), tt.wantLen)
			}
			// The newest entry always survives eviction.
			if got := history[len(history)-1].Content; got != fmt.Sprintf("m%d", tt.appends-1) {
				t.Errorf("newest entry = %q, want m%d", got, tt.appends-1)
			}
		})
	}
}

func TestManagerHistoryReturnsCopy(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 10)
	if err := m.AppendHistory(-1, RoleUser, "original"); err != nil {
		t.Fatalf("AppendHistory() error = %v", err)
	}

	history := m.History(-1)
	history[0].Content = "mutated"

	if got := m.History(-1)[0].Content; got != "original" {
		t.Errorf("stored history entry = %q, caller mutation leaked", got)
	}
}

func TestManagerClearHistory(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 10)
	if err := m.AppendHistory(-1, RoleUser, "hello"); err != nil {
		t.Fatalf("AppendHistory() error = %v", err)
	}

	if err := m.ClearHistory(-1); err != nil {
		t.Fatalf("ClearHistory() error = %v", err)
	}
	if got := m.History(-1); len(got) != 0 {
		t.Errorf("history length after clear = %d, want 0", len(got))
	}

	// Clearing an already-empty chat is a no-op.
	if err := m.ClearHistory(-1); err != nil {
		t.Fatalf("ClearHistory() second call error = %v", err)
	}
}

func TestManagerLastMessageIDLifecycle(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 10)
	chatID := int64(-100)

	if _, ok := m.LastMessageID(chatID); ok {
		t.Error("LastMessageID() ok = true for fresh chat")
	}

	if err := m.SetLastMessageID(chatID, 42); err != nil {
		t.Fatalf("SetLastMessageID() error = %v", err)
	}
	id, ok := m.LastMessageID(chatID)
	if !ok || id != 42 {
		t.Errorf("LastMessageID() = %d, %v, want 42, true", id, ok)
	}

	if err := m.ClearLastMessageID(chatID); err != nil {
		t.Fatalf("ClearLastMessageID() error = %v", err)
	}
	if _, ok := m.LastMessageID(chatID); ok {
		t.Error("LastMessageID() ok = true after clear")
	}

	if err := m.ClearLastMessageID(chatID); err != nil {
		t.Fatalf("ClearLastMessageID() second call error = %v", err)
	}
}

func TestManagerPersistsAcrossRestarts(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	store, err := NewStore("123:token", dataDir, testLogger())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	m := NewManager(store, 5, testLogger())
	if err := m.SetRole(-1, "persisted persona"); err != nil {
		t.Fatalf("SetRole() error = %v", err)
	}
	if err := m.AppendHistory(-1, RoleUser, "hello"); err != nil {
		t.Fatalf("AppendHistory() error = %v", err)
	}
	if err := m.SetLastMessageID(-1, 99); err != nil {
		t.Fatalf("SetLastMessageID() error = %v", err)
	}

	// A second manager over the same file sees every mutation.
	reopened, err := NewStore("123:token", dataDir, testLogger())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	m2 := NewManager(reopened, 5, testLogger())

	if got := m2.Role(-1); got != "persisted persona" {
		t.Errorf("Role() after restart = %q", got)
	}
	if got := m2.History(-1); len(got) != 1 || got[0].Content != "hello" {
		t.Errorf("History() after restart = %+v", got)
	}
	if id, ok := m2.LastMessageID(-1); !ok || id != 99 {
		t.Errorf("LastMessageID() after restart = %d, %v, want 99, true", id, ok)
	}
}

func TestManagerChatLockSerializes(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 10)

	m.LockChat(-1)

	acquired := make(chan struct{})
	go func() {
		m.LockChat(-1)
		close(acquired)
		m.UnlockChat(-1)
	}()

	select {
	case <-acquired:
		t.Fatal("second LockChat acquired while first is held")
	case <-time.After(50 * time.Millisecond):
	}

	m.UnlockChat(-1)

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second LockChat still blocked after unlock")
	}
}
