package state

import (
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// stateDocument is the on-disk JSON shape. Chat ids serialize as string keys
// and are coerced back to int64 on load. The document is versioned by shape:
// files written by older revisions carry only a subset of the fields and
// every missing field defaults on load.
type stateDocument struct {
	Role           string                    `json:"role"`
	ChatRoles      map[string]string         `json:"chat_roles,omitempty"`
	LastMessageIDs map[string]int            `json:"last_message_ids"`
	ChatHistories  map[string][]HistoryEntry `json:"chat_histories,omitempty"`
}

// Store persists one bot identity's State as a single JSON file. The file is
// exclusively owned by this process; callers serialize access through Manager.
type Store struct {
	path string
	log  *slog.Logger
}

// NewStore creates a store for one bot identity. The file name is derived
// from a hash of the bot token so each identity gets a private file inside
// the shared data directory.
func NewStore(token, dataDir string, logger *slog.Logger) (*Store, error) {
	if token == "" {
		return nil, errors.New("bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	tokenHash := fmt.Sprintf("%x", md5.Sum([]byte(token)))[:8]
	path := filepath.Join(dataDir, "role_"+tokenHash+".json")

	return &Store{
		path: path,
		log:  logger.With("component", "state_store"),
	}, nil
}

// Path returns the location of the state file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state file and returns the decoded state. Load never fails:
// a missing file, a corrupt document, or unparsable chat ids all downgrade to
// an empty state so a bad file cannot prevent the identity from starting.
// If the path turns out to be a directory (a known volume-mount hazard), the
// directory is removed and an empty state is returned.
func (s *Store) Load() *State {
	info, err := os.Stat(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("Failed to stat state file, starting with empty state", "path", s.path, "error", err)
		}
		return NewState()
	}

	if info.IsDir() {
		s.log.Warn("State path is a directory, removing it", "path", s.path)
		if err := os.RemoveAll(s.path); err != nil {
			s.log.Warn("Failed to remove directory at state path", "path", s.path, "error", err)
		}
		return NewState()
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		s.log.Warn("Failed to read state file, starting with empty state", "path", s.path, "error", err)
		return NewState()
	}

	var doc stateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		s.log.Warn("State file is corrupt, starting with empty state", "path", s.path, "error", err)
		return NewState()
	}

	st, err := documentToState(&doc)
	if err != nil {
		s.log.Warn("State file has malformed chat ids, starting with empty state", "path", s.path, "error", err)
		return NewState()
	}

	s.log.Debug("State loaded",
		"path", s.path,
		"chats_with_role", len(st.ChatRoles),
		"chats_with_history", len(st.ChatHistories))
	return st
}

// Save writes the whole state back as one atomic operation: the document is
// written to a temp file in the same directory and renamed over the target,
// so a reader or a restart never observes a partial file.
func (s *Store) Save(st *State) error {
	doc := stateToDocument(st)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}

func documentToState(doc *stateDocument) (*State, error) {
	st := NewState()
	st.BaseRole = doc.Role

	for k, v := range doc.ChatRoles {
		chatID, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q in chat_roles: %w", k, err)
		}
		st.ChatRoles[chatID] = v
	}
	for k, v := range doc.LastMessageIDs {
		chatID, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q in last_message_ids: %w", k, err)
		}
		st.LastMessageIDs[chatID] = v
	}
	for k, v := range doc.ChatHistories {
		chatID, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q in chat_histories: %w", k, err)
		}
		st.ChatHistories[chatID] = v
	}

	return st, nil
}

func stateToDocument(st *State) *stateDocument {
	doc := &stateDocument{
		Role:           st.BaseRole,
		ChatRoles:      make(map[string]string, len(st.ChatRoles)),
		LastMessageIDs: make(map[string]int, len(st.LastMessageIDs)),
		ChatHistories:  make(map[string][]HistoryEntry, len(st.ChatHistories)),
	}
	for chatID, v := range st.ChatRoles {
		doc.ChatRoles[strconv.FormatInt(chatID, 10)] = v
	}
	for chatID, v := range st.LastMessageIDs {
		doc.LastMessageIDs[strconv.FormatInt(chatID, 10)] = v
	}
	for chatID, v := range st.ChatHistories {
		doc.ChatHistories[strconv.FormatInt(chatID, 10)] = v
	}
	return doc
}
