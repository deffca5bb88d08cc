package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Biaslan-git/goals-comment-bot/internal/config"
	"github.com/Biaslan-git/goals-comment-bot/internal/state"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLLMConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		Provider:    "openai",
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Model:       "test-model",
		Temperature: 0.7,
		MaxTokens:   500,
		Timeout:     5 * time.Second,
	}
}

func TestNewUnknownProvider(t *testing.T) {
	t.Parallel()

	cfg := testLLMConfig("http://localhost")
	cfg.Provider = "anthropic"

	if _, err := New(context.Background(), cfg, testLogger()); err == nil {
		t.Fatal("New() with unknown provider expected error, got nil")
	}
}

func TestNewOpenAIRequiresAPIKey(t *testing.T) {
	t.Parallel()

	cfg := testLLMConfig("http://localhost")
	cfg.APIKey = ""

	if _, err := New(context.Background(), cfg, testLogger()); err == nil {
		t.Fatal("New() without api key expected error, got nil")
	}
}

func TestOpenAIComplete(t *testing.T) {
	t.Parallel()

	var captured chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("request path = %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization header = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "Great progress, keep going!"}}]}`))
	}))
	defer srv.Close()

	client, err := New(context.Background(), testLLMConfig(srv.URL), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	history := []state.HistoryEntry{
		{Role: state.RoleUser, Content: "I ran 5k today"},
		{Role: state.RoleAssistant, Content: "Nice pace!"},
	}
	got, err := client.Complete(context.Background(), "You are a coach", history, "Tomorrow I'll try 7k")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "Great progress, keep going!" {
		t.Errorf("Complete() = %q", got)
	}

	if captured.Model != "test-model" {
		t.Errorf("request model = %q", captured.Model)
	}
	if captured.MaxTokens != 500 {
		t.Errorf("request max_tokens = %d", captured.MaxTokens)
	}

	want := []chatMessage{
		{Role: "system", Content: "You are a coach"},
		{Role: state.RoleUser, Content: "I ran 5k today"},
		{Role: state.RoleAssistant, Content: "Nice pace!"},
		{Role: state.RoleUser, Content: "Tomorrow I'll try 7k"},
	}
	if len(captured.Messages) != len(want) {
		t.Fatalf("request carries %d messages, want %d", len(captured.Messages), len(want))
	}
	for i := range want {
		if captured.Messages[i] != want[i] {
			t.Errorf("messages[%d] = %+v, want %+v", i, captured.Messages[i], want[i])
		}
	}
}

func TestOpenAICompleteUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limit exceeded"}}`))
	}))
	defer srv.Close()

	client, err := New(context.Background(), testLLMConfig(srv.URL), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = client.Complete(context.Background(), "role", nil, "message")
	if err == nil {
		t.Fatal("Complete() expected error, got nil")
	}

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("Complete() error = %v, want *UpstreamError", err)
	}
	if upstreamErr.Status != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want %d", upstreamErr.Status, http.StatusTooManyRequests)
	}
	if upstreamErr.Detail == "" {
		t.Error("Detail is empty, want the upstream body")
	}
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	client, err := New(context.Background(), testLLMConfig(srv.URL), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := client.Complete(context.Background(), "role", nil, "message"); err == nil {
		t.Fatal("Complete() with empty choices expected error, got nil")
	}
}

func TestOpenAICompleteContextCancelled(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	client, err := New(context.Background(), testLLMConfig(srv.URL), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.Complete(ctx, "role", nil, "message"); err == nil {
		t.Fatal("Complete() with expired context expected error, got nil")
	}
}

func TestBuildMessagesWithoutHistory(t *testing.T) {
	t.Parallel()

	messages := buildMessages("persona", nil, "hello")
	if len(messages) != 2 {
		t.Fatalf("buildMessages() returned %d messages, want 2", len(messages))
	}
	if messages[0].Role != "system" || messages[0].Content != "persona" {
		t.Errorf("messages[0] = %+v", messages[0])
	}
	if messages[1].Role != state.RoleUser || messages[1].Content != "hello" {
		t.Errorf("messages[1] = %+v", messages[1])
	}
}

func TestUpstreamErrorMessage(t *testing.T) {
	t.Parallel()

	err := &UpstreamError{Status: 503, Detail: "overloaded"}
	if msg := err.Error(); msg == "" {
		t.Error("Error() returned empty string")
	}
}
