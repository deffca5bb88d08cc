package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/Biaslan-git/goals-comment-bot/internal/config"
	"github.com/Biaslan-git/goals-comment-bot/internal/state"
)

const maxErrorBodySize = 4 * 1024

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// openAIClient talks to an OpenAI-compatible chat-completions endpoint.
type openAIClient struct {
	httpClient  *http.Client
	log         *slog.Logger
	endpoint    string
	apiKey      string
	model       string
	temperature float32
	maxTokens   int
}

func newOpenAIClient(cfg config.LLMConfig, logger *slog.Logger) (*openAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := http.DefaultTransport
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	log := logger.With("component", "llm_client", "provider", "openai")
	log.Info("Completion client initialized", "model", cfg.Model, "base_url", cfg.BaseURL)

	return &openAIClient{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		log:         log,
		endpoint:    cfg.BaseURL + "/chat/completions",
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Complete sends one chat-completion request and returns the generated text.
// Any non-200 response becomes an *UpstreamError carrying the status and the
// response body; no retry is attempted.
func (c *openAIClient) Complete(ctx context.Context, role string, history []state.HistoryEntry, message string) (string, error) {
	messages := buildMessages(role, history, message)

	reqBody, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", &UpstreamError{Status: resp.StatusCode, Detail: string(body)}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response contains no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

// buildMessages assembles the ordered prompt: system persona, stored history
// oldest first, then the new user message.
func buildMessages(role string, history []state.HistoryEntry, message string) []chatMessage {
	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: role})
	for _, entry := range history {
		messages = append(messages, chatMessage{Role: entry.Role, Content: entry.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: message})
	return messages
}
