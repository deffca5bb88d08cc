package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/Biaslan-git/goals-comment-bot/internal/config"
	"github.com/Biaslan-git/goals-comment-bot/internal/state"
)

// geminiClient generates comments through Google's Gemini API using the
// official genai SDK.
type geminiClient struct {
	genaiClient *genai.Client
	log         *slog.Logger
	model       string
	temperature float32
	maxTokens   int
}

func newGeminiClient(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (*geminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	log := logger.With("component", "llm_client", "provider", "gemini")
	log.Info("Completion client initialized", "model", cfg.Model)

	return &geminiClient{
		genaiClient: gi,
		log:         log,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Complete sends the persona as system instruction and the history plus the
// new message as alternating user/model contents. SDK and API errors are
// wrapped as *UpstreamError so callers handle every backend uniformly.
func (c *geminiClient) Complete(ctx context.Context, role string, history []state.HistoryEntry, message string) (string, error) {
	var contents []*genai.Content
	for _, entry := range history {
		var genaiRole genai.Role = genai.RoleUser
		if entry.Role == state.RoleAssistant {
			genaiRole = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(entry.Content, genaiRole))
	}
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))

	temperature := c.temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:       &temperature,
		MaxOutputTokens:   int32(c.maxTokens),
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: role}}},
	}

	resp, err := c.genaiClient.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		var apiErr *genai.APIError
		if errors.As(err, &apiErr) {
			return "", &UpstreamError{Status: apiErr.Code, Detail: apiErr.Message}
		}
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}

	return c.extractText(resp)
}

func (c *geminiClient) extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		return "", fmt.Errorf("completion blocked by safety filter: %s", reason)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("completion response contains no content")
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("completion response text is empty")
	}
	return text, nil
}
