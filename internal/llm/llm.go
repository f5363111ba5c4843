// Package llm asks an OpenAI-compatible model for a narrative summary of a
// graded class. It never changes scores.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/sheetcheck/internal/llm/prompts"
	"github.com/pavelanni/sheetcheck/internal/model"
)

// ErrNoChoices is returned when the model answers without any completion.
var ErrNoChoices = errors.New("LLM returned no choices")

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.Variant
}

// New creates a new LLM client. An empty variant means standard.
func New(baseURL, apiKey, modelName, variant string) (*Client, error) {
	if variant == "" {
		variant = string(prompts.VariantStandard)
	}
	if !prompts.IsValidVariant(variant) {
		return nil, fmt.Errorf("unknown summary variant %q", variant)
	}
	if err := prompts.Load(prompts.FS); err != nil {
		return nil, err
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: prompts.Variant(variant),
	}, nil
}

// Summarize describes the class performance in plain language.
func (c *Client) Summarize(ctx context.Context, rs model.ResultSet, st model.Stats) (string, error) {
	prompt, err := prompts.BuildSummaryPrompt(c.variant, rs, st)
	if err != nil {
		return "", fmt.Errorf("build summary prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: "Summarize these results."},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("LLM summary", "variant", c.variant, "chars", len(summary))
	return summary, nil
}
