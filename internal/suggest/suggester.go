// Package suggest proposes new seed targets for an account using an LLM.
// It is an operator convenience invoked from the CLI, never from the hot
// follow loop.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// Config holds the OpenAI settings for target suggestion.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:      apiKey,
		Model:       openai.GPT4oMini,
		Temperature: 0.7,
		Timeout:     60 * time.Second,
	}
}

// Suggester asks a chat model for usernames whose follower graphs are likely
// to follow back accounts in the same niche.
type Suggester struct {
	client completionClient
	config Config
	logger *slog.Logger
}

// completionClient is the slice of the OpenAI client the suggester uses.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

func New(config Config, logger *slog.Logger) (*Suggester, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("suggest: OPENAI_API_KEY is required")
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	return &Suggester{
		client: openai.NewClient(config.APIKey),
		config: config,
		logger: logger,
	}, nil
}

const systemPrompt = `You suggest social network accounts worth targeting for follow-back growth.
Given an account name and its current seed targets, return usernames of popular accounts
in the same community whose follower lists are likely to contain engaged users.
Respond with JSON: {"suggested_usernames": ["name1", "name2", ...]}.
Return only plain usernames, no @ prefixes, no URLs.`

type suggestionPayload struct {
	SuggestedUsernames []string `json:"suggested_usernames"`
}

// SuggestTargets returns up to limit candidate target usernames. Duplicates
// of the current seeds are filtered out.
func (s *Suggester) SuggestTargets(ctx context.Context, accountName string, currentTargets []string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}

	apiCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	userPrompt := fmt.Sprintf(
		"Account: %s\nCurrent targets: %s\nSuggest up to %d new target usernames.",
		accountName, strings.Join(currentTargets, ", "), limit)

	resp, err := s.client.CreateChatCompletion(apiCtx, openai.ChatCompletionRequest{
		Model: s.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: s.config.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("suggest: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("suggest: empty response from model")
	}

	var payload suggestionPayload
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("suggest: malformed model response: %w", err)
	}

	existing := make(map[string]struct{}, len(currentTargets))
	for _, target := range currentTargets {
		existing[strings.ToLower(target)] = struct{}{}
	}

	suggestions := make([]string, 0, limit)
	for _, name := range payload.SuggestedUsernames {
		name = strings.TrimPrefix(strings.TrimSpace(name), "@")
		if name == "" {
			continue
		}
		if _, dup := existing[strings.ToLower(name)]; dup {
			continue
		}
		existing[strings.ToLower(name)] = struct{}{}
		suggestions = append(suggestions, name)
		if len(suggestions) == limit {
			break
		}
	}

	s.logger.Info("target suggestions generated",
		"account", accountName, "count", len(suggestions))
	return suggestions, nil
}
