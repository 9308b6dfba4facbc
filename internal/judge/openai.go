package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	judgeSystemPrompt  = "You are a strict reviewer of generated software artifacts. Follow the requested output format exactly."
)

// OpenAIOptions configures an [OpenAIJudge].
type OpenAIOptions struct {
	// APIKey defaults to $OPENAI_API_KEY.
	APIKey string
	// BaseURL points the client at any OpenAI-compatible endpoint.
	BaseURL string
	Model   string
}

// OpenAIJudge evaluates prompts with the chat completions API.
type OpenAIJudge struct {
	client *openai.Client
	model  string
}

// NewOpenAIJudge creates an [OpenAIJudge].
func NewOpenAIJudge(opts OpenAIOptions) (*OpenAIJudge, error) {
	if opts.APIKey == "" {
		opts.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if opts.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}
	if opts.Model == "" {
		opts.Model = defaultOpenAIModel
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	return &OpenAIJudge{
		client: openai.NewClientWithConfig(cfg),
		model:  opts.Model,
	}, nil
}

// Evaluate implements [Judge].
func (j *OpenAIJudge) Evaluate(ctx context.Context, prompt string) (string, error) {
	slog.Debug("judging via OpenAI", "model", j.model)

	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: j.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: judgeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("OpenAI returned no choices")
	}

	slog.Debug("received judge response", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

// Close implements [Judge].
func (j *OpenAIJudge) Close() error { return nil }
