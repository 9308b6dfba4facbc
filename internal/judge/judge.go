// Package judge scores generated artifacts by sending rubric prompts to an
// external language-model judge.
package judge

import (
	"context"
	"fmt"

	"github.com/timsvoice/specimin/internal/projectconfig"
)

// Judge evaluates one rubric prompt and returns the raw response text.
type Judge interface {
	Evaluate(ctx context.Context, prompt string) (string, error)
	Close() error
}

// New creates the judge selected by cfg.
func New(cfg projectconfig.JudgeConfig) (Judge, error) {
	switch cfg.Kind {
	case "", "copilot":
		return NewCopilotJudge(cfg.Model, nil), nil
	case "openai":
		return NewOpenAIJudge(OpenAIOptions{Model: cfg.Model, BaseURL: cfg.BaseURL})
	default:
		return nil, fmt.Errorf("'%s' is not a valid judge", cfg.Kind)
	}
}
