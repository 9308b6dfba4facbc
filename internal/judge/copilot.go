package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	copilot "github.com/github/copilot-sdk/go"
	"github.com/timsvoice/specimin/internal/utils"
)

// CopilotJudge sends each prompt to a fresh GitHub Copilot session.
type CopilotJudge struct {
	model  string
	client copilotClient

	startOnce sync.Once
	startErr  error
}

// CopilotJudgeOptions allows tests to replace the Copilot client.
type CopilotJudgeOptions struct {
	NewCopilotClient func(clientOptions *copilot.ClientOptions) copilotClient
}

// NewCopilotJudge creates a [CopilotJudge]. An empty model lets the Copilot CLI
// choose its own default.
func NewCopilotJudge(model string, options *CopilotJudgeOptions) *CopilotJudge {
	clientOptions := &copilot.ClientOptions{
		AutoStart:       utils.Ptr(false),
		UseLoggedInUser: utils.Ptr(true),
		LogLevel:        "error",
	}

	var client copilotClient
	if options == nil || options.NewCopilotClient == nil {
		client = newCopilotClient(clientOptions)
	} else {
		client = options.NewCopilotClient(clientOptions)
	}

	return &CopilotJudge{model: model, client: client}
}

// Evaluate implements [Judge].
func (j *CopilotJudge) Evaluate(ctx context.Context, prompt string) (string, error) {
	j.startOnce.Do(func() {
		// started once here so concurrent evaluations don't race the client's autostart
		j.startErr = j.client.Start(ctx)
	})
	if j.startErr != nil {
		return "", fmt.Errorf("copilot failed to start: %w", j.startErr)
	}

	session, err := j.client.CreateSession(ctx, &copilot.SessionConfig{
		Model: j.model,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start up copilot session for judging: %w", err)
	}

	unsubscribe := session.On(sessionLogger(j.model))
	defer unsubscribe()

	resp, err := session.SendAndWait(ctx, copilot.MessageOptions{
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to send prompt: %w", err)
	}

	if resp == nil || resp.Data.Content == nil {
		return "", errors.New("judge returned no response content")
	}
	return *resp.Data.Content, nil
}

// Close stops the Copilot client.
func (j *CopilotJudge) Close() error {
	if err := j.client.Stop(); err != nil {
		slog.Info("failed to stop client", "error", err)
		return err
	}
	return nil
}
