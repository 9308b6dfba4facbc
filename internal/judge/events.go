package judge

import (
	"context"
	"log/slog"

	copilot "github.com/github/copilot-sdk/go"
)

// sessionLogger returns a Copilot event handler that traces the judge's
// streamed output at debug level.
func sessionLogger(model string) func(copilot.SessionEvent) {
	return func(event copilot.SessionEvent) {
		if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			return
		}

		attrs := []any{"judge", "copilot", "event", event.Type}
		if model != "" {
			attrs = append(attrs, "model", model)
		}
		attrs = appendText(attrs, "content", event.Data.Content)
		attrs = appendText(attrs, "delta", event.Data.DeltaContent)
		attrs = appendText(attrs, "reasoning", event.Data.ReasoningText)

		slog.Debug("judge session event", attrs...)
	}
}

func appendText(attrs []any, key string, v *string) []any {
	if v == nil || *v == "" {
		return attrs
	}
	return append(attrs, key, *v)
}
