package log

import (
	"context"
	"log/slog"
)

// Tool writes the supplied message to the default structured logger.
type Tool struct{}

// NewTool creates a new log tool.
func NewTool(_ map[string]any) *Tool {
	return &Tool{}
}

// Name implements protocol.Tool.
func (t *Tool) Name() string {
	return "log"
}

// Invoke implements protocol.Tool.
func (t *Tool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	logger := slog.Default().With("module", "log_tool")

	message, _ := args["message"].(string)
	level, _ := args["level"].(string)

	switch level {
	case "debug":
		logger.DebugContext(ctx, message)
	case "warn", "warning":
		logger.WarnContext(ctx, message)
	case "error":
		logger.ErrorContext(ctx, message)
	default:
		logger.InfoContext(ctx, message)
	}

	return map[string]any{"logged": true, "message": message}, nil
}
