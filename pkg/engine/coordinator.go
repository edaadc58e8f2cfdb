package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ccrm/agentgraph/pkg/models"
	"github.com/ccrm/agentgraph/pkg/otelhelper"
	"github.com/ccrm/agentgraph/pkg/protocol"
)

// ToolCoordinator executes one agent turn's tool-call requests strictly in
// sequence. Later calls may have been formulated assuming the results of
// earlier ones are visible, so the order is an observable guarantee, not an
// optimization target.
type ToolCoordinator struct {
	tools  protocol.ToolResolver
	logger *slog.Logger
	tracer trace.Tracer
}

// NewToolCoordinator creates a coordinator backed by the given resolver.
func NewToolCoordinator(tools protocol.ToolResolver, logger *slog.Logger, tracer trace.Tracer) *ToolCoordinator {
	return &ToolCoordinator{
		tools:  tools,
		logger: logger.With("module", "tool_coordinator"),
		tracer: tracer,
	}
}

// ExecuteBatch runs the calls in order, producing exactly one result entry
// per call. A failing invocation does not fail the batch: its error becomes
// the entry's payload, visible to the next agent turn. The returned signal
// names the most recently executed tool.
//
// Entries are returned, not committed; the engine appends them atomically
// with the step. A context error aborts the batch so no partial step is ever
// recorded.
func (c *ToolCoordinator) ExecuteBatch(
	ctx context.Context,
	nodeID string,
	step int,
	calls []models.ToolCall,
) ([]models.Entry, models.Signal, error) {
	entries := make([]models.Entry, 0, len(calls))
	signal := models.Signal{}

	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, models.Signal{}, err
		}

		entry := models.Entry{
			Kind:      models.EntryKindToolResult,
			Step:      step,
			NodeID:    nodeID,
			ToolName:  call.Name,
			Timestamp: time.Now(),
		}

		callCtx, span := c.tracer.Start(ctx, "engine.tool", trace.WithAttributes(
			attribute.String(otelhelper.ToolNameKey, call.Name),
			attribute.String(otelhelper.NodeIDKey, nodeID),
			attribute.Int(otelhelper.StepKey, step),
		))

		result, err := c.invoke(callCtx, call)

		switch {
		case ctx.Err() != nil:
			otelhelper.SetError(span, ctx.Err())
			span.End()

			return nil, models.Signal{}, ctx.Err()
		case err != nil:
			c.logger.WarnContext(ctx, "Tool invocation failed",
				"tool", call.Name, "node_id", nodeID, "error", err)

			otelhelper.SetError(span, err)

			entry.Error = err.Error()
		default:
			entry.Result = result
		}

		span.End()

		entries = append(entries, entry)
		signal.ToolName = call.Name
	}

	return entries, signal, nil
}

func (c *ToolCoordinator) invoke(ctx context.Context, call models.ToolCall) (any, error) {
	tool, err := c.tools.ResolveTool(call.Name)
	if err != nil {
		return nil, err
	}

	return await(ctx, func() (any, error) {
		return tool.Invoke(ctx, call.Arguments)
	})
}
