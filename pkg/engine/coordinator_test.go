package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ccrm/agentgraph/pkg/models"
	"github.com/ccrm/agentgraph/pkg/testutil"
)

func testTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("test")
}

func TestToolCoordinator_ExecutesCallsInOrder(t *testing.T) {
	var invoked []string

	resolver := testutil.NewFakeResolver(
		&testutil.FakeTool{ToolName: "first", Fn: func(_ context.Context, args map[string]any) (any, error) {
			invoked = append(invoked, "first")

			return args["value"], nil
		}},
		&testutil.FakeTool{ToolName: "second", Fn: func(context.Context, map[string]any) (any, error) {
			invoked = append(invoked, "second")

			return "done", nil
		}},
	)

	coordinator := NewToolCoordinator(resolver, testLogger(), testTracer())

	entries, signal, err := coordinator.ExecuteBatch(context.Background(), "tools", 2, []models.ToolCall{
		{ID: "c1", Name: "first", Arguments: map[string]any{"value": 7}},
		{ID: "c2", Name: "second"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, invoked)
	assert.Equal(t, "second", signal.ToolName)

	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, models.EntryKindToolResult, entry.Kind)
		assert.Equal(t, 2, entry.Step)
		assert.Equal(t, "tools", entry.NodeID)
	}

	assert.Equal(t, 7, entries[0].Result)
	assert.Equal(t, "done", entries[1].Result)
}

func TestToolCoordinator_FailureBecomesEntryPayload(t *testing.T) {
	resolver := testutil.NewFakeResolver(
		&testutil.FakeTool{ToolName: "flaky", Fn: func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("connection reset")
		}},
		&testutil.FakeTool{ToolName: "steady", Fn: func(context.Context, map[string]any) (any, error) {
			return "fine", nil
		}},
	)

	coordinator := NewToolCoordinator(resolver, testLogger(), testTracer())

	entries, signal, err := coordinator.ExecuteBatch(context.Background(), "tools", 1, []models.ToolCall{
		{ID: "c1", Name: "flaky"},
		{ID: "c2", Name: "steady"},
	})
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "connection reset", entries[0].Error)
	assert.Nil(t, entries[0].Result)

	// The batch kept going past the failure.
	assert.Equal(t, "fine", entries[1].Result)
	assert.Equal(t, "steady", signal.ToolName)
}

func TestToolCoordinator_UnknownToolBecomesEntryPayload(t *testing.T) {
	coordinator := NewToolCoordinator(testutil.NewFakeResolver(), testLogger(), testTracer())

	entries, _, err := coordinator.ExecuteBatch(context.Background(), "tools", 1, []models.ToolCall{
		{ID: "c1", Name: "missing"},
	})
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Error, "missing")
}

func TestToolCoordinator_CancelledContextAbortsBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	resolver := testutil.NewFakeResolver(
		&testutil.FakeTool{ToolName: "canceller", Fn: func(context.Context, map[string]any) (any, error) {
			cancel()

			return "partial", nil
		}},
		&testutil.FakeTool{ToolName: "never", Fn: func(context.Context, map[string]any) (any, error) {
			t.Error("tool ran after cancellation")

			return nil, nil
		}},
	)

	coordinator := NewToolCoordinator(resolver, testLogger(), testTracer())

	entries, signal, err := coordinator.ExecuteBatch(ctx, "tools", 1, []models.ToolCall{
		{ID: "c1", Name: "canceller"},
		{ID: "c2", Name: "never"},
	})
	require.ErrorIs(t, err, context.Canceled)

	// No partial results leak out.
	assert.Nil(t, entries)
	assert.Equal(t, models.Signal{}, signal)
}

func TestToolCoordinator_EmptyBatch(t *testing.T) {
	coordinator := NewToolCoordinator(testutil.NewFakeResolver(), testLogger(), testTracer())

	entries, signal, err := coordinator.ExecuteBatch(context.Background(), "tools", 1, nil)
	require.NoError(t, err)

	assert.Empty(t, entries)
	assert.Equal(t, models.Signal{}, signal)
}
