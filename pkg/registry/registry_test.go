package registry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccrm/agentgraph/pkg/protocol"
)

type stubTool struct {
	name string
	fn   func(ctx context.Context, args map[string]any) (any, error)
}

func (t *stubTool) Name() string {
	return t.name
}

func (t *stubTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return t.fn(ctx, args)
}

type stubFactory struct {
	id      string
	schema  map[string]any
	created int
}

func (f *stubFactory) ID() string {
	return f.id
}

func (f *stubFactory) Description() string {
	return "stub tool for tests"
}

func (f *stubFactory) Schema() map[string]any {
	return f.schema
}

func (f *stubFactory) Create(map[string]any) (protocol.Tool, error) {
	f.created++

	return &stubTool{name: f.id, fn: func(_ context.Context, args map[string]any) (any, error) {
		return args, nil
	}}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_ResolveToolCachesInstance(t *testing.T) {
	registry := NewRegistry(testLogger())
	factory := &stubFactory{id: "echo"}
	registry.RegisterTool(factory)

	first, err := registry.ResolveTool("echo")
	require.NoError(t, err)

	second, err := registry.ResolveTool("echo")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, factory.created)
	assert.Equal(t, "echo", first.Name())
}

func TestRegistry_ResolveUnknownTool(t *testing.T) {
	registry := NewRegistry(testLogger())

	_, err := registry.ResolveTool("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `tool "nope" not registered`)
}

func TestRegistry_ToolNames(t *testing.T) {
	registry := NewRegistry(testLogger())
	registry.RegisterTool(&stubFactory{id: "alpha"})
	registry.RegisterTool(&stubFactory{id: "beta"})

	assert.ElementsMatch(t, []string{"alpha", "beta"}, registry.ToolNames())
}

func TestRegistry_SchemaValidation(t *testing.T) {
	registry := NewRegistry(testLogger())
	registry.RegisterTool(&stubFactory{
		id: "greet",
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{"type": "string"},
			},
			"required": []string{"name"},
		},
	})

	tool, err := registry.ResolveTool("greet")
	require.NoError(t, err)

	// Valid arguments pass through to the tool.
	result, err := tool.Invoke(context.Background(), map[string]any{"name": "sam"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "sam"}, result)

	// Missing required property is rejected before the tool runs.
	_, err = tool.Invoke(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid arguments")

	// Wrong type is rejected too.
	_, err = tool.Invoke(context.Background(), map[string]any{"name": 12})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid arguments")
}

func TestRegistry_NilSchemaSkipsValidation(t *testing.T) {
	registry := NewRegistry(testLogger())
	registry.RegisterTool(&stubFactory{id: "raw"})

	tool, err := registry.ResolveTool("raw")
	require.NoError(t, err)

	result, err := tool.Invoke(context.Background(), map[string]any{"anything": true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"anything": true}, result)
}
