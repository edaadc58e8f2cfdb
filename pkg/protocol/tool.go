package protocol

import "context"

// Tool is an invocable tool implementation resolved from the tool registry.
type Tool interface {
	// Name returns the tool name matched against CONDITIONAL edge values.
	Name() string

	// Invoke executes the tool with the given arguments. Errors returned
	// here are captured as result payloads, not run failures.
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// ToolFactory creates tool instances and describes their argument schema.
type ToolFactory interface {
	// ID returns the unique tool name this factory provides.
	ID() string

	// Description returns a description of what the tool does.
	Description() string

	// Schema returns the JSON schema for the tool's arguments.
	Schema() map[string]any

	// Create creates a new tool instance with the given configuration.
	Create(config map[string]any) (Tool, error)
}

// ToolResolver resolves a tool name to an invocable implementation. The
// tool execution coordinator consults it once per call.
type ToolResolver interface {
	ResolveTool(name string) (Tool, error)
}
