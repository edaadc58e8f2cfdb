// Package registry resolves agent and tool identifiers to their
// implementations.
package registry

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ccrm/agentgraph/pkg/protocol"
)

// Registry holds tool factories keyed by tool name. Registration happens at
// startup; resolution is read-mostly and safe for concurrent use.
type Registry struct {
	logger        *slog.Logger
	mu            sync.RWMutex
	toolFactories map[string]protocol.ToolFactory
	tools         map[string]protocol.Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:        logger.With("module", "registry"),
		toolFactories: make(map[string]protocol.ToolFactory),
		tools:         make(map[string]protocol.Tool),
	}
}

// RegisterTool makes a tool factory resolvable by its ID.
func (r *Registry) RegisterTool(factory protocol.ToolFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.toolFactories[factory.ID()] = factory
}

// ResolveTool returns the invocable implementation for a tool name. The
// instance is created on first resolution and wrapped so its arguments are
// validated against the factory's JSON schema before every invocation.
func (r *Registry) ResolveTool(name string) (protocol.Tool, error) {
	r.mu.RLock()
	if tool, ready := r.tools[name]; ready {
		r.mu.RUnlock()

		return tool, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if tool, ready := r.tools[name]; ready {
		return tool, nil
	}

	factory, registered := r.toolFactories[name]
	if !registered {
		return nil, fmt.Errorf("tool %q not registered", name)
	}

	tool, err := factory.Create(map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("failed to create tool %q: %w", name, err)
	}

	validated, err := newSchemaCheckedTool(tool, factory.Schema())
	if err != nil {
		return nil, fmt.Errorf("tool %q has an invalid argument schema: %w", name, err)
	}

	r.tools[name] = validated

	return validated, nil
}

// ToolNames returns all registered tool names.
func (r *Registry) ToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.toolFactories))
	for name := range r.toolFactories {
		names = append(names, name)
	}

	return names
}
