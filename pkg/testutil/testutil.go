// Package testutil provides workflow definition builders and scripted
// collaborators for tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/ccrm/agentgraph/pkg/models"
	"github.com/ccrm/agentgraph/pkg/protocol"
)

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// AgentNode builds an AGENT node.
func AgentNode(id, agentID string) *models.Node {
	return &models.Node{
		ID:       id,
		NodeType: models.NodeTypeAgent,
		NodeName: id,
		AgentID:  Ptr(agentID),
	}
}

// ToolNode builds a TOOL_EXECUTOR node.
func ToolNode(id string) *models.Node {
	return &models.Node{
		ID:       id,
		NodeType: models.NodeTypeToolExecutor,
		NodeName: id,
	}
}

// AlwaysEdge builds an ALWAYS edge from one node to another.
func AlwaysEdge(id, from, to string) *models.Edge {
	return &models.Edge{
		ID:            id,
		SourceNodeID:  from,
		TargetNodeID:  Ptr(to),
		ConditionType: models.ConditionTypeAlways,
	}
}

// ConditionalEdge builds a CONDITIONAL edge matched by value.
func ConditionalEdge(id, from, to, value string) *models.Edge {
	return &models.Edge{
		ID:             id,
		SourceNodeID:   from,
		TargetNodeID:   Ptr(to),
		ConditionType:  models.ConditionTypeConditional,
		ConditionValue: Ptr(value),
	}
}

// EndEdge builds a terminal END edge.
func EndEdge(id, from string) *models.Edge {
	return &models.Edge{
		ID:             id,
		SourceNodeID:   from,
		ConditionType:  models.ConditionTypeConditional,
		ConditionValue: Ptr(models.EndConditionValue),
	}
}

// Workflow builds a definition with a name derived from its ID.
func Workflow(id, entrypoint string, conversational bool, nodes []*models.Node, edges []*models.Edge) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:               id,
		Name:             "workflow " + id,
		IsConversational: conversational,
		EntrypointNodeID: entrypoint,
		Nodes:            nodes,
		Edges:            edges,
	}
}

// Agent builds an agent definition.
func Agent(id string) *models.AgentDefinition {
	return &models.AgentDefinition{
		ID:           id,
		Name:         id,
		SystemPrompt: "You are " + id + ".",
	}
}

// ScriptedRunner replays a fixed sequence of turn results and records every
// turn it receives.
type ScriptedRunner struct {
	mu      sync.Mutex
	script  []func(turn protocol.AgentTurn) (*models.TurnResult, error)
	nextIdx int

	Turns []protocol.AgentTurn
}

// NewScriptedRunner creates a runner that replays the given steps in order.
func NewScriptedRunner(script ...func(turn protocol.AgentTurn) (*models.TurnResult, error)) *ScriptedRunner {
	return &ScriptedRunner{script: script}
}

// Reply builds a script step returning a fixed result.
func Reply(result *models.TurnResult) func(protocol.AgentTurn) (*models.TurnResult, error) {
	return func(protocol.AgentTurn) (*models.TurnResult, error) {
		return result, nil
	}
}

// RunTurn implements protocol.AgentRunner.
func (r *ScriptedRunner) RunTurn(_ context.Context, turn protocol.AgentTurn) (*models.TurnResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Turns = append(r.Turns, turn)

	if r.nextIdx >= len(r.script) {
		return nil, fmt.Errorf("runner script exhausted after %d turns", len(r.script))
	}

	step := r.script[r.nextIdx]
	r.nextIdx++

	return step(turn)
}

// FakeTool is a tool whose behavior is supplied as a function.
type FakeTool struct {
	ToolName string
	Fn       func(ctx context.Context, args map[string]any) (any, error)
}

func (t *FakeTool) Name() string {
	return t.ToolName
}

func (t *FakeTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return t.Fn(ctx, args)
}

// FakeResolver resolves tools from a fixed map.
type FakeResolver struct {
	Tools map[string]protocol.Tool
}

// NewFakeResolver creates a resolver over the given tools.
func NewFakeResolver(tools ...protocol.Tool) *FakeResolver {
	resolver := &FakeResolver{Tools: make(map[string]protocol.Tool, len(tools))}
	for _, tool := range tools {
		resolver.Tools[tool.Name()] = tool
	}

	return resolver
}

// ResolveTool implements protocol.ToolResolver.
func (r *FakeResolver) ResolveTool(name string) (protocol.Tool, error) {
	tool, found := r.Tools[name]
	if !found {
		return nil, fmt.Errorf("tool %q not registered", name)
	}

	return tool, nil
}
