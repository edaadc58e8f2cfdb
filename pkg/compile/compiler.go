package compile

import (
	"context"
	"fmt"
	"sort"

	"github.com/ccrm/agentgraph/pkg/models"
	"github.com/ccrm/agentgraph/pkg/protocol"
)

// Compiler builds CompiledGraphs from validated definitions. Compilation is
// deterministic: identical input yields structurally identical output.
type Compiler struct {
	agents protocol.AgentStore
}

// NewCompiler creates a compiler backed by the given agent store.
func NewCompiler(agents protocol.AgentStore) *Compiler {
	return &Compiler{agents: agents}
}

// Compile indexes the definition's edges per node and resolves each distinct
// agentId exactly once. The input definition is not mutated; injected END
// edges exist only in the compiled form.
func (c *Compiler) Compile(ctx context.Context, workflow *models.WorkflowDefinition) (*CompiledGraph, error) {
	graph := &CompiledGraph{
		WorkflowID:       workflow.ID,
		WorkflowName:     workflow.Name,
		EntrypointNodeID: workflow.EntrypointNodeID,
		IsConversational: workflow.IsConversational,
		nodes:            make(map[string]*CompiledNode, len(workflow.Nodes)),
	}

	agentCache := make(map[string]*models.AgentDefinition)

	for _, node := range workflow.Nodes {
		compiled, err := c.compileNode(ctx, workflow, node, agentCache)
		if err != nil {
			return nil, err
		}

		graph.nodes[node.ID] = compiled
	}

	return graph, nil
}

func (c *Compiler) compileNode(
	ctx context.Context,
	workflow *models.WorkflowDefinition,
	node *models.Node,
	agentCache map[string]*models.AgentDefinition,
) (*CompiledNode, error) {
	compiled := &CompiledNode{
		Node:        node,
		Conditional: make(map[string][]*models.Edge),
		OnComplete:  make([]*models.Edge, 0),
	}

	for _, edge := range workflow.EdgesFrom(node.ID) {
		switch edge.ConditionType {
		case models.ConditionTypeConditional:
			if edge.IsEndEdge() {
				compiled.EndEdge = edge

				continue
			}

			value := *edge.ConditionValue
			compiled.Conditional[value] = append(compiled.Conditional[value], edge)
		case models.ConditionTypeAlways:
			if compiled.Always == nil {
				compiled.Always = edge
			}
		case models.ConditionTypeOnComplete:
			compiled.OnComplete = append(compiled.OnComplete, edge)
		default:
			return nil, fmt.Errorf("node %s: edge %s has unknown condition type %q", node.ID, edge.ID, edge.ConditionType)
		}
	}

	compiled.Destinations = destinationSet(compiled.Conditional)

	if node.IsAgent() {
		agent, err := c.resolveAgent(ctx, node, agentCache)
		if err != nil {
			return nil, err
		}

		compiled.Agent = agent

		// Termination policy: conversational workflows grant every AGENT
		// node the end-of-conversation capability, whether or not the
		// definition declared an END edge for it.
		if workflow.IsConversational {
			compiled.CanEndConversation = true

			if compiled.EndEdge == nil {
				compiled.EndEdge = injectedEndEdge(workflow.ID, node.ID)
			}
		}
	}

	return compiled, nil
}

func (c *Compiler) resolveAgent(
	ctx context.Context,
	node *models.Node,
	cache map[string]*models.AgentDefinition,
) (*models.AgentDefinition, error) {
	if node.AgentID == nil {
		return nil, fmt.Errorf("AGENT node %s has no agentId", node.ID)
	}

	if agent, cached := cache[*node.AgentID]; cached {
		return agent, nil
	}

	if c.agents == nil {
		return nil, fmt.Errorf("node %s references agent %s but no agent store is configured", node.ID, *node.AgentID)
	}

	agent, err := c.agents.AgentByID(ctx, *node.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve agent %s for node %s: %w", *node.AgentID, node.ID, err)
	}

	cache[*node.AgentID] = agent

	return agent, nil
}

// destinationSet derives the closed set of legal destination values from the
// conditional edge index, sorted for deterministic output.
func destinationSet(conditional map[string][]*models.Edge) []string {
	destinations := make([]string, 0, len(conditional))
	for value := range conditional {
		destinations = append(destinations, value)
	}

	sort.Strings(destinations)

	return destinations
}

// injectedEndEdge synthesizes the terminal END edge granted by the
// termination policy. The ID is derived from the node so compilation stays
// deterministic.
func injectedEndEdge(workflowID, nodeID string) *models.Edge {
	value := models.EndConditionValue

	return &models.Edge{
		ID:             "end-" + nodeID,
		WorkflowID:     workflowID,
		SourceNodeID:   nodeID,
		TargetNodeID:   nil,
		ConditionType:  models.ConditionTypeConditional,
		ConditionValue: &value,
	}
}
