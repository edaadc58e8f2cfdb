// Package compile turns validated workflow definitions into an immutable,
// indexed executable form.
package compile

import (
	"github.com/ccrm/agentgraph/pkg/models"
)

// CompiledNode is one node with its outgoing edges indexed for routing.
// Instances are read-only after compilation.
type CompiledNode struct {
	Node *models.Node

	// Agent is the resolved definition for AGENT nodes, nil otherwise.
	Agent *models.AgentDefinition

	// Conditional maps a conditionValue to the edges carrying it. The
	// validator rejects duplicates; the slice exists so the router can
	// surface an ambiguous route instead of silently picking one if a
	// defective graph reaches runtime anyway.
	Conditional map[string][]*models.Edge

	// Always is the catch-all fallback edge, if any.
	Always *models.Edge

	// OnComplete edges, in definition order.
	OnComplete []*models.Edge

	// EndEdge is the terminal end-of-conversation edge. It is excluded
	// from Conditional so ordinary destination routing never matches it.
	EndEdge *models.Edge

	// Destinations is the closed, sorted set of legal agent-chosen
	// destination values for this node.
	Destinations []string

	// CanEndConversation is set by the termination policy: true for every
	// AGENT node of a conversational workflow.
	CanEndConversation bool
}

// CompiledGraph is the executable form of one workflow version. It is safe
// to share read-only across concurrently executing runs.
type CompiledGraph struct {
	WorkflowID       string
	WorkflowName     string
	EntrypointNodeID string
	IsConversational bool

	nodes map[string]*CompiledNode
}

// Node returns the compiled node with the given ID.
func (g *CompiledGraph) Node(id string) (*CompiledNode, bool) {
	node, found := g.nodes[id]

	return node, found
}

// Entrypoint returns the compiled entrypoint node.
func (g *CompiledGraph) Entrypoint() *CompiledNode {
	return g.nodes[g.EntrypointNodeID]
}

// NodeCount returns the number of nodes in the graph.
func (g *CompiledGraph) NodeCount() int {
	return len(g.nodes)
}
