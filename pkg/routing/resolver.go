package routing

import (
	"github.com/ccrm/agentgraph/pkg/compile"
	"github.com/ccrm/agentgraph/pkg/models"
)

// Outcome is the result of resolving a routing signal: either the next node
// to execute or run completion.
type Outcome struct {
	NextNodeID string
	End        bool
}

// Resolve picks the next node for a produced signal, applying strict
// precedence:
//
//  1. per-tool CONDITIONAL edge matching the executed tool's name
//  2. CONDITIONAL edge matching the agent-chosen destination
//  3. ALWAYS fallback edge
//  4. call-and-return default for TOOL_EXECUTOR nodes with no matching edge
//  5. injected or declared END edge on the end-of-conversation signal
//  6. NoRouteError
//
// dispatcherNodeID is the node that most recently dispatched the pending
// tool calls; it is the tier-4 return target.
func Resolve(node *compile.CompiledNode, signal models.Signal, dispatcherNodeID string) (Outcome, error) {
	// Tier 1: per-tool routing after TOOL_EXECUTOR.
	if signal.ToolName != "" {
		if outcome, matched, err := matchConditional(node, signal.ToolName); matched || err != nil {
			return outcome, err
		}
	}

	// Tier 2: agent-chosen destination.
	if signal.Destination != "" {
		if outcome, matched, err := matchConditional(node, signal.Destination); matched || err != nil {
			return outcome, err
		}
	}

	// Tier 3: catch-all fallback.
	if node.Always != nil {
		return edgeOutcome(node.Always), nil
	}

	// Tier 4: call-and-return. A TOOL_EXECUTOR with no matching edge hands
	// control back to whichever node dispatched its tool calls, so the
	// common agent-calls-tools-and-resumes pattern needs no edges at all.
	if node.Node.IsToolExecutor() && dispatcherNodeID != "" {
		return Outcome{NextNodeID: dispatcherNodeID}, nil
	}

	// Tier 5: end of conversation.
	if signal.EndConversation && node.EndEdge != nil {
		return Outcome{End: true}, nil
	}

	return Outcome{}, &NoRouteError{NodeID: node.Node.ID, Signal: signal}
}

func matchConditional(node *compile.CompiledNode, value string) (Outcome, bool, error) {
	edges, found := node.Conditional[value]
	if !found {
		return Outcome{}, false, nil
	}

	if len(edges) > 1 {
		edgeIDs := make([]string, 0, len(edges))
		for _, edge := range edges {
			edgeIDs = append(edgeIDs, edge.ID)
		}

		return Outcome{}, true, &AmbiguousRouteError{
			NodeID:         node.Node.ID,
			ConditionValue: value,
			EdgeIDs:        edgeIDs,
		}
	}

	return edgeOutcome(edges[0]), true, nil
}

func edgeOutcome(edge *models.Edge) Outcome {
	if edge.IsTerminal() {
		return Outcome{End: true}
	}

	return Outcome{NextNodeID: *edge.TargetNodeID}
}
