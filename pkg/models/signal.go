package models

import "fmt"

// ToolCall is one tool invocation requested by an agent turn. Calls within a
// turn are executed strictly in request order.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Signal is the routing signal produced by a node execution, matched against
// the node's outgoing edges to select the next node.
type Signal struct {
	// ToolName is the most recently executed tool, set by TOOL_EXECUTOR
	// nodes for per-tool routing.
	ToolName string `json:"tool_name,omitempty"`

	// Destination is the agent-chosen next destination, drawn from the
	// node's compiled destination set.
	Destination string `json:"destination,omitempty"`

	// EndConversation is the end-of-conversation signal. Only AGENT nodes
	// of conversational workflows can emit it.
	EndConversation bool `json:"end_conversation,omitempty"`
}

func (s Signal) String() string {
	switch {
	case s.EndConversation:
		return "signal(end_conversation)"
	case s.ToolName != "":
		return fmt.Sprintf("signal(tool=%s)", s.ToolName)
	case s.Destination != "":
		return fmt.Sprintf("signal(destination=%s)", s.Destination)
	default:
		return "signal(empty)"
	}
}

// TurnResult is what an agent turn produces: an assistant message, zero or
// more tool-call requests, and an optional routing decision.
type TurnResult struct {
	Message         string     `json:"message,omitempty"`
	ToolCalls       []ToolCall `json:"tool_calls,omitempty"`
	Destination     string     `json:"destination,omitempty"`
	EndConversation bool       `json:"end_conversation,omitempty"`
}

// Signal converts the turn result into its routing signal.
func (r *TurnResult) Signal() Signal {
	return Signal{
		Destination:     r.Destination,
		EndConversation: r.EndConversation,
	}
}
