// Package models defines the core domain models for agent workflow graphs.
package models

// NodeType represents the kind of execution a node performs.
type NodeType string

const (
	NodeTypeAgent        NodeType = "AGENT"         // One model turn
	NodeTypeToolExecutor NodeType = "TOOL_EXECUTOR" // One batch of tool calls
)

// ConditionType represents how an outgoing edge is selected.
type ConditionType string

const (
	ConditionTypeAlways      ConditionType = "ALWAYS"
	ConditionTypeConditional ConditionType = "CONDITIONAL"
	ConditionTypeOnComplete  ConditionType = "ON_COMPLETE"
)

// EndConditionValue marks the terminal edge of a conversational workflow.
const EndConditionValue = "END"

// WorkflowDefinition is a declarative workflow graph. It is immutable once
// compiled; the runtime never mutates nodes or edges.
type WorkflowDefinition struct {
	ID               string  `json:"id"                validate:"required"`
	Name             string  `json:"name"              validate:"required,min=3"`
	Description      string  `json:"description"`
	IsConversational bool    `json:"isConversational"`
	EntrypointNodeID string  `json:"entrypointNodeId"  validate:"required"`
	Nodes            []*Node `json:"nodes"             validate:"required,min=1,dive"`
	Edges            []*Edge `json:"edges"             validate:"dive"`
}

// Node is a unit of execution in a workflow graph.
type Node struct {
	ID         string   `json:"id"                validate:"required"`
	WorkflowID string   `json:"workflowId"`
	NodeType   NodeType `json:"nodeType"          validate:"required,oneof=AGENT TOOL_EXECUTOR"`
	NodeName   string   `json:"nodeName"          validate:"required,min=1"`
	AgentID    *string  `json:"agentId,omitempty"` // Required iff NodeType is AGENT
}

// IsAgent reports whether the node executes a model turn.
func (n *Node) IsAgent() bool {
	return n.NodeType == NodeTypeAgent
}

// IsToolExecutor reports whether the node executes a batch of tool calls.
func (n *Node) IsToolExecutor() bool {
	return n.NodeType == NodeTypeToolExecutor
}

// Edge is a directed, conditioned link between two nodes, or from a node to
// run termination when TargetNodeID is nil.
type Edge struct {
	ID             string        `json:"id"                       validate:"required"`
	WorkflowID     string        `json:"workflowId"`
	SourceNodeID   string        `json:"sourceNodeId"             validate:"required"`
	TargetNodeID   *string       `json:"targetNodeId,omitempty"`
	ConditionType  ConditionType `json:"conditionType"            validate:"required,oneof=ALWAYS CONDITIONAL ON_COMPLETE"`
	ConditionValue *string       `json:"conditionValue,omitempty"` // Required iff ConditionType is CONDITIONAL
}

// IsTerminal reports whether taking this edge ends the run.
func (e *Edge) IsTerminal() bool {
	return e.TargetNodeID == nil
}

// IsEndEdge reports whether this is the injected end-of-conversation edge.
func (e *Edge) IsEndEdge() bool {
	return e.ConditionType == ConditionTypeConditional &&
		e.ConditionValue != nil && *e.ConditionValue == EndConditionValue &&
		e.TargetNodeID == nil
}

// NodeByID returns the node with the given ID, if present.
func (w *WorkflowDefinition) NodeByID(id string) (*Node, bool) {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}

// EdgesFrom returns all edges originating at the given node, in definition
// order.
func (w *WorkflowDefinition) EdgesFrom(nodeID string) []*Edge {
	edges := make([]*Edge, 0)

	for _, edge := range w.Edges {
		if edge.SourceNodeID == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}
