// Package protocol defines the interfaces between the execution engine and
// its external collaborators: agent turn execution, tool invocation, and
// definition resolution.
package protocol

import (
	"context"

	"github.com/ccrm/agentgraph/pkg/models"
)

// AgentTurn is the input to one model turn. Destinations is the closed set
// of legal next-destination values derived from the node's compiled outgoing
// edges; CanEndConversation is true only when the termination policy injected
// the end-of-conversation capability into this node.
type AgentTurn struct {
	RunID              string
	NodeID             string
	Agent              *models.AgentDefinition
	History            []models.Entry
	Destinations       []string
	CanEndConversation bool
}

// AgentRunner executes one model turn for an AGENT node. Implementations
// must honor context cancellation; the engine cancels in-flight turns when
// the run deadline expires.
type AgentRunner interface {
	RunTurn(ctx context.Context, turn AgentTurn) (*models.TurnResult, error)
}

// AgentStore resolves agent identifiers to definitions. It is a read-only
// collaborator consulted at compile time.
type AgentStore interface {
	AgentByID(ctx context.Context, id string) (*models.AgentDefinition, error)
}
