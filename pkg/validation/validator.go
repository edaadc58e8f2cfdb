package validation

import (
	"context"
	"fmt"

	"github.com/ccrm/agentgraph/pkg/models"
	"github.com/ccrm/agentgraph/pkg/protocol"
	"github.com/go-playground/validator/v10"
)

// Strictness controls whether unreachable nodes fail validation or are
// reported as warnings.
type Strictness string

const (
	StrictnessWarn Strictness = "warn"
	StrictnessFail Strictness = "fail"
)

// ParseStrictness maps a configuration value to a strictness level. The
// empty value defaults to warn.
func ParseStrictness(value string) (Strictness, error) {
	switch Strictness(value) {
	case "", StrictnessWarn:
		return StrictnessWarn, nil
	case StrictnessFail:
		return StrictnessFail, nil
	}

	return "", fmt.Errorf("unknown validation strictness %q", value)
}

// Config configures the validator.
type Config struct {
	Strictness Strictness
}

// Validator checks raw workflow definitions for structural soundness. It has
// no side effects beyond returning diagnostics.
type Validator struct {
	agents   protocol.AgentStore
	validate *validator.Validate
	config   Config
}

// NewValidator creates a validator backed by the given agent store. A nil
// store skips agent reference checks.
func NewValidator(agents protocol.AgentStore, config Config) *Validator {
	if config.Strictness == "" {
		config.Strictness = StrictnessWarn
	}

	return &Validator{
		agents:   agents,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		config:   config,
	}
}

// Validate checks the definition and returns all violations found. Warnings
// (currently only unreachable nodes under warn strictness) are returned
// separately and do not block compilation.
func (v *Validator) Validate(ctx context.Context, workflow *models.WorkflowDefinition) ([]Issue, error) {
	if err := v.validate.Struct(workflow); err != nil {
		return nil, fmt.Errorf("workflow %s failed shape validation: %w", workflow.ID, err)
	}

	issues := make([]Issue, 0)
	issues = append(issues, v.checkEntrypoint(workflow)...)
	issues = append(issues, v.checkNodes(ctx, workflow)...)
	issues = append(issues, v.checkEdges(workflow)...)

	warnings := v.checkReachability(workflow)
	if v.config.Strictness == StrictnessFail {
		issues = append(issues, warnings...)
		warnings = nil
	}

	if len(issues) > 0 {
		return warnings, &Error{WorkflowID: workflow.ID, Issues: issues}
	}

	return warnings, nil
}

func (v *Validator) checkEntrypoint(workflow *models.WorkflowDefinition) []Issue {
	if _, found := workflow.NodeByID(workflow.EntrypointNodeID); !found {
		return []Issue{{
			Code:    IssueMissingEntrypoint,
			NodeID:  workflow.EntrypointNodeID,
			Message: fmt.Sprintf("entrypoint node %s does not exist", workflow.EntrypointNodeID),
		}}
	}

	return nil
}

func (v *Validator) checkNodes(ctx context.Context, workflow *models.WorkflowDefinition) []Issue {
	issues := make([]Issue, 0)

	for _, node := range workflow.Nodes {
		switch node.NodeType {
		case models.NodeTypeAgent:
			if node.AgentID == nil || *node.AgentID == "" {
				issues = append(issues, Issue{
					Code:    IssueMalformedNode,
					NodeID:  node.ID,
					Message: fmt.Sprintf("AGENT node %s has no agentId", node.NodeName),
				})

				continue
			}

			if v.agents != nil {
				if _, err := v.agents.AgentByID(ctx, *node.AgentID); err != nil {
					issues = append(issues, Issue{
						Code:    IssueUnknownAgentReference,
						NodeID:  node.ID,
						AgentID: *node.AgentID,
						Message: fmt.Sprintf("agent %s referenced by node %s does not exist", *node.AgentID, node.NodeName),
					})
				}
			}
		case models.NodeTypeToolExecutor:
			if node.AgentID != nil {
				issues = append(issues, Issue{
					Code:    IssueMalformedNode,
					NodeID:  node.ID,
					Message: fmt.Sprintf("TOOL_EXECUTOR node %s must not reference an agent", node.NodeName),
				})
			}
		}
	}

	return issues
}

func (v *Validator) checkEdges(workflow *models.WorkflowDefinition) []Issue {
	issues := make([]Issue, 0)

	nodeIDs := make(map[string]*models.Node, len(workflow.Nodes))
	for _, node := range workflow.Nodes {
		nodeIDs[node.ID] = node
	}

	// conditionValue uniqueness is per source node.
	seenValues := make(map[string]map[string]string) // sourceNodeID -> conditionValue -> edgeID
	alwaysCount := make(map[string]int)

	for _, edge := range workflow.Edges {
		source, sourceExists := nodeIDs[edge.SourceNodeID]
		if !sourceExists {
			issues = append(issues, Issue{
				Code:    IssueDanglingNodeReference,
				EdgeID:  edge.ID,
				NodeID:  edge.SourceNodeID,
				Message: fmt.Sprintf("edge %s references non-existent source node %s", edge.ID, edge.SourceNodeID),
			})
		}

		if edge.TargetNodeID != nil {
			if _, targetExists := nodeIDs[*edge.TargetNodeID]; !targetExists {
				issues = append(issues, Issue{
					Code:    IssueDanglingNodeReference,
					EdgeID:  edge.ID,
					NodeID:  *edge.TargetNodeID,
					Message: fmt.Sprintf("edge %s references non-existent target node %s", edge.ID, *edge.TargetNodeID),
				})
			}
		}

		switch edge.ConditionType {
		case models.ConditionTypeConditional:
			if edge.ConditionValue == nil || *edge.ConditionValue == "" {
				issues = append(issues, Issue{
					Code:    IssueMalformedEdge,
					EdgeID:  edge.ID,
					Message: fmt.Sprintf("CONDITIONAL edge %s has no conditionValue", edge.ID),
				})

				continue
			}

			if seenValues[edge.SourceNodeID] == nil {
				seenValues[edge.SourceNodeID] = make(map[string]string)
			}

			if previous, duplicate := seenValues[edge.SourceNodeID][*edge.ConditionValue]; duplicate {
				issues = append(issues, Issue{
					Code:   IssueDuplicateConditionValue,
					EdgeID: edge.ID,
					NodeID: edge.SourceNodeID,
					Message: fmt.Sprintf("edges %s and %s from node %s share conditionValue %q",
						previous, edge.ID, edge.SourceNodeID, *edge.ConditionValue),
				})
			} else {
				seenValues[edge.SourceNodeID][*edge.ConditionValue] = edge.ID
			}

			// Only AGENT nodes may originate the end-of-conversation edge.
			if edge.IsEndEdge() && sourceExists && !source.IsAgent() {
				issues = append(issues, Issue{
					Code:    IssueMalformedEdge,
					EdgeID:  edge.ID,
					NodeID:  edge.SourceNodeID,
					Message: fmt.Sprintf("END edge %s originates at non-AGENT node %s", edge.ID, edge.SourceNodeID),
				})
			}
		case models.ConditionTypeAlways:
			alwaysCount[edge.SourceNodeID]++

			if sourceExists && source.IsToolExecutor() && alwaysCount[edge.SourceNodeID] > 1 {
				issues = append(issues, Issue{
					Code:    IssueMalformedEdge,
					EdgeID:  edge.ID,
					NodeID:  edge.SourceNodeID,
					Message: fmt.Sprintf("TOOL_EXECUTOR node %s has more than one ALWAYS edge", edge.SourceNodeID),
				})
			}
		}
	}

	return issues
}

// checkReachability walks the graph from the entrypoint and reports nodes no
// edge path can reach.
func (v *Validator) checkReachability(workflow *models.WorkflowDefinition) []Issue {
	if _, found := workflow.NodeByID(workflow.EntrypointNodeID); !found {
		return nil
	}

	reachable := map[string]bool{workflow.EntrypointNodeID: true}
	frontier := []string{workflow.EntrypointNodeID}

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]

		for _, edge := range workflow.EdgesFrom(current) {
			if edge.TargetNodeID == nil || reachable[*edge.TargetNodeID] {
				continue
			}

			reachable[*edge.TargetNodeID] = true
			frontier = append(frontier, *edge.TargetNodeID)
		}
	}

	issues := make([]Issue, 0)

	for _, node := range workflow.Nodes {
		if !reachable[node.ID] {
			issues = append(issues, Issue{
				Code:    IssueUnreachableNode,
				NodeID:  node.ID,
				Message: fmt.Sprintf("node %s is unreachable from the entrypoint", node.NodeName),
			})
		}
	}

	return issues
}
