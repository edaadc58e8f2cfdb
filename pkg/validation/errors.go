// Package validation checks workflow definitions for structural soundness
// before compilation.
package validation

import (
	"errors"
	"fmt"
	"strings"
)

// IssueCode identifies a class of structural violation.
type IssueCode string

const (
	IssueMissingEntrypoint       IssueCode = "missing_entrypoint"
	IssueDanglingNodeReference   IssueCode = "dangling_node_reference"
	IssueDuplicateConditionValue IssueCode = "duplicate_condition_value"
	IssueUnknownAgentReference   IssueCode = "unknown_agent_reference"
	IssueMalformedNode           IssueCode = "malformed_node"
	IssueMalformedEdge           IssueCode = "malformed_edge"
	IssueUnreachableNode         IssueCode = "unreachable_node"
)

// Issue is a single violation found in a definition, carrying the node and
// edge identifiers needed to locate it.
type Issue struct {
	Code    IssueCode `json:"code"`
	NodeID  string    `json:"node_id,omitempty"`
	EdgeID  string    `json:"edge_id,omitempty"`
	AgentID string    `json:"agent_id,omitempty"`
	Message string    `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Code, i.Message)
}

// Error reports that a workflow definition failed validation. It carries
// every violation found, not just the first.
type Error struct {
	WorkflowID string
	Issues     []Issue
}

func (e *Error) Error() string {
	messages := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		messages = append(messages, issue.String())
	}

	return fmt.Sprintf("workflow %s is invalid: %s", e.WorkflowID, strings.Join(messages, "; "))
}

// HasIssue reports whether the error contains a violation with the given
// code.
func (e *Error) HasIssue(code IssueCode) bool {
	for _, issue := range e.Issues {
		if issue.Code == code {
			return true
		}
	}

	return false
}

// IsValidationError checks if an error is a definition validation error.
func IsValidationError(err error) bool {
	var validationErr *Error

	return errors.As(err, &validationErr)
}
