// Package routing selects the next node (or terminal outcome) after each
// node execution.
package routing

import (
	"errors"
	"fmt"

	"github.com/ccrm/agentgraph/pkg/models"
)

// NoRouteError reports that no outgoing edge matched the produced signal.
type NoRouteError struct {
	NodeID string
	Signal models.Signal
}

func (e *NoRouteError) Error() string {
	return fmt.Sprintf("no route from node %s for %s", e.NodeID, e.Signal)
}

// AmbiguousRouteError reports that more than one CONDITIONAL edge matched
// the same value. This indicates a validation defect, never a valid runtime
// branch.
type AmbiguousRouteError struct {
	NodeID         string
	ConditionValue string
	EdgeIDs        []string
}

func (e *AmbiguousRouteError) Error() string {
	return fmt.Sprintf("ambiguous route from node %s: edges %v all match %q",
		e.NodeID, e.EdgeIDs, e.ConditionValue)
}

// IsNoRoute checks if an error indicates no matching route.
func IsNoRoute(err error) bool {
	var noRoute *NoRouteError

	return errors.As(err, &noRoute)
}

// IsAmbiguousRoute checks if an error indicates an ambiguous route.
func IsAmbiguousRoute(err error) bool {
	var ambiguous *AmbiguousRouteError

	return errors.As(err, &ambiguous)
}
