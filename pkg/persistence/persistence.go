// Package persistence provides the data storage abstraction for workflow
// definitions and run records.
package persistence

import (
	"context"

	"github.com/ccrm/agentgraph/pkg/models"
)

// Persistence is the storage surface shared by the API and the runner. A
// workflow definition is stored whole; run records are append-only terminal
// snapshots.
type Persistence interface {
	Workflows(ctx context.Context) ([]*models.WorkflowDefinition, error)
	SaveWorkflow(ctx context.Context, workflow *models.WorkflowDefinition) error
	WorkflowByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	DeleteWorkflow(ctx context.Context, id string) error

	SaveRunRecord(ctx context.Context, record *models.RunRecord) error
	RunRecordByID(ctx context.Context, runID string) (*models.RunRecord, error)
	RunRecordsByWorkflow(ctx context.Context, workflowID string) ([]*models.RunRecord, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
