package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/ccrm/agentgraph/pkg/models"
	"github.com/ccrm/agentgraph/pkg/persistence"
)

// WorkflowRepository handles workflow definition storage in PostgreSQL.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// GetByID loads one workflow definition with its nodes and edges.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, COALESCE(entrypoint_node_id, ''), is_conversational
		FROM system_agent_workflow
		WHERE id = $1
	`, id)

	var workflow models.WorkflowDefinition

	err := row.Scan(&workflow.ID, &workflow.Name, &workflow.Description,
		&workflow.EntrypointNodeID, &workflow.IsConversational)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	workflow.Nodes, err = r.nodesByWorkflow(ctx, id)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	workflow.Edges, err = r.edgesByWorkflow(ctx, id)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return &workflow, nil
}

// GetAll loads every workflow definition.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM system_agent_workflow ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make([]string, 0)

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	workflows := make([]*models.WorkflowDefinition, 0, len(ids))

	for _, id := range ids {
		workflow, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

// Save upserts the workflow row and replaces its nodes and edges in one
// transaction. The entrypoint is written last so the node rows exist first.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.WorkflowDefinition) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	err = r.saveInTx(ctx, tx, workflow)
	if err != nil {
		_ = tx.Rollback()

		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) saveInTx(ctx context.Context, tx *sql.Tx, workflow *models.WorkflowDefinition) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO system_agent_workflow (id, name, description, entrypoint_node_id, is_conversational)
		VALUES ($1, $2, $3, NULL, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			is_conversational = EXCLUDED.is_conversational,
			updated_at = NOW()
	`, workflow.ID, workflow.Name, workflow.Description, workflow.IsConversational)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM system_agent_workflow_node WHERE workflow_id = $1`, workflow.ID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM system_agent_workflow_edge WHERE workflow_id = $1`, workflow.ID)
	if err != nil {
		return err
	}

	for _, node := range workflow.Nodes {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO system_agent_workflow_node (id, workflow_id, agent_id, node_type, node_name)
			VALUES ($1, $2, $3, $4, $5)
		`, node.ID, workflow.ID, node.AgentID, node.NodeType, node.NodeName)
		if err != nil {
			return err
		}
	}

	for _, edge := range workflow.Edges {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO system_agent_workflow_edge (id, workflow_id, source_node_id, target_node_id, condition_type, condition_value)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, edge.ID, workflow.ID, edge.SourceNodeID, edge.TargetNodeID, edge.ConditionType, edge.ConditionValue)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE system_agent_workflow SET entrypoint_node_id = $1, updated_at = NOW() WHERE id = $2
	`, workflow.EntrypointNodeID, workflow.ID)

	return err
}

// Delete removes the workflow; nodes and edges cascade.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM system_agent_workflow WHERE id = $1`, id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) nodesByWorkflow(ctx context.Context, workflowID string) ([]*models.Node, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workflow_id, agent_id, node_type, node_name
		FROM system_agent_workflow_node
		WHERE workflow_id = $1
		ORDER BY id
	`, workflowID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	nodes := make([]*models.Node, 0)

	for rows.Next() {
		var node models.Node
		if err := rows.Scan(&node.ID, &node.WorkflowID, &node.AgentID, &node.NodeType, &node.NodeName); err != nil {
			return nil, err
		}

		nodes = append(nodes, &node)
	}

	return nodes, rows.Err()
}

func (r *WorkflowRepository) edgesByWorkflow(ctx context.Context, workflowID string) ([]*models.Edge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workflow_id, source_node_id, target_node_id, condition_type, condition_value
		FROM system_agent_workflow_edge
		WHERE workflow_id = $1
		ORDER BY id
	`, workflowID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	edges := make([]*models.Edge, 0)

	for rows.Next() {
		var edge models.Edge
		if err := rows.Scan(&edge.ID, &edge.WorkflowID, &edge.SourceNodeID,
			&edge.TargetNodeID, &edge.ConditionType, &edge.ConditionValue); err != nil {
			return nil, err
		}

		edges = append(edges, &edge)
	}

	return edges, rows.Err()
}
