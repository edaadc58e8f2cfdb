package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/ccrm/agentgraph/pkg/models"
	"github.com/ccrm/agentgraph/pkg/persistence"
)

// RunRepository handles terminal run snapshots in PostgreSQL. Entries are
// stored as a JSONB document; the run log is append-only.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sql.DB, logger *slog.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logger}
}

// Save stores one run record.
func (r *RunRepository) Save(ctx context.Context, record *models.RunRecord) error {
	entries, err := json.Marshal(record.Entries)
	if err != nil {
		return persistence.NewRunError("Save", record.RunID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO agent_workflow_run (run_id, workflow_id, status, step_count, started_at, ended_at, entries, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			step_count = EXCLUDED.step_count,
			ended_at = EXCLUDED.ended_at,
			entries = EXCLUDED.entries,
			error = EXCLUDED.error
	`, record.RunID, record.WorkflowID, record.Status, record.StepCount,
		record.StartedAt, record.EndedAt, entries, record.Error)
	if err != nil {
		return persistence.NewRunError("Save", record.RunID, err)
	}

	return nil
}

// GetByID loads one run record.
func (r *RunRepository) GetByID(ctx context.Context, runID string) (*models.RunRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT run_id, workflow_id, status, step_count, started_at, ended_at, entries, COALESCE(error, '')
		FROM agent_workflow_run
		WHERE run_id = $1
	`, runID)

	record, err := scanRunRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRunError("GetByID", runID, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("GetByID", runID, err)
	}

	return record, nil
}

// GetByWorkflow loads all run records for a workflow, most recent start first.
func (r *RunRepository) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.RunRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, workflow_id, status, step_count, started_at, ended_at, entries, COALESCE(error, '')
		FROM agent_workflow_run
		WHERE workflow_id = $1
		ORDER BY started_at DESC
	`, workflowID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	records := make([]*models.RunRecord, 0)

	for rows.Next() {
		record, err := scanRunRecord(rows.Scan)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

func scanRunRecord(scan func(dest ...any) error) (*models.RunRecord, error) {
	var (
		record  models.RunRecord
		entries []byte
	)

	err := scan(&record.RunID, &record.WorkflowID, &record.Status, &record.StepCount,
		&record.StartedAt, &record.EndedAt, &entries, &record.Error)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(entries, &record.Entries); err != nil {
		return nil, err
	}

	return &record, nil
}
