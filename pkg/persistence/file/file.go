// Package file provides file-based persistence for workflow definitions and
// run records.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ccrm/agentgraph/pkg/models"
	"github.com/ccrm/agentgraph/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system. Each
// workflow lives in definitions/<workflow-id>/workflow.json; each run record
// in runs/<run-id>.json.
type Persistence struct {
	root string
}

// NewPersistence creates a new file persistence rooted at the given path. A
// "file://" prefix is stripped so the same URL accepted by the CLI works here.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.Replace(root, "file://", "", 1)}
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. There is nothing to clean up for
// file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) workflowPath(id string) string {
	return filepath.Join(p.root, "definitions", id, "workflow.json")
}

func (p *Persistence) runPath(runID string) string {
	return filepath.Join(p.root, "runs", runID+".json")
}

// Workflows returns every workflow definition found under definitions/,
// sorted by ID.
func (p *Persistence) Workflows(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	entries, err := os.ReadDir(filepath.Join(p.root, "definitions"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*models.WorkflowDefinition{}, nil
		}

		return nil, fmt.Errorf("failed to list workflow definitions: %w", err)
	}

	workflows := make([]*models.WorkflowDefinition, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		workflow, err := p.WorkflowByID(ctx, entry.Name())
		if err != nil {
			if persistence.IsWorkflowNotFound(err) {
				continue
			}

			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool { return workflows[i].ID < workflows[j].ID })

	return workflows, nil
}

// WorkflowByID loads one workflow definition.
func (p *Persistence) WorkflowByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	data, err := os.ReadFile(p.workflowPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	var workflow models.WorkflowDefinition
	if err := json.Unmarshal(data, &workflow); err != nil {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	return &workflow, nil
}

// SaveWorkflow writes the definition atomically via a temp file rename.
func (p *Persistence) SaveWorkflow(_ context.Context, workflow *models.WorkflowDefinition) error {
	path := p.workflowPath(workflow.ID)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, err)
	}

	if err := writeFileAtomic(path, data); err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, err)
	}

	return nil
}

// DeleteWorkflow removes the definition directory.
func (p *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	dir := filepath.Dir(p.workflowPath(id))

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return persistence.NewWorkflowError("DeleteWorkflow", id, persistence.ErrWorkflowNotFound)
	}

	if err := os.RemoveAll(dir); err != nil {
		return persistence.NewWorkflowError("DeleteWorkflow", id, err)
	}

	return nil
}

// SaveRunRecord writes a terminal run snapshot.
func (p *Persistence) SaveRunRecord(_ context.Context, record *models.RunRecord) error {
	path := p.runPath(record.RunID)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return persistence.NewRunError("SaveRunRecord", record.RunID, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return persistence.NewRunError("SaveRunRecord", record.RunID, err)
	}

	if err := writeFileAtomic(path, data); err != nil {
		return persistence.NewRunError("SaveRunRecord", record.RunID, err)
	}

	return nil
}

// RunRecordByID loads one run record.
func (p *Persistence) RunRecordByID(_ context.Context, runID string) (*models.RunRecord, error) {
	data, err := os.ReadFile(p.runPath(runID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewRunError("RunRecordByID", runID, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("RunRecordByID", runID, err)
	}

	var record models.RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, persistence.NewRunError("RunRecordByID", runID, err)
	}

	return &record, nil
}

// RunRecordsByWorkflow returns the run records for a workflow, most recent
// start first.
func (p *Persistence) RunRecordsByWorkflow(ctx context.Context, workflowID string) ([]*models.RunRecord, error) {
	entries, err := os.ReadDir(filepath.Join(p.root, "runs"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*models.RunRecord{}, nil
		}

		return nil, fmt.Errorf("failed to list run records: %w", err)
	}

	records := make([]*models.RunRecord, 0)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		record, err := p.RunRecordByID(ctx, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, err
		}

		if record.WorkflowID == workflowID {
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].StartedAt.After(records[j].StartedAt) })

	return records, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return err
	}

	return os.Rename(tmp.Name(), path)
}
