// Package schedule starts workflow runs on cron schedules.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/ccrm/agentgraph/pkg/queue"
)

// Entry is one recurring run request.
type Entry struct {
	ID         string         `json:"id"`
	CronExpr   string         `json:"cron"`
	WorkflowID string         `json:"workflowId"`
	Input      map[string]any `json:"input,omitempty"`
}

// Validate checks the entry is complete and its cron expression parses.
func (e *Entry) Validate() error {
	if e.ID == "" {
		return errors.New("schedule entry ID is required")
	}

	if e.WorkflowID == "" {
		return errors.New("schedule entry workflow ID is required")
	}

	if e.CronExpr == "" {
		return errors.New("schedule entry cron expression is required")
	}

	if _, err := cron.ParseStandard(e.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

// Scheduler fires run requests for registered entries. A firing that overlaps
// a still-running one for the same entry is skipped.
type Scheduler struct {
	cron     *cron.Cron
	entries  []Entry
	callback queue.Callback
	logger   *slog.Logger
}

// NewScheduler creates a scheduler for the given entries.
func NewScheduler(entries []Entry, logger *slog.Logger) (*Scheduler, error) {
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return nil, err
		}
	}

	return &Scheduler{
		entries: entries,
		logger:  logger.With("module", "scheduler"),
	}, nil
}

// Start registers every entry and begins firing.
func (s *Scheduler) Start(ctx context.Context, callback queue.Callback) error {
	s.logger.InfoContext(ctx, "Starting scheduler", "entries", len(s.entries))
	s.callback = callback

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	for _, entry := range s.entries {
		entry := entry

		id, err := s.cron.AddFunc(entry.CronExpr, func() { s.fire(ctx, entry) })
		if err != nil {
			return fmt.Errorf("failed to add cron job for entry %s: %w", entry.ID, err)
		}

		s.logger.InfoContext(ctx, "Added cron job", "entry_id", entry.ID, "job_id", id, "cron", entry.CronExpr)
	}

	s.cron.Start()

	return nil
}

func (s *Scheduler) fire(ctx context.Context, entry Entry) {
	s.logger.InfoContext(ctx, "Schedule fired", "entry_id", entry.ID, "workflow_id", entry.WorkflowID)

	err := s.callback(ctx, queue.RunRequest{
		WorkflowID: entry.WorkflowID,
		Input:      entry.Input,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error handling scheduled run request", "entry_id", entry.ID, "error", err)
	}
}

// Stop halts firing and waits for in-flight jobs.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping scheduler")

	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	return nil
}
