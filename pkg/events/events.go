// Package events defines event types and structures for run lifecycle
// notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/ccrm/agentgraph/pkg/models"
)

type EventType string

// Topic carries every run lifecycle event.
const Topic = "agentgraph.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run lifecycle events.
	RunRequestedEvent   EventType = "run.requested"
	RunStartedEvent     EventType = "run.started"
	RunCompletedEvent   EventType = "run.completed"
	RunFailedEvent      EventType = "run.failed"
	RunTimeoutEvent     EventType = "run.timeout"
	RunInterruptedEvent EventType = "run.interrupted"

	// Step-level events.
	StepCompletedEvent EventType = "step.completed"
	ToolExecutedEvent  EventType = "tool.executed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	RunnerID   string         `json:"runner_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent creates the shared envelope for an event.
func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now(),
		WorkflowID: workflowID,
	}
}

// RunRequested asks a runner to start a run of the given workflow.
type RunRequested struct {
	BaseEvent

	RunID string         `json:"run_id,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

func (e RunRequested) GetType() EventType {
	return RunRequestedEvent
}

// RunStarted is emitted when a runner claims a run request and begins
// executing.
type RunStarted struct {
	BaseEvent

	RunID string `json:"run_id"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

// RunFinished is the shared shape of every terminal run event; the concrete
// event type says how the run ended.
type RunFinished struct {
	BaseEvent

	RunID     string           `json:"run_id"`
	Status    models.RunStatus `json:"status"`
	StepCount int              `json:"step_count"`
	Duration  time.Duration    `json:"duration"`
	Error     string           `json:"error,omitempty"`
}

// RunCompleted is emitted when a run reaches COMPLETED.
type RunCompleted struct {
	RunFinished
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

// RunFailed is emitted when a run reaches FAILED.
type RunFailed struct {
	RunFinished
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

// RunTimeout is emitted when a run exceeds its deadline.
type RunTimeout struct {
	RunFinished
}

func (e RunTimeout) GetType() EventType {
	return RunTimeoutEvent
}

// RunInterrupted is emitted when the step circuit breaker trips.
type RunInterrupted struct {
	RunFinished
}

func (e RunInterrupted) GetType() EventType {
	return RunInterruptedEvent
}

// StepCompleted is emitted after each committed step.
type StepCompleted struct {
	BaseEvent

	RunID  string `json:"run_id"`
	Step   int    `json:"step"`
	NodeID string `json:"node_id"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

// ToolExecuted is emitted after each tool call, whether it succeeded or
// failed.
type ToolExecuted struct {
	BaseEvent

	RunID    string `json:"run_id"`
	NodeID   string `json:"node_id"`
	ToolName string `json:"tool_name"`
	Step     int    `json:"step"`
	Error    string `json:"error,omitempty"`
}

func (e ToolExecuted) GetType() EventType {
	return ToolExecutedEvent
}

// TerminalRunEvent builds the terminal event matching the record's status.
func TerminalRunEvent(record *models.RunRecord, runnerID string) interface {
	GetType() EventType
} {
	base := NewBaseEvent(EventType("run."+string(record.Status)), record.WorkflowID)
	base.RunnerID = runnerID

	finished := RunFinished{
		BaseEvent: base,
		RunID:     record.RunID,
		Status:    record.Status,
		StepCount: record.StepCount,
		Duration:  record.EndedAt.Sub(record.StartedAt),
		Error:     record.Error,
	}

	switch record.Status {
	case models.RunStatusCompleted:
		finished.BaseEvent.Type = RunCompletedEvent

		return RunCompleted{RunFinished: finished}
	case models.RunStatusTimeout:
		finished.BaseEvent.Type = RunTimeoutEvent

		return RunTimeout{RunFinished: finished}
	case models.RunStatusInterrupted:
		finished.BaseEvent.Type = RunInterruptedEvent

		return RunInterrupted{RunFinished: finished}
	default:
		finished.BaseEvent.Type = RunFailedEvent

		return RunFailed{RunFinished: finished}
	}
}
