package models

import "time"

// RunStatus defines the lifecycle states of one workflow run.
type RunStatus string

const (
	RunStatusInit        RunStatus = "INIT"
	RunStatusRunning     RunStatus = "RUNNING"
	RunStatusCompleted   RunStatus = "COMPLETED"
	RunStatusInterrupted RunStatus = "INTERRUPTED" // Circuit breaker tripped
	RunStatusTimeout     RunStatus = "TIMEOUT"
	RunStatusFailed      RunStatus = "FAILED"
)

// Terminal reports whether the status ends a run.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusInterrupted, RunStatusTimeout, RunStatusFailed:
		return true
	default:
		return false
	}
}

// EntryKind distinguishes the kinds of conversation entries.
type EntryKind string

const (
	EntryKindAgentTurn  EntryKind = "agent_turn"
	EntryKindToolResult EntryKind = "tool_result"
	EntryKindUserInput  EntryKind = "user_input"
)

// Entry is one record in a run's conversation history: a completed agent
// turn, a single tool-call result, or the caller's input seeded before the
// first step. Tool failures are captured in Error rather than failing the
// run, so the next agent turn can react.
type Entry struct {
	Kind      EntryKind `json:"kind"`
	Step      int       `json:"step"`
	NodeID    string    `json:"node_id"`
	AgentID   string    `json:"agent_id,omitempty"`
	ToolName  string    `json:"tool_name,omitempty"`
	Content   string    `json:"content,omitempty"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionState is the mutable state of exactly one run. It is created
// fresh per run and mutated only by the engine that owns it; it is never
// shared across runs.
type ExecutionState struct {
	RunID         string    `json:"run_id"`
	WorkflowID    string    `json:"workflow_id"`
	Entries       []Entry   `json:"entries"`
	CurrentNodeID string    `json:"current_node_id"`
	StepCount     int       `json:"step_count"`
	Status        RunStatus `json:"status"`
	StartedAt     time.Time `json:"started_at"`

	// PendingToolCalls holds tool calls requested by the most recent agent
	// turn, awaiting a TOOL_EXECUTOR node. DispatcherNodeID is the agent
	// node that requested them; it is the call-and-return target when a
	// TOOL_EXECUTOR node has no outgoing edges.
	PendingToolCalls []ToolCall `json:"pending_tool_calls,omitempty"`
	DispatcherNodeID string     `json:"dispatcher_node_id,omitempty"`
}

// Append records entries in step order. Entries within one step are committed
// together by the engine, never partially.
func (s *ExecutionState) Append(entries ...Entry) {
	s.Entries = append(s.Entries, entries...)
}

// RunRecord is the terminal snapshot of a run, handed to the run log
// collaborator for persistence.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	WorkflowID string    `json:"workflow_id"`
	Status     RunStatus `json:"status"`
	StepCount  int       `json:"step_count"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	Entries    []Entry   `json:"entries"`
	Error      string    `json:"error,omitempty"`
}

// Record snapshots the state into a terminal RunRecord.
func (s *ExecutionState) Record(endedAt time.Time, runErr error) *RunRecord {
	record := &RunRecord{
		RunID:      s.RunID,
		WorkflowID: s.WorkflowID,
		Status:     s.Status,
		StepCount:  s.StepCount,
		StartedAt:  s.StartedAt,
		EndedAt:    endedAt,
		Entries:    s.Entries,
	}

	if runErr != nil {
		record.Error = runErr.Error()
	}

	return record
}
