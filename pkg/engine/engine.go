package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ccrm/agentgraph/pkg/compile"
	"github.com/ccrm/agentgraph/pkg/models"
	"github.com/ccrm/agentgraph/pkg/otelhelper"
	"github.com/ccrm/agentgraph/pkg/protocol"
	"github.com/ccrm/agentgraph/pkg/routing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Engine executes compiled workflow graphs, one run per Run call. The engine
// itself is stateless across runs and safe for concurrent use; each run's
// ExecutionState is owned exclusively by that run.
type Engine struct {
	runner      protocol.AgentRunner
	coordinator *ToolCoordinator
	logger      *slog.Logger
	tracer      trace.Tracer
	observer    Observer
}

// Observer receives notifications as a run progresses. Calls are made
// synchronously from the run loop after the step's entries are committed,
// so implementations must not block.
type Observer interface {
	StepCompleted(ctx context.Context, workflowID, runID string, step int, nodeID string)
	ToolExecuted(ctx context.Context, workflowID, runID string, entry models.Entry)
}

// Option configures an Engine.
type Option func(*Engine)

// WithTracer enables span emission per run, per step and per tool call.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithObserver registers an observer for step and tool notifications.
func WithObserver(observer Observer) Option {
	return func(e *Engine) {
		e.observer = observer
	}
}

// New creates an engine delegating agent turns to runner and tool calls to
// the resolver.
func New(runner protocol.AgentRunner, tools protocol.ToolResolver, logger *slog.Logger, opts ...Option) *Engine {
	engine := &Engine{
		runner: runner,
		logger: logger.With("module", "engine"),
		tracer: noop.NewTracerProvider().Tracer("engine"),
	}

	for _, opt := range opts {
		opt(engine)
	}

	// The coordinator shares the engine's tracer, so it is built after the
	// options have been applied.
	engine.coordinator = NewToolCoordinator(tools, logger, engine.tracer)

	return engine
}

// Run drives one run of the graph from its entrypoint to a terminal status.
// The returned record always reflects the terminal state, including partial
// state for INTERRUPTED and TIMEOUT runs; the error is non-nil exactly when
// the status is not COMPLETED.
func (e *Engine) Run(ctx context.Context, graph *compile.CompiledGraph, config Config) (*models.RunRecord, error) {
	return e.RunWithState(ctx, graph, NewState(graph), config)
}

// NewState creates the initial state for a run of the graph, positioned at
// the entrypoint with a fresh run ID.
func NewState(graph *compile.CompiledGraph) *models.ExecutionState {
	return &models.ExecutionState{
		RunID:         generateRunID(),
		WorkflowID:    graph.WorkflowID,
		Entries:       make([]models.Entry, 0),
		CurrentNodeID: graph.EntrypointNodeID,
		Status:        models.RunStatusInit,
		StartedAt:     time.Now(),
	}
}

// NewStateWithInput creates initial state seeded with the caller's input,
// recorded as a step-zero entry so every agent turn sees it in history. An
// empty input seeds nothing.
func NewStateWithInput(graph *compile.CompiledGraph, input map[string]any) *models.ExecutionState {
	state := NewState(graph)

	if len(input) > 0 {
		state.Append(models.Entry{
			Kind:      models.EntryKindUserInput,
			NodeID:    graph.EntrypointNodeID,
			Result:    input,
			Timestamp: time.Now(),
		})
	}

	return state
}

// RunWithState drives a run over caller-supplied initial state, for runs
// seeded with prior conversation entries. The state must be fresh for this
// run and is owned by it from here on.
func (e *Engine) RunWithState(
	ctx context.Context,
	graph *compile.CompiledGraph,
	state *models.ExecutionState,
	config Config,
) (*models.RunRecord, error) {
	config = config.withDefaults()

	logger := e.logger.With("run_id", state.RunID, "workflow_id", graph.WorkflowID)
	logger.InfoContext(ctx, "Starting run",
		"step_limit", config.StepLimit, "run_timeout", config.RunTimeout)

	ctx, span := e.tracer.Start(ctx, "engine.run", trace.WithAttributes(
		attribute.String(otelhelper.WorkflowIDKey, graph.WorkflowID),
		attribute.String(otelhelper.RunIDKey, state.RunID),
	))
	defer span.End()

	runCtx, cancel := context.WithTimeout(ctx, config.RunTimeout)
	defer cancel()

	state.Status = models.RunStatusRunning
	runErr := e.loop(runCtx, graph, state, config, logger)

	if runErr != nil {
		otelhelper.SetError(span, runErr)
	}

	record := state.Record(time.Now(), runErr)
	logger.InfoContext(ctx, "Run finished",
		"status", state.Status, "steps", state.StepCount, "error", runErr)

	return record, runErr
}

// loop executes discrete steps until a terminal status is reached, mutating
// state.Status before returning. A step's entries are committed atomically:
// either the step's full result set is appended and the run advances, or
// nothing is recorded and the run halts.
func (e *Engine) loop(
	ctx context.Context,
	graph *compile.CompiledGraph,
	state *models.ExecutionState,
	config Config,
	logger *slog.Logger,
) error {
	for {
		node, found := graph.Node(state.CurrentNodeID)
		if !found {
			state.Status = models.RunStatusFailed

			return fmt.Errorf("run %s: node %s not found in workflow %s",
				state.RunID, state.CurrentNodeID, state.WorkflowID)
		}

		signal, err := e.step(ctx, node, state, logger)
		if err != nil {
			return e.halt(state, node, err)
		}

		state.StepCount++

		if e.observer != nil {
			e.observer.StepCompleted(ctx, state.WorkflowID, state.RunID, state.StepCount, node.Node.ID)
		}

		outcome, err := routing.Resolve(node, signal, state.DispatcherNodeID)
		if err != nil {
			state.Status = models.RunStatusFailed

			return &RoutingFailure{RunID: state.RunID, NodeID: node.Node.ID, Err: err}
		}

		if outcome.End {
			state.Status = models.RunStatusCompleted

			return nil
		}

		if state.StepCount >= config.StepLimit {
			state.Status = models.RunStatusInterrupted
			logger.WarnContext(ctx, "Circuit breaker tripped",
				"steps", state.StepCount, "node_id", node.Node.ID)

			return fmt.Errorf("run %s: %w after %d steps",
				state.RunID, ErrCircuitBreakerTripped, state.StepCount)
		}

		state.CurrentNodeID = outcome.NextNodeID
	}
}

// step executes the current node and commits its entries. The produced
// signal feeds the routing resolver.
func (e *Engine) step(
	ctx context.Context,
	node *compile.CompiledNode,
	state *models.ExecutionState,
	logger *slog.Logger,
) (models.Signal, error) {
	ctx, span := e.tracer.Start(ctx, "engine.step", trace.WithAttributes(
		attribute.String(otelhelper.NodeIDKey, node.Node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Node.NodeType)),
		attribute.Int(otelhelper.StepKey, state.StepCount+1),
	))
	defer span.End()

	logger.DebugContext(ctx, "Executing node",
		"node_id", node.Node.ID, "node_name", node.Node.NodeName,
		"node_type", node.Node.NodeType, "step", state.StepCount+1)

	if node.Node.IsToolExecutor() {
		entries, signal, err := e.coordinator.ExecuteBatch(
			ctx, node.Node.ID, state.StepCount+1, state.PendingToolCalls)
		if err != nil {
			otelhelper.SetError(span, err)

			return models.Signal{}, err
		}

		state.Append(entries...)
		state.PendingToolCalls = nil

		if e.observer != nil {
			for _, entry := range entries {
				e.observer.ToolExecuted(ctx, state.WorkflowID, state.RunID, entry)
			}
		}

		return signal, nil
	}

	return e.agentStep(ctx, node, state, span)
}

func (e *Engine) agentStep(
	ctx context.Context,
	node *compile.CompiledNode,
	state *models.ExecutionState,
	span trace.Span,
) (models.Signal, error) {
	if node.Agent != nil {
		span.SetAttributes(attribute.String(otelhelper.AgentIDKey, node.Agent.ID))
	}

	turn := protocol.AgentTurn{
		RunID:              state.RunID,
		NodeID:             node.Node.ID,
		Agent:              node.Agent,
		History:            state.Entries,
		Destinations:       node.Destinations,
		CanEndConversation: node.CanEndConversation,
	}

	result, err := await(ctx, func() (*models.TurnResult, error) {
		return e.runner.RunTurn(ctx, turn)
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return models.Signal{}, &HandlerError{NodeID: node.Node.ID, Err: err}
	}

	entry := models.Entry{
		Kind:      models.EntryKindAgentTurn,
		Step:      state.StepCount + 1,
		NodeID:    node.Node.ID,
		Content:   result.Message,
		Timestamp: time.Now(),
	}
	if node.Agent != nil {
		entry.AgentID = node.Agent.ID
	}

	state.Append(entry)

	if len(result.ToolCalls) > 0 {
		state.PendingToolCalls = result.ToolCalls
		state.DispatcherNodeID = node.Node.ID
	}

	signal := result.Signal()

	// The end signal is a capability granted by the termination policy,
	// not part of the node's declared behavior. Ignore it where it was
	// never injected.
	if signal.EndConversation && !node.CanEndConversation && node.EndEdge == nil {
		e.logger.WarnContext(ctx, "Agent emitted end signal without the capability; ignoring",
			"run_id", state.RunID, "node_id", node.Node.ID)

		signal.EndConversation = false
	}

	return signal, nil
}

// halt maps a step failure to its terminal status. Deadline expiry is the
// only path to TIMEOUT; everything else is FAILED.
func (e *Engine) halt(state *models.ExecutionState, node *compile.CompiledNode, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		state.Status = models.RunStatusTimeout

		return fmt.Errorf("run %s: %w at node %s: %v",
			state.RunID, ErrRunTimeout, node.Node.ID, err)
	}

	state.Status = models.RunStatusFailed

	return err
}

// await invokes fn in a goroutine and abandons it if the context ends first.
// Handlers are expected to honor cancellation themselves; this guard keeps
// the run's deadline authoritative even over a handler that never returns.
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}

	done := make(chan outcome, 1)

	go func() {
		value, err := fn()
		done <- outcome{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T

		return zero, ctx.Err()
	case result := <-done:
		return result.value, result.err
	}
}

// generateRunID generates a unique run ID.
func generateRunID() string {
	return "run-" + uuid.New().String()[:8]
}
