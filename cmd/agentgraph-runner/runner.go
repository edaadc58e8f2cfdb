package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ccrm/agentgraph/pkg/agentrunner"
	"github.com/ccrm/agentgraph/pkg/compile"
	"github.com/ccrm/agentgraph/pkg/engine"
	"github.com/ccrm/agentgraph/pkg/eventbus"
	"github.com/ccrm/agentgraph/pkg/events"
	"github.com/ccrm/agentgraph/pkg/models"
	"github.com/ccrm/agentgraph/pkg/otelhelper"
	"github.com/ccrm/agentgraph/pkg/persistence"
	"github.com/ccrm/agentgraph/pkg/queue"
	"github.com/ccrm/agentgraph/pkg/registry"
	"github.com/ccrm/agentgraph/pkg/schedule"
	"github.com/ccrm/agentgraph/pkg/validation"
)

// RunnerConfig carries the runner's wiring options.
type RunnerConfig struct {
	ID                   string
	AgentServiceURL      string
	AgentsPath           string
	SchedulesPath        string
	QueueRedisAddr       string
	StepLimit            int
	RunTimeoutMs         int
	ValidationStrictness validation.Strictness
}

// Runner consumes run requests, executes them through the engine, persists
// the terminal record and publishes the matching lifecycle events.
type Runner struct {
	config      RunnerConfig
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	engine      *engine.Engine
	compiler    *compile.Compiler
	validator   *validation.Validator
	queueSource *queue.Source
	scheduler   *schedule.Scheduler
	logger      *slog.Logger

	mu     sync.Mutex
	graphs map[string]*compile.CompiledGraph
}

// NewRunner wires a runner from its collaborators.
func NewRunner(
	config RunnerConfig,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	toolRegistry *registry.Registry,
	logger *slog.Logger,
) *Runner {
	agents := registryAgents(config.AgentsPath)
	agentRunner := agentrunner.NewHTTPRunner(config.AgentServiceURL, logger)

	engineOpts := []engine.Option{}

	tracer, err := otelhelper.NewTracer(context.Background(), "agentgraph-runner")
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		engineOpts = append(engineOpts, engine.WithTracer(tracer))
	}

	engineOpts = append(engineOpts, engine.WithObserver(&lifecycleObserver{
		eventBus: eventBus,
		runnerID: config.ID,
		logger:   logger,
	}))

	return &Runner{
		config:      config,
		persistence: persistence,
		eventBus:    eventBus,
		engine:      engine.New(agentRunner, toolRegistry, logger, engineOpts...),
		compiler:    compile.NewCompiler(agents),
		validator:   validation.NewValidator(agents, validation.Config{Strictness: config.ValidationStrictness}),
		logger:      logger,
		graphs:      make(map[string]*compile.CompiledGraph),
	}
}

// lifecycleObserver publishes step and tool events as runs progress, so
// subscribers can follow a run before its terminal event lands.
type lifecycleObserver struct {
	eventBus eventbus.EventBus
	runnerID string
	logger   *slog.Logger
}

func (o *lifecycleObserver) StepCompleted(ctx context.Context, workflowID, runID string, step int, nodeID string) {
	event := events.StepCompleted{
		BaseEvent: events.NewBaseEvent(events.StepCompletedEvent, workflowID),
		RunID:     runID,
		Step:      step,
		NodeID:    nodeID,
	}
	event.RunnerID = o.runnerID

	if err := o.eventBus.Publish(ctx, workflowID, event); err != nil {
		o.logger.WarnContext(ctx, "Failed to publish step completed event", "run_id", runID, "error", err)
	}
}

func (o *lifecycleObserver) ToolExecuted(ctx context.Context, workflowID, runID string, entry models.Entry) {
	event := events.ToolExecuted{
		BaseEvent: events.NewBaseEvent(events.ToolExecutedEvent, workflowID),
		RunID:     runID,
		NodeID:    entry.NodeID,
		ToolName:  entry.ToolName,
		Step:      entry.Step,
		Error:     entry.Error,
	}
	event.RunnerID = o.runnerID

	if err := o.eventBus.Publish(ctx, workflowID, event); err != nil {
		o.logger.WarnContext(ctx, "Failed to publish tool executed event", "run_id", runID, "error", err)
	}
}

func registryAgents(agentsPath string) *registry.FileAgentStore {
	return registry.NewFileAgentStore(agentsPath)
}

// Start subscribes to run requests and blocks until a termination signal.
func (r *Runner) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.logger.InfoContext(ctx, "Starting runner subscriptions")

	err := r.eventBus.Handle(events.RunRequestedEvent, r.handleRunRequested)
	if err != nil {
		return err
	}

	err = r.eventBus.Subscribe(ctx)
	if err != nil {
		return err
	}

	if r.config.SchedulesPath != "" {
		entries, err := loadScheduleEntries(r.config.SchedulesPath)
		if err != nil {
			return err
		}

		r.scheduler, err = schedule.NewScheduler(entries, r.logger)
		if err != nil {
			return err
		}

		err = r.scheduler.Start(ctx, func(ctx context.Context, request queue.RunRequest) error {
			return r.execute(ctx, request.WorkflowID, request.Input)
		})
		if err != nil {
			return err
		}
	}

	if r.config.QueueRedisAddr != "" {
		r.queueSource, err = queue.NewSource(map[string]any{
			"connection": map[string]any{"addr": r.config.QueueRedisAddr},
		}, r.logger)
		if err != nil {
			return err
		}

		err = r.queueSource.Start(ctx, func(ctx context.Context, request queue.RunRequest) error {
			return r.execute(ctx, request.WorkflowID, request.Input)
		})
		if err != nil {
			return err
		}
	}

	r.logger.InfoContext(ctx, "Runner started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	r.logger.InfoContext(ctx, "Shutting down runner")
	cancel()

	if r.scheduler != nil {
		if err := r.scheduler.Stop(ctx); err != nil {
			r.logger.ErrorContext(ctx, "Failed to stop scheduler", "error", err)
		}
	}

	if r.queueSource != nil {
		if err := r.queueSource.Stop(ctx); err != nil {
			r.logger.ErrorContext(ctx, "Failed to stop queue source", "error", err)
		}
	}

	return nil
}

// loadScheduleEntries reads recurring run schedules from a JSON file.
func loadScheduleEntries(path string) ([]schedule.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedules file: %w", err)
	}

	var entries []schedule.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid schedules file: %w", err)
	}

	return entries, nil
}

func (r *Runner) handleRunRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.RunRequested)
	if !ok {
		r.logger.ErrorContext(ctx, "Invalid event type for RunRequested")

		return nil
	}

	r.logger.InfoContext(ctx, "Processing run request",
		"workflow_id", requested.WorkflowID,
		"event_id", requested.ID,
	)

	return r.execute(ctx, requested.WorkflowID, requested.Input)
}

func (r *Runner) execute(ctx context.Context, workflowID string, input map[string]any) error {
	graph, err := r.compiledGraph(ctx, workflowID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to prepare workflow", "workflow_id", workflowID, "error", err)

		return err
	}

	state := engine.NewStateWithInput(graph, input)

	started := events.RunStarted{
		BaseEvent: events.NewBaseEvent(events.RunStartedEvent, workflowID),
		RunID:     state.RunID,
	}
	started.RunnerID = r.config.ID

	if err := r.eventBus.Publish(ctx, workflowID, started); err != nil {
		r.logger.ErrorContext(ctx, "Failed to publish run started event", "error", err)
	}

	record, runErr := r.engine.RunWithState(ctx, graph, state, engine.Config{
		StepLimit:  r.config.StepLimit,
		RunTimeout: time.Duration(r.config.RunTimeoutMs) * time.Millisecond,
	})

	if runErr != nil {
		r.logger.ErrorContext(ctx, "Run ended abnormally",
			"run_id", record.RunID,
			"status", record.Status,
			"error", runErr,
		)
	}

	if err := r.persistence.SaveRunRecord(ctx, record); err != nil {
		r.logger.ErrorContext(ctx, "Failed to persist run record", "run_id", record.RunID, "error", err)
	}

	terminal := events.TerminalRunEvent(record, r.config.ID)
	if err := r.eventBus.Publish(ctx, workflowID, terminal); err != nil {
		r.logger.ErrorContext(ctx, "Failed to publish terminal run event", "run_id", record.RunID, "error", err)
	}

	return nil
}

// compiledGraph returns the cached compiled form of the workflow, compiling
// and validating it on first use.
func (r *Runner) compiledGraph(ctx context.Context, workflowID string) (*compile.CompiledGraph, error) {
	r.mu.Lock()
	if graph, cached := r.graphs[workflowID]; cached {
		r.mu.Unlock()

		return graph, nil
	}
	r.mu.Unlock()

	workflow, err := r.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	warnings, err := r.validator.Validate(ctx, workflow)
	if err != nil {
		return nil, err
	}

	for _, warning := range warnings {
		r.logger.WarnContext(ctx, "Workflow validation warning",
			"workflow_id", workflowID,
			"issue", warning.String(),
		)
	}

	graph, err := r.compiler.Compile(ctx, workflow)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.graphs[workflowID] = graph
	r.mu.Unlock()

	return graph, nil
}
