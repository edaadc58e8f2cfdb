package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ccrm/agentgraph/pkg/compile"
	"github.com/ccrm/agentgraph/pkg/models"
	"github.com/ccrm/agentgraph/pkg/otelhelper"
	"github.com/ccrm/agentgraph/pkg/protocol"
	"github.com/ccrm/agentgraph/pkg/registry"
	"github.com/ccrm/agentgraph/pkg/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func compileGraph(t *testing.T, workflow *models.WorkflowDefinition) *compile.CompiledGraph {
	t.Helper()

	compiler := compile.NewCompiler(registry.NewStaticAgentStore(
		testutil.Agent("agent-router"),
		testutil.Agent("agent-worker"),
	))

	graph, err := compiler.Compile(context.Background(), workflow)
	require.NoError(t, err)

	return graph
}

// routerWorkerWorkflow is a conversational graph with a routing agent, a
// worker agent and a handoff back to the router.
func routerWorkerWorkflow() *models.WorkflowDefinition {
	return testutil.Workflow("wf-support", "router", true,
		[]*models.Node{
			testutil.AgentNode("router", "agent-router"),
			testutil.AgentNode("worker", "agent-worker"),
		},
		[]*models.Edge{
			testutil.ConditionalEdge("e1", "router", "worker", "worker"),
			testutil.AlwaysEdge("e2", "worker", "router"),
		},
	)
}

func TestEngine_RouterWorkerRunCompletes(t *testing.T) {
	runner := testutil.NewScriptedRunner(
		testutil.Reply(&models.TurnResult{Message: "routing to worker", Destination: "worker"}),
		testutil.Reply(&models.TurnResult{Message: "work done"}),
		testutil.Reply(&models.TurnResult{Message: "all resolved", EndConversation: true}),
	)

	eng := New(runner, testutil.NewFakeResolver(), testLogger())

	record, err := eng.Run(context.Background(), compileGraph(t, routerWorkerWorkflow()), Config{})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, record.Status)
	assert.Equal(t, 3, record.StepCount)
	require.Len(t, record.Entries, 3)
	assert.Equal(t, "router", record.Entries[0].NodeID)
	assert.Equal(t, "worker", record.Entries[1].NodeID)
	assert.Equal(t, "router", record.Entries[2].NodeID)

	// Step numbers track the run's step counter.
	for i, entry := range record.Entries {
		assert.Equal(t, i+1, entry.Step)
		assert.Equal(t, models.EntryKindAgentTurn, entry.Kind)
	}

	// Each turn saw the history accumulated so far.
	require.Len(t, runner.Turns, 3)
	assert.Empty(t, runner.Turns[0].History)
	assert.Len(t, runner.Turns[1].History, 1)
	assert.Len(t, runner.Turns[2].History, 2)

	// The router's closed destination set was handed to the agent.
	assert.Equal(t, []string{"worker"}, runner.Turns[0].Destinations)
	assert.True(t, runner.Turns[0].CanEndConversation)
}

func TestEngine_CircuitBreakerTripsAtExactlyStepLimit(t *testing.T) {
	const stepLimit = 6

	script := make([]func(protocol.AgentTurn) (*models.TurnResult, error), stepLimit)
	for i := range script {
		script[i] = testutil.Reply(&models.TurnResult{Message: "ping", Destination: "worker"})
	}

	// Two agents bouncing forever.
	workflow := testutil.Workflow("wf-cycle", "router", false,
		[]*models.Node{
			testutil.AgentNode("router", "agent-router"),
			testutil.AgentNode("worker", "agent-worker"),
		},
		[]*models.Edge{
			testutil.ConditionalEdge("e1", "router", "worker", "worker"),
			testutil.AlwaysEdge("e2", "worker", "router"),
		},
	)

	eng := New(testutil.NewScriptedRunner(script...), testutil.NewFakeResolver(), testLogger())

	record, err := eng.Run(context.Background(), compileGraph(t, workflow), Config{StepLimit: stepLimit})
	require.Error(t, err)

	assert.True(t, IsCircuitBreaker(err))
	assert.Equal(t, models.RunStatusInterrupted, record.Status)
	assert.Equal(t, stepLimit, record.StepCount)
	assert.Len(t, record.Entries, stepLimit)
}

func TestEngine_CompletionAtStepLimitIsCompleted(t *testing.T) {
	// A run that ends exactly on its last allowed step completes; the
	// breaker only trips when the run would need another step.
	runner := testutil.NewScriptedRunner(
		testutil.Reply(&models.TurnResult{Message: "done", EndConversation: true}),
	)

	workflow := testutil.Workflow("wf-once", "router", true,
		[]*models.Node{testutil.AgentNode("router", "agent-router")},
		nil,
	)

	eng := New(runner, testutil.NewFakeResolver(), testLogger())

	record, err := eng.Run(context.Background(), compileGraph(t, workflow), Config{StepLimit: 1})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, record.Status)
	assert.Equal(t, 1, record.StepCount)
}

func TestEngine_HangingHandlerTimesOut(t *testing.T) {
	hanging := testutil.NewScriptedRunner(func(protocol.AgentTurn) (*models.TurnResult, error) {
		select {} // never returns
	})

	workflow := testutil.Workflow("wf-hang", "router", true,
		[]*models.Node{testutil.AgentNode("router", "agent-router")},
		nil,
	)

	eng := New(hanging, testutil.NewFakeResolver(), testLogger())

	start := time.Now()
	record, err := eng.Run(context.Background(), compileGraph(t, workflow), Config{RunTimeout: 100 * time.Millisecond})
	require.Error(t, err)

	assert.True(t, IsTimeout(err))
	assert.Equal(t, models.RunStatusTimeout, record.Status)
	assert.Less(t, time.Since(start), 5*time.Second)

	// The interrupted step committed nothing.
	assert.Empty(t, record.Entries)
	assert.Equal(t, 0, record.StepCount)
}

func TestEngine_AgentFailureFailsRun(t *testing.T) {
	boom := errors.New("model unavailable")
	runner := testutil.NewScriptedRunner(func(protocol.AgentTurn) (*models.TurnResult, error) {
		return nil, boom
	})

	workflow := testutil.Workflow("wf-fail", "router", true,
		[]*models.Node{testutil.AgentNode("router", "agent-router")},
		nil,
	)

	eng := New(runner, testutil.NewFakeResolver(), testLogger())

	record, err := eng.Run(context.Background(), compileGraph(t, workflow), Config{})
	require.Error(t, err)

	assert.Equal(t, models.RunStatusFailed, record.Status)
	assert.ErrorIs(t, err, boom)

	var handlerErr *HandlerError
	require.ErrorAs(t, err, &handlerErr)
	assert.Equal(t, "router", handlerErr.NodeID)
}

func TestEngine_UnroutableSignalFailsRun(t *testing.T) {
	runner := testutil.NewScriptedRunner(
		testutil.Reply(&models.TurnResult{Message: "off the map", Destination: "shipping"}),
	)

	workflow := testutil.Workflow("wf-noroute", "router", false,
		[]*models.Node{
			testutil.AgentNode("router", "agent-router"),
			testutil.AgentNode("worker", "agent-worker"),
		},
		[]*models.Edge{
			testutil.ConditionalEdge("e1", "router", "worker", "worker"),
		},
	)

	eng := New(runner, testutil.NewFakeResolver(), testLogger())

	record, err := eng.Run(context.Background(), compileGraph(t, workflow), Config{})
	require.Error(t, err)

	assert.Equal(t, models.RunStatusFailed, record.Status)

	var routingErr *RoutingFailure
	require.ErrorAs(t, err, &routingErr)
	assert.Equal(t, "router", routingErr.NodeID)
}

func TestEngine_ToolBatchCallAndReturn(t *testing.T) {
	// Router dispatches three tool calls; the executor has no outgoing
	// edges, so control returns to the router, which then ends the run.
	runner := testutil.NewScriptedRunner(
		testutil.Reply(&models.TurnResult{
			Message: "looking things up",
			ToolCalls: []models.ToolCall{
				{ID: "c1", Name: "tool_a", Arguments: map[string]any{"q": "one"}},
				{ID: "c2", Name: "tool_b"},
				{ID: "c3", Name: "tool_c"},
			},
			Destination: "tools",
		}),
		testutil.Reply(&models.TurnResult{Message: "summarized", EndConversation: true}),
	)

	var invoked []string

	resolver := testutil.NewFakeResolver(
		&testutil.FakeTool{ToolName: "tool_a", Fn: func(_ context.Context, args map[string]any) (any, error) {
			invoked = append(invoked, "tool_a")

			return map[string]any{"answer": args["q"]}, nil
		}},
		&testutil.FakeTool{ToolName: "tool_b", Fn: func(context.Context, map[string]any) (any, error) {
			invoked = append(invoked, "tool_b")

			return nil, errors.New("upstream 503")
		}},
		&testutil.FakeTool{ToolName: "tool_c", Fn: func(context.Context, map[string]any) (any, error) {
			invoked = append(invoked, "tool_c")

			return "ok", nil
		}},
	)

	workflow := testutil.Workflow("wf-tools", "router", true,
		[]*models.Node{
			testutil.AgentNode("router", "agent-router"),
			testutil.ToolNode("tools"),
		},
		[]*models.Edge{
			testutil.ConditionalEdge("e1", "router", "tools", "tools"),
		},
	)

	eng := New(runner, resolver, testLogger())

	record, err := eng.Run(context.Background(), compileGraph(t, workflow), Config{})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, record.Status)
	assert.Equal(t, 3, record.StepCount)

	// Strictly sequential, in dispatch order.
	assert.Equal(t, []string{"tool_a", "tool_b", "tool_c"}, invoked)

	// One agent turn, three tool results, one closing turn.
	require.Len(t, record.Entries, 5)
	assert.Equal(t, models.EntryKindAgentTurn, record.Entries[0].Kind)

	toolEntries := record.Entries[1:4]
	assert.Equal(t, "tool_a", toolEntries[0].ToolName)
	assert.Equal(t, map[string]any{"answer": "one"}, toolEntries[0].Result)
	assert.Empty(t, toolEntries[0].Error)

	// The failing call is captured as a result payload, not a run failure.
	assert.Equal(t, "tool_b", toolEntries[1].ToolName)
	assert.Equal(t, "upstream 503", toolEntries[1].Error)
	assert.Nil(t, toolEntries[1].Result)

	assert.Equal(t, "tool_c", toolEntries[2].ToolName)
	assert.Equal(t, "ok", toolEntries[2].Result)

	// Tool results were visible to the closing turn.
	assert.Len(t, runner.Turns[1].History, 4)
}

func TestEngine_PerToolRoutingAfterExecutor(t *testing.T) {
	// The last executed tool's name routes to its dedicated edge even
	// though the executor also has an ALWAYS fallback.
	runner := testutil.NewScriptedRunner(
		testutil.Reply(&models.TurnResult{
			Message:     "checking the invoice",
			ToolCalls:   []models.ToolCall{{ID: "c1", Name: "lookup_invoice"}},
			Destination: "tools",
		}),
		testutil.Reply(&models.TurnResult{Message: "invoice handled", EndConversation: true}),
	)

	resolver := testutil.NewFakeResolver(
		&testutil.FakeTool{ToolName: "lookup_invoice", Fn: func(context.Context, map[string]any) (any, error) {
			return map[string]any{"total": 42}, nil
		}},
	)

	workflow := testutil.Workflow("wf-pertool", "router", true,
		[]*models.Node{
			testutil.AgentNode("router", "agent-router"),
			testutil.ToolNode("tools"),
			testutil.AgentNode("billing", "agent-worker"),
			testutil.AgentNode("fallback", "agent-worker"),
		},
		[]*models.Edge{
			testutil.ConditionalEdge("e1", "router", "tools", "tools"),
			testutil.ConditionalEdge("e2", "tools", "billing", "lookup_invoice"),
			testutil.AlwaysEdge("e3", "tools", "fallback"),
		},
	)

	eng := New(runner, resolver, testLogger())

	record, err := eng.Run(context.Background(), compileGraph(t, workflow), Config{})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, record.Status)

	// Step 3 ran the billing agent, not the fallback.
	require.Len(t, runner.Turns, 2)
	assert.Equal(t, "billing", runner.Turns[1].NodeID)
}

func TestEngine_EndSignalWithoutCapabilityIsIgnored(t *testing.T) {
	runner := testutil.NewScriptedRunner(
		testutil.Reply(&models.TurnResult{Message: "trying to quit", EndConversation: true, Destination: "worker"}),
		testutil.Reply(&models.TurnResult{Message: "kept going", Destination: "done"}),
	)

	// Non-conversational: no END capability was injected anywhere, but the
	// worker has an explicit terminal edge for "done".
	workflow := testutil.Workflow("wf-nocap", "router", false,
		[]*models.Node{
			testutil.AgentNode("router", "agent-router"),
			testutil.AgentNode("worker", "agent-worker"),
		},
		[]*models.Edge{
			testutil.ConditionalEdge("e1", "router", "worker", "worker"),
			{
				ID:             "e2",
				SourceNodeID:   "worker",
				ConditionType:  models.ConditionTypeConditional,
				ConditionValue: testutil.Ptr("done"),
			},
		},
	)

	eng := New(runner, testutil.NewFakeResolver(), testLogger())

	record, err := eng.Run(context.Background(), compileGraph(t, workflow), Config{})
	require.NoError(t, err)

	// The run did not end at step 1; the worker still executed.
	assert.Equal(t, models.RunStatusCompleted, record.Status)
	assert.Equal(t, 2, record.StepCount)
}

func TestEngine_MissingNodeFailsRun(t *testing.T) {
	workflow := testutil.Workflow("wf-ghost", "router", false,
		[]*models.Node{testutil.AgentNode("router", "agent-router")},
		nil,
	)

	graph := compileGraph(t, workflow)

	eng := New(testutil.NewScriptedRunner(), testutil.NewFakeResolver(), testLogger())

	state := NewState(graph)
	state.CurrentNodeID = "ghost"

	record, err := eng.RunWithState(context.Background(), graph, state, Config{})
	require.Error(t, err)
	assert.Equal(t, models.RunStatusFailed, record.Status)
}

// recordingObserver collects the notifications a run emits.
type recordingObserver struct {
	workflowIDs []string
	runIDs      []string
	steps       []string
	tools       []models.Entry
}

func (o *recordingObserver) StepCompleted(_ context.Context, workflowID, runID string, _ int, nodeID string) {
	o.workflowIDs = append(o.workflowIDs, workflowID)
	o.runIDs = append(o.runIDs, runID)
	o.steps = append(o.steps, nodeID)
}

func (o *recordingObserver) ToolExecuted(_ context.Context, _, _ string, entry models.Entry) {
	o.tools = append(o.tools, entry)
}

func TestEngine_ObserverSeesStepsAndToolResults(t *testing.T) {
	runner := testutil.NewScriptedRunner(
		testutil.Reply(&models.TurnResult{
			Message: "checking",
			ToolCalls: []models.ToolCall{
				{ID: "c1", Name: "lookup", Arguments: map[string]any{"q": "order"}},
				{ID: "c2", Name: "flaky"},
			},
			Destination: "tools",
		}),
		testutil.Reply(&models.TurnResult{Message: "done", EndConversation: true}),
	)

	resolver := testutil.NewFakeResolver(
		&testutil.FakeTool{ToolName: "lookup", Fn: func(context.Context, map[string]any) (any, error) {
			return "found", nil
		}},
		&testutil.FakeTool{ToolName: "flaky", Fn: func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("gateway timeout")
		}},
	)

	workflow := testutil.Workflow("wf-observe", "router", true,
		[]*models.Node{
			testutil.AgentNode("router", "agent-router"),
			testutil.ToolNode("tools"),
		},
		[]*models.Edge{
			testutil.ConditionalEdge("e1", "router", "tools", "tools"),
		},
	)

	observer := &recordingObserver{}
	eng := New(runner, resolver, testLogger(), WithObserver(observer))

	record, err := eng.Run(context.Background(), compileGraph(t, workflow), Config{})
	require.NoError(t, err)

	// One notification per committed step, in run order.
	assert.Equal(t, []string{"router", "tools", "router"}, observer.steps)

	for i := range observer.steps {
		assert.Equal(t, "wf-observe", observer.workflowIDs[i])
		assert.Equal(t, record.RunID, observer.runIDs[i])
	}

	// One notification per tool call, failures included.
	require.Len(t, observer.tools, 2)
	assert.Equal(t, "lookup", observer.tools[0].ToolName)
	assert.Equal(t, "found", observer.tools[0].Result)
	assert.Equal(t, "flaky", observer.tools[1].ToolName)
	assert.Equal(t, "gateway timeout", observer.tools[1].Error)
}

func TestEngine_SeededInputVisibleToEveryTurn(t *testing.T) {
	runner := testutil.NewScriptedRunner(
		testutil.Reply(&models.TurnResult{Message: "routing", Destination: "worker"}),
		testutil.Reply(&models.TurnResult{Message: "working"}),
		testutil.Reply(&models.TurnResult{Message: "resolved", EndConversation: true}),
	)

	graph := compileGraph(t, routerWorkerWorkflow())
	input := map[string]any{"question": "reset my password"}

	eng := New(runner, testutil.NewFakeResolver(), testLogger())

	record, err := eng.RunWithState(context.Background(), graph, NewStateWithInput(graph, input), Config{})
	require.NoError(t, err)

	// The seed entry precedes every turn's history.
	require.NotEmpty(t, runner.Turns[0].History)
	seed := runner.Turns[0].History[0]
	assert.Equal(t, models.EntryKindUserInput, seed.Kind)
	assert.Equal(t, input, seed.Result)
	assert.Equal(t, 0, seed.Step)

	// The seed does not count as a step, and stays in the record.
	assert.Equal(t, 3, record.StepCount)
	require.Len(t, record.Entries, 4)
	assert.Equal(t, models.EntryKindUserInput, record.Entries[0].Kind)

	// Empty input seeds nothing.
	assert.Empty(t, NewStateWithInput(graph, nil).Entries)
}

func TestEngine_SpansCarryAgentAndToolIdentity(t *testing.T) {
	runner := testutil.NewScriptedRunner(
		testutil.Reply(&models.TurnResult{
			Message:     "checking",
			ToolCalls:   []models.ToolCall{{ID: "c1", Name: "lookup"}},
			Destination: "tools",
		}),
		testutil.Reply(&models.TurnResult{Message: "done", EndConversation: true}),
	)

	resolver := testutil.NewFakeResolver(
		&testutil.FakeTool{ToolName: "lookup", Fn: func(context.Context, map[string]any) (any, error) {
			return "found", nil
		}},
	)

	workflow := testutil.Workflow("wf-traced", "router", true,
		[]*models.Node{
			testutil.AgentNode("router", "agent-router"),
			testutil.ToolNode("tools"),
		},
		[]*models.Edge{
			testutil.ConditionalEdge("e1", "router", "tools", "tools"),
		},
	)

	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	eng := New(runner, resolver, testLogger(), WithTracer(tracer))

	_, err := eng.Run(context.Background(), compileGraph(t, workflow), Config{})
	require.NoError(t, err)

	assert.Equal(t, "agent-router", spanAttribute(t, recorder, "engine.step", otelhelper.AgentIDKey))
	assert.Equal(t, "lookup", spanAttribute(t, recorder, "engine.tool", otelhelper.ToolNameKey))
}

// spanAttribute returns the string value recorded under key on the first
// ended span with the given name carrying that key.
func spanAttribute(t *testing.T, recorder *tracetest.SpanRecorder, spanName, key string) string {
	t.Helper()

	for _, span := range recorder.Ended() {
		if span.Name() != spanName {
			continue
		}

		for _, kv := range span.Attributes() {
			if string(kv.Key) == key {
				return kv.Value.AsString()
			}
		}
	}

	t.Fatalf("no ended %s span carries attribute %s", spanName, key)

	return ""
}

func TestConfig_Defaults(t *testing.T) {
	config := Config{}.withDefaults()

	assert.Equal(t, DefaultStepLimit, config.StepLimit)
	assert.Equal(t, DefaultRunTimeout, config.RunTimeout)

	custom := Config{StepLimit: 3, RunTimeout: time.Second}.withDefaults()
	assert.Equal(t, 3, custom.StepLimit)
	assert.Equal(t, time.Second, custom.RunTimeout)
}
