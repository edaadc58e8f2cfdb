package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccrm/agentgraph/pkg/channels/gochannel"
	"github.com/ccrm/agentgraph/pkg/eventbus"
	"github.com/ccrm/agentgraph/pkg/events"
	"github.com/ccrm/agentgraph/pkg/models"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	select {
	case received := <-ch:
		return received
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")

		panic("unreachable")
	}
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	received := make(chan *events.RunRequested, 1)

	err := bus.Handle(events.RunRequestedEvent, func(_ context.Context, event any) error {
		request, ok := event.(*events.RunRequested)
		require.True(t, ok)
		received <- request

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	publish := events.RunRequested{
		BaseEvent: events.NewBaseEvent(events.RunRequestedEvent, "wf-support"),
		Input:     map[string]any{"question": "where is my order"},
	}

	require.NoError(t, bus.Publish(ctx, "wf-support", publish))

	request := waitFor(t, received)
	assert.Equal(t, "wf-support", request.WorkflowID)
	assert.Equal(t, publish.ID, request.ID)
	assert.Equal(t, "where is my order", request.Input["question"])
}

func TestWatermillEventBus_DispatchesByEventType(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	completed := make(chan *events.RunCompleted, 1)

	err := bus.Handle(events.RunCompletedEvent, func(_ context.Context, event any) error {
		done, ok := event.(*events.RunCompleted)
		require.True(t, ok)
		completed <- done

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for run.started; it is acked and dropped.
	started := events.RunStarted{
		BaseEvent: events.NewBaseEvent(events.RunStartedEvent, "wf-support"),
		RunID:     "run-1",
	}
	require.NoError(t, bus.Publish(ctx, "wf-support", started))

	record := &models.RunRecord{
		RunID:      "run-1",
		WorkflowID: "wf-support",
		Status:     models.RunStatusCompleted,
		StepCount:  3,
		StartedAt:  time.Now().Add(-time.Second),
		EndedAt:    time.Now(),
	}

	terminal := events.TerminalRunEvent(record, "runner-a1")
	require.Equal(t, events.RunCompletedEvent, terminal.GetType())
	require.NoError(t, bus.Publish(ctx, "wf-support", terminal))

	done := waitFor(t, completed)
	assert.Equal(t, "run-1", done.RunID)
	assert.Equal(t, models.RunStatusCompleted, done.Status)
	assert.Equal(t, 3, done.StepCount)
	assert.Equal(t, "runner-a1", done.RunnerID)
}

func TestTerminalRunEvent_StatusMapping(t *testing.T) {
	tests := []struct {
		status models.RunStatus
		want   events.EventType
	}{
		{models.RunStatusCompleted, events.RunCompletedEvent},
		{models.RunStatusInterrupted, events.RunInterruptedEvent},
		{models.RunStatusTimeout, events.RunTimeoutEvent},
		{models.RunStatusFailed, events.RunFailedEvent},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			event := events.TerminalRunEvent(&models.RunRecord{
				RunID:      "run-1",
				WorkflowID: "wf-1",
				Status:     tt.status,
			}, "runner-a1")

			assert.Equal(t, tt.want, event.GetType())
		})
	}
}
