package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccrm/agentgraph/pkg/models"
	"github.com/ccrm/agentgraph/pkg/registry"
	"github.com/ccrm/agentgraph/pkg/testutil"
)

func newTestValidator(config Config) *Validator {
	agents := registry.NewStaticAgentStore(
		testutil.Agent("agent-router"),
		testutil.Agent("agent-worker"),
	)

	return NewValidator(agents, config)
}

func validWorkflow() *models.WorkflowDefinition {
	return testutil.Workflow("wf-1", "router", false,
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

func TestValidator_ValidWorkflow(t *testing.T) {
	validator := newTestValidator(Config{})

	warnings, err := validator.Validate(context.Background(), validWorkflow())
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestValidator_MissingEntrypoint(t *testing.T) {
	validator := newTestValidator(Config{})

	workflow := validWorkflow()
	workflow.EntrypointNodeID = "nope"

	_, err := validator.Validate(context.Background(), workflow)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.HasIssue(IssueMissingEntrypoint))
}

func TestValidator_EdgeIssues(t *testing.T) {
	tests := []struct {
		name     string
		edges    []*models.Edge
		wantCode IssueCode
	}{
		{
			name: "dangling target node reference",
			edges: []*models.Edge{
				testutil.ConditionalEdge("e1", "router", "ghost", "worker"),
				testutil.AlwaysEdge("e2", "worker", "router"),
			},
			wantCode: IssueDanglingNodeReference,
		},
		{
			name: "dangling source node reference",
			edges: []*models.Edge{
				testutil.AlwaysEdge("e1", "ghost", "worker"),
				testutil.AlwaysEdge("e2", "router", "worker"),
			},
			wantCode: IssueDanglingNodeReference,
		},
		{
			name: "conditional edge without conditionValue",
			edges: []*models.Edge{
				{
					ID:            "e1",
					SourceNodeID:  "router",
					TargetNodeID:  testutil.Ptr("worker"),
					ConditionType: models.ConditionTypeConditional,
				},
			},
			wantCode: IssueMalformedEdge,
		},
		{
			name: "duplicate conditionValue on the same source",
			edges: []*models.Edge{
				testutil.ConditionalEdge("e1", "router", "worker", "next"),
				testutil.ConditionalEdge("e2", "router", "worker", "next"),
			},
			wantCode: IssueDuplicateConditionValue,
		},
		{
			name: "END edge from a non-AGENT node",
			edges: []*models.Edge{
				testutil.AlwaysEdge("e1", "router", "tools"),
				testutil.EndEdge("e2", "tools"),
			},
			wantCode: IssueMalformedEdge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := newTestValidator(Config{})

			workflow := testutil.Workflow("wf-1", "router", false,
				[]*models.Node{
					testutil.AgentNode("router", "agent-router"),
					testutil.AgentNode("worker", "agent-worker"),
					testutil.ToolNode("tools"),
				},
				tt.edges,
			)

			_, err := validator.Validate(context.Background(), workflow)
			require.Error(t, err)

			var verr *Error
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.HasIssue(tt.wantCode), "expected issue %s, got %v", tt.wantCode, verr.Issues)
		})
	}
}

func TestValidator_NodeIssues(t *testing.T) {
	tests := []struct {
		name     string
		node     *models.Node
		wantCode IssueCode
	}{
		{
			name: "AGENT node without agentId",
			node: &models.Node{
				ID:       "router",
				NodeType: models.NodeTypeAgent,
				NodeName: "router",
			},
			wantCode: IssueMalformedNode,
		},
		{
			name:     "AGENT node referencing unknown agent",
			node:     testutil.AgentNode("router", "agent-ghost"),
			wantCode: IssueUnknownAgentReference,
		},
		{
			name: "TOOL_EXECUTOR node referencing an agent",
			node: &models.Node{
				ID:       "router",
				NodeType: models.NodeTypeToolExecutor,
				NodeName: "router",
				AgentID:  testutil.Ptr("agent-router"),
			},
			wantCode: IssueMalformedNode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := newTestValidator(Config{})

			workflow := testutil.Workflow("wf-1", "router", false,
				[]*models.Node{tt.node},
				nil,
			)

			_, err := validator.Validate(context.Background(), workflow)
			require.Error(t, err)

			var verr *Error
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.HasIssue(tt.wantCode), "expected issue %s, got %v", tt.wantCode, verr.Issues)
		})
	}
}

func TestValidator_UnreachableNode_WarnByDefault(t *testing.T) {
	validator := newTestValidator(Config{})

	workflow := testutil.Workflow("wf-1", "router", false,
		[]*models.Node{
			testutil.AgentNode("router", "agent-router"),
			testutil.AgentNode("worker", "agent-worker"),
		},
		nil,
	)

	warnings, err := validator.Validate(context.Background(), workflow)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, IssueUnreachableNode, warnings[0].Code)
	assert.Equal(t, "worker", warnings[0].NodeID)
}

func TestValidator_UnreachableNode_FailStrictness(t *testing.T) {
	validator := newTestValidator(Config{Strictness: StrictnessFail})

	workflow := testutil.Workflow("wf-1", "router", false,
		[]*models.Node{
			testutil.AgentNode("router", "agent-router"),
			testutil.AgentNode("worker", "agent-worker"),
		},
		nil,
	)

	warnings, err := validator.Validate(context.Background(), workflow)
	require.Error(t, err)
	assert.Empty(t, warnings)

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.HasIssue(IssueUnreachableNode))
}

func TestValidator_ShapeValidation(t *testing.T) {
	validator := newTestValidator(Config{})

	workflow := validWorkflow()
	workflow.Name = "ab" // below minimum length

	_, err := validator.Validate(context.Background(), workflow)
	require.Error(t, err)
	assert.False(t, IsValidationError(err), "shape failures are not structural validation errors")
}

func TestParseStrictness(t *testing.T) {
	tests := []struct {
		value   string
		want    Strictness
		wantErr bool
	}{
		{value: "", want: StrictnessWarn},
		{value: "warn", want: StrictnessWarn},
		{value: "fail", want: StrictnessFail},
		{value: "strict", wantErr: true},
		{value: "FAIL", wantErr: true},
	}

	for _, test := range tests {
		t.Run("value "+test.value, func(t *testing.T) {
			strictness, err := ParseStrictness(test.value)
			if test.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), test.value)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.want, strictness)
		})
	}
}
