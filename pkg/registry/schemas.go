package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ccrm/agentgraph/pkg/protocol"
)

// schemaCheckedTool validates arguments against the factory's JSON schema
// before delegating to the underlying tool.
type schemaCheckedTool struct {
	tool   protocol.Tool
	schema *gojsonschema.Schema
}

func newSchemaCheckedTool(tool protocol.Tool, schema map[string]any) (protocol.Tool, error) {
	if schema == nil {
		return tool, nil
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, err
	}

	return &schemaCheckedTool{tool: tool, schema: compiled}, nil
}

func (s *schemaCheckedTool) Name() string {
	return s.tool.Name()
}

func (s *schemaCheckedTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}

	result, err := s.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return nil, fmt.Errorf("failed to validate arguments: %w", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, issue := range result.Errors() {
			messages = append(messages, issue.String())
		}

		return nil, fmt.Errorf("invalid arguments: %s", strings.Join(messages, "; "))
	}

	return s.tool.Invoke(ctx, args)
}
