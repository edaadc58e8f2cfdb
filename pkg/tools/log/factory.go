// Package log provides a tool that writes a message to the structured log.
package log

import (
	"github.com/ccrm/agentgraph/pkg/protocol"
)

// Factory creates log tool instances.
type Factory struct{}

// NewFactory creates a new instance of Factory.
func NewFactory() *Factory {
	return &Factory{}
}

// ID returns the unique identifier for the tool factory.
func (*Factory) ID() string {
	return "log"
}

// Description returns a brief description of the tool.
func (*Factory) Description() string {
	return "Logs a message at a specified level."
}

// Create creates a new log tool instance with the provided configuration.
func (f *Factory) Create(config map[string]any) (protocol.Tool, error) {
	if config == nil {
		config = map[string]any{}
	}

	return NewTool(config), nil
}

// Schema returns the JSON schema for the tool arguments.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "The message to log.",
				"examples": []string{
					"Routing customer to the billing specialist",
					"Order lookup returned 3 matches",
				},
			},
			"level": map[string]any{
				"type":        "string",
				"description": "Log level for the message",
				"default":     "info",
				"enum":        []string{"debug", "info", "warn", "warning", "error"},
			},
		},
		"required": []string{"message"},
	}
}
