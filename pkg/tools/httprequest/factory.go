// Package httprequest provides a tool that performs an HTTP request and
// returns the decoded response.
package httprequest

import (
	"github.com/ccrm/agentgraph/pkg/protocol"
)

// Factory creates HTTP request tool instances.
type Factory struct{}

// NewFactory creates a new instance of Factory.
func NewFactory() *Factory {
	return &Factory{}
}

// ID returns the unique identifier for the tool factory.
func (*Factory) ID() string {
	return "http_request"
}

// Description returns a brief description of the tool.
func (*Factory) Description() string {
	return "Performs an HTTP request to a URL with optional headers and body."
}

// Create creates a new HTTP request tool instance with the provided configuration.
func (f *Factory) Create(config map[string]any) (protocol.Tool, error) {
	if config == nil {
		config = map[string]any{}
	}

	return NewTool(config)
}

// Schema returns the JSON schema for the tool arguments.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The URL to request.",
				"examples": []string{
					"https://api.example.com/v1/orders/123",
				},
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method to use",
				"default":     "GET",
				"enum":        []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Headers to send with the request",
				"additionalProperties": map[string]any{
					"type": "string",
				},
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Request body",
			},
		},
		"required": []string{"url"},
	}
}
