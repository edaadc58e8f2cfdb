package httprequest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeoutSeconds = 30

const maxResponseBytes = 1 << 20 // 1 MiB

// Tool performs HTTP requests described by invocation arguments.
type Tool struct {
	client *http.Client
}

// NewTool creates a new HTTP request tool. The configuration may carry a
// "timeout" in seconds applied to every request.
func NewTool(config map[string]any) (*Tool, error) {
	timeout := defaultTimeoutSeconds * time.Second

	if raw, exists := config["timeout"]; exists {
		seconds, ok := raw.(float64)
		if !ok || seconds <= 0 {
			return nil, fmt.Errorf("invalid 'timeout' in configuration: %v", raw)
		}

		timeout = time.Duration(seconds * float64(time.Second))
	}

	return &Tool{client: &http.Client{Timeout: timeout}}, nil
}

// Name implements protocol.Tool.
func (t *Tool) Name() string {
	return "http_request"
}

// Invoke implements protocol.Tool. The response body is decoded as JSON when
// the server says so, otherwise returned as a string.
func (t *Tool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	url, _ := args["url"].(string)

	method, _ := args["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if rawBody, _ := args["body"].(string); rawBody != "" {
		body = strings.NewReader(rawBody)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if headers, ok := args["headers"].(map[string]any); ok {
		for key, value := range headers {
			if header, ok := value.(string); ok {
				req.Header.Set(key, header)
			}
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	result := map[string]any{
		"status_code": resp.StatusCode,
		"headers":     flattenHeaders(resp.Header),
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var decoded any
		if err := json.Unmarshal(data, &decoded); err == nil {
			result["body"] = decoded

			return result, nil
		}
	}

	result["body"] = string(data)

	return result, nil
}

func flattenHeaders(header http.Header) map[string]string {
	flat := make(map[string]string, len(header))
	for key := range header {
		flat[key] = header.Get(key)
	}

	return flat
}
