package models

// AgentDefinition is what the agent registry resolves an agentId to: the
// system prompt and the tools the agent may call. Resolved once per distinct
// agentId at compile time and cached for the lifetime of the compiled graph.
type AgentDefinition struct {
	ID           string   `json:"agentId"      validate:"required"`
	Name         string   `json:"name"         validate:"required"`
	Description  string   `json:"description"`
	SystemPrompt string   `json:"-"`
	Tools        []string `json:"tools"`
}
