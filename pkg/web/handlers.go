// Package web provides the REST API for workflow definitions and runs.
package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/ccrm/agentgraph/pkg/eventbus"
	"github.com/ccrm/agentgraph/pkg/events"
	"github.com/ccrm/agentgraph/pkg/models"
	"github.com/ccrm/agentgraph/pkg/persistence"
	"github.com/ccrm/agentgraph/pkg/validation"
)

// APIHandlers serves workflow and run endpoints. Run execution itself happens
// in runner processes; POST /workflows/:id/runs only publishes a request.
type APIHandlers struct {
	persistence persistence.Persistence
	validator   *validation.Validator
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

func NewAPIHandlers(
	persistence persistence.Persistence,
	validator *validation.Validator,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		persistence: persistence,
		validator:   validator,
		publisher:   publisher,
		logger:      logger.With("module", "web"),
	}
}

// Register mounts all routes on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/workflows", h.GetWorkflows)
	app.Get("/workflows/:id", h.GetWorkflow)
	app.Put("/workflows/:id", h.SaveWorkflow)
	app.Delete("/workflows/:id", h.DeleteWorkflow)
	app.Post("/workflows/:id/runs", h.RequestRun)
	app.Get("/workflows/:id/runs", h.GetWorkflowRuns)
	app.Get("/runs/:id", h.GetRun)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.persistence.Workflows(c.Context())
	if err != nil {
		return handleStorageError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.persistence.WorkflowByID(c.Context(), id)
	if err != nil {
		return handleStorageError(c, err)
	}

	return c.JSON(workflow)
}

// SaveWorkflow validates and stores a definition. Warnings from validation
// are returned alongside the saved workflow.
func (h *APIHandlers) SaveWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var workflow models.WorkflowDefinition
	if err := c.Bind().JSON(&workflow); err != nil {
		return badRequest(c, "Invalid workflow payload: "+err.Error())
	}

	if workflow.ID == "" {
		workflow.ID = id
	}

	if workflow.ID != id {
		return badRequest(c, "Workflow ID in path and payload do not match")
	}

	warnings, err := h.validator.Validate(c.Context(), &workflow)
	if err != nil {
		return handleStorageError(c, err)
	}

	if err := h.persistence.SaveWorkflow(c.Context(), &workflow); err != nil {
		return handleStorageError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflow": workflow,
		"warnings": warnings,
	})
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.persistence.DeleteWorkflow(c.Context(), id); err != nil {
		return handleStorageError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

type runRequestBody struct {
	Input map[string]any `json:"input"`
}

// RequestRun publishes a run request for the workflow. The run happens
// asynchronously in a runner; the response only acknowledges the request.
func (h *APIHandlers) RequestRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if _, err := h.persistence.WorkflowByID(c.Context(), id); err != nil {
		return handleStorageError(c, err)
	}

	var body runRequestBody
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err != nil {
			return badRequest(c, "Invalid request payload: "+err.Error())
		}
	}

	event := events.RunRequested{
		BaseEvent: events.NewBaseEvent(events.RunRequestedEvent, id),
		Input:     body.Input,
	}

	if err := h.publisher.Publish(c.Context(), id, event); err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to publish run request", "workflow_id", id, "error", err)

		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"request_id":  event.ID,
		"workflow_id": id,
	})
}

func (h *APIHandlers) GetWorkflowRuns(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	records, err := h.persistence.RunRecordsByWorkflow(c.Context(), id)
	if err != nil {
		return handleStorageError(c, err)
	}

	return c.JSON(fiber.Map{"runs": records})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	record, err := h.persistence.RunRecordByID(c.Context(), id)
	if err != nil {
		return handleStorageError(c, err)
	}

	return c.JSON(record)
}
