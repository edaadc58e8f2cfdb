package main

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/ccrm/agentgraph/pkg/eventbus"
	"github.com/ccrm/agentgraph/pkg/persistence"
	"github.com/ccrm/agentgraph/pkg/registry"
	"github.com/ccrm/agentgraph/pkg/validation"
	"github.com/ccrm/agentgraph/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	agentsPath  string
	strictness  validation.Strictness
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	agentsPath string,
	strictness validation.Strictness,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		agentsPath:  agentsPath,
		strictness:  strictness,
	}
}

func (a *API) App() *fiber.App {
	agents := registry.NewFileAgentStore(a.agentsPath)
	validator := validation.NewValidator(agents, validation.Config{Strictness: a.strictness})
	handlers := web.NewAPIHandlers(a.persistence, validator, a.eventBus, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("AgentGraph API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
