package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/ccrm/agentgraph/pkg/cmd"
	"github.com/ccrm/agentgraph/pkg/log"
	"github.com/ccrm/agentgraph/pkg/validation"
)

func main() {
	command := &cli.Command{
		Name:                  "agentgraph-runner",
		EnableShellCompletion: true,
		Usage:                 "Start runners to execute agent workflow runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "runner-id",
				Aliases: []string{"id"},
				Usage:   "Custom runner ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("RUNNER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "agent-service-url",
				Usage:    "Base URL of the agent service that executes model turns",
				Required: true,
				Sources:  cli.EnvVars("AGENT_SERVICE_URL"),
			},
			&cli.StringFlag{
				Name:    "agents-path",
				Usage:   "Path to the directory containing agent definitions",
				Value:   "./definitions/agents",
				Sources: cli.EnvVars("AGENTS_PATH"),
			},
			&cli.StringFlag{
				Name:    "schedules-path",
				Usage:   "Path to a JSON file of recurring run schedules (disabled when empty)",
				Value:   "",
				Sources: cli.EnvVars("SCHEDULES_PATH"),
			},
			&cli.StringFlag{
				Name:    "queue-redis-addr",
				Usage:   "Redis address for the run-request queue (disabled when empty)",
				Value:   "",
				Sources: cli.EnvVars("QUEUE_REDIS_ADDR"),
			},
			&cli.IntFlag{
				Name:    "step-limit",
				Usage:   "Maximum steps per run before the circuit breaker trips",
				Value:   0,
				Sources: cli.EnvVars("STEP_LIMIT"),
			},
			&cli.IntFlag{
				Name:    "run-timeout-ms",
				Usage:   "Wall-clock limit per run in milliseconds",
				Value:   0,
				Sources: cli.EnvVars("RUN_TIMEOUT_MS"),
			},
			&cli.StringFlag{
				Name:    "validation-strictness",
				Usage:   "Whether unreachable nodes fail validation (warn, fail)",
				Value:   "warn",
				Sources: cli.EnvVars("VALIDATION_STRICTNESS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			strictness, err := validation.ParseStrictness(command.String("validation-strictness"))
			if err != nil {
				return err
			}

			runnerID := command.String("runner-id")
			if runnerID == "" {
				runnerID = "runner-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("agentgraph-runner").With("runner_id", runnerID)

			logger.InfoContext(ctx, "Initializing runner")

			registry := cmd.NewRegistry(logger)

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.MustNewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			runner := NewRunner(RunnerConfig{
				ID:                   runnerID,
				AgentServiceURL:      command.String("agent-service-url"),
				AgentsPath:           command.String("agents-path"),
				SchedulesPath:        command.String("schedules-path"),
				QueueRedisAddr:       command.String("queue-redis-addr"),
				StepLimit:            int(command.Int("step-limit")),
				RunTimeoutMs:         int(command.Int("run-timeout-ms")),
				ValidationStrictness: strictness,
			}, persistence, eventBus, registry, logger)

			err = runner.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start runner", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
