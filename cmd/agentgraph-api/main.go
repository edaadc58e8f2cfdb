// Package main provides the AgentGraph API server.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/ccrm/agentgraph/pkg/cmd"
	"github.com/ccrm/agentgraph/pkg/log"
	"github.com/ccrm/agentgraph/pkg/validation"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "agentgraph-api",
		Usage:                 "Create and manage agent workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
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
				Name:    "agents-path",
				Usage:   "Path to the directory containing agent definitions",
				Value:   "./definitions/agents",
				Sources: cli.EnvVars("AGENTS_PATH"),
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

			logger := log.WithModule("agentgraph-api")

			logger.InfoContext(ctx, "Initializing AgentGraph API")

			persistence := cmd.MustNewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			api := NewAPI(
				logger,
				persistence,
				eventBus,
				command.String("agents-path"),
				strictness,
			)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
