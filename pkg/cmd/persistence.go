package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ccrm/agentgraph/pkg/persistence"
	"github.com/ccrm/agentgraph/pkg/persistence/file"
	"github.com/ccrm/agentgraph/pkg/persistence/postgresql"
)

// NewPersistence creates the persistence layer selected by the database URL
// scheme. file:// paths (or bare paths) get file persistence; postgres URLs
// get PostgreSQL.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.SplitN(databaseURL, "://", 2)
	if len(parts) < 2 {
		return "file"
	}

	return parts[0]
}

// MustNewPersistence is NewPersistence for binaries that cannot continue
// without storage.
func MustNewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	p, err := NewPersistence(ctx, logger, databaseURL)
	if err != nil {
		panic(fmt.Errorf("failed to create persistence: %w", err))
	}

	return p
}
