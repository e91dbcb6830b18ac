package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wildvoice/wildrag/internal/ai"
	"github.com/wildvoice/wildrag/internal/config"
	"github.com/wildvoice/wildrag/internal/database"
	"github.com/wildvoice/wildrag/internal/query"
	"github.com/wildvoice/wildrag/internal/secrets"
	"github.com/wildvoice/wildrag/internal/storage"
)

// defaultDataDir is the snapshot root for the local backend.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".wildrag", "storage")
	}
	return filepath.Join(home, ".wildrag", "storage")
}

func newFactory(cfg *config.Config) *ai.Factory {
	provider := secrets.NewProvider(secrets.NewKeyringStore(), logger)
	return ai.NewFactory(provider, ai.Config{
		ChatModel:      cfg.ChatModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Endpoint:       cfg.Endpoint,
		APIVersion:     cfg.APIVersion,
	}, logger)
}

func parseBackend(name string) (storage.Backend, error) {
	switch storage.Backend(name) {
	case storage.BackendLocal, storage.BackendPostgres, storage.BackendQdrant:
		return storage.Backend(name), nil
	default:
		return "", fmt.Errorf("unknown storage backend %q (local, postgres or qdrant)", name)
	}
}

func newConnector(cfg *config.Config, backend storage.Backend, dataDir string) (query.Connector, error) {
	switch backend {
	case storage.BackendLocal:
		return &query.LocalConnector{BaseDir: dataDir, Logger: logger}, nil
	case storage.BackendPostgres:
		return &query.PostgresConnector{ConnString: cfg.PostgresConnectionString(), Logger: logger}, nil
	default:
		return nil, fmt.Errorf("%w: %s", storage.ErrBackendNotImplemented, backend)
	}
}

// openPostgres connects and migrates the live backend.
func openPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := database.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, err
	}
	return database.Open(ctx, cfg.PostgresConnectionString(), logger)
}
