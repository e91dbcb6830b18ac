package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wildvoice/wildrag/api"
	"github.com/wildvoice/wildrag/internal/config"
	"github.com/wildvoice/wildrag/internal/entity"
	"github.com/wildvoice/wildrag/internal/query"
	"github.com/wildvoice/wildrag/internal/storage"
)

var serveFlags struct {
	addr    string
	backend string
	dataDir string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP query server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "listen address (overrides configuration)")
	serveCmd.Flags().StringVar(&serveFlags.backend, "backend", "postgres", "storage backend (local, postgres or qdrant)")
	serveCmd.Flags().StringVar(&serveFlags.dataDir, "data-dir", defaultDataDir(), "snapshot directory for the local backend")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	backend, err := parseBackend(serveFlags.backend)
	if err != nil {
		return err
	}
	connector, err := newConnector(cfg, backend, serveFlags.dataDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The readiness probe checks the live backend when one is in use.
	var pinger api.Pinger
	if backend == storage.BackendPostgres {
		pool, err := openPostgres(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		pinger = pool
	}

	factory := newFactory(cfg)
	svc := query.NewService(entity.Default(), factory.NewGenerator(), factory.NewEmbedder(), connector, cfg.TopK, logger)

	addr := serveFlags.addr
	if addr == "" {
		addr = cfg.Addr
	}

	server := api.NewServer(addr, entity.Default(), svc, pinger, logger)
	return server.Run(ctx)
}
