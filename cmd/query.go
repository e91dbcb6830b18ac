package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wildvoice/wildrag/internal/config"
	"github.com/wildvoice/wildrag/internal/entity"
	"github.com/wildvoice/wildrag/internal/query"
)

var queryFlags struct {
	entity  string
	query   string
	backend string
	dataDir string
	topK    int
}

var queryCmd = &cobra.Command{
	Use:   "query --entity <name> --query <text>",
	Short: "Ask a question against an entity's knowledge base",
	Args:  cobra.NoArgs,
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryFlags.entity, "entity", "", "entity whose knowledge base to query (required)")
	queryCmd.Flags().StringVar(&queryFlags.query, "query", "", "question to ask (required)")
	queryCmd.Flags().StringVar(&queryFlags.backend, "backend", "local", "storage backend (local, postgres or qdrant)")
	queryCmd.Flags().StringVar(&queryFlags.dataDir, "data-dir", defaultDataDir(), "snapshot directory for the local backend")
	queryCmd.Flags().IntVar(&queryFlags.topK, "top-k", 0, "number of chunks to retrieve (0 uses the configured default)")
	_ = queryCmd.MarkFlagRequired("entity")
	_ = queryCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	backend, err := parseBackend(queryFlags.backend)
	if err != nil {
		return err
	}
	connector, err := newConnector(cfg, backend, queryFlags.dataDir)
	if err != nil {
		return err
	}

	topK := queryFlags.topK
	if topK == 0 {
		topK = cfg.TopK
	}

	factory := newFactory(cfg)
	svc := query.NewService(entity.Default(), factory.NewGenerator(), factory.NewEmbedder(), connector, topK, logger)

	result, err := svc.Process(cmd.Context(), queryFlags.entity, queryFlags.query)
	if err != nil {
		return err
	}

	printResult(cmd, result)
	return nil
}

func printResult(cmd *cobra.Command, result *query.Result) {
	banner := strings.Repeat("=", 60)

	cmd.Println(banner)
	cmd.Println("ANSWER")
	cmd.Println(banner)
	cmd.Println(result.Answer)
	cmd.Println()
	cmd.Println(banner)
	cmd.Println("SOURCES")
	cmd.Println(banner)
	for i, src := range result.Sources {
		cmd.Println(fmt.Sprintf("%d. %s (score: %.4f)", i+1, src.FileName, src.Score))
	}
}
