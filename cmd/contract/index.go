package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doITmagic/api-contract-mcp/internal/config"
	"github.com/doITmagic/api-contract-mcp/internal/contract"
	"github.com/doITmagic/api-contract-mcp/internal/logging"
	"github.com/doITmagic/api-contract-mcp/internal/storage"
)

func newIndexCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Embed the contract's routes into the semantic search index (Qdrant + Ollama)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			return indexContract(cmd.Context(), cfg, log)
		},
	}
}

// indexContract replaces the project's points in the route index
func indexContract(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	c, err := contract.Load(cfg.OutputPath())
	if err != nil {
		return err
	}
	index, client, err := storage.OpenRouteIndex(cfg.Semantic, cfg.ProjectRoot)
	if err != nil {
		return fmt.Errorf("failed to open route index: %w", err)
	}
	defer client.Close()

	n, err := index.Index(ctx, c)
	if err != nil {
		return fmt.Errorf("indexed %d of %d routes: %w", n, c.Len(), err)
	}
	log.Info("🔎 Indexed %d routes into %s", n, cfg.Semantic.Collection)
	if total, err := client.PointCount(ctx); err == nil {
		log.Debug("collection %s holds %d points", cfg.Semantic.Collection, total)
	}
	return nil
}
