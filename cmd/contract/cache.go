package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doITmagic/api-contract-mcp/internal/analysis"
	"github.com/doITmagic/api-contract-mcp/internal/cache"
)

// cacheTypes are the analysis types accepted by cache clear --type
var cacheTypes = []string{analysis.TypeRouteFacts, analysis.TypeResourceSchema}

func newCacheCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the analysis cache",
	}

	var typ string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop cached analysis results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			if typ != "" && !contains(cacheTypes, typ) {
				return fmt.Errorf("unknown cache type %q (available: %v)", typ, cacheTypes)
			}

			ac, err := cache.Open(cfg.Cache, cfg.ProjectRoot, log)
			if err != nil {
				return err
			}
			defer ac.Close()

			if typ == "" {
				if err := ac.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✅ Analysis cache cleared")
				return nil
			}
			if err := ac.ClearType(typ); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Cleared cached %s entries\n", typ)
			return nil
		},
	}
	clearCmd.Flags().StringVar(&typ, "type", "", fmt.Sprintf("Only clear one analysis type %v", cacheTypes))

	cmd.AddCommand(clearCmd)
	return cmd
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
