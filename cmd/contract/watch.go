package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/doITmagic/api-contract-mcp/internal/generator"
	"github.com/doITmagic/api-contract-mcp/internal/watch"
)

func newWatchCmd(g *globalFlags) *cobra.Command {
	var debounce time.Duration
	var opts generator.Options

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate the contract whenever controllers, requests, resources or routes change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			opts.Incremental = true
			out := cmd.OutOrStdout()
			rebuild := func(ctx context.Context) {
				if _, err := runGenerate(ctx, cfg, log, opts, out); err != nil {
					log.Error("❌ %v", err)
					return
				}
				if cfg.Semantic.Enabled {
					if err := indexContract(ctx, cfg, log); err != nil {
						log.Warn("⚠️  Route index not updated: %v", err)
					}
				}
			}

			rebuild(ctx)

			w, err := watch.New(cfg.WatchPaths(), func(ctx context.Context, changed []string) {
				for _, p := range changed {
					log.Debug("changed: %s", p)
				}
				rebuild(ctx)
			}, log)
			if err != nil {
				return err
			}
			w.SetDebounce(debounce)
			return w.Run(ctx)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period after the last change before regenerating")
	cmd.Flags().BoolVar(&opts.ValidateSchemas, "validate-schemas", false, "Validate every generated schema as OpenAPI")
	cmd.Flags().BoolVar(&opts.Detailed, "detailed", false, "Print causes and suggestions for every problem")
	return cmd
}
