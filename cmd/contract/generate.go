package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/doITmagic/api-contract-mcp/internal/config"
	"github.com/doITmagic/api-contract-mcp/internal/generator"
	"github.com/doITmagic/api-contract-mcp/internal/logging"
)

// generateLogFile is the --log destination, relative to the project root
const generateLogFile = "storage/logs/contract-generate.log"

func newGenerateCmd(g *globalFlags) *cobra.Command {
	var opts generator.Options
	var logToFile bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Analyze the application and write the API contract",
		Long: `generate walks every API route, analyzes its middleware, parameters,
validation rules and response resources, and writes the contract artifact.
A failing route never aborts the run: it is written as a placeholder carrying
the error and listed in the summary.

Exit status: 0 on success, 1 when the contract could not be written,
2 when --strict found errors or warnings, or a --dry-run found invalid schemas.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			if logToFile {
				if err := log.OpenFile(cfg.Abs(generateLogFile), 10); err != nil {
					return err
				}
				defer log.Close()
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			code, err := runGenerate(ctx, cfg, log, opts, log.Mirror(cmd.OutOrStdout()))
			if err != nil {
				log.Error("❌ %v", err)
				return exitError{code: generator.ExitFailure}
			}
			if code != generator.ExitOK {
				return exitError{code: code}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.Incremental, "incremental", false, "Reuse entries of the existing contract when no watched source changed")
	f.BoolVar(&logToFile, "log", false, "Also write the run log to "+generateLogFile)
	f.BoolVar(&opts.DryRun, "dry-run", false, "Analyze and report without writing the contract")
	f.BoolVar(&opts.ValidateSchemas, "validate-schemas", false, "Validate every generated schema as OpenAPI")
	f.BoolVar(&opts.Strict, "strict", false, "Exit with status 2 when any error or warning was recorded")
	f.BoolVar(&opts.Detailed, "detailed", false, "Print causes and suggestions for every problem")
	return cmd
}

// runGenerate opens the project, runs one generation and prints the summary
func runGenerate(ctx context.Context, cfg *config.Config, log *logging.Logger, opts generator.Options, out io.Writer) (int, error) {
	project, err := generator.Open(cfg, log)
	if err != nil {
		return generator.ExitFailure, err
	}
	defer project.Close()

	rc, _, err := project.Assembler.Generate(ctx, opts)
	if err != nil {
		return generator.ExitFailure, err
	}
	rc.PrintSummary(out, opts)
	return rc.ExitCode(opts), nil
}
