package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doITmagic/api-contract-mcp/internal/config"
	"github.com/doITmagic/api-contract-mcp/internal/logging"
)

// These variables are set at build time through ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// exitError carries a process exit status through cobra
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

type globalFlags struct {
	configPath string
	project    string
	verbose    bool
}

func (g *globalFlags) load() (*config.Config, *logging.Logger, error) {
	cfg, err := config.LoadProject(g.configPath, g.project)
	if err != nil {
		return nil, nil, err
	}
	log := logging.New(cfg.Logging.Level)
	if g.verbose {
		log.SetLevel("debug")
	}
	return cfg, log, nil
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "contract",
		Short: "contract generates a machine-readable API contract for a Laravel application.",
		Long: `contract reads a Laravel application's route table, controllers, form requests
and API resources, and writes a JSON contract describing every API endpoint:
auth, parameters, request and response schemas, rate limits and status codes.
Configure it with a .contract.yaml file in the project root.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to configuration file (default: <project>/.contract.yaml)")
	rootCmd.PersistentFlags().StringVarP(&g.project, "project", "p", "", "Laravel project root (overrides project_root)")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newGenerateCmd(g),
		newCacheCmd(g),
		newExportCmd(g),
		newWatchCmd(g),
		newIndexCmd(g),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of contract",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "contract version %s\n", version)
			fmt.Fprintf(out, "commit: %s\n", commit)
			fmt.Fprintf(out, "built at: %s\n", date)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if e, ok := err.(exitError); ok {
			os.Exit(e.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
