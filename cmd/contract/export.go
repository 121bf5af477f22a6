package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doITmagic/api-contract-mcp/internal/contract"
	"github.com/doITmagic/api-contract-mcp/internal/export"
)

func newExportCmd(g *globalFlags) *cobra.Command {
	var format, out, title, apiVersion string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Convert the contract to an OpenAPI " + export.OpenAPIVersion + " document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			format = strings.ToLower(format)
			if format != export.FormatJSON && format != export.FormatYAML {
				return fmt.Errorf("unsupported export format %q (use json or yaml)", format)
			}

			c, err := contract.Load(cfg.OutputPath())
			if err != nil {
				return err
			}
			if title == "" {
				title = filepath.Base(cfg.ProjectRoot) + " API"
			}

			doc := export.Document(c, title, apiVersion)
			if err := doc.Validate(cmd.Context()); err != nil {
				log.Warn("⚠️  OpenAPI document does not validate: %v", err)
			}
			data, err := export.Marshal(doc, format)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			path := cfg.Abs(out)
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			log.Info("✅ OpenAPI document written to %s", path)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&format, "format", "f", export.FormatJSON, "Output format: json or yaml")
	f.StringVarP(&out, "out", "o", "", "Output file, relative to the project root (default: stdout)")
	f.StringVar(&title, "title", "", "info.title of the document (default: <project> API)")
	f.StringVar(&apiVersion, "api-version", "1.0.0", "info.version of the document")
	return cmd
}
