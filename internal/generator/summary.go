package generator

import (
	"fmt"
	"io"
)

// PrintSummary writes the end-of-run report
func (rc *RunContext) PrintSummary(w io.Writer, opts Options) {
	fmt.Fprintln(w)
	switch {
	case rc.DryRun:
		fmt.Fprintln(w, "🔍 Dry run: contract not written")
	case rc.Unchanged:
		fmt.Fprintln(w, "✅ Contract is up to date")
	case rc.Written != "":
		fmt.Fprintf(w, "✅ Contract written to %s\n", rc.Written)
	}
	if rc.Archived != "" {
		fmt.Fprintf(w, "   Previous version archived as %s\n", rc.Archived)
	}

	fmt.Fprintf(w, "   Routes: %d\n", rc.Routes)
	fmt.Fprintf(w, "   Entries: %d (analyzed %d, reused %d, skipped %d)\n", rc.Entries, rc.Analyzed, rc.Reused, rc.Skipped)
	fmt.Fprintf(w, "   Warnings: %d\n", len(rc.Warnings))
	fmt.Fprintf(w, "   Errors: %d\n", len(rc.Errors))
	if opts.ValidateSchemas {
		fmt.Fprintf(w, "   Schema validation errors: %d\n", len(rc.Invalid))
	}

	if len(rc.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "❌ %d route(s) could not be fully analyzed:\n", len(rc.Errors))
		for _, p := range rc.Errors {
			fmt.Fprintf(w, "   - %s\n", render(p, opts.Detailed))
		}
	}
	if len(rc.Warnings) > 0 && (opts.Detailed || opts.Strict) {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "⚠️  %d warning(s):\n", len(rc.Warnings))
		for _, p := range rc.Warnings {
			fmt.Fprintf(w, "   - %s\n", render(p, opts.Detailed))
		}
	}
	if len(rc.Invalid) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "❌ %d schema(s) failed validation:\n", len(rc.Invalid))
		for _, v := range rc.Invalid {
			fmt.Fprintf(w, "   - %s\n", v)
		}
	}
	if !opts.Detailed && len(rc.Errors)+len(rc.Warnings) > 0 {
		fmt.Fprintln(w, "\n   Run with --detailed for causes and suggestions")
	}
}

func render(p Problem, detailed bool) string {
	if detailed {
		return p.Detailed()
	}
	return p.Short()
}
