package laravel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/doITmagic/api-contract-mcp/internal/analysis"
	"github.com/doITmagic/api-contract-mcp/internal/config"
	"github.com/doITmagic/api-contract-mcp/internal/logging"
	"github.com/doITmagic/api-contract-mcp/internal/utils"
)

// ArtisanRegistry reads the route table from `php artisan route:list --json`
// or from a saved dump of its output
type ArtisanRegistry struct {
	root     string
	command  []string
	jsonPath string
	log      *logging.Logger
}

// NewArtisanRegistry creates a registry for the configured source: "artisan"
// runs the command, "json" reads Routes.JSONPath
func NewArtisanRegistry(cfg *config.Config, log *logging.Logger) *ArtisanRegistry {
	if log == nil {
		log = logging.Discard()
	}
	r := &ArtisanRegistry{root: cfg.ProjectRoot, command: cfg.Routes.ArtisanCommand, log: log}
	if cfg.Routes.Source == "json" {
		r.jsonPath = cfg.Abs(cfg.Routes.JSONPath)
	}
	return r
}

// routeListEntry is one object of route:list --json
type routeListEntry struct {
	Domain     *string         `json:"domain"`
	Method     string          `json:"method"`
	URI        string          `json:"uri"`
	Name       *string         `json:"name"`
	Action     string          `json:"action"`
	Middleware json.RawMessage `json:"middleware"`
}

// Routes implements analysis.RouteRegistry
func (r *ArtisanRegistry) Routes(ctx context.Context) ([]analysis.RouteRecord, error) {
	data, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return ParseRouteList(data)
}

func (r *ArtisanRegistry) load(ctx context.Context) ([]byte, error) {
	if r.jsonPath != "" {
		data, err := os.ReadFile(r.jsonPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read route dump: %w", err)
		}
		return data, nil
	}
	if len(r.command) == 0 {
		return nil, errors.New("no artisan command configured")
	}

	var out []byte
	err := utils.Retry(ctx, 2, 500*time.Millisecond, func() error {
		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, r.command[0], r.command[1:]...)
		cmd.Dir = r.root
		cmd.Stdout, cmd.Stderr = &stdout, &stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%s: %w: %s", strings.Join(r.command, " "), err, strings.TrimSpace(stderr.String()))
		}
		out = stdout.Bytes()
		return nil
	}, func(err error) bool {
		// a missing interpreter will not appear on retry
		return !errors.Is(err, exec.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	r.log.Debug("route:list returned %d bytes", len(out))
	return out, nil
}

// ParseRouteList decodes route:list --json output
func ParseRouteList(data []byte) ([]analysis.RouteRecord, error) {
	var entries []routeListEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid route:list output: %w", err)
	}

	out := make([]analysis.RouteRecord, 0, len(entries))
	for _, e := range entries {
		rec := analysis.RouteRecord{
			URI:        "/" + strings.Trim(e.URI, "/"),
			Methods:    strings.Split(strings.ToUpper(e.Method), "|"),
			Middleware: decodeMiddleware(e.Middleware),
		}
		if e.Name != nil {
			rec.Name = *e.Name
		}
		if h, ok := analysis.ParseAction(e.Action); ok {
			rec.Handler = h
		} else {
			rec.Malformed = e.Action
		}
		out = append(out, rec)
	}
	return out, nil
}

// decodeMiddleware accepts a list (Laravel 9+) or a newline-separated string
func decodeMiddleware(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var out []string
		for _, m := range strings.Split(s, "\n") {
			if m = strings.TrimSpace(m); m != "" {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}
