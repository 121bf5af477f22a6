package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the project root when no path is given
const DefaultFileName = ".contract.yaml"

// Load reads and parses the configuration file. Values absent from the file
// keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			if err := validate(cfg); err != nil {
				return nil, fmt.Errorf("invalid configuration: %w", err)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// A relative project root is relative to the config file itself
	if cfg.ProjectRoot == "" || cfg.ProjectRoot == "." {
		cfg.ProjectRoot = filepath.Dir(path)
	} else if !filepath.IsAbs(cfg.ProjectRoot) {
		cfg.ProjectRoot = filepath.Join(filepath.Dir(path), cfg.ProjectRoot)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadProject loads the config for the project at root. An empty path means
// root/.contract.yaml; a non-empty root overrides project_root from the file.
// The returned ProjectRoot is absolute.
func LoadProject(path, root string) (*Config, error) {
	if path == "" {
		base := root
		if base == "" {
			base = "."
		}
		path = filepath.Join(base, DefaultFileName)
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if root != "" {
		cfg.ProjectRoot = root
	}
	abs, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	cfg.ProjectRoot = abs
	return cfg, nil
}

// DefaultConfig returns a configuration matching a stock Laravel layout
func DefaultConfig() *Config {
	return &Config{
		ProjectRoot: ".",
		Output:      "api-contracts/api.json",
		Routes: RoutesConfig{
			Source: "files",
			Files: []RouteFileConfig{
				{Path: "routes/api.php", Prefix: "api", Middleware: []string{"api"}},
				{Path: "routes/web.php", Middleware: []string{"web"}},
			},
			ArtisanCommand:  []string{"php", "artisan", "route:list", "--json"},
			IncludePrefixes: []string{"api"},
			ExcludeMethods:  []string{"HEAD"},
		},
		Namespaces: NamespacesConfig{
			Resources:             `App\Http\Resources`,
			Models:                `App\Models`,
			Requests:              `App\Http\Requests`,
			Controllers:           `App\Http\Controllers`,
			ResourceSubnamespaces: []string{"Api", "V1", "V2", "Admin", "Public"},
		},
		Paths: PathsConfig{
			App:       "app",
			Resources: "app/Http/Resources",
			Models:    "app/Models",
			Factories: "database/factories",
			Fixtures:  "tests/fixtures/contracts",
			Providers: "app/Providers",
			Watch: []string{
				"app/Http/Controllers",
				"app/Http/Resources",
				"app/Http/Requests",
				"routes",
			},
		},
		MiddlewareGroups: map[string][]string{
			"api": {"throttle:api", `Illuminate\Routing\Middleware\SubstituteBindings`},
		},
		RateLimiters: map[string]RateLimiterConfig{},
		Transformers: []string{"timestamps"},
		Cache: CacheConfig{
			Driver:    "sqlite",
			Path:      "storage/framework/cache/contract-analysis.db",
			TTL:       time.Hour,
			SourceTTL: 2 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Semantic: SemanticConfig{
			Enabled:       false,
			QdrantURL:     "http://localhost:6333",
			Collection:    "api-contracts",
			OllamaBaseURL: "http://localhost:11434",
			EmbedModel:    "nomic-embed-text",
		},
	}
}

// Abs resolves a project-relative path
func (c *Config) Abs(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.ProjectRoot, rel)
}

// OutputPath returns the absolute artifact path
func (c *Config) OutputPath() string {
	return c.Abs(c.Output)
}

// VersionsPath returns the archive directory
func (c *Config) VersionsPath() string {
	if c.VersionsDir != "" {
		return c.Abs(c.VersionsDir)
	}
	return filepath.Join(filepath.Dir(c.OutputPath()), "versions")
}

// WatchPaths returns the absolute watched directories
func (c *Config) WatchPaths() []string {
	out := make([]string, 0, len(c.Paths.Watch))
	for _, p := range c.Paths.Watch {
		out = append(out, c.Abs(p))
	}
	return out
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	if out := os.Getenv("CONTRACT_OUTPUT"); out != "" {
		cfg.Output = out
	}
	if src := os.Getenv("CONTRACT_ROUTES_SOURCE"); src != "" {
		cfg.Routes.Source = src
	}
	if driver := os.Getenv("CONTRACT_CACHE_DRIVER"); driver != "" {
		cfg.Cache.Driver = driver
	}
	if level := os.Getenv("CONTRACT_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if prefixes := os.Getenv("CONTRACT_INCLUDE_PREFIXES"); prefixes != "" {
		cfg.Routes.IncludePrefixes = cfg.Routes.IncludePrefixes[:0]
		for _, p := range strings.Split(prefixes, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.Routes.IncludePrefixes = append(cfg.Routes.IncludePrefixes, p)
			}
		}
	}

	// Semantic index overrides
	if enabled := os.Getenv("CONTRACT_SEMANTIC_ENABLED"); enabled != "" {
		if v, err := strconv.ParseBool(enabled); err == nil {
			cfg.Semantic.Enabled = v
		}
	}
	if url := os.Getenv("QDRANT_URL"); url != "" {
		cfg.Semantic.QdrantURL = url
	}
	if apiKey := os.Getenv("QDRANT_API_KEY"); apiKey != "" {
		cfg.Semantic.QdrantAPIKey = apiKey
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		cfg.Semantic.OllamaBaseURL = baseURL
	}
	if embed := os.Getenv("OLLAMA_EMBED"); embed != "" {
		cfg.Semantic.EmbedModel = embed
	}
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	switch cfg.Routes.Source {
	case "files", "artisan", "json":
	case "":
		cfg.Routes.Source = "files"
	default:
		return fmt.Errorf("routes.source must be one of files, artisan, json (got %q)", cfg.Routes.Source)
	}
	if cfg.Routes.Source == "json" && cfg.Routes.JSONPath == "" {
		return fmt.Errorf("routes.json_path is required when routes.source is 'json'")
	}

	switch cfg.Cache.Driver {
	case "sqlite", "memory":
	case "":
		cfg.Cache.Driver = "memory"
	default:
		return fmt.Errorf("cache.driver must be 'sqlite' or 'memory' (got %q)", cfg.Cache.Driver)
	}
	if cfg.Cache.TTL < 0 || cfg.Cache.SourceTTL < 0 {
		return fmt.Errorf("cache ttl values must not be negative")
	}

	if cfg.Output == "" {
		return fmt.Errorf("output is required")
	}

	for name, rl := range cfg.RateLimiters {
		if rl.MaxAttempts < 0 || rl.DecayMinutes < 0 {
			return fmt.Errorf("rate_limiters.%s: values must not be negative", name)
		}
	}

	return nil
}
