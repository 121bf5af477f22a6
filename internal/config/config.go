package config

import (
	"time"
)

// Config represents the contract generator configuration
type Config struct {
	// ProjectRoot is the Laravel application root (the directory holding artisan)
	ProjectRoot string `yaml:"project_root"`

	// Output is the contract artifact path, relative to ProjectRoot
	Output string `yaml:"output"`

	// VersionsDir receives archived artifacts. Empty means a "versions"
	// directory next to Output.
	VersionsDir string `yaml:"versions_dir"`

	Routes           RoutesConfig                 `yaml:"routes"`
	Namespaces       NamespacesConfig             `yaml:"namespaces"`
	Paths            PathsConfig                  `yaml:"paths"`
	MiddlewareGroups map[string][]string          `yaml:"middleware_groups"`
	RateLimiters     map[string]RateLimiterConfig `yaml:"rate_limiters"`

	// Transformers lists schema transformers applied to every entry, in order
	Transformers []string `yaml:"transformers"`

	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
	Semantic SemanticConfig `yaml:"semantic"`
}

// RoutesConfig selects where the route table comes from
type RoutesConfig struct {
	// Source: "files" (static parse), "artisan" (route:list --json), "json" (dump file)
	Source string `yaml:"source"`

	Files          []RouteFileConfig `yaml:"files"`
	ArtisanCommand []string          `yaml:"artisan_command"`
	JSONPath       string            `yaml:"json_path"`

	// IncludePrefixes keeps only URIs starting with one of these prefixes (empty keeps all)
	IncludePrefixes []string `yaml:"include_prefixes"`
	ExcludeMethods  []string `yaml:"exclude_methods"`
}

// RouteFileConfig mirrors how a RouteServiceProvider mounts a route file
type RouteFileConfig struct {
	Path       string   `yaml:"path"`
	Prefix     string   `yaml:"prefix"`
	Middleware []string `yaml:"middleware"`
}

// NamespacesConfig holds the PHP namespaces searched during resolution
type NamespacesConfig struct {
	Resources             string   `yaml:"resources"`
	Models                string   `yaml:"models"`
	Requests              string   `yaml:"requests"`
	Controllers           string   `yaml:"controllers"`
	ResourceSubnamespaces []string `yaml:"resource_subnamespaces"`
}

// PathsConfig holds source directories, relative to ProjectRoot
type PathsConfig struct {
	App       string   `yaml:"app"`
	Resources string   `yaml:"resources"`
	Models    string   `yaml:"models"`
	Factories string   `yaml:"factories"`
	Fixtures  string   `yaml:"fixtures"`
	Providers string   `yaml:"providers"`
	Watch     []string `yaml:"watch"`
}

// RateLimiterConfig describes a named throttle defined by the application
type RateLimiterConfig struct {
	MaxAttempts  int    `yaml:"max_attempts"`
	DecayMinutes int    `yaml:"decay_minutes"`
	Description  string `yaml:"description"`
}

// CacheConfig contains analysis cache settings
type CacheConfig struct {
	Driver    string        `yaml:"driver"` // sqlite, memory
	Path      string        `yaml:"path"`
	TTL       time.Duration `yaml:"ttl"`
	SourceTTL time.Duration `yaml:"source_ttl"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Path  string `yaml:"path"`
}

// SemanticConfig contains settings for the optional route search index
type SemanticConfig struct {
	Enabled       bool   `yaml:"enabled"`
	QdrantURL     string `yaml:"qdrant_url"`
	QdrantAPIKey  string `yaml:"qdrant_api_key"`
	Collection    string `yaml:"collection"`
	OllamaBaseURL string `yaml:"ollama_base_url"`
	EmbedModel    string `yaml:"embed_model"`
}
