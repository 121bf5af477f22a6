package generator

import (
	"fmt"

	"github.com/doITmagic/api-contract-mcp/internal/analysis"
	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php"
	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php/laravel"
	"github.com/doITmagic/api-contract-mcp/internal/cache"
	"github.com/doITmagic/api-contract-mcp/internal/config"
	"github.com/doITmagic/api-contract-mcp/internal/logging"
)

// Project bundles an assembler with the resources it holds open
type Project struct {
	Assembler *Assembler
	Routes    analysis.RouteRegistry
	Cache     *cache.AnalysisCache
	Index     *php.Index
}

// Close releases the analysis cache
func (p *Project) Close() error {
	if p.Cache == nil {
		return nil
	}
	return p.Cache.Close()
}

// Open indexes the application sources and wires every analyzer from cfg
func Open(cfg *config.Config, log *logging.Logger) (*Project, error) {
	if log == nil {
		log = logging.Discard()
	}

	ix := php.NewIndex(cfg.Cache.SourceTTL)
	warnings, err := ix.LoadPaths(cfg.Abs(cfg.Paths.App), cfg.Abs(cfg.Paths.Factories))
	if err != nil {
		return nil, fmt.Errorf("failed to index application sources: %w", err)
	}
	for _, w := range warnings {
		log.Warn("⚠️  %s", w)
	}
	log.Info("📦 Indexed %d PHP classes", len(ix.Classes()))

	ac, err := cache.Open(cfg.Cache, cfg.ProjectRoot, log)
	if err != nil {
		return nil, err
	}

	var routes analysis.RouteRegistry
	switch cfg.Routes.Source {
	case "artisan", "json":
		routes = laravel.NewArtisanRegistry(cfg, log)
	default:
		routes = laravel.NewFileRegistry(cfg, ix, log)
	}

	limiters, err := laravel.ScanRateLimiters(cfg.Abs(cfg.Paths.Providers))
	if err != nil {
		log.Warn("⚠️  Could not scan rate limiters: %v", err)
		limiters = map[string]config.RateLimiterConfig{}
	}
	for name, l := range cfg.RateLimiters {
		limiters[name] = l
	}
	classifier := &analysis.MiddlewareClassifier{
		RateLimiters: limiters,
		Passport:     laravel.UsesPassport(cfg.ProjectRoot),
	}

	models := laravel.NewEloquentAnalyzer(ix, cfg.Namespaces.Models)
	fixtures := laravel.NewFixtureProvider(ix, models, cfg.Abs(cfg.Paths.Fixtures), log)
	runtime := laravel.NewResourceRuntime(ix, fixtures, log)

	deps := Deps{
		Routes:      routes,
		Reflector:   ix,
		Facts:       analysis.NewRouteFactExtractor(ix, models, classifier, ac, log),
		Requests:    analysis.NewRequestSchemaExtractor(laravel.NewRuleExtractor(ix)),
		Serializers: analysis.NewSerializerResolver(ix, cfg.Namespaces, log),
		Schemas:     analysis.NewSchemaSynthesizer(ix, runtime, fixtures, ac, cfg.Namespaces, log),
		Codes:       analysis.NewResponseCodeAnalyzer(ix),
		Catalog: func() []string {
			var out []string
			for _, c := range ix.Classes() {
				if runtime.Exists(c.FullName) {
					out = append(out, c.FullName)
				}
			}
			return out
		},
	}

	asm, err := NewAssembler(cfg, deps, log)
	if err != nil {
		ac.Close()
		return nil, err
	}
	return &Project{Assembler: asm, Routes: routes, Cache: ac, Index: ix}, nil
}
