// Package generator assembles the API contract: it walks the route table,
// runs the analyzers per route and method, and writes the artifact.
package generator

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/doITmagic/api-contract-mcp/internal/analysis"
	"github.com/doITmagic/api-contract-mcp/internal/config"
	"github.com/doITmagic/api-contract-mcp/internal/contract"
	"github.com/doITmagic/api-contract-mcp/internal/logging"
)

// GeneratorName is stamped into _metadata
const GeneratorName = "api-contract-mcp"

// Options are the generate command flags that change the run itself
type Options struct {
	Incremental     bool
	DryRun          bool
	ValidateSchemas bool
	Strict          bool
	Detailed        bool
}

// Deps are the analyzers one run uses
type Deps struct {
	Routes      analysis.RouteRegistry
	Reflector   analysis.Reflector
	Facts       *analysis.RouteFactExtractor
	Requests    *analysis.RequestSchemaExtractor
	Serializers *analysis.SerializerResolver
	Schemas     *analysis.SchemaSynthesizer
	Codes       *analysis.ResponseCodeAnalyzer
	// Catalog lists the serializer classes known up front, may be nil
	Catalog func() []string
}

// Assembler runs generation for one project
type Assembler struct {
	cfg          *config.Config
	deps         Deps
	transformers []Transformer
	validator    SchemaValidator
	log          *logging.Logger
	now          func() time.Time
}

// NewAssembler resolves the configured transformer pipeline
func NewAssembler(cfg *config.Config, deps Deps, log *logging.Logger) (*Assembler, error) {
	if log == nil {
		log = logging.Discard()
	}
	pipeline, err := NewTransformerRegistry().Pipeline(cfg.Transformers)
	if err != nil {
		return nil, err
	}
	return &Assembler{
		cfg:          cfg,
		deps:         deps,
		transformers: pipeline,
		log:          log,
		now:          time.Now,
	}, nil
}

// Generate runs the pipeline. The returned error is only set for failures
// that abort the run (route table unreadable, artifact not writable,
// cancellation); analysis problems are recorded in the RunContext.
func (a *Assembler) Generate(ctx context.Context, opts Options) (*RunContext, *contract.Contract, error) {
	rc := &RunContext{DryRun: opts.DryRun}
	output := a.cfg.OutputPath()

	prev, reuse := a.previous(output, opts)

	if a.deps.Catalog != nil {
		a.deps.Schemas.SetKnownSerializers(a.deps.Catalog())
	}

	routes, err := a.deps.Routes.Routes(ctx)
	if err != nil {
		return rc, nil, fmt.Errorf("failed to read route table: %w", err)
	}
	a.log.Info("🚀 Generating API contract for %d routes", len(routes))

	c := contract.New()
	for _, route := range routes {
		if err := ctx.Err(); err != nil {
			return rc, nil, err
		}
		rc.Routes++
		if !a.included(route.URI) {
			rc.Skipped++
			continue
		}
		path := contract.NormalizePath(route.URI)
		for _, method := range route.Methods {
			method = strings.ToUpper(method)
			if a.excluded(method) {
				rc.Skipped++
				continue
			}
			if reuse {
				if e, ok := prev.Get(path, method); ok {
					c.Set(path, method, e)
					rc.Reused++
					continue
				}
			}
			c.Set(path, method, a.buildEntry(ctx, rc, route, path, method))
			rc.Analyzed++
		}
	}
	rc.Entries = c.Len()

	if opts.ValidateSchemas {
		rc.Invalid = a.validator.Validate(ctx, c)
	}

	c.Metadata = contract.NewMetadata(a.cfg.ProjectRoot, a.now(), rc.Entries, GeneratorName)

	if reuse && rc.Analyzed == 0 && rc.Entries == prev.Len() {
		rc.Unchanged = true
		a.log.Info("✅ No source changes since the previous contract")
		return rc, c, nil
	}
	if opts.DryRun {
		return rc, c, nil
	}

	if !opts.Incremental {
		archived, err := contract.Archive(output, a.cfg.VersionsPath(), a.now())
		if err != nil {
			return rc, nil, err
		}
		rc.Archived = archived
	}
	if err := contract.Write(output, c); err != nil {
		return rc, nil, err
	}
	rc.Written = output
	return rc, c, nil
}

// previous loads the artifact an incremental run builds on. Entries are only
// reused when no watched source is newer than that artifact.
func (a *Assembler) previous(output string, opts Options) (*contract.Contract, bool) {
	if !opts.Incremental {
		return nil, false
	}
	info, err := os.Stat(output)
	if err != nil {
		a.log.Info("No previous contract at %s, analyzing every route", output)
		return nil, false
	}
	prev, err := contract.Load(output)
	if err != nil {
		a.log.Warn("⚠️  Previous contract unreadable, analyzing every route: %v", err)
		return nil, false
	}
	if changed, file := newerThan(a.cfg.WatchPaths(), info.ModTime()); changed {
		a.log.Info("Source changed since the previous contract (%s), analyzing every route", file)
		return prev, false
	}
	return prev, true
}

// newerThan reports the first file under dirs modified after t
func newerThan(dirs []string, t time.Time) (bool, string) {
	found := ""
	for _, dir := range dirs {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err == nil && info.ModTime().After(t) {
				found = path
				return filepath.SkipAll
			}
			return nil
		})
		if found != "" {
			return true, found
		}
	}
	return false, ""
}

// LiveRoutes returns the (path, method) pairs a run would document, read
// fresh from the route table.
func (a *Assembler) LiveRoutes(ctx context.Context) ([]contract.RouteKey, error) {
	routes, err := a.deps.Routes.Routes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read route table: %w", err)
	}
	var keys []contract.RouteKey
	for _, r := range routes {
		if !a.included(r.URI) {
			continue
		}
		for _, m := range r.Methods {
			if a.excluded(m) {
				continue
			}
			keys = append(keys, contract.RouteKey{Path: contract.NormalizePath(r.URI), Method: strings.ToUpper(m)})
		}
	}
	return keys, nil
}

func (a *Assembler) included(uri string) bool {
	prefixes := a.cfg.Routes.IncludePrefixes
	if len(prefixes) == 0 {
		return true
	}
	uri = strings.Trim(uri, "/")
	for _, p := range prefixes {
		p = strings.Trim(p, "/")
		if p == "" || uri == p || strings.HasPrefix(uri, p+"/") {
			return true
		}
	}
	return false
}

func (a *Assembler) excluded(method string) bool {
	for _, m := range a.cfg.Routes.ExcludeMethods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// buildEntry analyzes one (route, method). Failures degrade the entry and
// are recorded in rc; a panic in an analyzer becomes an UnexpectedError.
func (a *Assembler) buildEntry(ctx context.Context, rc *RunContext, route analysis.RouteRecord, path, method string) (e *contract.Entry) {
	defer func() {
		if r := recover(); r != nil {
			ae := rc.addError(path, method, fmt.Errorf("panic while analyzing: %v", r))
			a.log.Error("❌ %s %s: %s", method, path, ae.Message)
			e = a.placeholder(route, ae)
		}
	}()

	facts, err := a.deps.Facts.Extract(route, method)
	if err != nil {
		ae := rc.addError(path, method, err)
		a.log.Warn("⚠️  %s %s: %s", method, path, ae.Message)
		return a.placeholder(route, ae)
	}

	e = &contract.Entry{
		Auth:               facts.Auth,
		PathParameters:     facts.PathParameters,
		RequestSchema:      map[string]contract.FieldSchema{},
		CustomHeaders:      facts.CustomHeaders,
		RateLimit:          facts.RateLimit,
		APIVersion:         facts.APIVersion,
		Middleware:         facts.Middleware,
		RouteName:          route.Name,
		ContentNegotiation: facts.ContentNegotiation,
	}
	e.Description, e.Deprecated = analysis.HandlerDoc(a.deps.Reflector, route.Handler)

	fields, err := a.deps.Requests.Extract(ctx, route.Handler)
	if err != nil {
		a.degrade(rc, e, path, method, err)
	} else if analysis.IsQueryMethod(method) {
		if len(fields) > 0 {
			e.QueryParameters = fields
		}
	} else {
		e.RequestSchema = fields
	}

	ref := a.deps.Serializers.Resolve(route.Handler)
	schema, err := a.deps.Schemas.Resolve(ctx, ref, path)
	if err != nil {
		a.degrade(rc, e, path, method, err)
	}
	if schema == nil {
		schema = contract.Undocumented()
	}
	e.ResponseSchema = schema
	if schema.IsUndocumented() && err == nil {
		rc.addWarning(path, method, WarnUndocumentedResponse,
			"Response schema undocumented",
			"Return an API resource from the action or add a resource named after the route's model")
	}

	e.StatusCodes = a.deps.Codes.Analyze(route.Handler, analysis.ResponseContext{
		Method:        method,
		Authenticated: e.Auth.Type != contract.AuthNone,
		Validated:     len(fields) > 0,
		Throttled:     e.RateLimit != nil,
		HasParameters: len(e.PathParameters) > 0,
	})

	ec := EntryContext{Path: path, Method: method, Route: route}
	for _, t := range a.transformers {
		t.Transform(e, ec)
	}
	a.log.Debug("✓ %s %s", method, path)
	return e
}

// degrade records err and keeps the first failure on the entry
func (a *Assembler) degrade(rc *RunContext, e *contract.Entry, path, method string, err error) {
	ae := rc.addError(path, method, err)
	a.log.Warn("⚠️  %s %s: %s", method, path, ae.Message)
	if e.Error == nil {
		e.Error = ae.EntryError()
	}
}

// placeholder is the entry written when the route itself could not be analyzed
func (a *Assembler) placeholder(route analysis.RouteRecord, ae *analysis.Error) *contract.Entry {
	return &contract.Entry{
		Auth:           contract.Auth{Type: contract.AuthNone},
		PathParameters: a.deps.Facts.PathParameters(route.URI, nil),
		RequestSchema:  map[string]contract.FieldSchema{},
		ResponseSchema: contract.Undocumented(),
		CustomHeaders:  []contract.Header{},
		APIVersion:     analysis.APIVersion(route.URI),
		RouteName:      route.Name,
		Error:          ae.EntryError(),
	}
}
