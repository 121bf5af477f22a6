package laravel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/doITmagic/api-contract-mcp/internal/analysis"
	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php"
	"github.com/doITmagic/api-contract-mcp/internal/logging"
)

// FixtureProvider builds example model attributes from fixture files or,
// failing that, from the model factory's definition()
type FixtureProvider struct {
	index       *php.Index
	models      *EloquentAnalyzer
	fixturesDir string
	log         *logging.Logger
}

// NewFixtureProvider creates a provider. fixturesDir may be empty.
func NewFixtureProvider(index *php.Index, models *EloquentAnalyzer, fixturesDir string, log *logging.Logger) *FixtureProvider {
	if log == nil {
		log = logging.Discard()
	}
	return &FixtureProvider{index: index, models: models, fixturesDir: fixturesDir, log: log}
}

// Fixture implements analysis.FixtureProvider
func (p *FixtureProvider) Fixture(ctx context.Context, name string) (*analysis.Fixture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	class, ok := p.models.Find(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, analysis.ErrModelNotFound)
	}
	model, err := p.models.Model(class.FullName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, analysis.ErrModelNotFound)
	}

	attrs, found, err := p.fromFile(model.ClassName)
	if err != nil {
		return nil, err
	}
	if !found {
		factory := p.factoryFor(model)
		if factory == nil {
			return nil, fmt.Errorf("%s: %w", model.FullName, analysis.ErrNoFactory)
		}
		if attrs, err = p.definition(factory); err != nil {
			return nil, err
		}
		p.log.Debug("fixture for %s from %s", model.ClassName, factory.FullName)
	}

	p.complete(model, attrs)
	return &analysis.Fixture{Model: model.ClassName, Attributes: attrs}, nil
}

// fromFile reads <fixtures>/<Model>.yaml (or .yml, .json)
func (p *FixtureProvider) fromFile(model string) (map[string]any, bool, error) {
	if p.fixturesDir == "" {
		return nil, false, nil
	}
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		path := filepath.Join(p.fixturesDir, model+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to read fixture %s: %w", path, err)
		}
		var attrs map[string]any
		if err := yaml.Unmarshal(data, &attrs); err != nil {
			return nil, false, fmt.Errorf("failed to parse fixture %s: %w", path, err)
		}
		if attrs == nil {
			attrs = map[string]any{}
		}
		for k, v := range attrs {
			attrs[k] = normalizeYAML(v)
		}
		return attrs, true, nil
	}
	return nil, false, nil
}

func normalizeYAML(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format("2006-01-02T15:04:05.000000Z")
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
	}
	return v
}

// factoryFor finds <Model>Factory, or a factory whose $model names the model
func (p *FixtureProvider) factoryFor(model *EloquentModel) *php.ClassInfo {
	for _, c := range p.index.FindByShortName(model.ClassName + "Factory") {
		if p.isFactory(c) {
			return c
		}
	}
	props := NewPropertyExtractor(p.index)
	for _, c := range p.index.Classes() {
		if p.isFactory(c) && strings.EqualFold(props.String(c, "model"), model.FullName) {
			return c
		}
	}
	return nil
}

func (p *FixtureProvider) isFactory(c *php.ClassInfo) bool {
	return !c.IsAbstract && p.index.IsSubclassOf(c.FullName, "Factory")
}

// definition evaluates the factory's definition() array with faker calls
// answered by example values
func (p *FixtureProvider) definition(factory *php.ClassInfo) (map[string]any, error) {
	m := p.index.Method(factory.FullName, "definition")
	if m == nil || m.Node == nil {
		return nil, fmt.Errorf("factory %s has no definition()", factory.Name)
	}
	owner := p.index.Class(m.ClassName)
	if owner == nil {
		owner = factory
	}

	scope := NewScope(p.index, owner)
	scope.This = map[string]any{"faker": fakerGen{}}
	v, ok := scope.Exec(php.Body(m.Node))
	attrs, isMap := v.(map[string]any)
	if !ok || !isMap {
		return nil, fmt.Errorf("%s::definition() does not return an array literal", factory.Name)
	}
	for k, val := range attrs {
		attrs[k] = scope.Value(val)
	}
	return attrs, nil
}

// complete fills the key, cast and fillable attributes the source left
// unset, applies casts and drops hidden attributes
func (p *FixtureProvider) complete(model *EloquentModel, attrs map[string]any) {
	if _, ok := attrs[model.PrimaryKey]; !ok {
		if model.KeyType == "string" {
			attrs[model.PrimaryKey] = ExampleUUID
		} else {
			attrs[model.PrimaryKey] = 1
		}
	}

	for _, attr := range sortedKeys(model.Casts) {
		cast := model.Casts[attr]
		if v, ok := attrs[attr]; ok && v != nil {
			attrs[attr] = applyCast(cast, v)
			continue
		}
		attrs[attr] = castExample(cast)
	}

	for _, attr := range model.Fillable {
		if _, ok := attrs[attr]; !ok {
			attrs[attr] = "lorem"
		}
	}

	if model.Timestamps {
		for _, attr := range []string{"created_at", "updated_at"} {
			if v, ok := attrs[attr]; !ok || v == nil {
				attrs[attr] = ExampleTimestamp
			}
		}
	}

	for _, attr := range model.Appends {
		if _, ok := attrs[attr]; !ok {
			attrs[attr] = p.accessor(model, attr, attrs)
		}
	}

	for _, attr := range model.Hidden {
		delete(attrs, attr)
	}
}

// accessor evaluates a get<Name>Attribute() accessor
func (p *FixtureProvider) accessor(model *EloquentModel, attr string, attrs map[string]any) any {
	name := "get" + studly(attr) + "Attribute"
	m := p.index.Method(model.FullName, name)
	if m == nil || m.Node == nil {
		return "lorem"
	}
	scope := NewScope(p.index, p.index.Class(m.ClassName))
	scope.This = attrs
	if v, ok := scope.Exec(php.Body(m.Node)); ok && v != nil {
		return v
	}
	return "lorem"
}

func castBase(cast string) string {
	base, _, _ := strings.Cut(strings.ToLower(cast), ":")
	return php.ShortName(base)
}

// castExample returns an example value for a cast type
func castExample(cast string) any {
	switch castBase(cast) {
	case "int", "integer", "timestamp":
		return 1
	case "real", "float", "double", "decimal":
		return 1.5
	case "bool", "boolean":
		return true
	case "array", "json", "collection", "asarrayobject", "ascollection", "asencryptedarrayobject", "asencryptedcollection":
		return []any{}
	case "object":
		return map[string]any{}
	case "date", "datetime", "immutable_date", "immutable_datetime", "custom_datetime":
		return ExampleTimestamp
	}
	return "lorem"
}

// applyCast converts a literal the way the attribute cast would on read
func applyCast(cast string, v any) any {
	switch castBase(cast) {
	case "int", "integer", "timestamp":
		return toInt(v)
	case "real", "float", "double", "decimal":
		return toFloat(v)
	case "bool", "boolean":
		return Truthy(v)
	case "string":
		return ToString(v)
	case "date", "datetime", "immutable_date", "immutable_datetime", "custom_datetime":
		return ExampleTimestamp
	case "array", "json", "collection":
		switch v.(type) {
		case []any, map[string]any:
			return v
		}
		return []any{}
	}
	return v
}

// studly turns snake_case into StudlyCase
func studly(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "")
}
