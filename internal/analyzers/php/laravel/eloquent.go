package laravel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php"
)

// ErrNotAModel is returned for classes that are not Eloquent models
var ErrNotAModel = errors.New("not an eloquent model")

// EloquentModel is the subset of a model's declaration fixtures need
type EloquentModel struct {
	ClassName   string
	FullName    string
	Table       string
	PrimaryKey  string
	KeyType     string // integer or string
	Fillable    []string
	Hidden      []string
	Appends     []string
	Casts       map[string]string
	Timestamps  bool
	SoftDeletes bool
	HasFactory  bool
	FilePath    string
}

// EloquentAnalyzer answers model questions from the class index
type EloquentAnalyzer struct {
	index      *php.Index
	props      *PropertyExtractor
	namespaces []string
}

// NewEloquentAnalyzer creates an analyzer. modelNamespace is searched for
// short model names.
func NewEloquentAnalyzer(index *php.Index, modelNamespace string) *EloquentAnalyzer {
	ns := []string{strings.Trim(modelNamespace, `\`)}
	if ns[0] != "App" {
		ns = append(ns, "App")
	}
	return &EloquentAnalyzer{index: index, props: NewPropertyExtractor(index), namespaces: ns}
}

// IsModel checks if a class extends an Eloquent base model or a Laravel
// Authenticatable user model
func (a *EloquentAnalyzer) IsModel(fqcn string) bool {
	class := a.index.Class(fqcn)
	if class == nil {
		return false
	}
	for _, parent := range a.index.Ancestors(class.FullName) {
		switch strings.TrimPrefix(parent, `\`) {
		case `Illuminate\Database\Eloquent\Model`,
			`Illuminate\Foundation\Auth\User`,
			`Illuminate\Database\Eloquent\Relations\Pivot`:
			return true
		}
		short := php.ShortName(parent)
		if short == "Model" || short == "Authenticatable" || short == "Pivot" {
			return true
		}
	}
	return false
}

// Find resolves a short model name (Post) to its class
func (a *EloquentAnalyzer) Find(name string) (*php.ClassInfo, bool) {
	if strings.Contains(name, `\`) {
		if a.IsModel(name) {
			return a.index.Class(name), true
		}
		return nil, false
	}
	for _, ns := range a.namespaces {
		fqcn := ns + `\` + name
		if a.IsModel(fqcn) {
			return a.index.Class(fqcn), true
		}
	}
	for _, class := range a.index.FindByShortName(name) {
		if a.IsModel(class.FullName) {
			return class, true
		}
	}
	return nil, false
}

// Model extracts the model declaration
func (a *EloquentAnalyzer) Model(fqcn string) (*EloquentModel, error) {
	if !a.IsModel(fqcn) {
		return nil, fmt.Errorf("%s: %w", fqcn, ErrNotAModel)
	}
	class := a.index.Class(fqcn)

	model := &EloquentModel{
		ClassName:   class.Name,
		FullName:    class.FullName,
		FilePath:    class.FilePath,
		Table:       a.props.String(class, "table"),
		PrimaryKey:  a.props.String(class, "primaryKey"),
		Fillable:    a.props.StringArray(class, "fillable"),
		Hidden:      a.props.StringArray(class, "hidden"),
		Appends:     a.props.StringArray(class, "appends"),
		Casts:       a.casts(class),
		Timestamps:  a.props.Bool(class, "timestamps", true),
		SoftDeletes: a.index.UsesTrait(class.FullName, "SoftDeletes"),
		HasFactory:  a.index.UsesTrait(class.FullName, "HasFactory"),
	}
	if model.PrimaryKey == "" {
		model.PrimaryKey = "id"
	}
	model.KeyType = a.keyType(class)
	return model, nil
}

// KeyType returns the route-binding key type of a model: "integer" or "string"
func (a *EloquentAnalyzer) KeyType(fqcn string) (string, error) {
	if !a.IsModel(fqcn) {
		return "", fmt.Errorf("%s: %w", fqcn, ErrNotAModel)
	}
	return a.keyType(a.index.Class(fqcn)), nil
}

func (a *EloquentAnalyzer) keyType(class *php.ClassInfo) string {
	if a.index.UsesTrait(class.FullName, "HasUuids") || a.index.UsesTrait(class.FullName, "HasUlids") {
		return "string"
	}
	switch strings.ToLower(a.props.String(class, "keyType")) {
	case "string", "uuid":
		return "string"
	}
	return "integer"
}

// casts merges the $casts property with a casts() method (Laravel 11+)
func (a *EloquentAnalyzer) casts(class *php.ClassInfo) map[string]string {
	casts := a.props.StringMap(class, "casts")
	if casts == nil {
		casts = map[string]string{}
	}
	if v, ok := a.props.MethodReturn(class, "casts"); ok {
		for k, val := range stringMapOf(v) {
			casts[k] = val
		}
	}
	for _, date := range a.props.StringArray(class, "dates") {
		if _, ok := casts[date]; !ok {
			casts[date] = "datetime"
		}
	}
	return casts
}
