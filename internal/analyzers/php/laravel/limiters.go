package laravel

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php"
	"github.com/doITmagic/api-contract-mcp/internal/config"
)

// ScanRateLimiters finds RateLimiter::for('name', fn () => Limit::perMinute(n))
// definitions in the PHP files below dir
func ScanRateLimiters(dir string) (map[string]config.RateLimiterConfig, error) {
	out := map[string]config.RateLimiterConfig{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".php") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		f, err := php.ParseFile(path, content)
		if err != nil || f.Root == nil {
			return nil
		}
		for name, limiter := range limitersIn(f) {
			out[name] = limiter
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan rate limiters in %s: %w", dir, err)
	}
	return out, nil
}

func limitersIn(f *php.File) map[string]config.RateLimiterConfig {
	out := map[string]config.RateLimiterConfig{}
	scope := NewScope(nil, nil)
	scope.Namespace, scope.Imports = f.Namespace, f.Imports

	for _, call := range php.Calls(f.Root) {
		n, ok := call.(*ast.ExprStaticCall)
		if !ok || !strings.EqualFold(php.CallName(n), "for") || php.ShortName(php.NameOf(n.Class)) != "RateLimiter" {
			continue
		}
		args := php.CallArgs(n)
		if len(args) < 2 {
			continue
		}
		name := ToString(scope.Eval(args[0]))
		if name == "" {
			continue
		}
		if limiter, ok := limitFrom(scope, php.Unwrap(args[1])); ok {
			out[name] = limiter
		}
	}
	return out
}

// limitFrom reads the first Limit::perX() the callback returns
func limitFrom(scope *Scope, callback ast.Vertex) (config.RateLimiterConfig, bool) {
	var exprs []ast.Vertex
	switch n := callback.(type) {
	case *ast.ExprArrowFunction:
		exprs = []ast.Vertex{n.Expr}
	case *ast.ExprClosure:
		for _, ret := range php.Returns(n) {
			exprs = append(exprs, ret.Expr)
		}
	}

	for _, expr := range exprs {
		for _, call := range php.Calls(expr) {
			static, ok := call.(*ast.ExprStaticCall)
			if !ok || php.ShortName(php.NameOf(static.Class)) != "Limit" {
				continue
			}
			args := php.CallArgs(static)
			first := toInt(scope.arg(args, 0))
			var limiter config.RateLimiterConfig
			switch strings.ToLower(php.CallName(static)) {
			case "perminute":
				limiter = config.RateLimiterConfig{MaxAttempts: first, DecayMinutes: 1}
			case "perminutes":
				limiter = config.RateLimiterConfig{MaxAttempts: toInt(scope.arg(args, 1)), DecayMinutes: first}
			case "perhour":
				limiter = config.RateLimiterConfig{MaxAttempts: first, DecayMinutes: 60 * max(1, toInt(scope.arg(args, 1)))}
			case "perday":
				limiter = config.RateLimiterConfig{MaxAttempts: first, DecayMinutes: 1440 * max(1, toInt(scope.arg(args, 1)))}
			default:
				continue
			}
			if limiter.MaxAttempts <= 0 || limiter.DecayMinutes <= 0 {
				continue
			}
			limiter.Description = describeLimit(limiter)
			return limiter, true
		}
	}
	return config.RateLimiterConfig{}, false
}

func describeLimit(l config.RateLimiterConfig) string {
	switch l.DecayMinutes {
	case 1:
		return fmt.Sprintf("%d requests per minute", l.MaxAttempts)
	case 60:
		return fmt.Sprintf("%d requests per hour", l.MaxAttempts)
	case 1440:
		return fmt.Sprintf("%d requests per day", l.MaxAttempts)
	}
	return fmt.Sprintf("%d requests per %d minutes", l.MaxAttempts, l.DecayMinutes)
}

// UsesPassport reports whether composer.json requires laravel/passport
func UsesPassport(root string) bool {
	data, err := os.ReadFile(filepath.Join(root, "composer.json"))
	if err != nil {
		return false
	}
	var composer struct {
		Require map[string]string `json:"require"`
	}
	if err := json.Unmarshal(data, &composer); err != nil {
		return false
	}
	_, ok := composer.Require["laravel/passport"]
	return ok
}
