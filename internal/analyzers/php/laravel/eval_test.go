package laravel

import (
	"testing"

	"github.com/VKCOM/php-parser/pkg/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php"
)

func TestScope_Literals(t *testing.T) {
	v := evalPHP(t, `return ['a' => 1, 'b' => [1, 2], 'c' => 'x' . 'y', 'd' => 2 * 3, 'e' => 1.5, 'f' => null, 'g' => true];`)
	assert.Equal(t, map[string]any{
		"a": 1,
		"b": []any{1, 2},
		"c": "xy",
		"d": 6,
		"e": 1.5,
		"f": nil,
		"g": true,
	}, v)
}

func TestScope_Expressions(t *testing.T) {
	tests := []struct {
		name string
		code string
		want any
	}{
		{"interpolation", `$x = 'v'; return "pre-$x";`, "pre-v"},
		{"hex and octal", `return 0x1F + 010;`, 39},
		{"coalesce", `return null ?? 'fallback';`, "fallback"},
		{"spread", `return [...['a', 'b'], 'c'];`, []any{"a", "b", "c"}},
		{"ternary prefers the first branch", `return $flag ? 'yes' : 'no';`, "yes"},
		{"match takes the first arm", `return match ($x) { 'a' => 1, default => 2 };`, 1},
		{"int cast", `return (int) '42';`, 42},
		{"offset assignment", `$data = ['a' => 1]; $data['b'] = 2; return $data;`, map[string]any{"a": 1, "b": 2}},
		{"faker", `return fake()->safeEmail();`, "jane.doe@example.com"},
		{"faker number", `return fake()->numberBetween(5, 10);`, 5},
		{"dates", `return now()->toDateTimeString();`, ExampleTimestamp},
		{"str uuid", `return Str::uuid();`, ExampleUUID},
		{"str slug", `return Str::slug('Hello World');`, "hello-world"},
		{"arrow function value", `return value(fn () => 'lazy');`, "lazy"},
		{"implode", `return implode(',', ['a', 'b']);`, "a,b"},
		{"unknown call", `return mystery();`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalPHP(t, tt.code))
		})
	}
}

func TestScope_MergeAndMissing(t *testing.T) {
	root, _, err := php.Parse([]byte(`<?php return ['a' => 1, $extra, 'skip' => $skip, ...$list];`))
	require.NoError(t, err)

	scope := NewScope(nil, nil)
	scope.Vars["extra"] = merged{"b": 2, "gone": Missing}
	scope.Vars["skip"] = Missing
	scope.Vars["list"] = map[string]any{"c": 3}

	v, ok := scope.Exec(root.(*ast.Root).Stmts)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": 1, "b": 2, "c": 3}, v)
}

func TestScope_ClassConstants(t *testing.T) {
	ix, _ := buildIndex(t, map[string]string{
		"app/Support/Money.php": sampleApp["app/Support/Money.php"],
		"app/Support/Price.php": `<?php
namespace App\Support;

class Price extends Money
{
    const LABEL = 'price-' . self::CURRENCY;

    public function toArray()
    {
        return ['currency' => static::CURRENCY, 'label' => self::LABEL, 'class' => Money::class];
    }
}
`,
	})

	class := ix.Class(`App\Support\Price`)
	require.NotNil(t, class)
	v, ok := NewPropertyExtractor(ix).MethodReturn(class, "toArray")
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"currency": "EUR",
		"label":    "price-EUR",
		"class":    `App\Support\Money`,
	}, v)
}

func TestToStringAndTruthy(t *testing.T) {
	assert.Equal(t, "1", ToString(true))
	assert.Equal(t, "", ToString(false))
	assert.Equal(t, "1.5", ToString(1.5))
	assert.Equal(t, "", ToString(Missing))

	assert.False(t, Truthy("0"))
	assert.False(t, Truthy([]any{}))
	assert.False(t, Truthy(Missing))
	assert.True(t, Truthy("a"))
	assert.True(t, Truthy(map[string]any{"a": 1}))
}
