package tools

import (
	"regexp"
	"sort"
	"strings"

	"github.com/armon/go-radix"

	"github.com/doITmagic/api-contract-mcp/internal/contract"
)

var paramToken = regexp.MustCompile(`\{([^}:?]+)(?::([^}?]+))?(\?)?\}`)

// constraintPatterns maps a {name:constraint} suffix to the segment it accepts
var constraintPatterns = map[string]string{
	"int":     `\d+`,
	"integer": `\d+`,
	"number":  `\d+(?:\.\d+)?`,
	"uuid":    `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`,
	"alpha":   `[A-Za-z]+`,
	"slug":    `[A-Za-z0-9_-]+`,
}

type template struct {
	path  string
	order int
	re    *regexp.Regexp
}

// TemplateMatcher finds the path template a concrete request path belongs to.
// Templates are indexed by their static prefix so only templates whose prefix
// the request path starts with are tried.
type TemplateMatcher struct {
	tree *radix.Tree
}

// NewTemplateMatcher indexes every parameterized path of c
func NewTemplateMatcher(c *contract.Contract) *TemplateMatcher {
	tree := radix.New()
	for i, p := range c.Paths() {
		if !strings.Contains(p, "{") {
			continue
		}
		re, err := compileTemplate(p)
		if err != nil {
			continue
		}
		prefix := strings.TrimRight(p[:strings.Index(p, "{")], "/")
		var list []*template
		if v, ok := tree.Get(prefix); ok {
			list = v.([]*template)
		}
		tree.Insert(prefix, append(list, &template{path: p, order: i, re: re}))
	}
	return &TemplateMatcher{tree: tree}
}

// Match returns the templates matching path in contract order
func (m *TemplateMatcher) Match(path string) []string {
	var candidates []*template
	m.tree.WalkPath(path, func(_ string, v interface{}) bool {
		for _, t := range v.([]*template) {
			if t.re.MatchString(path) {
				candidates = append(candidates, t)
			}
		}
		return false
	})
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].order < candidates[j].order })

	out := make([]string, len(candidates))
	for i, t := range candidates {
		out[i] = t.path
	}
	return out
}

// compileTemplate turns /a/{b}/{c?} into an anchored expression. An optional
// parameter also makes its leading slash optional.
func compileTemplate(tpl string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	segments := strings.Split(strings.Trim(tpl, "/"), "/")
	for _, seg := range segments {
		locs := paramToken.FindAllStringSubmatchIndex(seg, -1)
		if len(locs) == 0 {
			b.WriteString("/" + regexp.QuoteMeta(seg))
			continue
		}

		optional := len(locs) == 1 && locs[0][0] == 0 && locs[0][1] == len(seg) && locs[0][6] >= 0
		if optional {
			b.WriteString("(?:/")
		} else {
			b.WriteString("/")
		}
		last := 0
		for _, loc := range locs {
			b.WriteString(regexp.QuoteMeta(seg[last:loc[0]]))
			pattern := `[^/]+`
			if loc[4] >= 0 {
				if p, ok := constraintPatterns[strings.ToLower(seg[loc[4]:loc[5]])]; ok {
					pattern = p
				}
			}
			b.WriteString("(" + pattern + ")")
			last = loc[1]
		}
		b.WriteString(regexp.QuoteMeta(seg[last:]))
		if optional {
			b.WriteString(")?")
		}
	}
	b.WriteString("/?$")
	return regexp.Compile(b.String())
}
