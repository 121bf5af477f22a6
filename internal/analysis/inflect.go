package analysis

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var irregularPlurals = map[string]string{
	"people":   "person",
	"children": "child",
	"men":      "man",
	"women":    "woman",
	"mice":     "mouse",
	"geese":    "goose",
	"feet":     "foot",
	"teeth":    "tooth",
}

// Singular returns a best-effort singular of an English noun
func Singular(word string) string {
	lower := strings.ToLower(word)
	if s, ok := irregularPlurals[lower]; ok {
		return matchCase(word, s)
	}
	switch {
	case strings.HasSuffix(lower, "ies") && len(lower) > 3:
		return word[:len(word)-3] + matchCase(word[len(word)-3:], "y")
	case strings.HasSuffix(lower, "sses"), strings.HasSuffix(lower, "shes"),
		strings.HasSuffix(lower, "ches"), strings.HasSuffix(lower, "xes"),
		strings.HasSuffix(lower, "zes"), strings.HasSuffix(lower, "uses"):
		return word[:len(word)-2]
	case strings.HasSuffix(lower, "ss"), strings.HasSuffix(lower, "us"), strings.HasSuffix(lower, "is"):
		return word
	case strings.HasSuffix(lower, "s") && len(lower) > 1:
		return word[:len(word)-1]
	}
	return word
}

func matchCase(model, s string) string {
	if model != "" && strings.ToUpper(model) == model && strings.ToLower(model) != model {
		return strings.ToUpper(s)
	}
	return s
}

// Studly turns "blog-posts", "blog_posts" or "blog posts" into "BlogPosts"
func Studly(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '.'
	})
	// a Caser keeps state, so each call gets its own
	caser := cases.Title(language.English, cases.NoLower)
	var sb strings.Builder
	for _, w := range words {
		sb.WriteString(caser.String(w))
	}
	return sb.String()
}

// Camel turns "post_comment" into "postComment"
func Camel(s string) string {
	studly := Studly(s)
	if studly == "" {
		return ""
	}
	return strings.ToLower(studly[:1]) + studly[1:]
}
