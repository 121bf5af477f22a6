package php

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/VKCOM/php-parser/pkg/token"
)

// PHPDocInfo contains parsed PHPDoc information
type PHPDocInfo struct {
	Description string
	Params      []ParamDoc
	Returns     []ReturnDoc
	Throws      []string
	VarType     string
	Deprecated  bool
	// DeprecatedNote is the text after @deprecated, if any
	DeprecatedNote string
	Tags           map[string][]string
}

// ParamDoc represents a @param tag
type ParamDoc struct {
	Name        string
	Type        string
	Description string
}

// ReturnDoc represents a @return tag
type ReturnDoc struct {
	Type        string
	Description string
}

var (
	paramTagRe  = regexp.MustCompile(`^@param\s+([^\s]+)\s+\$([^\s]+)(?:\s+(.*))?$`)
	returnTagRe = regexp.MustCompile(`^@return\s+([^\s]+)(?:\s+(.*))?$`)
	throwsTagRe = regexp.MustCompile(`^@throws\s+([^\s]+)(?:\s+(.*))?$`)
	varTagRe    = regexp.MustCompile(`^@var\s+([^\s]+)`)
	otherTagRe  = regexp.MustCompile(`^@([\w-]+)\s*(.*)$`)
	htmlTagRe   = regexp.MustCompile(`<[a-zA-Z/][^>]*>`)
)

func emptyDoc() *PHPDocInfo {
	return &PHPDocInfo{Tags: map[string][]string{}}
}

// parsePHPDoc extracts PHPDoc information from comment tokens
func parsePHPDoc(tokens []*token.Token) *PHPDocInfo {
	var docComment string
	for _, tok := range tokens {
		if tok.ID.String() == "T_DOC_COMMENT" {
			docComment = string(tok.Value)
		}
	}
	return ParsePHPDoc(docComment)
}

// ParsePHPDoc parses the text of a /** ... */ block
func ParsePHPDoc(docComment string) *PHPDocInfo {
	doc := emptyDoc()
	if docComment == "" {
		return doc
	}

	var cleanLines []string
	for _, line := range strings.Split(docComment, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "/**")
		line = strings.TrimSuffix(line, "*/")
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "*") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "*"))
		}
		if line != "" {
			cleanLines = append(cleanLines, line)
		}
	}

	var desc []string
	inDescription := true
	for _, line := range cleanLines {
		if strings.HasPrefix(line, "@") {
			inDescription = false
			parseTag(line, doc)
		} else if inDescription {
			desc = append(desc, line)
		}
	}

	doc.Description = plainText(strings.Join(desc, " "))
	return doc
}

// parseTag parses a single PHPDoc tag
func parseTag(line string, doc *PHPDocInfo) {
	if m := paramTagRe.FindStringSubmatch(line); m != nil {
		doc.Params = append(doc.Params, ParamDoc{Type: m[1], Name: m[2], Description: strings.TrimSpace(m[3])})
		return
	}
	if m := returnTagRe.FindStringSubmatch(line); m != nil {
		doc.Returns = append(doc.Returns, ReturnDoc{Type: m[1], Description: strings.TrimSpace(m[2])})
		return
	}
	if m := throwsTagRe.FindStringSubmatch(line); m != nil {
		doc.Throws = append(doc.Throws, m[1])
		return
	}
	if m := varTagRe.FindStringSubmatch(line); m != nil {
		doc.VarType = m[1]
		return
	}
	if strings.HasPrefix(line, "@deprecated") {
		doc.Deprecated = true
		doc.DeprecatedNote = strings.TrimSpace(strings.TrimPrefix(line, "@deprecated"))
		return
	}
	if m := otherTagRe.FindStringSubmatch(line); m != nil {
		doc.Tags[m[1]] = append(doc.Tags[m[1]], strings.TrimSpace(m[2]))
	}
}

// plainText flattens HTML markup that sometimes ends up in doc blocks
func plainText(s string) string {
	if !htmlTagRe.MatchString(s) {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// extractPHPDocFromToken extracts PHPDoc from the free-floating tokens before tok
func extractPHPDocFromToken(tok *token.Token) *PHPDocInfo {
	if tok == nil || tok.FreeFloating == nil {
		return emptyDoc()
	}
	return parsePHPDoc(tok.FreeFloating)
}
