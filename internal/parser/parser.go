// Package parser turns raw file bytes into a structured document record:
// frontmatter metadata, tags, topics, content type, and a markup-stripped
// plain-text rendering used for search and word counts.
package parser

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

var inlineTagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Result holds the output of parsing a library file. It carries everything
// the store persists except timestamps, which the caller supplies.
type Result struct {
	Title       string
	Frontmatter map[string]any
	Tags        []string
	Topics      []string
	ContentType string
	Content     string
	RawContent  string
	WordCount   int
}

var md = goldmark.New()

// Parse builds a Result from raw bytes. It never fails on malformed
// frontmatter: the whole file is treated as body with empty metadata.
// Identical input always yields an identical Result.
func Parse(path string, data []byte) *Result {
	fm, body := splitFrontmatter(data)

	plain := plainText([]byte(body))

	res := &Result{
		Title:       deriveTitle(fm, body, path),
		Frontmatter: fm,
		Tags:        extractTags(body, fm),
		Topics:      stringList(fm, "topics"),
		ContentType: contentType(fm),
		Content:     plain,
		RawContent:  string(data),
		WordCount:   len(strings.Fields(plain)),
	}
	return res
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Missing or invalid frontmatter means the entire input is body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter.
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML is a recoverable condition, not an error.
		return nil, string(data)
	}

	return fm, body
}

// plainText renders markdown to whitespace-separated plain text by walking
// the goldmark AST and collecting text segments.
func plainText(body []byte) string {
	doc := md.Parser().Parse(text.NewReader(body))

	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(body))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(body))
			}
		case *ast.AutoLink:
			sb.Write(v.URL(body))
		}
		if _, isBlock := n.(*ast.Paragraph); isBlock {
			sb.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(sb.String())
}

// extractTags collects tags from the frontmatter "tags" field and inline
// #tags in the body, deduplicated in first-seen order.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string

	for _, t := range stringList(fm, "tags") {
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}

	for _, m := range inlineTagRe.FindAllStringSubmatch(body, -1) {
		t := m[1]
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}

	return out
}

// stringList reads a frontmatter field as a list of non-empty strings.
// A bare scalar value is treated as a single-element list.
func stringList(fm map[string]any, key string) []string {
	if fm == nil {
		return nil
	}
	raw, ok := fm[key]
	if !ok {
		return nil
	}
	var out []string
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				s = strings.TrimSpace(s)
				if s != "" {
					out = append(out, s)
				}
			}
		}
	case string:
		s := strings.TrimSpace(v)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func contentType(fm map[string]any) string {
	if fm != nil {
		if t, ok := fm["type"]; ok {
			if s, ok := t.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return "markdown"
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise the filename without extension.
func deriveTitle(fm map[string]any, body, path string) string {
	if fm != nil {
		if t, ok := fm["title"]; ok {
			if s, ok := t.(string); ok && s != "" {
				return s
			}
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
