// Package textimport turns markdown and indented plain text into outline
// documents that can be imported like YAML ones.
package textimport

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pstuifzand/minders/internal/model"
	"github.com/pstuifzand/minders/internal/seed"
)

// ImportFormat represents different file formats that can be imported
type ImportFormat string

const (
	FormatYAML         ImportFormat = "yaml"
	FormatMarkdown     ImportFormat = "markdown"
	FormatIndentedText ImportFormat = "indented"
	FormatAuto         ImportFormat = "auto" // Auto-detect from extension
)

// ParseFormat converts user input into an ImportFormat
func ParseFormat(s string) (ImportFormat, error) {
	switch f := ImportFormat(strings.ToLower(s)); f {
	case FormatYAML, FormatMarkdown, FormatIndentedText, FormatAuto:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatIndentedText, nil
	}
	return "", fmt.Errorf("unsupported import format: %s", s)
}

// Parser interface for different import formats
type Parser interface {
	Parse(content string) (seed.Document, error)
	Name() string
}

// Parse reads content in format. FormatAuto must be resolved with
// DetectFormat first.
func Parse(content string, format ImportFormat) (seed.Document, error) {
	if format == FormatYAML {
		return seed.Parse([]byte(content))
	}

	var parser Parser
	switch format {
	case FormatMarkdown:
		parser = &MarkdownParser{}
	case FormatIndentedText:
		parser = &IndentedTextParser{}
	default:
		return seed.Document{}, fmt.Errorf("unsupported import format: %s", format)
	}

	doc, err := parser.Parse(content)
	if err != nil {
		return seed.Document{}, fmt.Errorf("parse error (%s): %w", parser.Name(), err)
	}
	return doc, nil
}

// DetectFormat attempts to detect the file format from extension
func DetectFormat(filename string) ImportFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".md", ".markdown":
		return FormatMarkdown
	}
	// Default to indented text
	return FormatIndentedText
}

// node is the mutable form of seed.Node used while parsing
type node struct {
	text     string
	state    string
	children []*node
}

// outlineBuilder attaches nodes by depth. A node deeper than the current
// path allows is attached to the deepest node there is.
type outlineBuilder struct {
	roots []*node
	stack []*node
}

func (b *outlineBuilder) add(depth int, n *node) {
	if depth > len(b.stack) {
		depth = len(b.stack)
	}
	if depth == 0 {
		b.roots = append(b.roots, n)
	} else {
		parent := b.stack[depth-1]
		parent.children = append(parent.children, n)
	}
	b.stack = append(b.stack[:depth], n)
}

// last returns the most recently added node
func (b *outlineBuilder) last() *node {
	if len(b.stack) == 0 {
		return nil
	}
	return b.stack[len(b.stack)-1]
}

func (b *outlineBuilder) document() seed.Document {
	return seed.Document{Items: convert(b.roots)}
}

func convert(nodes []*node) []seed.Node {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]seed.Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, seed.Node{Text: n.text, State: n.state, Children: convert(n.children)})
	}
	return out
}

// splitState strips a leading "[state] " as written by the markdown export
// with states shown. Unknown bracketed words stay part of the text.
func splitState(text string) (string, string) {
	if !strings.HasPrefix(text, "[") {
		return text, ""
	}
	end := strings.IndexByte(text, ']')
	if end < 0 {
		return text, ""
	}
	st, err := model.ParseState(text[1:end])
	if err != nil {
		return text, ""
	}
	return strings.TrimSpace(text[end+1:]), string(st)
}

// indentWidth counts leading spaces, a tab counts as two
func indentWidth(line string) int {
	indent := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ' ':
			indent++
		case '\t':
			indent += 2
		default:
			return indent
		}
	}
	return indent
}
