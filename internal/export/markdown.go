// Package export renders an outline for people: markdown bullets for
// documents and notes.
package export

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pstuifzand/minders/internal/model"
	"github.com/pstuifzand/minders/internal/outline"
)

// Options select what ends up in the export
type Options struct {
	// IncludeDone keeps closed and obsolete items.
	IncludeDone bool
	// IncludeHidden keeps hidden items and their children.
	IncludeHidden bool
	// ShowState prefixes every bullet with its state.
	ShowState bool
}

// WriteMarkdown writes the outline as nested markdown bullets, two spaces
// per level. A skipped item takes its subtree with it.
func WriteMarkdown(w io.Writer, t *outline.Tree, opts Options) error {
	var sb strings.Builder
	t.Walk(func(it model.Item, depth int) bool {
		if depth == 0 {
			return true
		}
		if it.Hidden && !opts.IncludeHidden {
			return false
		}
		if it.State.Terminal() && !opts.IncludeDone {
			return false
		}
		writeItemAsMarkdown(&sb, it, depth-1, opts)
		return true
	})
	_, err := io.WriteString(w, sb.String())
	return err
}

// ExportToMarkdown writes the markdown export to filePath
func ExportToMarkdown(t *outline.Tree, filePath string, opts Options) error {
	var sb strings.Builder
	if err := WriteMarkdown(&sb, t, opts); err != nil {
		return err
	}
	if err := os.WriteFile(filePath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write markdown file: %w", err)
	}
	return nil
}

func writeItemAsMarkdown(sb *strings.Builder, it model.Item, depth int, opts Options) {
	text := strings.TrimSpace(it.Text)
	if text == "" {
		text = "(empty)"
	}
	// Keep multi-line text inside its bullet
	text = strings.ReplaceAll(text, "\n", "\n"+strings.Repeat("  ", depth+1))

	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString("- ")
	if opts.ShowState {
		sb.WriteString("[")
		sb.WriteString(string(it.State))
		sb.WriteString("] ")
	}
	sb.WriteString(text)
	sb.WriteString("\n")
}
