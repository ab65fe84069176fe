package diff

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// BuildDiffLines converts a DiffResult into formatted display lines.
// Without verbose, changes that only touch the modified time are left out.
func BuildDiffLines(result *DiffResult, verbose bool) []DiffLine {
	var lines []DiffLine

	// New items section
	if len(result.NewItems) > 0 {
		lines = append(lines, DiffLine{Type: DiffTypeNewSection, Content: "New Items:"})
		lines = append(lines, DiffLine{Type: DiffTypeBlank})

		for _, id := range getSortedIDs(result.NewItems) {
			lines = append(lines, formatNewItem(result.NewItems[id])...)
		}
	}

	// Deleted items section
	if len(result.DeletedItems) > 0 {
		lines = append(lines, DiffLine{Type: DiffTypeDeletedSection, Content: "Deleted Items:"})
		lines = append(lines, DiffLine{Type: DiffTypeBlank})

		for _, id := range getSortedIDs(result.DeletedItems) {
			lines = append(lines, formatDeletedItem(result.DeletedItems[id])...)
		}
	}

	// Modified items section
	modified := 0
	var modLines []DiffLine
	for _, id := range getSortedIDs(result.ModifiedItems) {
		change := result.ModifiedItems[id]
		if !verbose && onlyTouched(change) {
			continue
		}
		modified++
		modLines = append(modLines, formatModifiedItem(change, verbose)...)
	}
	if modified > 0 {
		lines = append(lines, DiffLine{Type: DiffTypeModifiedSection, Content: "Modified Items:"})
		lines = append(lines, DiffLine{Type: DiffTypeBlank})
		lines = append(lines, modLines...)
	}

	if modified > 0 || len(result.NewItems) > 0 || len(result.DeletedItems) > 0 {
		lines = append(lines, DiffLine{Type: DiffTypeSummary, Content: "=== Summary ==="})
		lines = append(lines, DiffLine{
			Type: DiffTypeSummary,
			Content: fmt.Sprintf("  %d modified, %d added, %d deleted",
				modified, len(result.NewItems), len(result.DeletedItems)),
		})
	}

	return lines
}

// WriteLines writes the lines as plain text, two spaces per indent level
func WriteLines(w io.Writer, lines []DiffLine) error {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(strings.Repeat("  ", l.Indent))
		sb.WriteString(l.Content)
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func onlyTouched(c *ItemChange) bool {
	return !c.TextChanged && !c.StateChanged && !c.StructureChanged &&
		len(c.FlagsAdded) == 0 && len(c.FlagsRemoved) == 0
}

func parentName(id string) string {
	if id == "" {
		return "root"
	}
	return id
}

// formatNewItem creates display lines for a newly added item
func formatNewItem(item *ItemData) []DiffLine {
	lines := []DiffLine{
		{
			Type:    DiffTypeNewItem,
			Content: fmt.Sprintf("%s: [%s] %s", item.ID, item.State, truncateText(item.Text, 60)),
			Indent:  1,
		},
		{
			Type:    DiffTypeItemDetail,
			Content: fmt.Sprintf("PARENT: %s at position %d", parentName(item.ParentID), item.Position),
			Indent:  2,
		},
	}
	if len(item.Flags) > 0 {
		lines = append(lines, DiffLine{
			Type:    DiffTypeItemDetail,
			Content: fmt.Sprintf("FLAGS: %s", strings.Join(item.Flags, ", ")),
			Indent:  2,
		})
	}
	return append(lines, DiffLine{Type: DiffTypeBlank})
}

// formatDeletedItem creates display lines for a deleted item
func formatDeletedItem(item *ItemData) []DiffLine {
	return []DiffLine{
		{
			Type:    DiffTypeDeletedItem,
			Content: fmt.Sprintf("%s: [%s] %s", item.ID, item.State, truncateText(item.Text, 60)),
			Indent:  1,
		},
		{Type: DiffTypeBlank},
	}
}

// formatModifiedItem creates display lines for a modified item
func formatModifiedItem(change *ItemChange, verbose bool) []DiffLine {
	detail := func(format string, args ...any) DiffLine {
		return DiffLine{Type: DiffTypeItemDetail, Content: fmt.Sprintf(format, args...), Indent: 2}
	}

	lines := []DiffLine{{
		Type:    DiffTypeModifiedItem,
		Content: fmt.Sprintf("%s: %s", change.Item.ID, truncateText(change.Item.Text, 60)),
		Indent:  1,
	}}

	if change.TextChanged {
		lines = append(lines, detail("TEXT: %s → %s",
			truncateText(change.OldItem.Text, 40), truncateText(change.Item.Text, 40)))
	}
	if change.StateChanged {
		lines = append(lines, detail("STATE: %s → %s", change.OldItem.State, change.Item.State))
	}
	if change.StructureChanged {
		if change.OldItem.ParentID != change.Item.ParentID {
			lines = append(lines, detail("MOVED: from parent %s to parent %s",
				parentName(change.OldItem.ParentID), parentName(change.Item.ParentID)))
		}
		if change.OldItem.Position != change.Item.Position {
			lines = append(lines, detail("POSITION: %d → %d", change.OldItem.Position, change.Item.Position))
		}
	}
	if len(change.FlagsAdded) > 0 {
		lines = append(lines, detail("FLAGS added: %s", strings.Join(change.FlagsAdded, ", ")))
	}
	if len(change.FlagsRemoved) > 0 {
		lines = append(lines, detail("FLAGS removed: %s", strings.Join(change.FlagsRemoved, ", ")))
	}
	if verbose && change.ModifiedChanged {
		lines = append(lines, detail("MODIFIED: %s → %s",
			formatTime(change.OldItem.Modified), formatTime(change.Item.Modified)))
	}

	return append(lines, DiffLine{Type: DiffTypeBlank})
}

// truncateText limits text length for display
func truncateText(text string, maxLen int) string {
	// Handle multi-line text
	lines := strings.Split(text, "\n")
	text = lines[0]
	if len(lines) > 1 {
		text += " ..."
	}

	if r := []rune(text); len(r) > maxLen {
		return string(r[:maxLen]) + "..."
	}
	return text
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05")
}

// getSortedIDs returns a sorted slice of keys from a map
func getSortedIDs[T any](items map[string]T) []string {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
