package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pstuifzand/minders/internal/model"
	"github.com/pstuifzand/minders/internal/outline"
	"github.com/pstuifzand/minders/internal/selection"
)

const shortIDLen = 8

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

// markers renders the flags of an item as a compact suffix
func markers(it model.Item) string {
	var m []string
	if it.Pinned {
		m = append(m, "pinned")
	}
	if it.Focus {
		m = append(m, "focus")
	}
	if it.Hidden {
		m = append(m, "hidden")
	}
	if it.Snoozed {
		if it.SnoozeUntil.IsZero() {
			m = append(m, "snoozed")
		} else {
			m = append(m, "snoozed until "+it.SnoozeUntil.Local().Format("2006-01-02 15:04"))
		}
	}
	if len(m) == 0 {
		return ""
	}
	return "(" + strings.Join(m, ", ") + ")"
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i] + " ..."
	}
	return text
}

// selectedMark is appended to the item a select request points at
const selectedMark = "<"

// selected consumes the pending select request of id
func selected(sel *selection.Tracker, id string) bool {
	if sel == nil {
		return false
	}
	_, ok := sel.ShouldSelect(id)
	return ok
}

// printItems writes a table of items. The item sel asked for is marked.
func printItems(w io.Writer, items []model.Item, sel *selection.Tracker) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, it := range items {
		flags := markers(it)
		if selected(sel, it.ID) {
			flags = strings.TrimSpace(flags + " " + selectedMark)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", shortID(it.ID), it.State, firstLine(it.Text), flags)
	}
	return tw.Flush()
}

// printItem writes a single item, as after a mutation
func printItem(w io.Writer, it model.Item) error {
	_, err := fmt.Fprintf(w, "%s [%s] %s %s\n", shortID(it.ID), it.State, firstLine(it.Text), markers(it))
	return err
}

type treeOptions struct {
	includeDone   bool
	includeHidden bool
	selection     *selection.Tracker
}

// printTree writes the subtree below rootID indented by depth
func printTree(w io.Writer, t *outline.Tree, rootID string, opts treeOptions) error {
	base := -1
	var sb strings.Builder
	inside := false
	t.Walk(func(it model.Item, depth int) bool {
		if it.ID == rootID {
			base = depth
			inside = true
			return true
		}
		if !inside {
			return true
		}
		if depth <= base {
			inside = false
			return false
		}
		if it.Hidden && !opts.includeHidden {
			return false
		}
		if it.State.Terminal() && !opts.includeDone {
			return false
		}
		indent := strings.Repeat("  ", depth-base-1)
		fmt.Fprintf(&sb, "%s%s %s [%s] %s", indent, shortID(it.ID), bullet(it), it.State, firstLine(it.Text))
		if m := markers(it); m != "" {
			sb.WriteString(" " + m)
		}
		if selected(opts.selection, it.ID) {
			sb.WriteString(" " + selectedMark)
		}
		sb.WriteByte('\n')
		return true
	})
	_, err := io.WriteString(w, sb.String())
	return err
}

func bullet(it model.Item) string {
	if len(it.ChildIDs) > 0 {
		return "+"
	}
	return "-"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
