package search

import (
	"fmt"
	"strings"

	"github.com/pstuifzand/minders/internal/model"
)

// Describe renders e as an indented tree with one term per line
func Describe(e Expr) string {
	var b strings.Builder
	describe(&b, e, 0)
	return strings.TrimSuffix(b.String(), "\n")
}

func describe(b *strings.Builder, e Expr, level int) {
	pad := strings.Repeat("  ", level)
	switch e := e.(type) {
	case allOf:
		b.WriteString(pad + "and\n")
		for _, t := range e {
			describe(b, t, level+1)
		}
	case anyOf:
		b.WriteString(pad + "or\n")
		for _, t := range e {
			describe(b, t, level+1)
		}
	case not:
		b.WriteString(pad + "not\n")
		describe(b, e.Expr, level+1)
	case relational:
		q := "some"
		if e.every {
			q = "every"
		}
		fmt.Fprintf(b, "%s%s %s\n", pad, q, e.rel)
		describe(b, e.inner, level+1)
	default:
		b.WriteString(pad + e.String() + "\n")
	}
}

// Step is one evaluated term of an Explanation
type Step struct {
	Level   int
	Matched bool
	Text    string
}

// Explanation tells how each term of a query evaluated for one item
type Explanation struct {
	Item    *model.Item
	Matched bool
	Steps   []Step
	parent  string
	depth   int
}

// Explain evaluates e for item and records every term it looked at
func Explain(item *model.Item, o *model.Outline, e Expr) *Explanation {
	x := &Explanation{Item: item, depth: depth(item, o), parent: "(root)"}
	if p := parentOf(item, o); p != nil {
		x.parent = p.Text
	}
	x.Matched = x.eval(item, o, e, 0)
	return x
}

func (x *Explanation) add(level int, matched bool, format string, args ...any) {
	x.Steps = append(x.Steps, Step{Level: level, Matched: matched, Text: fmt.Sprintf(format, args...)})
}

func (x *Explanation) eval(item *model.Item, o *model.Outline, e Expr, level int) bool {
	ok := e.Matches(item, o)
	switch e := e.(type) {
	case allOf:
		x.add(level, ok, "all of")
		for _, t := range e {
			if !x.eval(item, o, t, level+1) {
				break
			}
		}
	case anyOf:
		x.add(level, ok, "any of")
		for _, t := range e {
			if x.eval(item, o, t, level+1) {
				break
			}
		}
	case not:
		x.add(level, ok, "not")
		x.eval(item, o, e.Expr, level+1)
	case stateIn:
		x.add(level, ok, "%s (state %s)", e, item.State)
	case countCmp:
		x.add(level, ok, "%s (is %d)", e, e.value(item, o))
	case dateCmp:
		if t := e.stamp(item); t.IsZero() {
			x.add(level, ok, "%s (no date)", e)
		} else {
			x.add(level, ok, "%s (is %s)", e, t.Format(stampLayout))
		}
	case relational:
		x.relation(item, o, e, ok, level)
	default:
		x.add(level, ok, "%s", e)
	}
	return ok
}

const stampLayout = "2006-01-02 15:04"

// relation records the related item that decided the result
func (x *Explanation) relation(item *model.Item, o *model.Outline, e relational, ok bool, level int) {
	related := e.rel.related(item, o)
	if len(related) == 0 {
		x.add(level, ok, "%s: no %s", e, e.rel)
		return
	}
	for _, r := range related {
		if e.inner.Matches(r, o) != e.every {
			x.add(level, ok, "%s: %s %q", e, e.rel, r.Text)
			x.eval(r, o, e.inner, level+1)
			return
		}
	}
	verdict := "matches"
	if !e.every {
		verdict = "fails"
	}
	x.add(level, ok, "%s: every %s %s", e, e.rel, verdict)
}

func mark(matched bool) string {
	if matched {
		return "[yes]"
	}
	return "[no] "
}

func (x *Explanation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Item: %s\n", x.Item.Text)
	fmt.Fprintf(&b, "Matched: %v\n", x.Matched)
	for _, s := range x.Steps {
		fmt.Fprintf(&b, "  %s%s %s\n", strings.Repeat("  ", s.Level), mark(s.Matched), s.Text)
	}
	fmt.Fprintf(&b, "Details: state=%s depth=%d children=%d parent=%q\n",
		x.Item.State, x.depth, len(x.Item.ChildIDs), x.parent)
	return b.String()
}
