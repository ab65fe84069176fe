package search

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/pstuifzand/minders/internal/model"
)

// now is the reference for relative dates
var now = time.Now

// Expr is a parsed query. o is the outline the item belongs to and is only
// read.
type Expr interface {
	Matches(item *model.Item, o *model.Outline) bool
	String() string
}

type matchAll struct{}

func (matchAll) Matches(*model.Item, *model.Outline) bool { return true }
func (matchAll) String() string                           { return "everything" }

// allOf is an implicit AND over its terms
type allOf []Expr

func (e allOf) Matches(item *model.Item, o *model.Outline) bool {
	for _, t := range e {
		if !t.Matches(item, o) {
			return false
		}
	}
	return true
}

func (e allOf) String() string { return join("and", e) }

// anyOf is a | chain
type anyOf []Expr

func (e anyOf) Matches(item *model.Item, o *model.Outline) bool {
	for _, t := range e {
		if t.Matches(item, o) {
			return true
		}
	}
	return false
}

func (e anyOf) String() string { return join("or", e) }

func join(op string, terms []Expr) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return "(" + op + " " + strings.Join(parts, " ") + ")"
}

type not struct{ Expr }

func (e not) Matches(item *model.Item, o *model.Outline) bool { return !e.Expr.Matches(item, o) }
func (e not) String() string                                  { return "(not " + e.Expr.String() + ")" }

// textMode says how a text term is compared with item text
type textMode int

const (
	substring textMode = iota
	fuzzyText
	regexText
)

type textTerm struct {
	mode textMode
	term string
	re   *regexp.Regexp
}

func newText(mode textMode, term string) (*textTerm, error) {
	t := &textTerm{mode: mode, term: strings.ToLower(term)}
	if mode == regexText {
		re, err := regexp.Compile(term)
		if err != nil {
			return nil, fmt.Errorf("invalid regex /%s/: %w", term, err)
		}
		t.term, t.re = term, re
	}
	return t, nil
}

func (e *textTerm) Matches(item *model.Item, _ *model.Outline) bool {
	switch e.mode {
	case fuzzyText:
		return fuzzy.MatchFold(e.term, item.Text)
	case regexText:
		return e.re.MatchString(item.Text)
	}
	return strings.Contains(strings.ToLower(item.Text), e.term)
}

func (e *textTerm) String() string {
	switch e.mode {
	case fuzzyText:
		return fmt.Sprintf("~%q", e.term)
	case regexText:
		return "/" + e.term + "/"
	}
	return fmt.Sprintf("%q", e.term)
}

// stateIn matches items in one of the listed states
type stateIn []model.State

func (e stateIn) Matches(item *model.Item, _ *model.Outline) bool {
	return slices.Contains(e, item.State)
}

func (e stateIn) String() string {
	parts := make([]string, len(e))
	for i, st := range e {
		parts[i] = string(st)
	}
	return "state:" + strings.Join(parts, ",")
}

var flagTests = map[string]func(*model.Item) bool{
	"pinned":  func(it *model.Item) bool { return it.Pinned },
	"hidden":  func(it *model.Item) bool { return it.Hidden },
	"focus":   func(it *model.Item) bool { return it.Focus },
	"snoozed": func(it *model.Item) bool { return it.Snoozed },
	"done":    func(it *model.Item) bool { return it.State.Terminal() },
	"open":    func(it *model.Item) bool { return !it.State.Terminal() },
}

type flagIs string

func (e flagIs) Matches(item *model.Item, _ *model.Outline) bool { return flagTests[string(e)](item) }
func (e flagIs) String() string                                  { return "is:" + string(e) }

// cmpOp is a comparison operator of d:, children: and the date keys
type cmpOp string

const (
	opEq cmpOp = "="
	opNe cmpOp = "!="
	opGt cmpOp = ">"
	opGe cmpOp = ">="
	opLt cmpOp = "<"
	opLe cmpOp = "<="
)

// holds reports whether op accepts c, the result of a three-way compare
func (op cmpOp) holds(c int) bool {
	switch op {
	case opEq:
		return c == 0
	case opNe:
		return c != 0
	case opGt:
		return c > 0
	case opGe:
		return c >= 0
	case opLt:
		return c < 0
	case opLe:
		return c <= 0
	}
	return false
}

// countCmp compares the depth or the number of children of an item
type countCmp struct {
	key string // "d" or "children"
	op  cmpOp
	n   int
}

func (e countCmp) value(item *model.Item, o *model.Outline) int {
	if e.key == keyDepth {
		return depth(item, o)
	}
	return len(item.ChildIDs)
}

func (e countCmp) Matches(item *model.Item, o *model.Outline) bool {
	return e.op.holds(cmp.Compare(e.value(item, o), e.n))
}

func (e countCmp) String() string { return fmt.Sprintf("%s:%s%d", e.key, e.op, e.n) }

// dateRef is an absolute day or a span relative to now
type dateRef struct {
	day    time.Time
	offset func(time.Time) time.Time
	text   string
}

func (r dateRef) resolve() time.Time {
	if r.offset != nil {
		return r.offset(now())
	}
	return r.day
}

// dateCmp compares the created, modified or closed time of an item. = and
// != compare calendar days.
type dateCmp struct {
	key string // "c", "m" or "x"
	op  cmpOp
	ref dateRef
}

func (e dateCmp) stamp(item *model.Item) time.Time {
	switch e.key {
	case keyCreated:
		return item.Created
	case keyModified:
		return item.Modified
	}
	return item.Closed
}

func (e dateCmp) Matches(item *model.Item, _ *model.Outline) bool {
	t := e.stamp(item)
	if t.IsZero() {
		return false
	}
	ref := e.ref.resolve()
	if e.op == opEq || e.op == opNe {
		sameDay := t.In(ref.Location()).Format(time.DateOnly) == ref.Format(time.DateOnly)
		return sameDay == (e.op == opEq)
	}
	return e.op.holds(t.Compare(ref))
}

func (e dateCmp) String() string { return fmt.Sprintf("%s:%s%s", e.key, e.op, e.ref.text) }

// relation names the items a relational filter looks at
type relation int

const (
	relParent relation = iota
	relAncestor
	relChild
	relDescendant
	relSibling
)

var relationNames = [...]string{"parent", "ancestor", "child", "descendant", "sibling"}

func (r relation) String() string { return relationNames[r] }

// related returns the items of rel around item, nearest first
func (r relation) related(item *model.Item, o *model.Outline) []*model.Item {
	switch r {
	case relParent:
		if p := parentOf(item, o); p != nil {
			return []*model.Item{p}
		}
		return nil
	case relAncestor:
		var out []*model.Item
		for p := parentOf(item, o); p != nil && len(out) <= len(o.Items); p = parentOf(p, o) {
			out = append(out, p)
		}
		return out
	case relChild:
		return childrenOf(item, o)
	case relDescendant:
		var out []*model.Item
		queue := childrenOf(item, o)
		for len(queue) > 0 && len(out) <= len(o.Items) {
			c := queue[0]
			queue = queue[1:]
			out = append(out, c)
			queue = append(queue, childrenOf(c, o)...)
		}
		return out
	case relSibling:
		if o == nil {
			return nil
		}
		p := o.Items[item.ParentID]
		if p == nil {
			return nil
		}
		return slices.DeleteFunc(childrenOf(p, o), func(s *model.Item) bool { return s.ID == item.ID })
	}
	return nil
}

// relational matches when some related item matches inner, or all of them
// with every set. every needs at least one related item, except for
// ancestors where top-level items pass.
type relational struct {
	rel   relation
	every bool
	inner Expr
}

func (e relational) Matches(item *model.Item, o *model.Outline) bool {
	items := e.rel.related(item, o)
	if !e.every {
		return slices.ContainsFunc(items, func(r *model.Item) bool { return e.inner.Matches(r, o) })
	}
	if len(items) == 0 {
		return e.rel == relAncestor
	}
	for _, r := range items {
		if !e.inner.Matches(r, o) {
			return false
		}
	}
	return true
}

func (e relational) String() string {
	q := ""
	if e.every {
		q = "every "
	}
	return fmt.Sprintf("%s%s[%s]", q, e.rel, e.inner)
}

// parentOf returns the parent of item, or nil for top-level items
func parentOf(item *model.Item, o *model.Outline) *model.Item {
	if o == nil || item.ParentID == "" || item.ParentID == o.RootID {
		return nil
	}
	return o.Items[item.ParentID]
}

func childrenOf(item *model.Item, o *model.Outline) []*model.Item {
	if o == nil {
		return nil
	}
	out := make([]*model.Item, 0, len(item.ChildIDs))
	for _, cid := range item.ChildIDs {
		if c, ok := o.Items[cid]; ok {
			out = append(out, c)
		}
	}
	return out
}

// depth is 1 for top-level items
func depth(item *model.Item, o *model.Outline) int {
	return len(relAncestor.related(item, o)) + 1
}

// Matching returns every item below the root that matches, in tree order
func Matching(o *model.Outline, e Expr) []*model.Item {
	var out []*model.Item
	for _, it := range o.GetAllItems() {
		if e.Matches(it, o) {
			out = append(out, it)
		}
	}
	return out
}

// First returns the first match in tree order, or nil
func First(o *model.Outline, e Expr) *model.Item {
	for _, it := range o.GetAllItems() {
		if e.Matches(it, o) {
			return it
		}
	}
	return nil
}
