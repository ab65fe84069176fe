// Package model contains the model for the outline
package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// State is the priority/lifecycle tag of an item
type State string

const (
	StateUrgent   State = "urgent"
	StateCurrent  State = "current"
	StateSoon     State = "soon"
	StateLater    State = "later"
	StateWaiting  State = "waiting"
	StateNew      State = "new"
	StateClosed   State = "closed"
	StateObsolete State = "obsolete"
)

// States lists every state in sort-bucket order.
var States = []State{
	StateUrgent,
	StateCurrent,
	StateNew,
	StateWaiting,
	StateSoon,
	StateLater,
	StateClosed,
	StateObsolete,
}

// ParseState converts user input into a State
func ParseState(s string) (State, error) {
	st := State(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown state %q", s)
	}
	return st, nil
}

// Valid reports whether s is one of the known states
func (s State) Valid() bool {
	return slices.Contains(States, s)
}

// Terminal reports whether s ends the item's lifecycle
func (s State) Terminal() bool {
	return s == StateClosed || s == StateObsolete
}

// Bucket is the sort bucket of a state; lower sorts first. Unknown states
// sort after every known state.
func (s State) Bucket() int {
	if idx := slices.Index(States, s); idx >= 0 {
		return idx
	}
	return len(States)
}

// Item represents a single node in the outline tree
type Item struct {
	ID       string
	Text     string
	State    State
	ParentID string   // "" for the root
	ChildIDs []string // ordered

	Hidden      bool
	Snoozed     bool
	SnoozeUntil time.Time // zero means snoozed until further notice
	Pinned      bool
	Focus       bool

	Created  time.Time
	Modified time.Time
	Closed   time.Time

	Expanded bool // UI state, not persisted
	IsNew    bool // UI state: true for newly created placeholder items
}

// IsRoot reports whether the item is the outline root
func (i Item) IsRoot() bool {
	return i.ParentID == ""
}

// Clone returns a copy that shares no slices with i
func (i Item) Clone() Item {
	i.ChildIDs = slices.Clone(i.ChildIDs)
	if i.ChildIDs == nil {
		i.ChildIDs = []string{}
	}
	return i
}

// Fields is a partial update of an item. Nil fields are left untouched.
type Fields struct {
	Text        *string
	State       *State
	Hidden      *bool
	Snoozed     *bool
	SnoozeUntil *time.Time
	Pinned      *bool
	Expanded    *bool
}

// Empty reports whether the update carries no field at all
func (f Fields) Empty() bool {
	return f.Text == nil && f.State == nil && f.Hidden == nil && f.Snoozed == nil &&
		f.SnoozeUntil == nil && f.Pinned == nil && f.Expanded == nil
}

// Outline represents the entire outline document of one owner
type Outline struct {
	OwnerID string
	RootID  string
	Items   map[string]*Item

	// Version is the write counter of the stored copy this outline was
	// loaded from or last committed as.
	Version int64
	// BaseVersion is the version the in-memory copy is based on. It must
	// equal the stored version for a save to be accepted.
	BaseVersion int64
}

// NewItem creates a new outline item
func NewItem(id, text string, now time.Time) *Item {
	return &Item{
		ID:       id,
		Text:     text,
		State:    StateNew,
		ChildIDs: make([]string, 0),
		Created:  now,
		Modified: now,
		Expanded: true,
		IsNew:    true,
	}
}

// NewOutline creates an outline holding only its root item
func NewOutline(ownerID, rootID string, now time.Time) *Outline {
	root := NewItem(rootID, "", now)
	root.IsNew = false
	return &Outline{
		OwnerID: ownerID,
		RootID:  rootID,
		Items:   map[string]*Item{rootID: root},
	}
}

// Root returns the root item, or nil for a malformed outline
func (o *Outline) Root() *Item {
	return o.Items[o.RootID]
}

// FindItemByID finds an item by its ID in the outline
func (o *Outline) FindItemByID(id string) *Item {
	if o == nil || o.Items == nil {
		return nil
	}
	return o.Items[id]
}

// GetAllItems returns all items below the root (depth-first, stored order)
func (o *Outline) GetAllItems() []*Item {
	var items []*Item
	o.Walk(func(it *Item, depth int) bool {
		if depth > 0 {
			items = append(items, it)
		}
		return true
	})
	return items
}

// Walk visits the tree depth-first starting at the root (depth 0). Returning
// false from fn skips the children of that item.
func (o *Outline) Walk(fn func(it *Item, depth int) bool) {
	root := o.Root()
	if root == nil {
		return
	}
	seen := make(map[string]bool, len(o.Items))
	var visit func(it *Item, depth int)
	visit = func(it *Item, depth int) {
		if seen[it.ID] {
			return
		}
		seen[it.ID] = true
		if !fn(it, depth) {
			return
		}
		for _, cid := range it.ChildIDs {
			if child, ok := o.Items[cid]; ok {
				visit(child, depth+1)
			}
		}
	}
	visit(root, 0)
}

// Clone returns a deep copy of the outline
func (o *Outline) Clone() *Outline {
	out := &Outline{
		OwnerID:     o.OwnerID,
		RootID:      o.RootID,
		Items:       make(map[string]*Item, len(o.Items)),
		Version:     o.Version,
		BaseVersion: o.BaseVersion,
	}
	for id, it := range o.Items {
		c := it.Clone()
		out.Items[id] = &c
	}
	return out
}
