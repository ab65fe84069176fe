package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// SerializedItem is the stored shape of one item. Nested items live under
// the "children" key in stored order.
type SerializedItem map[string]any

// SerializedOutline is the tree-shaped document exchanged with persistence
// backends. Item maps only carry fields from the field table.
type SerializedOutline struct {
	OwnerID     string         `json:"ownerId"`
	Version     int64          `json:"version"`
	BaseVersion int64          `json:"baseVersion"`
	Root        SerializedItem `json:"root"`
}

const childrenKey = "children"

// field describes how one Item field is stored. Fields that are not
// included are local-only: they are never written and ignored on load.
type field struct {
	name     string
	included bool
	date     bool
	get      func(it *Item) any
	set      func(it *Item, v any) error
}

var itemFields = []field{
	{name: "id", included: true,
		get: func(it *Item) any { return it.ID },
		set: stringSetter(func(it *Item, s string) { it.ID = s })},
	{name: "text", included: true,
		get: func(it *Item) any { return it.Text },
		set: stringSetter(func(it *Item, s string) { it.Text = s })},
	{name: "state", included: true,
		get: func(it *Item) any { return string(it.State) },
		set: stringSetter(func(it *Item, s string) { it.State = State(s) })},
	{name: "hidden", included: true,
		get: func(it *Item) any { return it.Hidden },
		set: boolSetter(func(it *Item, b bool) { it.Hidden = b })},
	{name: "snoozed", included: true,
		get: func(it *Item) any { return it.Snoozed },
		set: boolSetter(func(it *Item, b bool) { it.Snoozed = b })},
	{name: "snoozeUntil", included: true, date: true,
		get: func(it *Item) any { return it.SnoozeUntil },
		set: dateSetter(func(it *Item, t time.Time) { it.SnoozeUntil = t })},
	{name: "pinned", included: true,
		get: func(it *Item) any { return it.Pinned },
		set: boolSetter(func(it *Item, b bool) { it.Pinned = b })},
	{name: "focus", included: true,
		get: func(it *Item) any { return it.Focus },
		set: boolSetter(func(it *Item, b bool) { it.Focus = b })},
	{name: "created", included: true, date: true,
		get: func(it *Item) any { return it.Created },
		set: dateSetter(func(it *Item, t time.Time) { it.Created = t })},
	{name: "modified", included: true, date: true,
		get: func(it *Item) any { return it.Modified },
		set: dateSetter(func(it *Item, t time.Time) { it.Modified = t })},
	{name: "closed", included: true, date: true,
		get: func(it *Item) any { return it.Closed },
		set: dateSetter(func(it *Item, t time.Time) { it.Closed = t })},
	{name: "expanded", included: false,
		get: func(it *Item) any { return it.Expanded }},
	{name: "isNew", included: false,
		get: func(it *Item) any { return it.IsNew }},
}

// PersistedFields returns the names of the stored item fields.
func PersistedFields() []string {
	var names []string
	for _, f := range itemFields {
		if f.included {
			names = append(names, f.name)
		}
	}
	return names
}

// Serialize converts the outline into its stored shape. Only items reachable
// from the root are written.
func Serialize(o *Outline) (SerializedOutline, error) {
	root := o.Root()
	if root == nil {
		return SerializedOutline{}, fmt.Errorf("outline of %q has no root %q", o.OwnerID, o.RootID)
	}
	seen := make(map[string]bool, len(o.Items))
	doc, err := serializeItem(o, root, seen)
	if err != nil {
		return SerializedOutline{}, err
	}
	return SerializedOutline{
		OwnerID:     o.OwnerID,
		Version:     o.Version,
		BaseVersion: o.BaseVersion,
		Root:        doc,
	}, nil
}

func serializeItem(o *Outline, it *Item, seen map[string]bool) (SerializedItem, error) {
	if seen[it.ID] {
		return nil, fmt.Errorf("item %q reached twice while serializing", it.ID)
	}
	seen[it.ID] = true

	out := SerializedItem{}
	for _, f := range itemFields {
		if !f.included {
			continue
		}
		v := f.get(it)
		if f.date {
			t := v.(time.Time)
			if t.IsZero() {
				continue
			}
			v = t.UnixMilli()
		}
		out[f.name] = v
	}

	children := make([]SerializedItem, 0, len(it.ChildIDs))
	for _, cid := range it.ChildIDs {
		child, ok := o.Items[cid]
		if !ok {
			return nil, fmt.Errorf("item %q lists unknown child %q", it.ID, cid)
		}
		c, err := serializeItem(o, child, seen)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	out[childrenKey] = children
	return out, nil
}

// Deserialize rebuilds a linked outline from its stored shape. Keys outside
// the field table are dropped. The loaded version becomes the base version.
func Deserialize(doc SerializedOutline) (*Outline, error) {
	if doc.Root == nil {
		return nil, fmt.Errorf("outline of %q has no root", doc.OwnerID)
	}
	o := &Outline{
		OwnerID:     doc.OwnerID,
		Items:       map[string]*Item{},
		Version:     doc.Version,
		BaseVersion: doc.Version,
	}
	root, err := deserializeItem(o, doc.Root, "")
	if err != nil {
		return nil, err
	}
	o.RootID = root.ID
	return o, nil
}

func deserializeItem(o *Outline, raw SerializedItem, parentID string) (*Item, error) {
	it := &Item{ParentID: parentID, ChildIDs: []string{}}
	for _, f := range itemFields {
		if !f.included {
			continue
		}
		v, ok := raw[f.name]
		if !ok || v == nil {
			continue
		}
		if err := f.set(it, v); err != nil {
			return nil, fmt.Errorf("field %q: %w", f.name, err)
		}
	}
	if it.ID == "" {
		return nil, fmt.Errorf("item under %q has no id", parentID)
	}
	if _, dup := o.Items[it.ID]; dup {
		return nil, fmt.Errorf("duplicate item id %q", it.ID)
	}
	if it.State == "" {
		it.State = StateNew
	}
	o.Items[it.ID] = it

	children, err := childList(raw[childrenKey])
	if err != nil {
		return nil, fmt.Errorf("item %q: %w", it.ID, err)
	}
	for _, c := range children {
		child, err := deserializeItem(o, c, it.ID)
		if err != nil {
			return nil, err
		}
		it.ChildIDs = append(it.ChildIDs, child.ID)
	}
	return it, nil
}

func childList(v any) ([]SerializedItem, error) {
	switch cs := v.(type) {
	case nil:
		return nil, nil
	case []SerializedItem:
		return cs, nil
	case []map[string]any:
		out := make([]SerializedItem, len(cs))
		for i, c := range cs {
			out[i] = c
		}
		return out, nil
	case []any:
		out := make([]SerializedItem, 0, len(cs))
		for _, c := range cs {
			switch m := c.(type) {
			case map[string]any:
				out = append(out, m)
			case SerializedItem:
				out = append(out, m)
			default:
				return nil, fmt.Errorf("child has type %T, want object", c)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("children has type %T, want list", v)
	}
}

func stringSetter(fn func(*Item, string)) func(*Item, any) error {
	return func(it *Item, v any) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("got %T, want string", v)
		}
		fn(it, s)
		return nil
	}
}

func boolSetter(fn func(*Item, bool)) func(*Item, any) error {
	return func(it *Item, v any) error {
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("got %T, want bool", v)
		}
		fn(it, b)
		return nil
	}
}

func dateSetter(fn func(*Item, time.Time)) func(*Item, any) error {
	return func(it *Item, v any) error {
		ms, err := toInt64(v)
		if err != nil {
			return err
		}
		if ms != 0 {
			fn(it, time.UnixMilli(ms))
		}
		return nil
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("epoch millis %v is not an integer", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("got %T, want epoch millis", v)
	}
}
