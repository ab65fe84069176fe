// Package seed reads and writes outlines in a nested YAML form. It holds the
// initial outline created for a new owner and backs import and export.
package seed

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pstuifzand/minders/internal/model"
	"github.com/pstuifzand/minders/internal/outline"
)

//go:embed default.yaml
var defaultYAML []byte

// Node is one item with its children
type Node struct {
	Text     string `yaml:"text"`
	State    string `yaml:"state,omitempty"`
	Pinned   bool   `yaml:"pinned,omitempty"`
	Hidden   bool   `yaml:"hidden,omitempty"`
	Children []Node `yaml:"children,omitempty"`
}

// Document is a list of top-level items
type Document struct {
	Items []Node `yaml:"items"`
}

// Parse reads a YAML document and checks every state
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to parse outline YAML: %w", err)
	}
	if err := checkStates(doc.Items); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func checkStates(nodes []Node) error {
	for _, n := range nodes {
		if n.State != "" {
			if _, err := model.ParseState(n.State); err != nil {
				return fmt.Errorf("item %q: %w", n.Text, err)
			}
		}
		if err := checkStates(n.Children); err != nil {
			return err
		}
	}
	return nil
}

// Marshal writes doc as YAML
func Marshal(doc Document) ([]byte, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outline YAML: %w", err)
	}
	return data, nil
}

// Default builds the initial outline of a new owner
func Default(ownerID string, now time.Time, newID func() string) (*model.Outline, error) {
	doc, err := Parse(defaultYAML)
	if err != nil {
		return nil, err
	}
	return Build(ownerID, doc, now, newID)
}

// Build creates a fresh outline holding doc
func Build(ownerID string, doc Document, now time.Time, newID func() string) (*model.Outline, error) {
	o := model.NewOutline(ownerID, newID(), now)
	var add func(parent *model.Item, nodes []Node)
	add = func(parent *model.Item, nodes []Node) {
		for _, n := range nodes {
			it := model.NewItem(newID(), n.Text, now)
			it.IsNew = false
			it.ParentID = parent.ID
			if n.State != "" {
				it.State, _ = model.ParseState(n.State)
			}
			it.Pinned = n.Pinned
			it.Hidden = n.Hidden
			o.Items[it.ID] = it
			parent.ChildIDs = append(parent.ChildIDs, it.ID)
			add(it, n.Children)
		}
	}
	add(o.Root(), doc.Items)
	if errs := model.Validate(o); len(errs) > 0 {
		return nil, fmt.Errorf("seeded outline is invalid: %v", errs[0])
	}
	return o, nil
}

// Import appends doc below parentID through the tree's own operations and
// returns the number of created items.
func Import(t *outline.Tree, parentID string, doc Document) (int, error) {
	count := 0
	var add func(parentID string, nodes []Node) error
	add = func(parentID string, nodes []Node) error {
		for _, n := range nodes {
			it, err := t.CreateChild(parentID, n.Text)
			if err != nil {
				return err
			}
			count++
			f := model.Fields{}
			if n.State != "" {
				st, err := model.ParseState(n.State)
				if err != nil {
					return err
				}
				f.State = &st
			}
			if n.Pinned {
				f.Pinned = &n.Pinned
			}
			if n.Hidden {
				f.Hidden = &n.Hidden
			}
			if !f.Empty() {
				if _, err := t.UpdateOutlineItem(it.ID, f, false); err != nil {
					return err
				}
			}
			if err := add(it.ID, n.Children); err != nil {
				return err
			}
		}
		return nil
	}
	err := add(parentID, doc.Items)
	return count, err
}

// Capture converts the subtree below rootID into a document. Terminal items
// are skipped unless includeDone is set.
func Capture(t *outline.Tree, rootID string, includeDone bool) (Document, error) {
	var capture func(id string) ([]Node, error)
	capture = func(id string) ([]Node, error) {
		children, err := t.GetChildren(id)
		if err != nil {
			return nil, err
		}
		var nodes []Node
		for _, c := range children {
			if c.State.Terminal() && !includeDone {
				continue
			}
			sub, err := capture(c.ID)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, Node{
				Text:     c.Text,
				State:    string(c.State),
				Pinned:   c.Pinned,
				Hidden:   c.Hidden,
				Children: sub,
			})
		}
		return nodes, nil
	}
	items, err := capture(rootID)
	return Document{Items: items}, err
}
