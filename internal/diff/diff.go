// Package diff compares two versions of an outline item by item.
package diff

import (
	"slices"

	"github.com/pstuifzand/minders/internal/model"
)

// ComputeDiff compares two outlines and returns a DiffResult. Items are
// matched by id; the roots are not compared.
func ComputeDiff(outline1, outline2 *model.Outline) *DiffResult {
	return analyzeChanges(collect(outline1), collect(outline2))
}

// collect flattens the outline into item data by ID
func collect(o *model.Outline) map[string]*ItemData {
	items := make(map[string]*ItemData)
	o.Walk(func(it *model.Item, depth int) bool {
		if depth == 0 {
			return true
		}
		parent := o.Items[it.ParentID]
		data := &ItemData{
			ID:       it.ID,
			Text:     it.Text,
			State:    it.State,
			Position: slices.Index(parent.ChildIDs, it.ID),
			Flags:    flags(it),
			Modified: it.Modified,
		}
		if !parent.IsRoot() {
			data.ParentID = parent.ID
		}
		items[it.ID] = data
		return true
	})
	return items
}

func flags(it *model.Item) []string {
	var f []string
	if it.Pinned {
		f = append(f, "pinned")
	}
	if it.Hidden {
		f = append(f, "hidden")
	}
	if it.Snoozed {
		f = append(f, "snoozed")
	}
	if it.Focus {
		f = append(f, "focus")
	}
	return f
}

// analyzeChanges compares two sets of item data
func analyzeChanges(data1, data2 map[string]*ItemData) *DiffResult {
	result := &DiffResult{
		NewItems:      make(map[string]*ItemData),
		DeletedItems:  make(map[string]*ItemData),
		ModifiedItems: make(map[string]*ItemChange),
	}

	// Find new and modified items
	for id, item2 := range data2 {
		if item1, exists := data1[id]; !exists {
			result.NewItems[id] = item2
		} else if change := compareItems(item1, item2); change != nil {
			result.ModifiedItems[id] = change
		}
	}

	// Find deleted items
	for id, item1 := range data1 {
		if _, exists := data2[id]; !exists {
			result.DeletedItems[id] = item1
		}
	}

	return result
}

// compareItems checks if an item changed and returns the changes
func compareItems(old, new *ItemData) *ItemChange {
	change := &ItemChange{
		Item:             new,
		OldItem:          old,
		TextChanged:      old.Text != new.Text,
		StateChanged:     old.State != new.State,
		StructureChanged: old.ParentID != new.ParentID || old.Position != new.Position,
		ModifiedChanged:  !old.Modified.Equal(new.Modified),
	}

	for _, f := range new.Flags {
		if !slices.Contains(old.Flags, f) {
			change.FlagsAdded = append(change.FlagsAdded, f)
		}
	}
	for _, f := range old.Flags {
		if !slices.Contains(new.Flags, f) {
			change.FlagsRemoved = append(change.FlagsRemoved, f)
		}
	}

	if !change.TextChanged && !change.StateChanged && !change.StructureChanged &&
		!change.ModifiedChanged && len(change.FlagsAdded) == 0 && len(change.FlagsRemoved) == 0 {
		return nil
	}
	return change
}
