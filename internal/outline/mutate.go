package outline

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/pstuifzand/minders/internal/eventbus"
	"github.com/pstuifzand/minders/internal/model"
	"github.com/pstuifzand/minders/internal/policy"
)

// DeleteMode says what happens to the children of a deleted item
type DeleteMode int

const (
	// DeletePromoteChildren moves the children into the parent, at the
	// position of the deleted item.
	DeletePromoteChildren DeleteMode = iota
	// DeleteSubtree removes the item with all its descendants.
	DeleteSubtree
)

// DefaultDeleteMode is the mode used when a caller has no preference
const DefaultDeleteMode = DeletePromoteChildren

func (m DeleteMode) String() string {
	switch m {
	case DeletePromoteChildren:
		return "promote-children"
	case DeleteSubtree:
		return "subtree"
	default:
		return fmt.Sprintf("DeleteMode(%d)", int(m))
	}
}

// begin locks the tree and fails when it is frozen. On success the caller
// owns the lock.
func (t *Tree) begin() error {
	t.mu.Lock()
	if t.frozen != nil {
		err := t.frozen
		t.mu.Unlock()
		return err
	}
	return nil
}

func (t *Tree) freshID() string {
	for {
		id := t.newID()
		if _, taken := t.o.Items[id]; !taken && id != "" {
			return id
		}
	}
}

func insertAt(ids []string, id string, index int) []string {
	if index < 0 || index > len(ids) {
		index = len(ids)
	}
	return slices.Insert(ids, index, id)
}

func removeID(ids []string, id string) ([]string, int) {
	idx := slices.Index(ids, id)
	if idx < 0 {
		return ids, -1
	}
	return slices.Delete(ids, idx, idx+1), idx
}

// insert creates a new item under parent at index. Must be called with
// t.mu held.
func (t *Tree) insert(parent *model.Item, index int, text string) *model.Item {
	now := t.now()
	it := model.NewItem(t.freshID(), text, now)
	it.ParentID = parent.ID
	t.o.Items[it.ID] = it
	parent.ChildIDs = insertAt(parent.ChildIDs, it.ID, index)
	return it
}

func (t *Tree) finishCreate(op string, it, parent *model.Item) model.Item {
	out := it.Clone()
	bus, saver := t.commit(true)
	t.mu.Unlock()

	t.log.Debug().Str("op", op).Str("id", out.ID).Str("parent", parent.ID).Msg("item created")
	notify(bus, saver, []change{{out.ID, eventbus.OpAdd}, {parent.ID, eventbus.OpUpdate}}, true, false)
	return out
}

// CreateItemAfter inserts a new item right after sibling, under the same
// parent. The root has no siblings.
func (t *Tree) CreateItemAfter(siblingID, text string) (model.Item, error) {
	if err := t.begin(); err != nil {
		return model.Item{}, err
	}
	sibling, err := t.lookup(siblingID)
	if err != nil {
		t.mu.Unlock()
		return model.Item{}, err
	}
	if sibling.IsRoot() {
		t.mu.Unlock()
		return model.Item{}, &model.InvalidReferenceError{ID: siblingID, Reason: "the root has no siblings"}
	}
	parent := t.o.Items[sibling.ParentID]
	idx := slices.Index(parent.ChildIDs, siblingID)
	it := t.insert(parent, idx+1, text)
	return t.finishCreate("create-after", it, parent), nil
}

// CreateTopItem inserts a new item as the first child of the root
func (t *Tree) CreateTopItem(text string) (model.Item, error) {
	if err := t.begin(); err != nil {
		return model.Item{}, err
	}
	root := t.o.Root()
	it := t.insert(root, 0, text)
	return t.finishCreate("create-top", it, root), nil
}

// CreateChild appends a new item as the last child of parentID
func (t *Tree) CreateChild(parentID, text string) (model.Item, error) {
	if err := t.begin(); err != nil {
		return model.Item{}, err
	}
	parent, err := t.lookup(parentID)
	if err != nil {
		t.mu.Unlock()
		return model.Item{}, err
	}
	it := t.insert(parent, -1, text)
	return t.finishCreate("create-child", it, parent), nil
}

// DeleteItem unlinks id from its parent and returns the ids removed from the
// outline. What happens to its children depends on mode.
func (t *Tree) DeleteItem(id string, mode DeleteMode) ([]string, error) {
	if err := t.begin(); err != nil {
		return nil, err
	}
	it, err := t.lookup(id)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	if it.IsRoot() {
		t.mu.Unlock()
		return nil, &model.InvalidReferenceError{ID: id, Reason: "the root cannot be deleted"}
	}

	parent := t.o.Items[it.ParentID]
	var idx int
	parent.ChildIDs, idx = removeID(parent.ChildIDs, id)

	var removed []string
	var changes []change
	switch mode {
	case DeleteSubtree:
		var collect func(cur *model.Item)
		collect = func(cur *model.Item) {
			removed = append(removed, cur.ID)
			for _, cid := range cur.ChildIDs {
				if child, ok := t.o.Items[cid]; ok {
					collect(child)
				}
			}
		}
		collect(it)
		for _, rid := range removed {
			delete(t.o.Items, rid)
		}
	default:
		for i, cid := range it.ChildIDs {
			t.o.Items[cid].ParentID = parent.ID
			parent.ChildIDs = slices.Insert(parent.ChildIDs, idx+i, cid)
			changes = append(changes, change{cid, eventbus.OpUpdate})
		}
		delete(t.o.Items, id)
		removed = []string{id}
	}

	for _, rid := range removed {
		changes = append(changes, change{rid, eventbus.OpRemove})
	}
	changes = append(changes, change{parent.ID, eventbus.OpUpdate})
	bus, saver := t.commit(true)
	t.mu.Unlock()

	t.log.Debug().Str("op", "delete").Str("id", id).Stringer("mode", mode).Int("removed", len(removed)).Msg("item deleted")
	notify(bus, saver, changes, true, false)
	return removed, nil
}

// move reparents it under newParentID at index (-1 appends). The anti-cycle
// check runs before anything is touched. Must be called with t.mu held.
func (t *Tree) move(it *model.Item, newParentID string, index int) ([]change, error) {
	if it.IsRoot() {
		return nil, &model.InvalidReferenceError{ID: it.ID, Reason: "the root cannot be moved"}
	}
	newParent, err := t.lookup(newParentID)
	if err != nil {
		return nil, err
	}
	if newParentID == it.ID {
		return nil, &model.CycleError{Cycle: []string{it.ID, it.ID}}
	}
	if model.IsAncestor(t.o, it.ID, newParentID) {
		cycle := []string{it.ID}
		for cur := newParentID; cur != it.ID; cur = t.o.Items[cur].ParentID {
			cycle = append(cycle, cur)
		}
		return nil, &model.CycleError{Cycle: append(cycle, it.ID)}
	}

	oldParent := t.o.Items[it.ParentID]
	oldParent.ChildIDs, _ = removeID(oldParent.ChildIDs, it.ID)
	newParent.ChildIDs = insertAt(newParent.ChildIDs, it.ID, index)
	it.ParentID = newParent.ID

	changes := []change{{it.ID, eventbus.OpUpdate}, {oldParent.ID, eventbus.OpUpdate}}
	if newParent != oldParent {
		changes = append(changes, change{newParent.ID, eventbus.OpUpdate})
	}
	return changes, nil
}

// restructure runs fn under the lock and finishes the mutation. fn returns
// nil changes for a no-op.
func (t *Tree) restructure(op, id string, fn func(it *model.Item) ([]change, error)) (model.Item, error) {
	if err := t.begin(); err != nil {
		return model.Item{}, err
	}
	it, err := t.lookup(id)
	if err != nil {
		t.mu.Unlock()
		return model.Item{}, err
	}
	changes, err := fn(it)
	if err != nil {
		t.mu.Unlock()
		return model.Item{}, err
	}
	out := it.Clone()
	if changes == nil {
		t.mu.Unlock()
		return out, nil
	}
	bus, saver := t.commit(true)
	t.mu.Unlock()

	t.log.Debug().Str("op", op).Str("id", id).Str("parent", out.ParentID).Msg("item moved")
	notify(bus, saver, changes, true, false)
	return out, nil
}

// Nest makes id the last child of its preceding sibling. Without a
// preceding sibling nothing happens.
func (t *Tree) Nest(id string) (model.Item, error) {
	return t.restructure("nest", id, func(it *model.Item) ([]change, error) {
		if it.IsRoot() {
			return nil, nil
		}
		parent := t.o.Items[it.ParentID]
		idx := slices.Index(parent.ChildIDs, id)
		if idx <= 0 {
			return nil, nil
		}
		prev := t.o.Items[parent.ChildIDs[idx-1]]
		prev.Expanded = true
		return t.move(it, prev.ID, -1)
	})
}

// Unnest makes id the sibling right after its parent. Items directly under
// the root stay where they are.
func (t *Tree) Unnest(id string) (model.Item, error) {
	return t.restructure("unnest", id, func(it *model.Item) ([]change, error) {
		if it.IsRoot() {
			return nil, nil
		}
		parent := t.o.Items[it.ParentID]
		if parent.IsRoot() {
			return nil, nil
		}
		grand := t.o.Items[parent.ParentID]
		idx := slices.Index(grand.ChildIDs, parent.ID)
		return t.move(it, grand.ID, idx+1)
	})
}

// Move reparents id under newParentID at index; a negative or too large
// index appends. Moving an item below itself fails with a CycleError and
// leaves the tree unchanged.
func (t *Tree) Move(id, newParentID string, index int) (model.Item, error) {
	return t.restructure("move", id, func(it *model.Item) ([]change, error) {
		return t.move(it, newParentID, index)
	})
}

// Bump moves id to the top of its siblings
func (t *Tree) Bump(id string) (model.Item, error) {
	return t.restructure("bump", id, func(it *model.Item) ([]change, error) {
		if it.IsRoot() {
			return nil, nil
		}
		parent := t.o.Items[it.ParentID]
		if len(parent.ChildIDs) > 0 && parent.ChildIDs[0] == id {
			return nil, nil
		}
		return t.move(it, parent.ID, 0)
	})
}

// SortChildren re-sorts the children of id with policy.Compare. Ties keep
// their stored order.
func (t *Tree) SortChildren(id string) error {
	_, err := t.restructure("sort", id, func(it *model.Item) ([]change, error) {
		sorted := make([]model.Item, 0, len(it.ChildIDs))
		for _, cid := range it.ChildIDs {
			sorted = append(sorted, *t.o.Items[cid])
		}
		policy.SortStable(sorted)
		ids := make([]string, len(sorted))
		for i, c := range sorted {
			ids[i] = c.ID
		}
		if slices.Equal(ids, it.ChildIDs) {
			return nil, nil
		}
		it.ChildIDs = ids
		return []change{{id, eventbus.OpUpdate}}, nil
	})
	return err
}

// update applies fn to the live item and stamps Modified when stamp is set.
func (t *Tree) update(op, id string, stamp, save, immediate bool, fn func(it *model.Item, now time.Time) error) (model.Item, error) {
	if err := t.begin(); err != nil {
		return model.Item{}, err
	}
	it, err := t.lookup(id)
	if err != nil {
		t.mu.Unlock()
		return model.Item{}, err
	}
	now := t.now()
	if err := fn(it, now); err != nil {
		t.mu.Unlock()
		return model.Item{}, err
	}
	if stamp {
		it.Modified = now
	}
	out := it.Clone()
	bus, saver := t.commit(save)
	t.mu.Unlock()

	t.log.Debug().Str("op", op).Str("id", id).Bool("immediate", immediate).Msg("item updated")
	notify(bus, saver, []change{{id, eventbus.OpUpdate}}, save, immediate)
	return out, nil
}

// UpdateOutlineItem merges the non-nil fields into id and stamps Modified.
// Entering closed or obsolete stamps Closed; leaving them clears it. An
// update that only touches UI state is not persisted. immediate asks for a
// save right away instead of a debounced one.
func (t *Tree) UpdateOutlineItem(id string, f model.Fields, immediate bool) (model.Item, error) {
	if f.Empty() {
		return t.Get(id)
	}
	if f.State != nil && !f.State.Valid() {
		return model.Item{}, fmt.Errorf("update %q: unknown state %q", id, *f.State)
	}
	uiOnly := f.Expanded != nil &&
		f.Text == nil && f.State == nil && f.Hidden == nil && f.Snoozed == nil && f.SnoozeUntil == nil && f.Pinned == nil

	return t.update("update", id, !uiOnly, !uiOnly, immediate, func(it *model.Item, now time.Time) error {
		if f.Text != nil {
			it.Text = *f.Text
			it.IsNew = false
		}
		if f.State != nil {
			was := it.State.Terminal()
			it.State = *f.State
			switch {
			case it.State.Terminal() && !was:
				it.Closed = now
			case !it.State.Terminal():
				it.Closed = time.Time{}
			}
		}
		if f.Hidden != nil {
			it.Hidden = *f.Hidden
		}
		if f.Snoozed != nil {
			it.Snoozed = *f.Snoozed
		}
		if f.SnoozeUntil != nil {
			it.SnoozeUntil = *f.SnoozeUntil
		}
		if f.Pinned != nil {
			it.Pinned = *f.Pinned
		}
		if f.Expanded != nil {
			it.Expanded = *f.Expanded
		}
		return nil
	})
}

// SetText replaces the text of id
func (t *Tree) SetText(id, text string) (model.Item, error) {
	return t.UpdateOutlineItem(id, model.Fields{Text: &text}, false)
}

// SetState moves id into st
func (t *Tree) SetState(id string, st model.State) (model.Item, error) {
	return t.UpdateOutlineItem(id, model.Fields{State: &st}, false)
}

// Snooze hides id from the active views until until. A zero until snoozes
// until Unsnooze is called.
func (t *Tree) Snooze(id string, until time.Time) (model.Item, error) {
	on := true
	return t.UpdateOutlineItem(id, model.Fields{Snoozed: &on, SnoozeUntil: &until}, false)
}

// Unsnooze wakes id up
func (t *Tree) Unsnooze(id string) (model.Item, error) {
	off := false
	var zero time.Time
	return t.UpdateOutlineItem(id, model.Fields{Snoozed: &off, SnoozeUntil: &zero}, false)
}

// SetPinned pins or unpins id
func (t *Tree) SetPinned(id string, pinned bool) (model.Item, error) {
	return t.UpdateOutlineItem(id, model.Fields{Pinned: &pinned}, false)
}

// Touch stamps Modified on id and nothing else
func (t *Tree) Touch(id string) (model.Item, error) {
	return t.update("touch", id, true, true, false, func(*model.Item, time.Time) error { return nil })
}

// SetFocus makes id the zoom root and clears the mark everywhere else. An
// empty id only clears.
func (t *Tree) SetFocus(id string) error {
	if err := t.begin(); err != nil {
		return err
	}
	if id != "" {
		if _, err := t.lookup(id); err != nil {
			t.mu.Unlock()
			return err
		}
	}
	// cleared items in id order, then the new focus
	var changes []change
	for _, cid := range slices.Sorted(maps.Keys(t.o.Items)) {
		if it := t.o.Items[cid]; it.Focus && cid != id {
			it.Focus = false
			changes = append(changes, change{cid, eventbus.OpUpdate})
		}
	}
	if it := t.o.Items[id]; it != nil && !it.Focus {
		it.Focus = true
		changes = append(changes, change{id, eventbus.OpUpdate})
	}
	if len(changes) == 0 {
		t.mu.Unlock()
		return nil
	}
	bus, saver := t.commit(true)
	t.mu.Unlock()

	t.log.Debug().Str("op", "focus").Str("id", id).Msg("focus changed")
	notify(bus, saver, changes, true, false)
	return nil
}
