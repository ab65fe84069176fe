// Package selection records which item holds input focus and which item
// asked to be focused once it is shown.
//
// A Tracker is owned by the composition root and handed to whatever renders
// items. It is written from a single goroutine and does no locking. A
// pending request can be saved to a file so that it outlives the process
// that made it.
package selection

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Selector says which part of an input should be selected
type Selector int

const (
	SelectEnd Selector = iota
	SelectStart
	SelectAll
)

func (s Selector) String() string {
	switch s {
	case SelectStart:
		return "start"
	case SelectEnd:
		return "end"
	case SelectAll:
		return "all"
	default:
		return fmt.Sprintf("Selector(%d)", int(s))
	}
}

// ParseSelector is the inverse of Selector.String
func ParseSelector(s string) (Selector, error) {
	for _, sel := range []Selector{SelectEnd, SelectStart, SelectAll} {
		if sel.String() == s {
			return sel, nil
		}
	}
	return 0, fmt.Errorf("unknown selector %q", s)
}

// Range is a cursor range inside an item's text
type Range struct {
	Start int
	End   int
}

// Selection is the tracked or requested selection of one item
type Selection struct {
	ItemID   string
	Range    *Range
	Selector Selector
}

// Tracker holds the last tracked selection and at most one pending request.
type Tracker struct {
	tracked   *Selection
	requested *Selection
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// TrackSelection records that itemID holds input focus, replacing whatever
// was tracked before. r may be nil.
func (t *Tracker) TrackSelection(itemID string, r *Range) {
	var rc *Range
	if r != nil {
		c := *r
		rc = &c
	}
	t.tracked = &Selection{ItemID: itemID, Range: rc}
}

// IsSelected reports whether itemID is the tracked selection
func (t *Tracker) IsSelected(itemID string) bool {
	return t.tracked != nil && t.tracked.ItemID == itemID
}

// Tracked returns the tracked selection
func (t *Tracker) Tracked() (Selection, bool) {
	if t.tracked == nil {
		return Selection{}, false
	}
	return *t.tracked, true
}

// RequestSelect asks that the input of itemID grabs focus the next time it
// is shown. A later request replaces an earlier one.
func (t *Tracker) RequestSelect(itemID string, sel Selector) {
	t.requested = &Selection{ItemID: itemID, Selector: sel}
}

// ShouldSelect consumes the pending request if it is for itemID.
func (t *Tracker) ShouldSelect(itemID string) (Selection, bool) {
	if t.requested == nil || t.requested.ItemID != itemID {
		return Selection{}, false
	}
	s := *t.requested
	t.requested = nil
	return s, true
}

// Forget drops the tracked selection and any request that refer to itemID.
// Used when the item is removed from the outline.
func (t *Tracker) Forget(itemID string) {
	if t.tracked != nil && t.tracked.ItemID == itemID {
		t.tracked = nil
	}
	if t.requested != nil && t.requested.ItemID == itemID {
		t.requested = nil
	}
}

// Clear drops all selection state
func (t *Tracker) Clear() {
	t.tracked = nil
	t.requested = nil
}

type requestFile struct {
	ItemID   string `toml:"item"`
	Selector string `toml:"selector"`
}

// SaveRequest writes the pending request to path. Without a request the
// file is removed.
func (t *Tracker) SaveRequest(path string) error {
	if t.requested == nil {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	data, err := toml.Marshal(requestFile{ItemID: t.requested.ItemID, Selector: t.requested.Selector.String()})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadRequest replaces the pending request with the one saved at path. A
// missing file leaves no request.
func (t *Tracker) LoadRequest(path string) error {
	t.requested = nil
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var f requestFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if f.ItemID == "" {
		return nil
	}
	sel, err := ParseSelector(f.Selector)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	t.RequestSelect(f.ItemID, sel)
	return nil
}
