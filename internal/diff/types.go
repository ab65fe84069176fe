package diff

import (
	"time"

	"github.com/pstuifzand/minders/internal/model"
)

// ItemData is the comparable view of a single item
type ItemData struct {
	ID       string
	Text     string
	State    model.State
	ParentID string // "" for top-level items
	Position int
	Flags    []string
	Modified time.Time
}

// DiffResult contains the analysis of changes between two outlines
type DiffResult struct {
	NewItems      map[string]*ItemData
	DeletedItems  map[string]*ItemData
	ModifiedItems map[string]*ItemChange
}

// Empty reports whether the outlines hold the same items
func (r *DiffResult) Empty() bool {
	return len(r.NewItems) == 0 && len(r.DeletedItems) == 0 && len(r.ModifiedItems) == 0
}

// ItemChange describes what changed for an item
type ItemChange struct {
	Item    *ItemData
	OldItem *ItemData

	TextChanged      bool
	StateChanged     bool
	StructureChanged bool
	FlagsAdded       []string
	FlagsRemoved     []string
	ModifiedChanged  bool
}

// DiffLineType indicates the type of diff line for rendering
type DiffLineType int

const (
	DiffTypeNewSection DiffLineType = iota
	DiffTypeDeletedSection
	DiffTypeModifiedSection
	DiffTypeNewItem
	DiffTypeDeletedItem
	DiffTypeModifiedItem
	DiffTypeItemDetail
	DiffTypeSummary
	DiffTypeBlank
)

// DiffLine represents a rendered line in diff output
type DiffLine struct {
	Type    DiffLineType
	Content string
	Indent  int // Indentation level
}
