// Package outline owns the live outline of one owner and the structural
// operations on it.
//
// A Tree hands out value copies of its items; only the tree mutates live
// nodes. Every mutation commits in memory, then notifies the event bus and
// finally asks the save scheduler for a save. Notifications and scheduling
// happen after the tree lock is released, so listeners may read the tree.
package outline

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pstuifzand/minders/internal/eventbus"
	"github.com/pstuifzand/minders/internal/model"
	"github.com/pstuifzand/minders/internal/policy"
)

// SaveScheduler is told about every persisted-relevant change. Immediate
// asks for a save without debouncing.
type SaveScheduler interface {
	Schedule(immediate bool)
}

// Matcher selects items for Search. o gives access to the rest of the
// outline and must be treated as read-only.
type Matcher interface {
	Matches(item *model.Item, o *model.Outline) bool
}

// NewID returns a fresh item id
func NewID() string {
	return uuid.NewString()
}

type Option func(*Tree)

func WithBus(bus *eventbus.Bus) Option {
	return func(t *Tree) { t.bus = bus }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tree) { t.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(t *Tree) { t.newID = newID }
}

func WithPolicy(p policy.Policy) Option {
	return func(t *Tree) { t.policy = p }
}

func WithSaveScheduler(s SaveScheduler) Option {
	return func(t *Tree) { t.saver = s }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(t *Tree) { t.log = logger }
}

// Tree is the authoritative in-memory outline.
type Tree struct {
	mu       sync.Mutex
	o        *model.Outline
	revision uint64
	frozen   error

	bus    *eventbus.Bus
	saver  SaveScheduler
	now    func() time.Time
	newID  func() string
	policy policy.Policy
	log    zerolog.Logger
}

// New wraps o. The tree takes ownership of o.
func New(o *model.Outline, opts ...Option) *Tree {
	t := &Tree{
		o:      o,
		now:    time.Now,
		newID:  NewID,
		policy: policy.Policy{ReviewWindow: policy.DefaultReviewWindow, Location: time.Local},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.policy.Now == nil {
		t.policy.Now = t.now
	}
	return t
}

// SetSaveScheduler replaces the save scheduler. The persistence session
// registers itself here after it wrapped the tree.
func (t *Tree) SetSaveScheduler(s SaveScheduler) {
	t.mu.Lock()
	t.saver = s
	t.mu.Unlock()
}

// Policy returns the policy used by View and SortChildren
func (t *Tree) Policy() policy.Policy {
	return t.policy
}

// change is one notification collected during a mutation
type change struct {
	id string
	op eventbus.Op
}

// commit returns the collaborators to notify once the lock is released.
// Persisted-relevant changes bump the revision. Must be called with t.mu
// held.
func (t *Tree) commit(dirty bool) (*eventbus.Bus, SaveScheduler) {
	if dirty {
		t.revision++
	}
	return t.bus, t.saver
}

// notify emits the collected changes and schedules a save. Must be called
// without t.mu held.
func notify(bus *eventbus.Bus, saver SaveScheduler, changes []change, save, immediate bool) {
	if bus != nil {
		for _, c := range changes {
			bus.Emit(eventbus.KindItem, c.id, c.op)
		}
	}
	if save && saver != nil {
		saver.Schedule(immediate)
	}
}

func (t *Tree) lookup(id string) (*model.Item, error) {
	it, ok := t.o.Items[id]
	if !ok {
		return nil, &model.InvalidReferenceError{ID: id}
	}
	return it, nil
}

// Get returns a copy of the item
func (t *Tree) Get(id string) (model.Item, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	it, err := t.lookup(id)
	if err != nil {
		return model.Item{}, err
	}
	return it.Clone(), nil
}

// Root returns a copy of the root item
func (t *Tree) Root() model.Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.o.Root().Clone()
}

// OwnerID returns the owner of the outline
func (t *Tree) OwnerID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.o.OwnerID
}

// Len returns the number of items below the root
func (t *Tree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.o.Items) - 1
}

// Version returns the version of the stored copy the tree is based on
func (t *Tree) Version() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.o.Version
}

// Revision counts in-memory mutations. It changes whenever the tree does.
func (t *Tree) Revision() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.revision
}

// Snapshot returns a deep copy of the outline together with the revision it
// reflects.
func (t *Tree) Snapshot() (*model.Outline, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.o.Clone(), t.revision
}

// MarkSaved records that the stored copy now has version.
func (t *Tree) MarkSaved(version int64) {
	t.mu.Lock()
	t.o.Version = version
	t.o.BaseVersion = version
	t.mu.Unlock()
}

// Replace swaps in a freshly loaded outline and lifts a freeze. Listeners
// of KindOutline are told to redraw everything.
func (t *Tree) Replace(o *model.Outline) {
	t.mu.Lock()
	t.o = o
	t.frozen = nil
	t.revision++
	bus := t.bus
	owner := o.OwnerID
	t.mu.Unlock()

	t.log.Info().Str("owner", owner).Int64("version", o.Version).Msg("outline replaced")
	if bus != nil {
		bus.Emit(eventbus.KindOutline, owner, eventbus.OpUpdate)
	}
}

// Freeze makes every later mutation fail with err until Replace is called.
func (t *Tree) Freeze(err error) {
	t.mu.Lock()
	t.frozen = err
	t.mu.Unlock()
	t.log.Warn().Err(err).Msg("outline frozen")
}

// Frozen returns the error the tree was frozen with, if any
func (t *Tree) Frozen() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frozen
}

// Validate checks the structural invariants of the outline
func (t *Tree) Validate() []model.ValidationError {
	t.mu.Lock()
	defer t.mu.Unlock()
	return model.Validate(t.o)
}

// Walk visits copies of all items depth-first from the root (depth 0).
// Returning false skips the children of that item.
func (t *Tree) Walk(fn func(it model.Item, depth int) bool) {
	t.mu.Lock()
	var items []model.Item
	var depths []int
	t.o.Walk(func(it *model.Item, depth int) bool {
		items = append(items, it.Clone())
		depths = append(depths, depth)
		return true
	})
	t.mu.Unlock()

	// fn runs without the lock so it may call back into the tree.
	skipBelow := -1
	for i, it := range items {
		if skipBelow >= 0 && depths[i] > skipBelow {
			continue
		}
		skipBelow = -1
		if !fn(it, depths[i]) {
			skipBelow = depths[i]
		}
	}
}

// GetTopItems returns the children of the root in stored order. Hidden
// items are dropped unless includeHidden is set.
func (t *Tree) GetTopItems(includeHidden bool) []model.Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []model.Item
	for _, cid := range t.o.Root().ChildIDs {
		it := t.o.Items[cid]
		if it.Hidden && !includeHidden {
			continue
		}
		out = append(out, it.Clone())
	}
	return out
}

// GetChildren returns the direct children of id in stored order
func (t *Tree) GetChildren(id string) ([]model.Item, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	it, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	out := make([]model.Item, 0, len(it.ChildIDs))
	for _, cid := range it.ChildIDs {
		out = append(out, t.o.Items[cid].Clone())
	}
	return out, nil
}

// View projects the outline through filter: every visible, non-hidden item
// below the root, sorted by policy.Compare.
func (t *Tree) View(filter policy.Filter) []model.Item {
	t.mu.Lock()
	var out []model.Item
	t.o.Walk(func(it *model.Item, depth int) bool {
		if depth > 0 && !it.Hidden && t.policy.IsVisible(*it, filter) {
			out = append(out, it.Clone())
		}
		return true
	})
	t.mu.Unlock()
	policy.SortStable(out)
	return out
}

// Search returns the items below the root that m matches, in tree order.
// m runs with the tree locked and must not call back into the tree.
func (t *Tree) Search(m Matcher) []model.Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []model.Item
	t.o.Walk(func(it *model.Item, depth int) bool {
		if depth == 0 {
			return true
		}
		c := it.Clone()
		if m.Matches(&c, t.o) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// Focused returns the item marked as zoom root
func (t *Tree) Focused() (model.Item, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, it := range t.o.Items {
		if it.Focus {
			return it.Clone(), true
		}
	}
	return model.Item{}, false
}

// Path returns the ids from the root down to id, both included
func (t *Tree) Path(id string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.lookup(id); err != nil {
		return nil, err
	}
	var path []string
	for cur := id; cur != ""; cur = t.o.Items[cur].ParentID {
		path = append([]string{cur}, path...)
		if len(path) > len(t.o.Items) {
			break
		}
	}
	return path, nil
}
