// Package policy derives visibility and sort order of outline items from
// their state fields. Nothing in here mutates an item.
package policy

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pstuifzand/minders/internal/model"
)

// Filter is a named view predicate
type Filter string

const (
	FilterAll     Filter = "all"
	FilterFocus   Filter = "focus"
	FilterReview  Filter = "review"
	FilterPile    Filter = "pile"
	FilterDone    Filter = "done"
	FilterWaiting Filter = "waiting"
	FilterSnoozed Filter = "snoozed"
)

// Filters lists every known filter
var Filters = []Filter{FilterAll, FilterFocus, FilterReview, FilterPile, FilterDone, FilterWaiting, FilterSnoozed}

// ParseFilter converts user input into a Filter
func ParseFilter(s string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Filters, f) {
		return "", fmt.Errorf("unknown filter %q", s)
	}
	return f, nil
}

// DefaultReviewWindow is how long a "soon" item stays in the review view
// after it was last created, modified or woken up.
const DefaultReviewWindow = 7 * 24 * time.Hour

// Policy holds the parameters the time-dependent predicates need.
type Policy struct {
	// Now returns the current time. Nil means time.Now.
	Now func() time.Time
	// ReviewWindow is the recency threshold of the review filter.
	ReviewWindow time.Duration
	// Location is the timezone whose day boundaries extend the review
	// window. Nil means UTC.
	Location *time.Location
}

// Default returns a policy with the wall clock, the default review window
// and the local timezone.
func Default() Policy {
	return Policy{Now: time.Now, ReviewWindow: DefaultReviewWindow, Location: time.Local}
}

func (p Policy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// IsSnoozed reports whether the item is currently suppressed. A snooze
// expires once SnoozeUntil is strictly before now; a zero SnoozeUntil never
// expires.
func (p Policy) IsSnoozed(it model.Item) bool {
	if !it.Snoozed {
		return false
	}
	if it.SnoozeUntil.IsZero() {
		return true
	}
	return !it.SnoozeUntil.Before(p.now())
}

// IsStale reports whether the most recent of created, modified and
// snoozeUntil lies less than threshold before now. Zero timestamps are
// ignored; an item without any timestamp is never stale.
func (p Policy) IsStale(it model.Item, threshold time.Duration) bool {
	now := p.now()
	found := false
	var least time.Duration
	for _, ts := range []time.Time{it.Created, it.SnoozeUntil, it.Modified} {
		if ts.IsZero() {
			continue
		}
		d := now.Sub(ts)
		if !found || d < least {
			least = d
			found = true
		}
	}
	return found && least < threshold
}

// ReviewThreshold is the review window extended back to the start of the
// current day in the policy's timezone, so the window covers whole days.
func (p Policy) ReviewThreshold() time.Duration {
	now := p.now().In(p.location())
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return p.ReviewWindow + now.Sub(midnight)
}

// IsVisible evaluates filter against the item. Hidden is not considered
// here; callers drop hidden items on their own.
func (p Policy) IsVisible(it model.Item, filter Filter) bool {
	switch filter {
	case FilterAll, "":
		return true
	case FilterFocus:
		return (it.State == model.StateUrgent || it.State == model.StateCurrent) && !p.IsSnoozed(it)
	case FilterReview:
		if p.IsSnoozed(it) {
			return false
		}
		switch it.State {
		case model.StateWaiting, model.StateNew:
			return true
		case model.StateSoon:
			return p.IsStale(it, p.ReviewThreshold())
		}
		return false
	case FilterPile:
		return it.State == model.StateSoon || it.State == model.StateLater
	case FilterDone:
		return it.State.Terminal()
	case FilterWaiting:
		return it.State == model.StateWaiting
	case FilterSnoozed:
		return p.IsSnoozed(it) && !it.State.Terminal()
	}
	return false
}

// Compare orders items: pinned first, then state bucket ascending, then
// closed, modified and created, each most recent first.
func Compare(a, b model.Item) int {
	if a.Pinned != b.Pinned {
		if a.Pinned {
			return -1
		}
		return 1
	}
	if c := a.State.Bucket() - b.State.Bucket(); c != 0 {
		if c < 0 {
			return -1
		}
		return 1
	}
	if c := b.Closed.Compare(a.Closed); c != 0 {
		return c
	}
	if c := b.Modified.Compare(a.Modified); c != 0 {
		return c
	}
	return b.Created.Compare(a.Created)
}

// SortStable sorts items by Compare, keeping the given order for ties.
func SortStable(items []model.Item) {
	slices.SortStableFunc(items, Compare)
}
