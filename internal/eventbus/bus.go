// Package eventbus delivers item-level change notifications to views.
//
// Dispatch is synchronous: Emit returns after every matching listener ran.
// The outline tree emits right after a mutation commits in memory, before
// anything is persisted.
package eventbus

import (
	"sync"
)

// Kind is the entity kind a notification is about
type Kind string

const (
	KindItem    Kind = "item"
	KindOutline Kind = "outline"
)

// Op is the change that happened
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
)

// Wildcard subscribes to every id of a kind
const Wildcard = "*"

// Listener receives the id of the changed entity and the operation
type Listener func(id string, op Op)

// Event describes one emitted notification, used by hooks
type Event struct {
	Kind Kind
	ID   string
	Op   Op
}

type subscription struct {
	seq int
	fn  Listener
}

type key struct {
	kind Kind
	id   string
}

// Bus fans out notifications to listeners keyed by (kind, id).
type Bus struct {
	mu     sync.RWMutex
	seq    int
	listen map[key][]subscription
	hooks  hooks
}

func New() *Bus {
	return &Bus{listen: map[key][]subscription{}}
}

// Listen registers fn for notifications of kind about id, or about every id
// when id is Wildcard. The returned func removes the registration; calling
// it more than once is harmless.
func (b *Bus) Listen(kind Kind, id string, fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	b.seq++
	seq := b.seq
	k := key{kind, id}
	b.listen[k] = append(b.listen[k], subscription{seq: seq, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.listen[k]
			for i, s := range subs {
				if s.seq == seq {
					b.listen[k] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(b.listen[k]) == 0 {
				delete(b.listen, k)
			}
		})
	}
}

// Emit calls the listeners for (kind, id) followed by the wildcard
// listeners of kind, in registration order. A panicking listener is
// recovered and reported through OnPanic; the remaining listeners still run.
func (b *Bus) Emit(kind Kind, id string, op Op) {
	b.mu.RLock()
	exact := b.listen[key{kind, id}]
	wild := b.listen[key{kind, Wildcard}]
	subs := make([]subscription, 0, len(exact)+len(wild))
	subs = append(subs, exact...)
	if id != Wildcard {
		subs = append(subs, wild...)
	}
	b.mu.RUnlock()

	ev := Event{Kind: kind, ID: id, Op: op}
	b.runOnEmit(ev, len(subs))
	for _, s := range subs {
		b.dispatch(ev, s.fn)
	}
}

func (b *Bus) dispatch(ev Event, fn Listener) {
	defer func() {
		if r := recover(); r != nil {
			b.runOnPanic(ev, r)
		}
	}()
	fn(ev.ID, ev.Op)
}

// Listeners returns the number of registrations for (kind, id)
func (b *Bus) Listeners(kind Kind, id string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listen[key{kind, id}])
}
