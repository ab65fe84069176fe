package eventbus

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// hooks holds observers of the bus itself, kept apart from the listeners.
type hooks struct {
	mu      sync.RWMutex
	onEmit  []func(Event, int)
	onPanic []func(Event, any)
}

// OnEmit registers a hook that fires before an event is dispatched, with the
// number of listeners that will receive it.
func (b *Bus) OnEmit(fn func(Event, int)) {
	b.hooks.mu.Lock()
	b.hooks.onEmit = append(b.hooks.onEmit, fn)
	b.hooks.mu.Unlock()
}

// OnPanic registers a hook that fires when a listener panics.
func (b *Bus) OnPanic(fn func(Event, any)) {
	b.hooks.mu.Lock()
	b.hooks.onPanic = append(b.hooks.onPanic, fn)
	b.hooks.mu.Unlock()
}

func (b *Bus) runOnEmit(ev Event, listeners int) {
	b.hooks.mu.RLock()
	hooks := make([]func(Event, int), len(b.hooks.onEmit))
	copy(hooks, b.hooks.onEmit)
	b.hooks.mu.RUnlock()
	for _, fn := range hooks {
		fn(ev, listeners)
	}
}

func (b *Bus) runOnPanic(ev Event, recovered any) {
	b.hooks.mu.RLock()
	hooks := make([]func(Event, any), len(b.hooks.onPanic))
	copy(hooks, b.hooks.onPanic)
	b.hooks.mu.RUnlock()
	for _, fn := range hooks {
		func() {
			defer func() { recover() }() //nolint:errcheck
			fn(ev, recovered)
		}()
	}
}

// RegisterDebugLogger registers hooks that log all bus activity at debug
// level and listener panics at error level.
func RegisterDebugLogger(b *Bus, logger zerolog.Logger) {
	b.OnEmit(func(ev Event, listeners int) {
		logger.Debug().
			Str("kind", string(ev.Kind)).
			Str("id", ev.ID).
			Str("op", string(ev.Op)).
			Int("listeners", listeners).
			Msg("event emitted")
	})

	b.OnPanic(func(ev Event, recovered any) {
		logger.Error().
			Str("kind", string(ev.Kind)).
			Str("id", ev.ID).
			Str("op", string(ev.Op)).
			Str("panic", fmt.Sprint(recovered)).
			Msg("listener panicked")
	})
}
