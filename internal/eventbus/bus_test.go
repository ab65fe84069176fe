package eventbus_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pstuifzand/minders/internal/eventbus"
)

type call struct {
	who string
	id  string
	op  eventbus.Op
}

func TestExactAndWildcardListeners(t *testing.T) {
	bus := eventbus.New()
	var calls []call
	bus.Listen(eventbus.KindItem, "a", func(id string, op eventbus.Op) {
		calls = append(calls, call{"exact", id, op})
	})
	bus.Listen(eventbus.KindItem, eventbus.Wildcard, func(id string, op eventbus.Op) {
		calls = append(calls, call{"wild", id, op})
	})
	bus.Listen(eventbus.KindOutline, eventbus.Wildcard, func(id string, op eventbus.Op) {
		calls = append(calls, call{"outline", id, op})
	})

	bus.Emit(eventbus.KindItem, "a", eventbus.OpUpdate)
	bus.Emit(eventbus.KindItem, "b", eventbus.OpAdd)

	assert.Equal(t, []call{
		{"exact", "a", eventbus.OpUpdate},
		{"wild", "a", eventbus.OpUpdate},
		{"wild", "b", eventbus.OpAdd},
	}, calls)
}

func TestUnsubscribe(t *testing.T) {
	bus := eventbus.New()
	n := 0
	unsub := bus.Listen(eventbus.KindItem, "a", func(string, eventbus.Op) { n++ })
	other := bus.Listen(eventbus.KindItem, "a", func(string, eventbus.Op) {})
	require.Equal(t, 2, bus.Listeners(eventbus.KindItem, "a"))

	bus.Emit(eventbus.KindItem, "a", eventbus.OpRemove)
	unsub()
	unsub()
	bus.Emit(eventbus.KindItem, "a", eventbus.OpRemove)

	assert.Equal(t, 1, n)
	assert.Equal(t, 1, bus.Listeners(eventbus.KindItem, "a"))
	other()
	assert.Equal(t, 0, bus.Listeners(eventbus.KindItem, "a"))
}

func TestListenerPanicIsRecovered(t *testing.T) {
	bus := eventbus.New()
	var recovered any
	bus.OnPanic(func(_ eventbus.Event, r any) { recovered = r })

	after := false
	bus.Listen(eventbus.KindItem, eventbus.Wildcard, func(string, eventbus.Op) { panic("boom") })
	bus.Listen(eventbus.KindItem, eventbus.Wildcard, func(string, eventbus.Op) { after = true })

	require.NotPanics(t, func() { bus.Emit(eventbus.KindItem, "x", eventbus.OpAdd) })
	assert.Equal(t, "boom", recovered)
	assert.True(t, after)
}

func TestUnsubscribeFromInsideListener(t *testing.T) {
	bus := eventbus.New()
	n := 0
	var unsub func()
	unsub = bus.Listen(eventbus.KindItem, "a", func(string, eventbus.Op) {
		n++
		unsub()
	})
	bus.Emit(eventbus.KindItem, "a", eventbus.OpUpdate)
	bus.Emit(eventbus.KindItem, "a", eventbus.OpUpdate)
	assert.Equal(t, 1, n)
}

func TestRegisterDebugLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	bus := eventbus.New()
	eventbus.RegisterDebugLogger(bus, logger)
	bus.Listen(eventbus.KindItem, eventbus.Wildcard, func(string, eventbus.Op) { panic("bad listener") })
	bus.Emit(eventbus.KindItem, "x", eventbus.OpAdd)

	out := buf.String()
	assert.Contains(t, out, `"message":"event emitted"`)
	assert.Contains(t, out, `"listeners":1`)
	assert.Contains(t, out, `"panic":"bad listener"`)
}
