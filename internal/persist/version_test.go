package persist

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestVersionClockStrictlyIncreases(t *testing.T) {
	now := time.UnixMilli(1_000)
	c := NewVersionClock(func() time.Time { return now })

	assert.EqualValues(t, 1_000, c.Next(0))
	assert.EqualValues(t, 1_001, c.Next(0), "clock did not move")
	assert.EqualValues(t, 5_001, c.Next(5_000), "must exceed the base")

	now = time.UnixMilli(900) // clock went backwards
	assert.EqualValues(t, 5_002, c.Next(1_000))

	now = time.UnixMilli(10_000)
	assert.EqualValues(t, 10_000, c.Next(5_002))
}

func TestBackupLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewBackupLimiter(time.Minute, func() time.Time { return now }, zerolog.Nop())

	runs := 0
	run := func() error { runs++; return nil }

	assert.True(t, l.Trigger(run))
	assert.False(t, l.Trigger(run), "within the interval")

	now = now.Add(30 * time.Second)
	assert.False(t, l.Trigger(run))

	now = now.Add(31 * time.Second)
	assert.True(t, l.Trigger(func() error { runs++; return errors.New("disk full") }))
	assert.Equal(t, 2, runs)

	now = now.Add(2 * time.Minute)
	assert.True(t, l.Trigger(run), "a failed backup does not block later ones")
}

func TestBackupLimiterDropsOverlapping(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewBackupLimiter(0, func() time.Time { return now }, zerolog.Nop())

	var inner bool
	ran := l.Trigger(func() error {
		inner = l.Trigger(func() error { return nil })
		return nil
	})
	assert.True(t, ran)
	assert.False(t, inner, "a trigger during a running backup is dropped")
}

func TestBackupLimiterObserve(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewBackupLimiter(time.Minute, func() time.Time { return now }, zerolog.Nop())

	l.Observe(now.Add(-30 * time.Second))
	l.Observe(now.Add(-2 * time.Hour)) // older, ignored
	assert.False(t, l.Trigger(func() error { return nil }), "within a minute of the observed backup")

	now = now.Add(31 * time.Second)
	assert.True(t, l.Trigger(func() error { return nil }))
}
