package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pstuifzand/minders/internal/model"
	"github.com/pstuifzand/minders/internal/storage"
)

// recordingBackend counts saves and can fail on demand.
type recordingBackend struct {
	storage.Backend

	mu       sync.Mutex
	saves    int
	failSave error
	failLoad error
}

func (b *recordingBackend) Load(ctx context.Context, owner string) (model.SerializedOutline, error) {
	b.mu.Lock()
	err := b.failLoad
	b.mu.Unlock()
	if err != nil {
		return model.SerializedOutline{}, err
	}
	return b.Backend.Load(ctx, owner)
}

func (b *recordingBackend) Save(ctx context.Context, owner string, doc model.SerializedOutline) (storage.SaveResult, error) {
	b.mu.Lock()
	b.saves++
	err := b.failSave
	b.mu.Unlock()
	if err != nil {
		return storage.SaveResult{}, err
	}
	return b.Backend.Save(ctx, owner, doc)
}

func (b *recordingBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

func epochClock() time.Time { return time.UnixMilli(0) }

func ids() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id%d", n)
	}
}

// storeAtVersion returns a memory store holding alice's outline at version.
func storeAtVersion(t *testing.T, version int64) *storage.MemoryStore {
	t.Helper()
	o := model.NewOutline("alice", "root", time.UnixMilli(1000))
	a := model.NewItem("a", "first", time.UnixMilli(1000))
	a.ParentID = "root"
	o.Items["a"] = a
	o.Root().ChildIDs = []string{"a"}
	o.Version = version
	doc, err := model.Serialize(o)
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	res, err := store.Save(context.Background(), "alice", doc)
	require.NoError(t, err)
	require.True(t, res.Accepted)
	return store
}

func open(t *testing.T, backend storage.Backend, mod func(*Options)) *Session {
	t.Helper()
	opts := Options{
		Backend:     backend,
		OwnerID:     "alice",
		Debounce:    time.Hour,
		Clock:       epochClock,
		IDGenerator: ids(),
		Logger:      zerolog.Nop(),
	}
	if mod != nil {
		mod(&opts)
	}
	s, err := Open(context.Background(), opts)
	require.NoError(t, err)
	return s
}

func TestVersionRejection(t *testing.T) {
	ctx := context.Background()
	store := storeAtVersion(t, 5)
	a := open(t, store, nil)
	b := open(t, store, nil)
	require.EqualValues(t, 5, a.Tree().Version())
	require.EqualValues(t, 5, b.Tree().Version())

	_, err := a.Tree().Touch("a")
	require.NoError(t, err)
	require.NoError(t, a.Save(ctx))
	assert.EqualValues(t, 6, a.Tree().Version())

	_, err = b.Tree().SetText("a", "edited by b")
	require.NoError(t, err)
	err = b.Save(ctx)
	var conflict *model.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.EqualValues(t, 5, conflict.BaseVersion)
	assert.EqualValues(t, 6, conflict.CurrentVersion)
	assert.EqualValues(t, 5, b.Tree().Version(), "rejected save keeps the local version")
	assert.True(t, b.Conflicted())
	assert.Equal(t, StateIdle, b.State())

	// Edits are blocked until reload.
	_, err = b.Tree().Touch("a")
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.ErrorIs(t, b.Save(ctx), model.ErrConflict)

	require.NoError(t, b.Reload(ctx))
	assert.False(t, b.Conflicted())
	assert.EqualValues(t, 6, b.Tree().Version())
	it, err := b.Tree().Get("a")
	require.NoError(t, err)
	assert.Equal(t, "first", it.Text, "unsaved local edits are dropped on reload")

	_, err = b.Tree().SetText("a", "second try")
	require.NoError(t, err)
	require.NoError(t, b.Save(ctx))
	assert.EqualValues(t, 7, b.Tree().Version())
}

func TestSequentialSaves(t *testing.T) {
	ctx := context.Background()
	store := storeAtVersion(t, 1)
	clock := time.UnixMilli(1_000)
	s := open(t, store, func(o *Options) {
		o.Clock = func() time.Time { clock = clock.Add(time.Millisecond); return clock }
	})

	_, err := s.Tree().Touch("a")
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx))
	v1 := s.Tree().Version()

	_, err = s.Tree().Touch("a")
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx))
	v2 := s.Tree().Version()

	assert.Greater(t, v1, int64(1))
	assert.Greater(t, v2, v1)

	doc, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, v2, doc.Version)
	assert.Equal(t, v1, doc.BaseVersion)
}

func TestStateTransitions(t *testing.T) {
	var mu sync.Mutex
	var states []State
	s := open(t, storeAtVersion(t, 1), func(o *Options) {
		o.OnState = func(st State) {
			mu.Lock()
			states = append(states, st)
			mu.Unlock()
		}
	})

	_, err := s.Tree().Touch("a")
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background()))
	assert.Equal(t, []State{StateSaving, StateCommitted, StateIdle}, states)
}

func TestTransportErrorKeepsLocalState(t *testing.T) {
	ctx := context.Background()
	backend := &recordingBackend{Backend: storeAtVersion(t, 3)}
	var reported []error
	var mu sync.Mutex
	s := open(t, backend, func(o *Options) {
		o.ErrorReporter = func(err error) {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
		}
	})

	backend.mu.Lock()
	backend.failSave = errors.New("network down")
	backend.mu.Unlock()

	_, err := s.Tree().SetText("a", "offline edit")
	require.NoError(t, err)
	err = s.Save(ctx)
	assert.ErrorIs(t, err, model.ErrPersistence)
	assert.EqualValues(t, 3, s.Tree().Version())
	assert.False(t, s.Conflicted())
	assert.True(t, s.Dirty())
	it, _ := s.Tree().Get("a")
	assert.Equal(t, "offline edit", it.Text)

	// Background saves report instead of returning.
	s.Schedule(true)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reported) == 1
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.ErrorIs(t, reported[0], model.ErrPersistence)
	mu.Unlock()

	// No automatic retry.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, backend.count())
}

func TestDebouncedSaveCoalesces(t *testing.T) {
	backend := &recordingBackend{Backend: storeAtVersion(t, 1)}
	s := open(t, backend, func(o *Options) {
		o.Debounce = 50 * time.Millisecond
	})

	for i := 0; i < 5; i++ {
		_, err := s.Tree().Touch("a")
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return backend.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !s.Dirty() }, time.Second, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, backend.count())
}

func TestImmediateUpdateSavesRightAway(t *testing.T) {
	backend := &recordingBackend{Backend: storeAtVersion(t, 1)}
	s := open(t, backend, nil) // debounce of an hour

	text := "now"
	_, err := s.Tree().UpdateOutlineItem("a", model.Fields{Text: &text}, true)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return backend.count() == 1 && !s.Dirty() }, 2*time.Second, 5*time.Millisecond)
}

func TestOpenSeedsMissingOutline(t *testing.T) {
	store := storage.NewMemoryStore()
	s := open(t, store, nil)

	assert.Greater(t, s.Tree().Len(), 0)
	assert.False(t, s.Dirty())
	assert.Greater(t, s.Tree().Version(), int64(0))

	doc, err := store.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, s.Tree().Version(), doc.Version)
}

func TestOpenLoadFailure(t *testing.T) {
	backend := &recordingBackend{Backend: storage.NewMemoryStore(), failLoad: errors.New("timeout")}
	_, err := Open(context.Background(), Options{Backend: backend, OwnerID: "alice", Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, model.ErrPersistence)
	assert.Zero(t, backend.count(), "no seeding after a failed load")
}

func TestBackupsAreRateLimited(t *testing.T) {
	ctx := context.Background()
	bm, err := storage.NewBackupManager(t.TempDir())
	require.NoError(t, err)
	s := open(t, storeAtVersion(t, 1), func(o *Options) {
		o.Backups = bm
		o.BackupInterval = time.Hour
	})

	for i := 0; i < 3; i++ {
		_, err := s.Tree().Touch("a")
		require.NoError(t, err)
		require.NoError(t, s.Save(ctx))
	}
	backups, err := bm.FindBackups("alice")
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestCloseFlushes(t *testing.T) {
	ctx := context.Background()
	backend := &recordingBackend{Backend: storeAtVersion(t, 1)}
	s := open(t, backend, nil)

	_, err := s.Tree().SetText("a", "closing")
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))
	assert.Equal(t, 1, backend.count())

	doc, err := backend.Load(ctx, "alice")
	require.NoError(t, err)
	o, err := model.Deserialize(doc)
	require.NoError(t, err)
	assert.Equal(t, "closing", o.Items["a"].Text)

	// Nothing left to flush.
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 1, backend.count())
}

func TestBackupIntervalHoldsAcrossSessions(t *testing.T) {
	ctx := context.Background()
	bm, err := storage.NewBackupManager(t.TempDir())
	require.NoError(t, err)
	store := storeAtVersion(t, 1)
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	withBackups := func(o *Options) {
		o.Backups = bm
		o.BackupInterval = time.Hour
		o.Clock = func() time.Time { return now }
	}

	first := open(t, store, withBackups)
	_, err = first.Tree().Touch("a")
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx))
	require.NoError(t, first.Close(ctx))

	now = now.Add(200 * time.Millisecond)
	second := open(t, store, withBackups)
	_, err = second.Tree().CreateChild("a", "after the backup")
	require.NoError(t, err)
	require.NoError(t, second.Close(ctx))

	backups, err := bm.FindBackups("alice")
	require.NoError(t, err)
	require.Len(t, backups, 1, "a new session does not restart the interval")
	doc, err := bm.ReadBackup(backups[0].FilePath)
	require.NoError(t, err)
	o, err := model.Deserialize(doc)
	require.NoError(t, err)
	assert.Len(t, o.Items, 2, "the first backup is kept as written")

	now = now.Add(time.Hour)
	third := open(t, store, withBackups)
	_, err = third.Tree().Touch("a")
	require.NoError(t, err)
	require.NoError(t, third.Close(ctx))

	backups, err = bm.FindBackups("alice")
	require.NoError(t, err)
	assert.Len(t, backups, 2)
}

func TestSharedBackupLimiter(t *testing.T) {
	ctx := context.Background()
	bm, err := storage.NewBackupManager(t.TempDir())
	require.NoError(t, err)
	store := storeAtVersion(t, 1)
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	limiter := NewBackupLimiter(time.Hour, func() time.Time { return now }, zerolog.Nop())
	withBackups := func(o *Options) {
		o.Backups = bm
		o.BackupLimiter = limiter
		o.Clock = func() time.Time { return now }
	}

	for i := 0; i < 3; i++ {
		s := open(t, store, withBackups)
		_, err := s.Tree().Touch("a")
		require.NoError(t, err)
		require.NoError(t, s.Close(ctx))
		now = now.Add(time.Second)
	}

	backups, err := bm.FindBackups("alice")
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}
