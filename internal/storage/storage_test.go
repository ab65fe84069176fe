package storage

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pstuifzand/minders/internal/model"
)

func testDoc(t *testing.T, owner string, version, base int64) model.SerializedOutline {
	t.Helper()
	now := time.UnixMilli(1_700_000_000_000)
	o := model.NewOutline(owner, "root", now)
	a := model.NewItem("a", "first", now)
	a.ParentID = "root"
	o.Items["a"] = a
	o.Root().ChildIDs = []string{"a"}
	doc, err := model.Serialize(o)
	require.NoError(t, err)
	doc.Version = version
	doc.BaseVersion = base
	return doc
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	sq, err := OpenSQLite(context.Background(), t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Backend{
		"memory": NewMemoryStore(),
		"json":   NewJSONStore(filepath.Join(t.TempDir(), "outlines"), zerolog.Nop()),
		"sqlite": sq,
	}
}

func TestBackendContract(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.Load(ctx, "alice")
			require.ErrorIs(t, err, ErrNotFound)

			res, err := b.Save(ctx, "alice", testDoc(t, "alice", 5, 0))
			require.NoError(t, err)
			assert.True(t, res.Accepted)
			assert.EqualValues(t, 5, res.CurrentVersion)

			loaded, err := b.Load(ctx, "alice")
			require.NoError(t, err)
			assert.EqualValues(t, 5, loaded.Version)
			o, err := model.Deserialize(loaded)
			require.NoError(t, err)
			assert.Equal(t, "first", o.Items["a"].Text)
			assert.Empty(t, model.Validate(o))

			// Client A saves 5 -> 6.
			res, err = b.Save(ctx, "alice", testDoc(t, "alice", 6, 5))
			require.NoError(t, err)
			assert.True(t, res.Accepted)

			// Client B still based on 5 is rejected.
			res, err = b.Save(ctx, "alice", testDoc(t, "alice", 7, 5))
			require.NoError(t, err)
			assert.False(t, res.Accepted)
			assert.EqualValues(t, 6, res.CurrentVersion)

			loaded, err = b.Load(ctx, "alice")
			require.NoError(t, err)
			assert.EqualValues(t, 6, loaded.Version)

			// Other owners are independent.
			_, err = b.Load(ctx, "bob")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemoryStoreDoesNotShareMaps(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	doc := testDoc(t, "alice", 1, 0)
	_, err := s.Save(ctx, "alice", doc)
	require.NoError(t, err)

	doc.Root["text"] = "changed after save"
	loaded, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "", loaded.Root["text"])
}

func TestJSONStoreRejectsBadOwner(t *testing.T) {
	dir := t.TempDir()
	s := NewJSONStore(dir, zerolog.Nop())
	_, err := s.Load(context.Background(), "../etc/passwd")
	assert.Error(t, err)
	_, err = s.Save(context.Background(), "a/b", testDoc(t, "a/b", 1, 0))
	assert.Error(t, err)
	assert.NoDirExists(t, filepath.Join(dir, "a"))
}

func TestSQLiteHistory(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLiteFile(ctx, filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Save(ctx, "alice", testDoc(t, "alice", 10, 0))
	require.NoError(t, err)
	_, err = s.Save(ctx, "alice", testDoc(t, "alice", 11, 10))
	require.NoError(t, err)
	_, err = s.Save(ctx, "alice", testDoc(t, "alice", 12, 10))
	require.NoError(t, err)

	log, err := s.History(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, log, 3)
	assert.EqualValues(t, 12, log[0].Version)
	assert.False(t, log[0].Accepted)
	assert.True(t, log[1].Accepted)
	assert.EqualValues(t, 10, log[1].Base)
}

func TestIsBusyError(t *testing.T) {
	assert.False(t, IsBusyError(nil))
	assert.False(t, IsCorruptionError(nil))
	assert.False(t, IsBusyError(assert.AnError))
}

func TestSQLiteFirstInsertLosesRace(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLiteFile(ctx, filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Save(ctx, "alice", testDoc(t, "alice", 10, 0))
	require.NoError(t, err)
	require.True(t, res.Accepted)

	// a writer that saw no row before the first insert committed
	data, err := encodeDocument(testDoc(t, "alice", 20, 0))
	require.NoError(t, err)
	require.NoError(t, s.withTx(ctx, func(tx *sql.Tx) error {
		res, err = insertFirst(ctx, tx, "alice", 20, data, time.Now().UnixMilli())
		return err
	}))
	assert.False(t, res.Accepted)
	assert.EqualValues(t, 10, res.CurrentVersion)

	loaded, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 10, loaded.Version)
}

func TestSQLiteCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.db")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("not a database "), 512), 0o644))

	_, err := OpenSQLiteFile(context.Background(), path, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, IsCorruptionError(err))
	assert.Contains(t, err.Error(), "restore a backup")
}
