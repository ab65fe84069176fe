package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupManagerCreateBackup(t *testing.T) {
	bm, err := NewBackupManager(filepath.Join(t.TempDir(), "backups"))
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	path, err := bm.CreateBackup(testDoc(t, "alice", 3, 2), now)
	require.NoError(t, err)
	assert.Equal(t, "20240501_103000.000_alice.json", filepath.Base(path))

	doc, err := bm.ReadBackup(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", doc.OwnerID)
	assert.EqualValues(t, 3, doc.Version)
}

func TestCreateBackupNeverOverwrites(t *testing.T) {
	bm, err := NewBackupManager(t.TempDir())
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	first, err := bm.CreateBackup(testDoc(t, "alice", 1, 0), now)
	require.NoError(t, err)
	sameMilli, err := bm.CreateBackup(testDoc(t, "alice", 2, 1), now)
	require.NoError(t, err)
	sameSecond, err := bm.CreateBackup(testDoc(t, "alice", 3, 2), now.Add(400*time.Millisecond))
	require.NoError(t, err)

	assert.Equal(t, "20240501_103000.001_alice.json", filepath.Base(sameMilli))
	assert.Equal(t, "20240501_103000.400_alice.json", filepath.Base(sameSecond))

	doc, err := bm.ReadBackup(first)
	require.NoError(t, err)
	assert.EqualValues(t, 1, doc.Version, "the first backup is untouched")

	backups, err := bm.FindBackups("alice")
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, now.Add(400*time.Millisecond), backups[2].Timestamp)
}

func TestFindBackupsSortedPerOwner(t *testing.T) {
	bm, err := NewBackupManager(t.TempDir())
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, at := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		_, err := bm.CreateBackup(testDoc(t, "alice", int64(i+1), int64(i)), base.Add(at))
		require.NoError(t, err)
	}
	_, err = bm.CreateBackup(testDoc(t, "bob", 1, 0), base)
	require.NoError(t, err)

	backups, err := bm.FindBackups("alice")
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, base, backups[0].Timestamp)
	assert.Equal(t, base.Add(2*time.Hour), backups[2].Timestamp)
	for _, b := range backups {
		assert.Equal(t, "alice", b.OwnerID)
	}

	all, err := bm.FindBackups("")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestPruneKeepsNewest(t *testing.T) {
	bm, err := NewBackupManager(t.TempDir())
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := bm.CreateBackup(testDoc(t, "alice", int64(i+1), int64(i)), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	removed, err := bm.Prune("alice", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	backups, err := bm.FindBackups("alice")
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, base.Add(3*time.Minute), backups[0].Timestamp)
}

func TestParseBackupFilename(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		owner   string
		wantErr bool
	}{
		{"valid", "20240501_103000.250_alice.json", "alice", false},
		{"seconds only", "20240501_103000_alice.json", "alice", false},
		{"owner with underscore", "20240501_103000.000_a_b.json", "a_b", false},
		{"no owner", "20240501_103000.000.json", "", true},
		{"too short", "x.json", "", true},
		{"bad timestamp", "2024XX01_103000_alice.json", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := parseBackupFilename(tt.file, "/tmp/"+tt.file)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, meta.OwnerID)
		})
	}
}
