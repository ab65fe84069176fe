package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pstuifzand/minders/internal/model"
	"github.com/pstuifzand/minders/internal/storage"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func addItem(o *model.Outline, parentID, id, text string) {
	it := model.NewItem(id, text, t0)
	it.ParentID = parentID
	o.Items[id] = it
	parent := o.Items[parentID]
	parent.ChildIDs = append(parent.ChildIDs, id)
}

// backups writes three backups of alice: the base outline, one edit, then no
// change at all.
func backups(t *testing.T) (*storage.BackupManager, []string) {
	t.Helper()
	bm, err := storage.NewBackupManager(t.TempDir())
	require.NoError(t, err)

	first := model.NewOutline("alice", "root", t0)
	addItem(first, "root", "a", "Groceries")
	addItem(first, "a", "a1", "Milk")

	second := first.Clone()
	second.Items["a1"].Text = "Oat milk"
	addItem(second, "root", "b", "Call mom")

	var paths []string
	for i, o := range []*model.Outline{first, second, second} {
		doc, err := model.Serialize(o)
		require.NoError(t, err)
		path, err := bm.CreateBackup(doc, t0.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		paths = append(paths, path)
	}
	return bm, paths
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	err := app.Run(context.Background(), append([]string{"outline-diff"}, args...))
	return buf.String(), err
}

func TestTwoFiles(t *testing.T) {
	_, paths := backups(t)

	out, err := run(t, paths[0], paths[1])
	require.NoError(t, err)
	assert.Contains(t, out, "New Items:")
	assert.Contains(t, out, "Call mom")
	assert.Contains(t, out, "Oat milk")
	assert.Contains(t, out, "1 modified, 1 added, 0 deleted")

	out, err = run(t, "-s", paths[0], paths[1])
	require.NoError(t, err)
	assert.Equal(t, "=== Summary ===\n  1 modified, 1 added, 0 deleted\n", out)

	out, err = run(t, paths[1], paths[2])
	require.NoError(t, err)
	assert.Equal(t, "no changes\n", out)
}

func TestHistory(t *testing.T) {
	bm, _ := backups(t)

	out, err := run(t, "--dir", bm.Dir(), "--owner", "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "### "))
	assert.Contains(t, out, "### 2024-05-01 09:01:00")
	assert.True(t, strings.HasSuffix(out, "### 2024-05-01 09:02:00\nno changes\n"))

	out, err = run(t, "--dir", bm.Dir(), "--owner", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "found 0")
}

func TestArguments(t *testing.T) {
	_, err := run(t, "only-one.json")
	assert.Error(t, err)

	_, err = run(t, "--dir", t.TempDir())
	assert.Error(t, err, "history mode needs an owner")

	_, err = run(t, "missing-a.json", "missing-b.json")
	assert.Error(t, err)
}
