package diff

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pstuifzand/minders/internal/model"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func add(o *model.Outline, parentID, id, text string) *model.Item {
	it := model.NewItem(id, text, t0)
	it.ParentID = parentID
	o.Items[id] = it
	parent := o.Items[parentID]
	parent.ChildIDs = append(parent.ChildIDs, id)
	return it
}

func base() *model.Outline {
	o := model.NewOutline("alice", "root", t0)
	add(o, "root", "a", "Groceries")
	add(o, "a", "a1", "Milk")
	add(o, "root", "b", "Call mom")
	add(o, "root", "c", "Old task")
	return o
}

func TestComputeDiff(t *testing.T) {
	before := base()
	after := before.Clone()

	after.Items["a1"].Text = "Oat milk"
	after.Items["b"].State = model.StateUrgent
	after.Items["b"].Pinned = true
	after.Items["a"].Modified = t0.Add(time.Hour)
	delete(after.Items, "c")
	after.Root().ChildIDs = []string{"a", "b"}
	add(after, "a", "a2", "Bread")

	result := ComputeDiff(before, after)

	require.Len(t, result.NewItems, 1)
	assert.Equal(t, "a", result.NewItems["a2"].ParentID)
	assert.Equal(t, 1, result.NewItems["a2"].Position)

	require.Len(t, result.DeletedItems, 1)
	assert.Contains(t, result.DeletedItems, "c")

	require.Len(t, result.ModifiedItems, 3)
	assert.True(t, result.ModifiedItems["a1"].TextChanged)
	b := result.ModifiedItems["b"]
	assert.True(t, b.StateChanged)
	assert.Equal(t, []string{"pinned"}, b.FlagsAdded)
	assert.False(t, b.StructureChanged)
	assert.True(t, result.ModifiedItems["a"].ModifiedChanged)
}

func TestIdenticalOutlines(t *testing.T) {
	o := base()
	result := ComputeDiff(o, o.Clone())
	assert.True(t, result.Empty())
	assert.Empty(t, BuildDiffLines(result, true))
}

func TestMovedItem(t *testing.T) {
	before := base()
	after := before.Clone()
	after.Items["a"].ChildIDs = nil
	after.Items["a1"].ParentID = "root"
	after.Root().ChildIDs = []string{"a1", "a", "b", "c"}

	result := ComputeDiff(before, after)
	change := result.ModifiedItems["a1"]
	require.NotNil(t, change)
	assert.True(t, change.StructureChanged)
	assert.Equal(t, "a", change.OldItem.ParentID)
	assert.Equal(t, "", change.Item.ParentID)

	var sb strings.Builder
	require.NoError(t, WriteLines(&sb, BuildDiffLines(result, false)))
	assert.Contains(t, sb.String(), "MOVED: from parent a to parent root")
}

func TestBuildDiffLinesHidesTouchOnlyChanges(t *testing.T) {
	before := base()
	after := before.Clone()
	after.Items["b"].Modified = t0.Add(time.Minute)

	result := ComputeDiff(before, after)
	require.Len(t, result.ModifiedItems, 1)
	assert.Empty(t, BuildDiffLines(result, false))

	var sb strings.Builder
	require.NoError(t, WriteLines(&sb, BuildDiffLines(result, true)))
	out := sb.String()
	assert.Contains(t, out, "  b: Call mom\n")
	assert.Contains(t, out, "MODIFIED: 2024-05-01T09:00:00 → 2024-05-01T09:01:00")
	assert.Contains(t, out, "  1 modified, 0 added, 0 deleted")
}
