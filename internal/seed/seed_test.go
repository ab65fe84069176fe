package seed

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pstuifzand/minders/internal/model"
	"github.com/pstuifzand/minders/internal/outline"
)

func sequence() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id%d", n)
	}
}

func TestDefaultOutline(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	o, err := Default("alice", now, sequence())
	require.NoError(t, err)
	assert.Equal(t, "alice", o.OwnerID)
	assert.Empty(t, model.Validate(o))

	top := o.Root().ChildIDs
	require.Len(t, top, 3)
	welcome := o.Items[top[0]]
	assert.Equal(t, "Welcome to Minders", welcome.Text)
	assert.Equal(t, model.StateCurrent, welcome.State)
	assert.True(t, welcome.Pinned)
	assert.Len(t, welcome.ChildIDs, 3)
	assert.Equal(t, model.StateNew, o.Items[welcome.ChildIDs[0]].State)
}

func TestParseRejectsUnknownState(t *testing.T) {
	_, err := Parse([]byte("items:\n  - text: x\n    state: someday\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("items: [unclosed"))
	assert.Error(t, err)
}

func TestImportAndCapture(t *testing.T) {
	o := model.NewOutline("alice", "root", time.Now())
	tree := outline.New(o, outline.WithIDGenerator(sequence()))

	doc, err := Parse([]byte(`
items:
  - text: Groceries
    state: soon
    children:
      - text: Milk
      - text: Bread
        state: closed
  - text: Call mom
    state: urgent
    pinned: true
`))
	require.NoError(t, err)

	n, err := Import(tree, "root", doc)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.Empty(t, tree.Validate())

	top := tree.GetTopItems(false)
	require.Len(t, top, 2)
	assert.Equal(t, "Groceries", top[0].Text)
	assert.Equal(t, model.StateSoon, top[0].State)
	assert.True(t, top[1].Pinned)

	captured, err := Capture(tree, "root", false)
	require.NoError(t, err)
	require.Len(t, captured.Items, 2)
	assert.Len(t, captured.Items[0].Children, 1, "closed items are skipped")

	all, err := Capture(tree, "root", true)
	require.NoError(t, err)
	assert.Len(t, all.Items[0].Children, 2)

	data, err := Marshal(all)
	require.NoError(t, err)
	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, all, back)
}
