package selection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackSelection(t *testing.T) {
	tr := NewTracker()
	assert.False(t, tr.IsSelected("a"))

	r := &Range{Start: 1, End: 4}
	tr.TrackSelection("a", r)
	r.Start = 99

	assert.True(t, tr.IsSelected("a"))
	sel, ok := tr.Tracked()
	require.True(t, ok)
	assert.Equal(t, 1, sel.Range.Start, "range is copied")

	tr.TrackSelection("b", nil)
	assert.False(t, tr.IsSelected("a"))
	assert.True(t, tr.IsSelected("b"))
}

func TestShouldSelectConsumesOnce(t *testing.T) {
	tr := NewTracker()
	tr.RequestSelect("new-item", SelectAll)

	_, ok := tr.ShouldSelect("other")
	assert.False(t, ok)

	sel, ok := tr.ShouldSelect("new-item")
	require.True(t, ok)
	assert.Equal(t, "new-item", sel.ItemID)
	assert.Equal(t, SelectAll, sel.Selector)

	_, ok = tr.ShouldSelect("new-item")
	assert.False(t, ok)
}

func TestRequestLastWriterWins(t *testing.T) {
	tr := NewTracker()
	tr.RequestSelect("a", SelectStart)
	tr.RequestSelect("b", SelectEnd)

	_, ok := tr.ShouldSelect("a")
	assert.False(t, ok)
	sel, ok := tr.ShouldSelect("b")
	require.True(t, ok)
	assert.Equal(t, "end", sel.Selector.String())
}

func TestForgetAndClear(t *testing.T) {
	tr := NewTracker()
	tr.TrackSelection("a", nil)
	tr.RequestSelect("a", SelectEnd)
	tr.Forget("a")
	assert.False(t, tr.IsSelected("a"))
	_, ok := tr.ShouldSelect("a")
	assert.False(t, ok)

	tr.TrackSelection("b", nil)
	tr.RequestSelect("c", SelectEnd)
	tr.Clear()
	_, ok = tr.Tracked()
	assert.False(t, ok)
	_, ok = tr.ShouldSelect("c")
	assert.False(t, ok)
}

func TestRequestSurvivesSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selection.toml")

	tr := NewTracker()
	tr.RequestSelect("new-item", SelectAll)
	require.NoError(t, tr.SaveRequest(path))

	next := NewTracker()
	require.NoError(t, next.LoadRequest(path))
	sel, ok := next.ShouldSelect("new-item")
	require.True(t, ok)
	assert.Equal(t, SelectAll, sel.Selector)

	require.NoError(t, next.SaveRequest(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "a consumed request removes the file")

	last := NewTracker()
	last.RequestSelect("stale", SelectEnd)
	require.NoError(t, last.LoadRequest(path))
	_, ok = last.ShouldSelect("stale")
	assert.False(t, ok, "loading replaces the pending request")
}

func TestLoadRequestRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	garbled := filepath.Join(dir, "garbled.toml")
	require.NoError(t, os.WriteFile(garbled, []byte("item = ["), 0o644))
	assert.Error(t, NewTracker().LoadRequest(garbled))

	unknown := filepath.Join(dir, "unknown.toml")
	require.NoError(t, os.WriteFile(unknown, []byte("item = \"a\"\nselector = \"middle\"\n"), 0o644))
	assert.Error(t, NewTracker().LoadRequest(unknown))

	sel, err := ParseSelector("start")
	require.NoError(t, err)
	assert.Equal(t, SelectStart, sel)
}
