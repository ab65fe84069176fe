package history

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddKeepsNewestUnique(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	entries, err := m.Load("search")
	require.NoError(t, err)
	assert.Empty(t, entries)

	for _, q := range []string{"state:urgent", "a:work", "state:urgent", ""} {
		require.NoError(t, m.Add("search", q))
	}
	entries, err = m.Load("search")
	require.NoError(t, err)
	assert.Equal(t, []string{"a:work", "state:urgent"}, entries)
}

func TestAddTrimsToLimit(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	m.limit = 3

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Add("search", fmt.Sprintf("q%d", i)))
	}
	entries, err := m.Load("search")
	require.NoError(t, err)
	assert.Equal(t, []string{"q2", "q3", "q4"}, entries)
}

func TestCorruptFileStartsOver(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "search.toml"), []byte("entries = [unclosed"), 0o644))

	entries, err := m.Load("search")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
