package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pstuifzand/minders/internal/model"
	"github.com/pstuifzand/minders/internal/outline"
)

func testTree() *outline.Tree {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	o := model.NewOutline("alice", "root", now)
	add := func(parentID, id, text string, st model.State) *model.Item {
		it := model.NewItem(id, text, now)
		it.State = st
		it.ParentID = parentID
		o.Items[id] = it
		o.Items[parentID].ChildIDs = append(o.Items[parentID].ChildIDs, id)
		return it
	}
	add("root", "1", "First Item", model.StateCurrent)
	add("1", "1.1", "Nested Item 1", model.StateNew)
	add("1", "1.2", "Nested Item 2", model.StateClosed)
	add("1.2", "1.2.1", "Deep Item", model.StateNew)
	add("root", "2", "Second Item", model.StateUrgent)
	add("root", "3", "Secret", model.StateLater).Hidden = true
	add("2", "2.1", "line one\nline two", model.StateNew)
	return outline.New(o)
}

func TestWriteMarkdown(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, WriteMarkdown(&sb, testTree(), Options{}))

	expected := `- First Item
  - Nested Item 1
- Second Item
  - line one
    line two
`
	assert.Equal(t, expected, sb.String())
}

func TestWriteMarkdownWithEverything(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, WriteMarkdown(&sb, testTree(), Options{IncludeDone: true, IncludeHidden: true, ShowState: true}))

	lines := strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")
	assert.Equal(t, "- [current] First Item", lines[0])
	assert.Equal(t, "  - [closed] Nested Item 2", lines[2])
	assert.Equal(t, "    - [new] Deep Item", lines[3])
	assert.Equal(t, "- [later] Secret", lines[len(lines)-1])
}

func TestExportToMarkdown(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "test_output.md")
	require.NoError(t, ExportToMarkdown(testTree(), outputFile, Options{}))

	content, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "- First Item\n"))

	assert.Error(t, ExportToMarkdown(testTree(), filepath.Join(t.TempDir(), "missing", "out.md"), Options{}))
}
