package textimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pstuifzand/minders/internal/seed"
)

func TestMarkdown(t *testing.T) {
	doc, err := Parse(`# Home
- Groceries
  - [soon] Milk
  - [x] Bread
- Fix the bike
  front tyre is flat
# Work
- [urgent] Write report
`, FormatMarkdown)
	require.NoError(t, err)

	want := seed.Document{Items: []seed.Node{
		{Text: "Home", Children: []seed.Node{
			{Text: "Groceries", Children: []seed.Node{
				{Text: "Milk", State: "soon"},
				{Text: "Bread", State: "closed"},
			}},
			{Text: "Fix the bike\nfront tyre is flat"},
		}},
		{Text: "Work", Children: []seed.Node{
			{Text: "Write report", State: "urgent"},
		}},
	}}
	assert.Equal(t, want, doc)
}

func TestMarkdownWithoutHeaders(t *testing.T) {
	doc, err := Parse("- a\n    - too deep\n- b\n- [later] c\n- [someday] d\n", FormatMarkdown)
	require.NoError(t, err)

	want := seed.Document{Items: []seed.Node{
		{Text: "a", Children: []seed.Node{{Text: "too deep"}}},
		{Text: "b"},
		{Text: "c", State: "later"},
		{Text: "[someday] d"},
	}}
	assert.Equal(t, want, doc)
}

func TestIndentedText(t *testing.T) {
	doc, err := Parse(`Groceries
    Milk
    Bread
        wholegrain
  Eggs
Call mom

	[urgent] Renew passport
`, FormatIndentedText)
	require.NoError(t, err)

	want := seed.Document{Items: []seed.Node{
		{Text: "Groceries", Children: []seed.Node{
			{Text: "Milk"},
			{Text: "Bread", Children: []seed.Node{{Text: "wholegrain"}}},
			{Text: "Eggs"},
		}},
		{Text: "Call mom", Children: []seed.Node{
			{Text: "Renew passport", State: "urgent"},
		}},
	}}
	assert.Equal(t, want, doc)
}

func TestYAMLAndFormats(t *testing.T) {
	doc, err := Parse("items:\n  - text: x\n    state: soon\n", FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "soon", doc.Items[0].State)

	_, err = Parse("x", FormatAuto)
	assert.Error(t, err)

	tests := []struct {
		file string
		want ImportFormat
	}{
		{"outline.yaml", FormatYAML},
		{"outline.YML", FormatYAML},
		{"notes.md", FormatMarkdown},
		{"todo.txt", FormatIndentedText},
		{"todo", FormatIndentedText},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectFormat(tt.file), tt.file)
	}

	f, err := ParseFormat("md")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)
	_, err = ParseFormat("docx")
	assert.Error(t, err)
}
