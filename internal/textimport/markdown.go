package textimport

import (
	"bufio"
	"strings"

	"github.com/pstuifzand/minders/internal/model"
	"github.com/pstuifzand/minders/internal/seed"
)

// MarkdownParser imports markdown files. Headers open a level, list items
// nest below the last header by indentation, and other lines are appended
// to the text of the item above them.
type MarkdownParser struct{}

func (p *MarkdownParser) Name() string {
	return "Markdown"
}

// Parse converts markdown content to an outline document
func (p *MarkdownParser) Parse(content string) (seed.Document, error) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	var b outlineBuilder
	headerDepth := 0 // depth of the children of the last header

	for scanner.Scan() {
		line := scanner.Text()

		// Skip empty lines
		if strings.TrimSpace(line) == "" {
			continue
		}

		if level, text := parseHeader(line); level >= 0 {
			n := &node{}
			n.text, n.state = splitState(text)
			b.add(level, n)
			headerDepth = min(level, len(b.stack)-1) + 1
			continue
		}

		if level, text := parseListItem(line); level >= 0 {
			n := &node{}
			text, n.state = parseCheckbox(text)
			n.text, n.state = splitStateKeep(text, n.state)
			b.add(headerDepth+level, n)
			continue
		}

		// Continuation of a multi-line item
		text := strings.TrimSpace(line)
		if last := b.last(); last != nil {
			last.text += "\n" + text
		} else {
			b.add(0, &node{text: text})
		}
	}

	if err := scanner.Err(); err != nil {
		return seed.Document{}, err
	}
	return b.document(), nil
}

// splitStateKeep is splitState that keeps an already known state
func splitStateKeep(text, state string) (string, string) {
	t, st := splitState(text)
	if st == "" {
		return t, state
	}
	return t, st
}

// parseHeader extracts level and text from markdown header
func parseHeader(line string) (level int, text string) {
	if !strings.HasPrefix(line, "#") {
		return -1, ""
	}
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level < len(line) && line[level] != ' ' {
		return -1, ""
	}
	return level - 1, strings.TrimSpace(line[level:]) // Convert to 0-based level
}

// parseListItem extracts indentation level and text from list item
func parseListItem(line string) (level int, text string) {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) > 2 && (trimmed[0] == '-' || trimmed[0] == '*' || trimmed[0] == '+') && trimmed[1] == ' ' {
		return indentWidth(line) / 2, strings.TrimSpace(trimmed[2:]) // 2 spaces per level
	}
	return -1, ""
}

// parseCheckbox maps task list boxes to states
func parseCheckbox(text string) (string, string) {
	switch {
	case strings.HasPrefix(text, "[ ] "):
		return text[4:], ""
	case strings.HasPrefix(text, "[x] "), strings.HasPrefix(text, "[X] "):
		return text[4:], string(model.StateClosed)
	}
	return text, ""
}
