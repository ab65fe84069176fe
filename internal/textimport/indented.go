package textimport

import (
	"bufio"
	"strings"

	"github.com/pstuifzand/minders/internal/seed"
)

// IndentedTextParser imports plain text files with indentation-based hierarchy
type IndentedTextParser struct{}

func (p *IndentedTextParser) Name() string {
	return "Indented Text"
}

// Parse converts indented text to an outline document. Any deeper
// indentation than the line above nests one level; a shallower one goes
// back to the last line with at most that indentation.
func (p *IndentedTextParser) Parse(content string) (seed.Document, error) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	var b outlineBuilder
	var indents []int // indentation of each node on the current path

	for scanner.Scan() {
		line := scanner.Text()
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		indent := indentWidth(line)

		depth := len(indents)
		for depth > 0 && indents[depth-1] >= indent {
			depth--
		}
		indents = append(indents[:depth], indent)

		n := &node{}
		n.text, n.state = splitState(text)
		b.add(depth, n)
	}

	if err := scanner.Err(); err != nil {
		return seed.Document{}, err
	}
	return b.document(), nil
}
