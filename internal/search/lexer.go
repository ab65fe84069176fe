package search

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF      tokenKind = iota
	tokWord               // plain text
	tokPhrase             // "quoted text"
	tokFuzzy              // ~term
	tokRegex              // /pattern/
	tokState              // state:a,b or #a
	tokFlag               // is:flag
	tokCompare            // d:, children:, c:, m:, x:
	tokRelation           // p:, a:, child:, child*:, s:
	tokOr                 // |
	tokNot                // -
	tokOpen               // (
	tokClose              // )
)

var tokenNames = map[tokenKind]string{
	tokEOF: "end of query", tokWord: "word", tokPhrase: "phrase", tokFuzzy: "fuzzy term",
	tokRegex: "regex", tokState: "state", tokFlag: "flag", tokCompare: "comparison",
	tokRelation: "relation", tokOr: "|", tokNot: "-", tokOpen: "(", tokClose: ")",
}

func (k tokenKind) String() string { return tokenNames[k] }

type token struct {
	kind  tokenKind
	pos   int
	key   string // canonical key of comparisons and relations
	text  string // term, pattern or the value after the key
	every bool   // relation prefixed with +
}

type keySpec struct {
	kind tokenKind
	key  string
}

const (
	keyDepth    = "d"
	keyChildren = "children"
	keyCreated  = "c"
	keyModified = "m"
	keyClosed   = "x"
)

// keys maps every spelling of a filter key to its token
var keys = map[string]keySpec{
	"d":          {tokCompare, keyDepth},
	"children":   {tokCompare, keyChildren},
	"c":          {tokCompare, keyCreated},
	"m":          {tokCompare, keyModified},
	"x":          {tokCompare, keyClosed},
	"closed":     {tokCompare, keyClosed},
	"state":      {tokState, ""},
	"st":         {tokState, ""},
	"is":         {tokFlag, ""},
	"p":          {tokRelation, "parent"},
	"parent":     {tokRelation, "parent"},
	"a":          {tokRelation, "ancestor"},
	"ancestor":   {tokRelation, "ancestor"},
	"p*":         {tokRelation, "ancestor"},
	"parent*":    {tokRelation, "ancestor"},
	"child":      {tokRelation, "child"},
	"child*":     {tokRelation, "descendant"},
	"descendant": {tokRelation, "descendant"},
	"s":          {tokRelation, "sibling"},
	"sibling":    {tokRelation, "sibling"},
}

type lexer struct {
	src  string
	pos  int
	toks []token
}

// lex splits a query into tokens. The last token is always tokEOF.
func lex(src string) ([]token, error) {
	l := &lexer{src: src}
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		l.toks = append(l.toks, tok)
		if tok.kind == tokEOF {
			return l.toks, nil
		}
	}
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

// ends reports whether c ends a bare word
func ends(c byte) bool { return isSpace(c) || c == '|' || c == '(' || c == ')' }

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	start := l.pos
	if start >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}

	switch l.src[start] {
	case '(':
		l.pos++
		return token{kind: tokOpen, pos: start}, nil
	case ')':
		l.pos++
		return token{kind: tokClose, pos: start}, nil
	case '|':
		l.pos++
		return token{kind: tokOr, pos: start}, nil
	case '-':
		l.pos++
		return token{kind: tokNot, pos: start}, nil
	case '+':
		l.pos++
		tok, err := l.word()
		if err != nil || tok.kind != tokRelation {
			// a plain + only joins terms
			return tok, err
		}
		tok.pos, tok.every = start, true
		return tok, nil
	case '"':
		end := strings.IndexByte(l.src[start+1:], '"')
		if end < 0 {
			return token{}, fmt.Errorf("unterminated quote at %d", start)
		}
		l.pos = start + 1 + end + 1
		return token{kind: tokPhrase, pos: start, text: l.src[start+1 : start+1+end]}, nil
	case '/':
		return l.regex()
	case '~':
		l.pos++
		term := l.run()
		if term == "" {
			return token{kind: tokWord, pos: start, text: "~"}, nil
		}
		return token{kind: tokFuzzy, pos: start, text: term}, nil
	case '#':
		l.pos++
		states := l.run()
		if states == "" {
			return token{kind: tokWord, pos: start, text: "#"}, nil
		}
		return token{kind: tokState, pos: start, text: states}, nil
	}
	return l.word()
}

// run consumes a bare word
func (l *lexer) run() string {
	start := l.pos
	for l.pos < len(l.src) && !ends(l.src[l.pos]) {
		l.pos++
	}
	return l.src[start:l.pos]
}

// word reads a bare word, which is a filter when it starts with a known key
func (l *lexer) word() (token, error) {
	start := l.pos
	w := l.run()
	name, value, found := strings.Cut(w, ":")
	spec, known := keys[strings.ToLower(name)]
	if !found || !known {
		if w == "" {
			return l.next()
		}
		return token{kind: tokWord, pos: start, text: w}, nil
	}

	tok := token{kind: spec.kind, pos: start, key: spec.key, text: value}
	if spec.kind == tokRelation && value == "" && l.pos < len(l.src) && l.src[l.pos] == '(' {
		group, err := l.group()
		if err != nil {
			return token{}, err
		}
		tok.text = group
	}
	return tok, nil
}

// group consumes a parenthesized query, keeping the parentheses
func (l *lexer) group() (string, error) {
	start, depth := l.pos, 0
	for ; l.pos < len(l.src); l.pos++ {
		switch l.src[l.pos] {
		case '"':
			end := strings.IndexByte(l.src[l.pos+1:], '"')
			if end < 0 {
				return "", fmt.Errorf("unterminated quote at %d", l.pos)
			}
			l.pos += end + 1
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				l.pos++
				return l.src[start:l.pos], nil
			}
		}
	}
	return "", fmt.Errorf("missing ) for ( at %d", start)
}

// regex reads /pattern/; \/ is a literal slash
func (l *lexer) regex() (token, error) {
	start := l.pos
	var b strings.Builder
	for l.pos = start + 1; l.pos < len(l.src); l.pos++ {
		c := l.src[l.pos]
		if c == '\\' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/' {
			b.WriteByte('/')
			l.pos++
			continue
		}
		if c == '/' {
			l.pos++
			if b.Len() == 0 {
				return token{}, fmt.Errorf("empty regex at %d", start)
			}
			return token{kind: tokRegex, pos: start, text: b.String()}, nil
		}
		b.WriteByte(c)
	}
	return token{}, fmt.Errorf("unterminated regex at %d", start)
}
