// Package search parses outline queries and matches them against items.
//
// A query is a list of terms that must all match. Terms are words, "phrases",
// ~fuzzy words and /regexes/ over the item text, and filters:
//
//	state:urgent,soon  #urgent      item state
//	is:pinned                       pinned, hidden, focus, snoozed, done, open
//	d:2  children:>0                depth and number of children
//	c:>7d  m:<=2024-03-01  x:+1w    created, modified and closed dates
//	p:q  a:q  child:q  child*:q  s:q
//	                                parent, ancestor, child, descendant and
//	                                sibling matching the query q
//
// | separates alternatives, - negates a term, ( ) groups terms and a
// relation written as +child:q needs every related item to match q.
package search

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pstuifzand/minders/internal/model"
)

type parser struct {
	toks []token
	i    int
}

// ParseQuery parses a query. The empty query matches every item.
func ParseQuery(query string) (Expr, error) {
	toks, err := lex(query)
	if err != nil {
		return nil, err
	}
	if len(toks) == 1 {
		return matchAll{}, nil
	}

	p := &parser{toks: toks}
	e, err := p.alternatives()
	if err != nil {
		return nil, err
	}
	if tok := p.cur(); tok.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %s at %d", tok.kind, tok.pos)
	}
	return e, nil
}

func (p *parser) cur() token { return p.toks[p.i] }

func (p *parser) take() token {
	tok := p.toks[p.i]
	if tok.kind != tokEOF {
		p.i++
	}
	return tok
}

func (p *parser) alternatives() (Expr, error) {
	var alts anyOf
	for {
		e, err := p.terms()
		if err != nil {
			return nil, err
		}
		alts = append(alts, e)
		if p.cur().kind != tokOr {
			break
		}
		p.take()
	}
	if len(alts) == 1 {
		return alts[0], nil
	}
	return alts, nil
}

func (p *parser) terms() (Expr, error) {
	var all allOf
	for {
		switch p.cur().kind {
		case tokEOF, tokOr, tokClose:
			switch len(all) {
			case 0:
				tok := p.cur()
				return nil, fmt.Errorf("expected a term before %s at %d", tok.kind, tok.pos)
			case 1:
				return all[0], nil
			}
			return all, nil
		}
		e, err := p.term()
		if err != nil {
			return nil, err
		}
		all = append(all, e)
	}
}

func (p *parser) term() (Expr, error) {
	tok := p.take()
	switch tok.kind {
	case tokNot:
		if p.cur().kind == tokEOF {
			return nil, fmt.Errorf("nothing to negate at %d", tok.pos)
		}
		e, err := p.term()
		if err != nil {
			return nil, err
		}
		return not{e}, nil
	case tokOpen:
		e, err := p.alternatives()
		if err != nil {
			return nil, err
		}
		if p.take().kind != tokClose {
			return nil, fmt.Errorf("missing ) for ( at %d", tok.pos)
		}
		return e, nil
	case tokWord, tokPhrase:
		return newText(substring, tok.text)
	case tokFuzzy:
		return newText(fuzzyText, tok.text)
	case tokRegex:
		return newText(regexText, tok.text)
	case tokEOF, tokOr, tokClose:
		return nil, fmt.Errorf("unexpected %s at %d", tok.kind, tok.pos)
	}

	if tok.text == "" {
		return nil, fmt.Errorf("%s at %d needs a value", tok.kind, tok.pos)
	}
	switch tok.kind {
	case tokState:
		return parseStates(tok.text)
	case tokFlag:
		flag := strings.ToLower(tok.text)
		if _, ok := flagTests[flag]; !ok {
			return nil, fmt.Errorf("unknown flag %q", tok.text)
		}
		return flagIs(flag), nil
	case tokCompare:
		return parseCompare(tok.key, tok.text)
	case tokRelation:
		inner, err := ParseQuery(tok.text)
		if err != nil {
			return nil, fmt.Errorf("%s query at %d: %w", tok.key, tok.pos, err)
		}
		return relational{rel: relationByName(tok.key), every: tok.every, inner: inner}, nil
	}
	return nil, fmt.Errorf("unexpected %s at %d", tok.kind, tok.pos)
}

func relationByName(name string) relation {
	for r, n := range relationNames {
		if n == name {
			return relation(r)
		}
	}
	return relParent
}

func parseStates(list string) (stateIn, error) {
	var states stateIn
	for _, s := range strings.Split(list, ",") {
		st, err := model.ParseState(s)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}

// splitOp splits a comparison into its operator and value. No operator
// means equality.
func splitOp(criteria string) (cmpOp, string, error) {
	for _, op := range []cmpOp{opGe, opLe, opNe, opGt, opLt, opEq} {
		if v, ok := strings.CutPrefix(criteria, string(op)); ok {
			if v == "" {
				return "", "", fmt.Errorf("missing value after %s", op)
			}
			return op, v, nil
		}
	}
	return opEq, criteria, nil
}

func parseCompare(key, criteria string) (Expr, error) {
	op, v, err := splitOp(criteria)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if key == keyDepth || key == keyChildren {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s: %q is not a count", key, v)
		}
		return countCmp{key: key, op: op, n: n}, nil
	}
	ref, err := parseDateRef(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return dateCmp{key: key, op: op, ref: ref}, nil
}

// parseDateRef reads YYYY-MM-DD or a span such as 3d, -2w or +1m. Spans
// without + lie in the past.
func parseDateRef(v string) (dateRef, error) {
	if day, err := time.Parse(time.DateOnly, v); err == nil {
		return dateRef{day: day, text: v}, nil
	}

	sign, span := -1, v
	if rest, ok := strings.CutPrefix(span, "+"); ok {
		sign, span = 1, rest
	} else {
		span = strings.TrimPrefix(span, "-")
	}
	if len(span) < 2 {
		return dateRef{}, fmt.Errorf("invalid date %q", v)
	}
	n, err := strconv.Atoi(span[:len(span)-1])
	if err != nil || n < 0 {
		return dateRef{}, fmt.Errorf("invalid date %q", v)
	}
	n *= sign

	var offset func(time.Time) time.Time
	switch span[len(span)-1] {
	case 'h':
		offset = func(t time.Time) time.Time { return t.Add(time.Duration(n) * time.Hour) }
	case 'd':
		offset = func(t time.Time) time.Time { return t.AddDate(0, 0, n) }
	case 'w':
		offset = func(t time.Time) time.Time { return t.AddDate(0, 0, 7*n) }
	case 'm':
		offset = func(t time.Time) time.Time { return t.AddDate(0, n, 0) }
	case 'y':
		offset = func(t time.Time) time.Time { return t.AddDate(n, 0, 0) }
	default:
		return dateRef{}, fmt.Errorf("invalid date %q: unit must be h, d, w, m or y", v)
	}
	return dateRef{offset: offset, text: v}, nil
}
