package mbox

import (
	"fmt"
	"strings"
	"unicode"
)

// document is the searchable view of one message. All fields are lower case.
type document struct {
	from    string
	to      string
	subject string
	body    string
}

func (d *document) field(name string) string {
	switch name {
	case "from":
		return d.from
	case "to":
		return d.to
	case "subject":
		return d.subject
	default:
		return d.from + "\n" + d.to + "\n" + d.subject + "\n" + d.body
	}
}

// Matcher reports whether a message satisfies a search query.
type Matcher interface {
	match(d *document) bool
}

type term struct {
	field string
	value string
}

func (t term) match(d *document) bool {
	return strings.Contains(d.field(t.field), t.value)
}

type allOf []Matcher

func (a allOf) match(d *document) bool {
	for _, m := range a {
		if !m.match(d) {
			return false
		}
	}
	return true
}

type anyOf []Matcher

func (a anyOf) match(d *document) bool {
	for _, m := range a {
		if m.match(d) {
			return true
		}
	}
	return false
}

type not struct{ m Matcher }

func (n not) match(d *document) bool {
	return !n.m.match(d)
}

var knownFields = map[string]bool{"from": true, "to": true, "subject": true}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokPhrase
	tokField
	tokNot
	tokOr
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(q string) ([]token, error) {
	var toks []token
	rs := []rune(q)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen})
			i++
		case r == '"':
			end := i + 1
			for end < len(rs) && rs[end] != '"' {
				end++
			}
			if end == len(rs) {
				return nil, fmt.Errorf("unterminated phrase at offset %d", i)
			}
			toks = append(toks, token{kind: tokPhrase, text: string(rs[i+1 : end])})
			i = end + 1
		case r == '-' && i+1 < len(rs) && !unicode.IsSpace(rs[i+1]):
			toks = append(toks, token{kind: tokNot})
			i++
		default:
			end := i
			for end < len(rs) && !unicode.IsSpace(rs[end]) && !strings.ContainsRune(`()"`, rs[end]) {
				end++
			}
			word := string(rs[i:end])
			i = end

			if name, rest, ok := strings.Cut(word, ":"); ok && knownFields[strings.ToLower(name)] {
				toks = append(toks, token{kind: tokField, text: strings.ToLower(name)})
				if rest != "" {
					toks = append(toks, token{kind: tokWord, text: rest})
				}
				continue
			}
			if word == "OR" {
				toks = append(toks, token{kind: tokOr})
				continue
			}
			toks = append(toks, token{kind: tokWord, text: word})
		}
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

// ParseQuery compiles the supported subset of the Gmail search syntax: field
// prefixes from:, to: and subject:, bare words, quoted phrases, parenthesized
// groups, OR between adjacent terms and - negation. Matching is case-insensitive
// substring matching. An empty query matches everything.
func ParseQuery(q string) (Matcher, error) {
	toks, err := tokenize(q)
	if err != nil {
		return nil, fmt.Errorf("parsing query %q: %w", q, err)
	}

	p := &parser{toks: toks}
	m, err := p.sequence("")
	if err != nil {
		return nil, fmt.Errorf("parsing query %q: %w", q, err)
	}
	if _, ok := p.peek(); ok {
		return nil, fmt.Errorf("parsing query %q: unbalanced parenthesis", q)
	}
	return m, nil
}

func (p *parser) sequence(field string) (Matcher, error) {
	var items allOf
	pendingOr := false
	for {
		tok, ok := p.peek()
		if !ok || tok.kind == tokRParen {
			break
		}
		if tok.kind == tokOr {
			pendingOr = true
			p.pos++
			continue
		}

		m, err := p.unary(field)
		if err != nil {
			return nil, err
		}
		if pendingOr && len(items) > 0 {
			last := items[len(items)-1]
			if alt, ok := last.(anyOf); ok {
				items[len(items)-1] = append(alt, m)
			} else {
				items[len(items)-1] = anyOf{last, m}
			}
		} else {
			items = append(items, m)
		}
		pendingOr = false
	}
	return items, nil
}

func (p *parser) unary(field string) (Matcher, error) {
	negate := false
	if tok, _ := p.peek(); tok.kind == tokNot {
		negate = true
		p.pos++
	}
	if tok, ok := p.peek(); ok && tok.kind == tokField {
		field = tok.text
		p.pos++
	}

	m, err := p.primary(field)
	if err != nil {
		return nil, err
	}
	if negate {
		return not{m}, nil
	}
	return m, nil
}

func (p *parser) primary(field string) (Matcher, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of query")
	}
	p.pos++

	switch tok.kind {
	case tokWord, tokPhrase:
		return term{field: field, value: strings.ToLower(tok.text)}, nil
	case tokLParen:
		m, err := p.sequence(field)
		if err != nil {
			return nil, err
		}
		if next, ok := p.peek(); !ok || next.kind != tokRParen {
			return nil, fmt.Errorf("unbalanced parenthesis")
		}
		p.pos++
		return m, nil
	default:
		return nil, fmt.Errorf("unexpected token at position %d", p.pos-1)
	}
}
