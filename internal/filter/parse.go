package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse compiles a filter expression in the target config's filter
// language into a Filter tree. Grammar (case-insensitive keywords):
//
//	expr    := orExpr
//	orExpr  := andExpr ("OR" andExpr)*
//	andExpr := unary ("AND" unary)*
//	unary   := "NOT" unary | primary
//	primary := "(" expr ")" | "GROUP" "(" expr ")" | field "~" string | "TYPE" "=" string
//	field   := "Group" | "Name" | "Title" | "Url" | "Input" | "Type" | "Caption"
//
// Strings are double-quoted; "~" values compile as regular expressions.
// asciiFold is passed on to FieldRegex, which stores no flag on the node;
// folding for match_as_ascii happens when Eval is called with asciiFold set.
func Parse(src string, asciiFold bool) (*Filter, error) {
	p := &parser{toks: tokenize(src), asciiFold: asciiFold}
	f, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("filter: unexpected trailing token %q", p.toks[p.pos].text)
	}
	return f, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokLParen
	tokRParen
	tokTilde
	tokEquals
	tokEOF
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(src string) []token {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == '~':
			toks = append(toks, token{tokTilde, "~"})
			i++
		case c == '=':
			toks = append(toks, token{tokEquals, "="})
			i++
		case c == '"':
			j := i + 1
			for j < len(src) && src[j] != '"' {
				if src[j] == '\\' && j+1 < len(src) {
					j++
				}
				j++
			}
			if j >= len(src) {
				toks = append(toks, token{tokString, src[i+1:]})
				i = len(src)
				break
			}
			raw := src[i+1 : j]
			toks = append(toks, token{tokString, strings.ReplaceAll(raw, `\"`, `"`)})
			i = j + 1
		default:
			j := i
			for j < len(src) && !strings.ContainsRune(" \t\n\r()~=\"", rune(src[j])) {
				j++
			}
			toks = append(toks, token{tokIdent, src[i:j]})
			i = j
		}
	}
	return toks
}

type parser struct {
	toks      []token
	pos       int
	asciiFold bool
}

func (p *parser) peek() token {
	if p.pos >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) parseOr() (*Filter, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for isKeyword(p.peek(), "OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or(left, right)
	}
	return left, nil
}

func (p *parser) parseAnd() (*Filter, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for isKeyword(p.peek(), "AND") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = And(left, right)
	}
	return left, nil
}

func (p *parser) parseUnary() (*Filter, error) {
	if isKeyword(p.peek(), "NOT") {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not(inner), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*Filter, error) {
	tok := p.peek()
	switch {
	case tok.kind == tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("filter: expected ')' at token %d", p.pos)
		}
		p.next()
		return inner, nil

	case tok.kind == tokIdent && strings.EqualFold(tok.text, "GROUP"):
		p.next()
		if p.peek().kind != tokLParen {
			return nil, fmt.Errorf("filter: expected '(' after GROUP")
		}
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("filter: expected ')' to close GROUP")
		}
		p.next()
		return Group(inner), nil

	case tok.kind == tokIdent && strings.EqualFold(tok.text, "TYPE"):
		p.next()
		if p.peek().kind != tokEquals {
			return nil, fmt.Errorf("filter: expected '=' after TYPE")
		}
		p.next()
		val := p.next()
		if val.kind != tokString {
			return nil, fmt.Errorf("filter: expected quoted type name after TYPE =")
		}
		return TypeEq(val.text), nil

	case tok.kind == tokIdent:
		field, err := fieldFromIdent(tok.text)
		if err != nil {
			return nil, err
		}
		p.next()
		if p.peek().kind != tokTilde {
			return nil, fmt.Errorf("filter: expected '~' after field %s", tok.text)
		}
		p.next()
		val := p.next()
		if val.kind != tokString {
			return nil, fmt.Errorf("filter: expected quoted regex after %s ~", tok.text)
		}
		return FieldRegex(field, val.text, p.asciiFold)

	default:
		return nil, fmt.Errorf("filter: unexpected token at position %d", p.pos)
	}
}

func isKeyword(t token, kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func fieldFromIdent(s string) (Field, error) {
	switch strings.ToLower(s) {
	case "group":
		return FieldGroup, nil
	case "name":
		return FieldName, nil
	case "title":
		return FieldTitle, nil
	case "url":
		return FieldURL, nil
	case "input":
		return FieldInput, nil
	case "type":
		return FieldType, nil
	case "caption":
		return FieldCaption, nil
	default:
		return "", fmt.Errorf("filter: unknown field %q", strconv.Quote(s))
	}
}
