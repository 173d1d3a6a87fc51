// Package condition evaluates the small boolean expressions used for
// survey branching. The grammar is deliberately closed: equality and
// ordering comparisons, and/or/not, parentheses, and literals compared
// against session context variables. There is no function call syntax, no
// indexing, and no membership operator; authors express "is one of" as a
// disjunction of equality checks.
package condition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrUndefinedVariable is wrapped by evaluation errors caused by an
// identifier missing from the context. Callers typically skip the
// conditional rather than failing the whole resolution.
var ErrUndefinedVariable = errors.New("undefined variable")

// Eval evaluates expr against vars. A non-boolean result is coerced to a
// boolean by truthiness (non-empty string, non-zero number) rather than
// rejected, matching how survey authors tend to write shortcuts like
// "email" instead of "email != ''".
func Eval(expr string, vars map[string]string) (bool, error) {
	toks, err := lex(expr)
	if err != nil {
		return false, err
	}
	p := &parser{toks: toks, vars: vars}
	v, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if !p.done() {
		return false, fmt.Errorf("unexpected %q after expression", p.peek().text)
	}
	return v.truthy(), nil
}

// --- values ---

type valueKind int

const (
	kindString valueKind = iota
	kindNumber
	kindBool
)

type value struct {
	kind valueKind
	s    string
	n    float64
	b    bool
}

func stringValue(s string) value  { return value{kind: kindString, s: s} }
func numberValue(n float64) value { return value{kind: kindNumber, n: n} }
func boolValue(b bool) value      { return value{kind: kindBool, b: b} }

func (v value) truthy() bool {
	switch v.kind {
	case kindBool:
		return v.b
	case kindNumber:
		return v.n != 0
	default:
		return v.s != ""
	}
}

// asNumber attempts numeric coercion. Strings parse with strconv so that
// context values (always stored as strings) compare numerically.
func (v value) asNumber() (float64, bool) {
	switch v.kind {
	case kindNumber:
		return v.n, true
	case kindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	default:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		return n, err == nil
	}
}

func (v value) text() string {
	switch v.kind {
	case kindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case kindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// equal compares numerically when both sides coerce to numbers and at
// least one side is a number, otherwise by text. Mismatched types are
// simply unequal, never an error.
func equal(a, b value) bool {
	if a.kind == kindNumber || b.kind == kindNumber {
		an, aok := a.asNumber()
		bn, bok := b.asNumber()
		if aok && bok {
			return an == bn
		}
		return false
	}
	if a.kind == kindBool || b.kind == kindBool {
		// Context values are strings, so "done == true" compares the
		// stored text against the literal's canonical form.
		return a.text() == b.text()
	}
	return a.s == b.s
}

// --- lexer ---

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokOp    // == != < > <= >=
	tokParen // ( )
	tokEOF
)

type token struct {
	kind tokenKind
	text string
}

func lex(input string) ([]token, error) {
	var toks []token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(' || r == ')':
			toks = append(toks, token{tokParen, string(r)})
			i++
		case r == '\'' || r == '"':
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated string literal")
			}
			toks = append(toks, token{tokString, string(runes[i+1 : j])})
			i = j + 1
		case r == '=' || r == '!' || r == '<' || r == '>':
			if i+1 < len(runes) && runes[i+1] == '=' {
				toks = append(toks, token{tokOp, string(runes[i : i+2])})
				i += 2
				break
			}
			if r == '<' || r == '>' {
				toks = append(toks, token{tokOp, string(r)})
				i++
				break
			}
			return nil, fmt.Errorf("unexpected character %q", string(r))
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			j := i + 1
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, string(runes[i:j])})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i + 1
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			toks = append(toks, token{tokIdent, string(runes[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q", string(r))
		}
	}
	toks = append(toks, token{tokEOF, ""})
	return toks, nil
}

// --- parser / evaluator ---

type parser struct {
	toks []token
	pos  int
	vars map[string]string
}

func (p *parser) peek() token { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}
func (p *parser) done() bool { return p.peek().kind == tokEOF }

func (p *parser) matchKeyword(word string) bool {
	t := p.peek()
	if t.kind == tokIdent && t.text == word {
		p.advance()
		return true
	}
	return false
}

func (p *parser) parseOr() (value, error) {
	left, err := p.parseAnd()
	if err != nil {
		return value{}, err
	}
	for p.matchKeyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return value{}, err
		}
		left = boolValue(left.truthy() || right.truthy())
	}
	return left, nil
}

func (p *parser) parseAnd() (value, error) {
	left, err := p.parseNot()
	if err != nil {
		return value{}, err
	}
	for p.matchKeyword("and") {
		right, err := p.parseNot()
		if err != nil {
			return value{}, err
		}
		left = boolValue(left.truthy() && right.truthy())
	}
	return left, nil
}

func (p *parser) parseNot() (value, error) {
	if p.matchKeyword("not") {
		v, err := p.parseNot()
		if err != nil {
			return value{}, err
		}
		return boolValue(!v.truthy()), nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (value, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return value{}, err
	}
	t := p.peek()
	if t.kind != tokOp {
		return left, nil
	}
	op := p.advance().text
	right, err := p.parsePrimary()
	if err != nil {
		return value{}, err
	}

	switch op {
	case "==":
		return boolValue(equal(left, right)), nil
	case "!=":
		return boolValue(!equal(left, right)), nil
	}

	// Ordering comparisons are numeric only.
	ln, lok := left.asNumber()
	rn, rok := right.asNumber()
	if !lok || !rok {
		return value{}, fmt.Errorf("operator %q requires numeric operands (got %q, %q)", op, left.text(), right.text())
	}
	switch op {
	case "<":
		return boolValue(ln < rn), nil
	case "<=":
		return boolValue(ln <= rn), nil
	case ">":
		return boolValue(ln > rn), nil
	case ">=":
		return boolValue(ln >= rn), nil
	}
	return value{}, fmt.Errorf("unsupported operator %q", op)
}

func (p *parser) parsePrimary() (value, error) {
	t := p.peek()
	switch t.kind {
	case tokParen:
		if t.text != "(" {
			return value{}, fmt.Errorf("unexpected %q", t.text)
		}
		p.advance()
		v, err := p.parseOr()
		if err != nil {
			return value{}, err
		}
		if p.peek().text != ")" {
			return value{}, fmt.Errorf("missing closing parenthesis")
		}
		p.advance()
		return v, nil
	case tokString:
		p.advance()
		return stringValue(t.text), nil
	case tokNumber:
		p.advance()
		n, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return value{}, fmt.Errorf("invalid number literal %q", t.text)
		}
		return numberValue(n), nil
	case tokIdent:
		p.advance()
		switch t.text {
		case "true", "True":
			return boolValue(true), nil
		case "false", "False":
			return boolValue(false), nil
		case "and", "or", "not":
			return value{}, fmt.Errorf("unexpected keyword %q", t.text)
		}
		v, ok := p.vars[t.text]
		if !ok {
			return value{}, fmt.Errorf("%w: %q", ErrUndefinedVariable, t.text)
		}
		return stringValue(v), nil
	case tokEOF:
		return value{}, fmt.Errorf("unexpected end of expression")
	}
	return value{}, fmt.Errorf("unexpected token %q", t.text)
}
