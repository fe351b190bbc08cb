// Package selector compiles compact selector strings such as
//
//	.send[receiver=nil][message=assert_equal][arguments.size=2]
//
// into pattern.Pattern values. Whitespace between simple selectors means
// "descendant of" and a comma separates alternatives.
package selector

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gnoswap-labs/rewrite/internal/pattern"
	"github.com/gnoswap-labs/rewrite/internal/tree"
)

// SyntaxError reports a malformed selector.
type SyntaxError struct {
	Selector string
	Position int
	Msg      string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("selector %q: position %d: %s", e.Selector, e.Position, e.Msg)
}

// Compile parses a selector into a pattern.
func Compile(s string) (pattern.Pattern, error) {
	tokens, err := NewLexer(s).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{input: s, tokens: tokens}
	return p.Parse()
}

// MustCompile is Compile for package-level declarations.
func MustCompile(s string) pattern.Pattern {
	p, err := Compile(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Parser builds patterns from a token stream.
type Parser struct {
	input   string
	tokens  []Token
	current int
}

// Parse consumes every token and returns the compiled pattern.
func (p *Parser) Parse() (pattern.Pattern, error) {
	p.skipSpace()
	var alts pattern.Or
	for {
		sel, err := p.parseSelector()
		if err != nil {
			return nil, err
		}
		alts = append(alts, sel)
		p.skipSpace()
		if p.peek().Type == TokenComma {
			p.next()
			p.skipSpace()
			continue
		}
		break
	}
	if t := p.peek(); t.Type != TokenEOF {
		return nil, p.errorf(t, "unexpected %q", t.Value)
	}
	if len(alts) == 1 {
		return alts[0], nil
	}
	return alts, nil
}

// parseSelector reads simple selectors joined by whitespace.
func (p *Parser) parseSelector() (pattern.Pattern, error) {
	sel, err := p.parseSimple()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == TokenWhitespace {
		p.next()
		switch p.peek().Type {
		case TokenDot, TokenStar, TokenLBracket:
		default:
			return sel, nil
		}
		inner, err := p.parseSimple()
		if err != nil {
			return nil, err
		}
		sel = pattern.Descendant{Ancestor: sel, Node: inner}
	}
	return sel, nil
}

// parseSimple reads `.kind[clause]...`, `*[clause]...` or `[clause]...`.
func (p *Parser) parseSimple() (pattern.Pattern, error) {
	start := p.peek()
	m := pattern.Map{}
	star := false
	switch start.Type {
	case TokenDot:
		p.next()
		kind := p.next()
		if kind.Type != TokenIdent {
			return nil, p.errorf(kind, "expected node kind after '.'")
		}
		m = append(m, pattern.Kind(tree.Kind(kind.Value)))
	case TokenStar:
		p.next()
		star = true
	case TokenLBracket:
	default:
		return nil, p.errorf(start, "expected '.kind', '*' or '['")
	}
	for p.peek().Type == TokenLBracket {
		e, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		m = append(m, e)
	}
	if star && len(m) == 0 {
		return pattern.Anything{}, nil
	}
	return m, nil
}

func (p *Parser) parseClause() (pattern.Entry, error) {
	p.next() // '['
	p.skipSpace()
	path, err := p.parsePath()
	if err != nil {
		return pattern.Entry{}, err
	}
	p.skipSpace()
	op, err := p.parseOperator()
	if err != nil {
		return pattern.Entry{}, err
	}
	p.skipSpace()
	value, err := p.parseOperand(op)
	if err != nil {
		return pattern.Entry{}, err
	}
	p.skipSpace()
	if t := p.next(); t.Type != TokenRBracket {
		return pattern.Entry{}, p.errorf(t, "expected ']'")
	}
	return pattern.AttrPath(path, value), nil
}

func (p *Parser) parsePath() (tree.Path, error) {
	var path tree.Path
	for {
		t := p.next()
		if t.Type != TokenIdent && t.Type != TokenNumber {
			return nil, p.errorf(t, "expected attribute name")
		}
		seg, err := tree.ParseSegment(t.Value)
		if err != nil {
			return nil, p.errorf(t, "%v", err)
		}
		path = append(path, seg)
		if p.peek().Type != TokenDot {
			return path, nil
		}
		p.next()
	}
}

func (p *Parser) parseOperator() (string, error) {
	t := p.next()
	switch {
	case t.Type == TokenOp:
		return t.Value, nil
	case t.Type == TokenIdent && t.Value == "in":
		return "in", nil
	case t.Type == TokenIdent && t.Value == "not":
		p.skipSpace()
		if in := p.next(); in.Type == TokenIdent && in.Value == "in" {
			return "not in", nil
		}
		return "", p.errorf(t, "expected 'in' after 'not'")
	}
	return "", p.errorf(t, "expected operator")
}

func (p *Parser) parseOperand(op string) (pattern.Pattern, error) {
	t := p.peek()
	switch op {
	case "=":
		return p.parseValue()
	case "!=":
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return pattern.Not{Pattern: v}, nil
	case "=~", "!~":
		re, err := p.parseRegexpOperand()
		if err != nil {
			return nil, err
		}
		if op == "!~" {
			return pattern.Not{Pattern: re}, nil
		}
		return re, nil
	case "^=", "$=", "*=":
		s := p.next()
		if s.Type != TokenString && s.Type != TokenIdent && s.Type != TokenNumber {
			return nil, p.errorf(s, "operator %s expects a string", op)
		}
		expr := regexp.QuoteMeta(s.Value)
		switch op {
		case "^=":
			expr = "^" + expr
		case "$=":
			expr += "$"
		}
		return pattern.Regexp{Re: regexp.MustCompile(expr)}, nil
	case "in", "not in":
		var alts []pattern.Pattern
		if t.Type == TokenLParen {
			list, err := p.parseList()
			if err != nil {
				return nil, err
			}
			alts = list
		} else {
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			alts = []pattern.Pattern{v}
		}
		if op == "in" {
			return pattern.In(alts), nil
		}
		return pattern.NotIn(alts), nil
	}
	return nil, p.errorf(t, "unknown operator %q", op)
}

func (p *Parser) parseRegexpOperand() (pattern.Pattern, error) {
	t := p.next()
	var expr string
	switch t.Type {
	case TokenRegexp:
		expr = regexpSource(t.Value)
	case TokenString:
		expr = t.Value
	default:
		return nil, p.errorf(t, "expected regexp")
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, p.errorf(t, "invalid regexp: %v", err)
	}
	return pattern.Regexp{Re: re}, nil
}

// parseValue reads one operand value. Parenthesised values form a list
// pattern matched element by element.
func (p *Parser) parseValue() (pattern.Pattern, error) {
	t := p.peek()
	switch t.Type {
	case TokenLParen:
		list, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return pattern.List(list), nil
	case TokenDot:
		return p.parseSimple()
	case TokenStar:
		p.next()
		return pattern.Anything{}, nil
	case TokenRegexp:
		return p.parseRegexpOperand()
	}
	p.next()
	switch t.Type {
	case TokenIdent:
		switch t.Value {
		case "nil":
			return pattern.Nil(), nil
		case "true":
			return pattern.Lit(true), nil
		case "false":
			return pattern.Lit(false), nil
		}
		return pattern.Lit(t.Value), nil
	case TokenNumber:
		if strings.Contains(t.Value, ".") {
			f, err := strconv.ParseFloat(t.Value, 64)
			if err != nil {
				return nil, p.errorf(t, "invalid number")
			}
			return pattern.Lit(f), nil
		}
		i, err := strconv.ParseInt(t.Value, 10, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid number")
		}
		return pattern.Lit(i), nil
	case TokenString:
		return pattern.Lit(t.Value), nil
	case TokenSymbol:
		return pattern.Sym(t.Value), nil
	}
	return nil, p.errorf(t, "expected value")
}

func (p *Parser) parseList() ([]pattern.Pattern, error) {
	p.next() // '('
	list := []pattern.Pattern{}
	for {
		p.skipSpace()
		if p.peek().Type == TokenComma {
			p.next()
			continue
		}
		if p.peek().Type == TokenRParen {
			p.next()
			return list, nil
		}
		if p.peek().Type == TokenEOF {
			return nil, p.errorf(p.peek(), "unterminated list")
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
}

func (p *Parser) peek() Token { return p.tokens[p.current] }

func (p *Parser) next() Token {
	t := p.tokens[p.current]
	if t.Type != TokenEOF {
		p.current++
	}
	return t
}

func (p *Parser) skipSpace() {
	for p.peek().Type == TokenWhitespace {
		p.next()
	}
}

func (p *Parser) errorf(t Token, format string, args ...any) error {
	return &SyntaxError{Selector: p.input, Position: t.Position, Msg: fmt.Sprintf(format, args...)}
}

// regexpSource turns a lexed `/re/flags` value into Go syntax.
func regexpSource(v string) string {
	re, flags, ok := strings.Cut(v, "\x00")
	if !ok {
		return re
	}
	return "(?" + flags + ")" + re
}
