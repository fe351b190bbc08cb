// Package treetest parses a small, deterministic subset of Ruby into the
// rubyast schema. Tests across the engine use it to build trees with exact,
// predictable byte ranges without going through tree-sitter.
//
// Supported: method calls with and without receivers, parenthesised argument
// lists, `<<`, indexing, blocks (`{ |a| ... }` and `do ... end`), literals,
// constants with `::`, arrays, hashes with labels and `=>`, block passes
// (`&:sym`), assignment, and `def` / `class` / `module` bodies.
package treetest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gnoswap-labs/rewrite/internal/tree"
	"github.com/gnoswap-labs/rewrite/internal/tree/rubyast"
)

// blockArgument is the kind tree-sitter gives `&expr` arguments.
const blockArgument tree.Kind = "block_argument"

// Parser implements tree.Parser for the supported subset.
type Parser struct{}

var _ tree.Parser = Parser{}

func (Parser) Parse(filename string, src []byte) (tree.Node, error) {
	return ParseFile(filename, src)
}

// Parse parses src or panics; for test tables.
func Parse(src string) tree.Node {
	n, err := ParseFile("test.rb", []byte(src))
	if err != nil {
		panic(err)
	}
	return n
}

// ParseFile parses src into a program node.
func ParseFile(filename string, src []byte) (tree.Node, error) {
	toks, err := lex(string(src))
	if err != nil {
		return nil, &tree.ParseError{Filename: filename, Msg: err.Error()}
	}
	p := &parser{
		src:  &tree.Source{Filename: filename, Text: src},
		toks: toks,
	}
	body, err := p.stmts()
	if err != nil {
		return nil, &tree.ParseError{Filename: filename, Msg: err.Error()}
	}
	if p.peek().typ != tokEOF {
		return nil, &tree.ParseError{Filename: filename, Msg: p.unexpected().Error()}
	}
	return rubyast.NewProgram(p.src, tree.Range{Start: 0, End: len(src)}, body), nil
}

type parser struct {
	src  *tree.Source
	toks []token
	pos  int
	// noDo is positive while parsing parenthesis-free arguments, where a
	// trailing `do` belongs to the outer call.
	noDo int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(typ tokenType, text string) (token, bool) {
	if p.peek().is(typ, text) {
		return p.next(), true
	}
	return token{}, false
}

func (p *parser) expect(typ tokenType, text string) (token, error) {
	if t, ok := p.accept(typ, text); ok {
		return t, nil
	}
	return token{}, fmt.Errorf("offset %d: expected %q, found %q", p.peek().start, text, p.peek().text)
}

func (p *parser) unexpected() error {
	t := p.peek()
	if t.typ == tokEOF {
		return fmt.Errorf("unexpected end of input")
	}
	return fmt.Errorf("offset %d: unexpected %q", t.start, t.text)
}

func (p *parser) skipNewlines() {
	for p.peek().typ == tokNewline {
		p.next()
	}
}

func (p *parser) atKeyword(kw string) bool {
	return p.peek().is(tokIdent, kw)
}

func (p *parser) rng(start, end int) tree.Range {
	return tree.Range{Start: start, End: end}
}

// stmts parses statements until `end`, `}` or EOF.
func (p *parser) stmts() ([]tree.Node, error) {
	var out []tree.Node
	for {
		p.skipNewlines()
		t := p.peek()
		if t.typ == tokEOF || t.is(tokPunct, "}") || p.atKeyword("end") {
			return out, nil
		}
		n, err := p.stmt()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
		t = p.peek()
		if t.typ != tokNewline && t.typ != tokEOF && !t.is(tokPunct, "}") && !p.atKeyword("end") {
			return nil, p.unexpected()
		}
	}
}

func (p *parser) stmt() (tree.Node, error) {
	switch {
	case p.atKeyword("def"):
		return p.def()
	case p.atKeyword("class"):
		return p.class()
	case p.atKeyword("module"):
		return p.module()
	}
	left, err := p.expr()
	if err != nil {
		return nil, err
	}
	if left.Kind() == rubyast.Ident || left.Kind() == rubyast.Ivar {
		if _, ok := p.accept(tokPunct, "="); ok {
			right, err := p.expr()
			if err != nil {
				return nil, err
			}
			return rubyast.NewAssign(p.src, p.rng(left.Range().Start, right.Range().End), left, right), nil
		}
	}
	return left, nil
}

func (p *parser) expr() (tree.Node, error) {
	prim, err := p.primary()
	if err != nil {
		return nil, err
	}
	left, err := p.postfix(prim)
	if err != nil {
		return nil, err
	}
	if op, ok := p.accept(tokPunct, "<<"); ok {
		right, err := p.expr()
		if err != nil {
			return nil, err
		}
		msg := rubyast.NewLeaf(p.src, rubyast.Op, p.rng(op.start, op.end), op.text)
		return rubyast.NewSend(p.src, p.rng(left.Range().Start, right.Range().End), left, msg, []tree.Node{right}), nil
	}
	return left, nil
}

func (p *parser) primary() (tree.Node, error) {
	t := p.peek()
	switch t.typ {
	case tokIdent:
		switch t.text {
		case "nil":
			p.next()
			return rubyast.NewLeaf(p.src, rubyast.Nil, p.rng(t.start, t.end), nil), nil
		case "true", "false":
			p.next()
			kind := rubyast.True
			if t.text == "false" {
				kind = rubyast.False
			}
			return rubyast.NewLeaf(p.src, kind, p.rng(t.start, t.end), t.text == "true"), nil
		case "self":
			p.next()
			return rubyast.NewLeaf(p.src, rubyast.Self, p.rng(t.start, t.end), "self"), nil
		case "def", "class", "module", "end", "do":
			return nil, p.unexpected()
		}
		p.next()
		ident := rubyast.NewLeaf(p.src, rubyast.Ident, p.rng(t.start, t.end), t.text)
		if paren := p.peek(); paren.is(tokPunct, "(") && !paren.spaceBefore {
			args, end, err := p.callArgs()
			if err != nil {
				return nil, err
			}
			return rubyast.NewSend(p.src, p.rng(t.start, end), nil, ident, args), nil
		}
		if p.argStart() {
			args, end, err := p.commandArgs()
			if err != nil {
				return nil, err
			}
			return rubyast.NewSend(p.src, p.rng(t.start, end), nil, ident, args), nil
		}
		return ident, nil
	case tokConst:
		p.next()
		end := t.end
		for {
			if sep := p.peek(); sep.is(tokPunct, "::") {
				p.next()
				c, err := p.expectType(tokConst)
				if err != nil {
					return nil, err
				}
				end = c.end
				continue
			}
			break
		}
		text := p.src.Slice(p.rng(t.start, end))
		return rubyast.NewLeaf(p.src, rubyast.Const, p.rng(t.start, end), text), nil
	case tokIvar:
		p.next()
		return rubyast.NewLeaf(p.src, rubyast.Ivar, p.rng(t.start, t.end), t.text), nil
	case tokInt:
		p.next()
		v, err := strconv.ParseInt(strings.ReplaceAll(t.text, "_", ""), 10, 64)
		if err != nil {
			return nil, err
		}
		return rubyast.NewLeaf(p.src, rubyast.Int, p.rng(t.start, t.end), v), nil
	case tokFloat:
		p.next()
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, err
		}
		return rubyast.NewLeaf(p.src, rubyast.Float, p.rng(t.start, t.end), v), nil
	case tokString:
		p.next()
		return rubyast.NewLeaf(p.src, rubyast.Str, p.rng(t.start, t.end), unquote(t.text)), nil
	case tokSymbol:
		p.next()
		return rubyast.NewLeaf(p.src, rubyast.Sym, p.rng(t.start, t.end), t.text[1:]), nil
	case tokPunct:
		switch t.text {
		case "[":
			p.next()
			elems, end, err := p.list("]")
			if err != nil {
				return nil, err
			}
			return rubyast.NewArray(p.src, p.rng(t.start, end), elems), nil
		case "{":
			p.next()
			pairs, end, err := p.list("}")
			if err != nil {
				return nil, err
			}
			return rubyast.NewHash(p.src, p.rng(t.start, end), flattenHash(pairs)), nil
		case "(":
			p.next()
			inner, err := p.expr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokPunct, ")"); err != nil {
				return nil, err
			}
			return inner, nil
		case "&":
			// block pass: map(&:name)
			p.next()
			operand, err := p.primary()
			if err != nil {
				return nil, err
			}
			return rubyast.NewGeneric(p.src, blockArgument, p.rng(t.start, operand.Range().End), []tree.Node{operand}), nil
		}
	}
	return nil, p.unexpected()
}

func (p *parser) expectType(typ tokenType) (token, error) {
	if p.peek().typ == typ {
		return p.next(), nil
	}
	return token{}, p.unexpected()
}

func (p *parser) postfix(n tree.Node) (tree.Node, error) {
	for {
		t := p.peek()
		switch {
		case t.is(tokPunct, "."):
			p.next()
			name := p.next()
			if name.typ != tokIdent && name.typ != tokConst {
				return nil, fmt.Errorf("offset %d: expected method name", name.start)
			}
			msg := rubyast.NewLeaf(p.src, rubyast.Ident, p.rng(name.start, name.end), name.text)
			end := name.end
			var args []tree.Node
			if paren := p.peek(); paren.is(tokPunct, "(") && !paren.spaceBefore {
				var err error
				args, end, err = p.callArgs()
				if err != nil {
					return nil, err
				}
			} else if p.argStart() {
				var err error
				args, end, err = p.commandArgs()
				if err != nil {
					return nil, err
				}
			}
			n = rubyast.NewSend(p.src, p.rng(n.Range().Start, end), n, msg, args)
		case t.is(tokPunct, "[") && !t.spaceBefore:
			p.next()
			args, end, err := p.list("]")
			if err != nil {
				return nil, err
			}
			n = rubyast.NewIndex(p.src, p.rng(n.Range().Start, end), n, args)
		case t.is(tokPunct, "{"):
			blk, err := p.block(n, "{", "}")
			if err != nil {
				return nil, err
			}
			n = blk
		case t.is(tokIdent, "do") && p.noDo == 0:
			blk, err := p.block(n, "do", "end")
			if err != nil {
				return nil, err
			}
			n = blk
		default:
			return n, nil
		}
	}
}

func (p *parser) block(caller tree.Node, open, close string) (tree.Node, error) {
	p.next()
	saved := p.noDo
	p.noDo = 0
	defer func() { p.noDo = saved }()
	if caller.Kind() == rubyast.Ident {
		caller = rubyast.NewSend(p.src, caller.Range(), nil, caller, nil)
	}
	var params []tree.Node
	if _, ok := p.accept(tokPunct, "|"); ok {
		for {
			id, err := p.expectType(tokIdent)
			if err != nil {
				return nil, err
			}
			params = append(params, rubyast.NewLeaf(p.src, rubyast.Ident, p.rng(id.start, id.end), id.text))
			if _, ok := p.accept(tokPunct, ","); !ok {
				break
			}
		}
		if _, err := p.expect(tokPunct, "|"); err != nil {
			return nil, err
		}
	}
	body, err := p.stmts()
	if err != nil {
		return nil, err
	}
	closeTyp := tokPunct
	if close == "end" {
		closeTyp = tokIdent
	}
	end, err := p.expect(closeTyp, close)
	if err != nil {
		return nil, err
	}
	return rubyast.NewBlock(p.src, p.rng(caller.Range().Start, end.end), caller, params, body), nil
}

// callArgs parses `( ... )` directly following a method name.
func (p *parser) callArgs() ([]tree.Node, int, error) {
	p.next()
	args, end, err := p.list(")")
	if err != nil {
		return nil, 0, err
	}
	return wrapPairs(p.src, args), end, nil
}

// argStart reports whether the next token opens a parenthesis-free argument
// list, as in `has_many :posts, dependent: :destroy`.
func (p *parser) argStart() bool {
	t := p.peek()
	if !t.spaceBefore {
		return false
	}
	switch t.typ {
	case tokIdent:
		switch t.text {
		case "do", "end", "def", "class", "module":
			return false
		}
		return true
	case tokConst, tokIvar, tokInt, tokFloat, tokString, tokSymbol, tokLabel:
		return true
	case tokPunct:
		return t.text == "["
	}
	return false
}

func (p *parser) commandArgs() ([]tree.Node, int, error) {
	p.noDo++
	defer func() { p.noDo-- }()
	var args []tree.Node
	end := 0
	for {
		item, err := p.item()
		if err != nil {
			return nil, 0, err
		}
		args = append(args, item)
		end = item.Range().End
		if _, ok := p.accept(tokPunct, ","); !ok {
			break
		}
		p.skipNewlines()
	}
	return wrapPairs(p.src, args), end, nil
}

// list parses comma separated items up to closer. Labels and `=>` produce
// pair nodes.
func (p *parser) list(closer string) ([]tree.Node, int, error) {
	saved := p.noDo
	p.noDo = 0
	defer func() { p.noDo = saved }()
	var items []tree.Node
	for {
		p.skipNewlines()
		if t, ok := p.accept(tokPunct, closer); ok {
			return items, t.end, nil
		}
		item, err := p.item()
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
		p.skipNewlines()
		if _, ok := p.accept(tokPunct, ","); ok {
			continue
		}
		t, err := p.expect(tokPunct, closer)
		if err != nil {
			return nil, 0, err
		}
		return items, t.end, nil
	}
}

func (p *parser) item() (tree.Node, error) {
	if t := p.peek(); t.typ == tokLabel {
		p.next()
		key := rubyast.NewLeaf(p.src, rubyast.Sym, p.rng(t.start, t.end), t.text)
		value, err := p.expr()
		if err != nil {
			return nil, err
		}
		return rubyast.NewPair(p.src, p.rng(t.start, value.Range().End), key, value), nil
	}
	key, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, ok := p.accept(tokPunct, "=>"); ok {
		value, err := p.expr()
		if err != nil {
			return nil, err
		}
		return rubyast.NewPair(p.src, p.rng(key.Range().Start, value.Range().End), key, value), nil
	}
	return key, nil
}

// wrapPairs groups trailing bare pairs of an argument list into one hash
// node, the way Ruby treats `foo(a, b: 1, c: 2)`.
func wrapPairs(src *tree.Source, args []tree.Node) []tree.Node {
	first := -1
	for i, a := range args {
		if a.Kind() == rubyast.Pair {
			if first < 0 {
				first = i
			}
		} else {
			first = -1
		}
	}
	if first < 0 {
		return args
	}
	pairs := args[first:]
	r := tree.Range{Start: pairs[0].Range().Start, End: pairs[len(pairs)-1].Range().End}
	out := append([]tree.Node{}, args[:first]...)
	return append(out, rubyast.NewHash(src, r, pairs))
}

func flattenHash(items []tree.Node) []tree.Node {
	var pairs []tree.Node
	for _, it := range items {
		if it.Kind() == rubyast.Pair {
			pairs = append(pairs, it)
		}
	}
	return pairs
}

func (p *parser) def() (tree.Node, error) {
	kw := p.next()
	var receiver tree.Node
	name, err := p.expectType(tokIdent)
	if err != nil {
		return nil, err
	}
	if name.text == "self" {
		if _, err := p.expect(tokPunct, "."); err != nil {
			return nil, err
		}
		receiver = rubyast.NewLeaf(p.src, rubyast.Self, p.rng(name.start, name.end), "self")
		if name, err = p.expectType(tokIdent); err != nil {
			return nil, err
		}
	}
	nameNode := rubyast.NewLeaf(p.src, rubyast.Ident, p.rng(name.start, name.end), name.text)
	var params []tree.Node
	if _, ok := p.accept(tokPunct, "("); ok {
		for !p.peek().is(tokPunct, ")") {
			id, err := p.expectType(tokIdent)
			if err != nil {
				return nil, err
			}
			params = append(params, rubyast.NewLeaf(p.src, rubyast.Ident, p.rng(id.start, id.end), id.text))
			if _, ok := p.accept(tokPunct, ","); !ok {
				break
			}
		}
		if _, err := p.expect(tokPunct, ")"); err != nil {
			return nil, err
		}
	}
	body, err := p.stmts()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(tokIdent, "end")
	if err != nil {
		return nil, err
	}
	r := p.rng(kw.start, end.end)
	if receiver != nil {
		return rubyast.NewDefs(p.src, r, receiver, nameNode, params, body), nil
	}
	return rubyast.NewDef(p.src, r, nameNode, params, body), nil
}

func (p *parser) class() (tree.Node, error) {
	kw := p.next()
	name, err := p.primary()
	if err != nil {
		return nil, err
	}
	var parent tree.Node
	if _, ok := p.accept(tokPunct, "<"); ok {
		if parent, err = p.primary(); err != nil {
			return nil, err
		}
	}
	body, err := p.stmts()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(tokIdent, "end")
	if err != nil {
		return nil, err
	}
	return rubyast.NewClass(p.src, p.rng(kw.start, end.end), name, parent, body), nil
}

func (p *parser) module() (tree.Node, error) {
	kw := p.next()
	name, err := p.primary()
	if err != nil {
		return nil, err
	}
	body, err := p.stmts()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(tokIdent, "end")
	if err != nil {
		return nil, err
	}
	return rubyast.NewModule(p.src, p.rng(kw.start, end.end), name, body), nil
}

func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	body := s[1 : len(s)-1]
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
			switch body[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(body[i])
			}
			continue
		}
		sb.WriteByte(body[i])
	}
	return sb.String()
}
