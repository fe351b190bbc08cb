// Package ruby provides Ruby trees built with tree-sitter and normalised into
// the rubyast schema.
package ruby

import (
	"context"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"

	"github.com/gnoswap-labs/rewrite/internal/tree"
	"github.com/gnoswap-labs/rewrite/internal/tree/rubyast"
)

// Extensions lists the file suffixes the provider handles.
var Extensions = []string{".rb", ".rake", ".gemspec", ".ru"}

// Parser implements tree.Parser. It is safe for concurrent use; every call
// gets its own tree-sitter parser.
type Parser struct{}

var _ tree.Parser = Parser{}

// New returns a Ruby parser.
func New() Parser { return Parser{} }

func (Parser) Parse(filename string, src []byte) (tree.Node, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(ruby.GetLanguage())

	st, err := p.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, &tree.ParseError{Filename: filename, Msg: err.Error()}
	}
	defer st.Close()

	root := st.RootNode()
	if root.HasError() {
		return nil, syntaxError(filename, root)
	}
	b := &builder{src: &tree.Source{Filename: filename, Text: src}}
	return b.program(root), nil
}

func syntaxError(filename string, root *sitter.Node) error {
	bad := firstError(root)
	if bad == nil {
		bad = root
	}
	pt := bad.StartPoint()
	msg := "syntax error"
	if bad.IsMissing() {
		msg = "missing " + bad.Type()
	}
	return &tree.ParseError{
		Filename: filename,
		Line:     int(pt.Row) + 1,
		Column:   int(pt.Column) + 1,
		Msg:      msg,
	}
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !c.HasError() && !c.IsMissing() {
			continue
		}
		if bad := firstError(c); bad != nil {
			return bad
		}
	}
	return nil
}

type builder struct {
	src *tree.Source
}

func rangeOf(n *sitter.Node) tree.Range {
	return tree.Range{Start: int(n.StartByte()), End: int(n.EndByte())}
}

func (b *builder) text(n *sitter.Node) string {
	return b.src.Slice(rangeOf(n))
}

func (b *builder) program(n *sitter.Node) tree.Node {
	return rubyast.NewProgram(b.src, rangeOf(n), b.statements(n))
}

// statements converts the named children of a statement container, skipping
// comments and flattening body_statement / block_body wrappers.
func (b *builder) statements(n *sitter.Node) []tree.Node {
	if n == nil {
		return nil
	}
	var out []tree.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "comment":
			continue
		case "body_statement", "block_body":
			out = append(out, b.statements(c)...)
			continue
		}
		if conv := b.convert(c); conv != nil {
			out = append(out, conv)
		}
	}
	return out
}

// opt converts an optional field, keeping the interface nil when absent.
func (b *builder) opt(n *sitter.Node) tree.Node {
	if n == nil {
		return nil
	}
	return b.convert(n)
}

func (b *builder) convert(n *sitter.Node) tree.Node {
	r := rangeOf(n)
	switch n.Type() {
	case "comment":
		return nil
	case "call":
		return b.call(n)
	case "method":
		name := b.opt(n.ChildByFieldName("name"))
		return rubyast.NewDef(b.src, r, name, b.params(n.ChildByFieldName("parameters")), b.body(n, "name", "parameters"))
	case "singleton_method":
		recv := b.opt(n.ChildByFieldName("object"))
		name := b.opt(n.ChildByFieldName("name"))
		return rubyast.NewDefs(b.src, r, recv, name, b.params(n.ChildByFieldName("parameters")), b.body(n, "object", "name", "parameters"))
	case "class":
		name := b.opt(n.ChildByFieldName("name"))
		var parent tree.Node
		if sc := n.ChildByFieldName("superclass"); sc != nil && sc.NamedChildCount() > 0 {
			parent = b.convert(sc.NamedChild(0))
		}
		return rubyast.NewClass(b.src, r, name, parent, b.body(n, "name", "superclass"))
	case "module":
		name := b.opt(n.ChildByFieldName("name"))
		return rubyast.NewModule(b.src, r, name, b.body(n, "name"))
	case "binary":
		op := n.ChildByFieldName("operator")
		left := b.opt(n.ChildByFieldName("left"))
		right := b.opt(n.ChildByFieldName("right"))
		switch b.text(op) {
		case "&&", "||", "and", "or":
			return rubyast.NewGeneric(b.src, tree.Kind(n.Type()), r, nonNil(left, right))
		}
		msg := rubyast.NewLeaf(b.src, rubyast.Op, rangeOf(op), b.text(op))
		return rubyast.NewSend(b.src, r, left, msg, nonNil(right))
	case "unary":
		// `!x` and `-x` are sends to the operand, as in the parser gem
		op := n.ChildByFieldName("operator")
		operand := b.opt(n.ChildByFieldName("operand"))
		if op == nil || operand == nil {
			return rubyast.NewGeneric(b.src, tree.Kind(n.Type()), r, b.statements(n))
		}
		msg := rubyast.NewLeaf(b.src, rubyast.Op, rangeOf(op), b.text(op))
		return rubyast.NewSend(b.src, r, operand, msg, nil)
	case "element_reference":
		recv := b.opt(n.ChildByFieldName("object"))
		var args []tree.Node
		for i := 1; i < int(n.NamedChildCount()); i++ {
			args = append(args, b.convert(n.NamedChild(i)))
		}
		return rubyast.NewIndex(b.src, r, recv, args)
	case "assignment":
		return rubyast.NewAssign(b.src, r, b.opt(n.ChildByFieldName("left")), b.opt(n.ChildByFieldName("right")))
	case "hash":
		return rubyast.NewHash(b.src, r, b.pairs(n))
	case "pair":
		return rubyast.NewPair(b.src, r, b.opt(n.ChildByFieldName("key")), b.opt(n.ChildByFieldName("value")))
	case "array":
		return rubyast.NewArray(b.src, r, b.statements(n))
	case "string":
		return rubyast.NewLeaf(b.src, rubyast.Str, r, b.stringValue(n))
	case "simple_symbol":
		return rubyast.NewLeaf(b.src, rubyast.Sym, r, strings.TrimPrefix(b.text(n), ":"))
	case "hash_key_symbol":
		return rubyast.NewLeaf(b.src, rubyast.Sym, r, b.text(n))
	case "delimited_symbol":
		return rubyast.NewLeaf(b.src, rubyast.Sym, r, b.stringValue(n))
	case "integer":
		v, err := strconv.ParseInt(strings.ReplaceAll(b.text(n), "_", ""), 0, 64)
		if err != nil {
			return rubyast.NewLeaf(b.src, rubyast.Int, r, b.text(n))
		}
		return rubyast.NewLeaf(b.src, rubyast.Int, r, v)
	case "float":
		v, err := strconv.ParseFloat(strings.ReplaceAll(b.text(n), "_", ""), 64)
		if err != nil {
			return rubyast.NewLeaf(b.src, rubyast.Float, r, b.text(n))
		}
		return rubyast.NewLeaf(b.src, rubyast.Float, r, v)
	case "nil":
		return rubyast.NewLeaf(b.src, rubyast.Nil, r, nil)
	case "true":
		return rubyast.NewLeaf(b.src, rubyast.True, r, true)
	case "false":
		return rubyast.NewLeaf(b.src, rubyast.False, r, false)
	case "self":
		return rubyast.NewLeaf(b.src, rubyast.Self, r, "self")
	case "constant", "scope_resolution":
		return rubyast.NewLeaf(b.src, rubyast.Const, r, b.text(n))
	case "identifier":
		return rubyast.NewLeaf(b.src, rubyast.Ident, r, b.text(n))
	case "instance_variable":
		return rubyast.NewLeaf(b.src, rubyast.Ivar, r, b.text(n))
	}
	return rubyast.NewGeneric(b.src, tree.Kind(n.Type()), r, b.statements(n))
}

// call maps a tree-sitter call to send, or to block when a block is
// attached. The block's caller is a send spanning everything up to the block.
func (b *builder) call(n *sitter.Node) tree.Node {
	recv := b.opt(n.ChildByFieldName("receiver"))
	method := n.ChildByFieldName("method")
	var msg tree.Node
	if method != nil {
		msg = rubyast.NewLeaf(b.src, rubyast.Ident, rangeOf(method), b.text(method))
	}
	args := b.arguments(n.ChildByFieldName("arguments"))

	blk := n.ChildByFieldName("block")
	if blk == nil {
		return rubyast.NewSend(b.src, rangeOf(n), recv, msg, args)
	}
	end := int(n.StartByte())
	if a := n.ChildByFieldName("arguments"); a != nil {
		end = int(a.EndByte())
	} else if method != nil {
		end = int(method.EndByte())
	}
	send := rubyast.NewSend(b.src, tree.Range{Start: int(n.StartByte()), End: end}, recv, msg, args)
	params := b.params(blk.ChildByFieldName("parameters"))
	return rubyast.NewBlock(b.src, rangeOf(n), send, params, b.body(blk, "parameters"))
}

// arguments converts an argument_list. Bare pairs are grouped into one hash
// node covering them, the way Ruby passes trailing keyword arguments.
func (b *builder) arguments(n *sitter.Node) []tree.Node {
	if n == nil {
		return nil
	}
	var out, pairs []tree.Node
	flush := func() {
		if len(pairs) == 0 {
			return
		}
		r := tree.Range{Start: pairs[0].Range().Start, End: pairs[len(pairs)-1].Range().End}
		out = append(out, rubyast.NewHash(b.src, r, pairs))
		pairs = nil
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		conv := b.convert(c)
		if conv.Kind() == rubyast.Pair {
			pairs = append(pairs, conv)
			continue
		}
		flush()
		out = append(out, conv)
	}
	flush()
	return out
}

func (b *builder) pairs(n *sitter.Node) []tree.Node {
	var out []tree.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "pair" {
			out = append(out, b.convert(c))
		}
	}
	return out
}

func (b *builder) params(n *sitter.Node) []tree.Node {
	if n == nil {
		return nil
	}
	return b.statements(n)
}

// body returns the statements of a definition or block. Grammars either put
// them under a body field or inline them next to the named fields.
func (b *builder) body(n *sitter.Node, skipFields ...string) []tree.Node {
	if body := n.ChildByFieldName("body"); body != nil {
		switch body.Type() {
		case "body_statement", "block_body":
			return b.statements(body)
		}
		return nonNil(b.convert(body))
	}
	skip := make(map[uint32]bool)
	for _, f := range skipFields {
		if c := n.ChildByFieldName(f); c != nil {
			skip[c.StartByte()] = true
		}
	}
	var out []tree.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if skip[c.StartByte()] || c.Type() == "comment" {
			continue
		}
		switch c.Type() {
		case "body_statement", "block_body":
			out = append(out, b.statements(c)...)
		default:
			out = append(out, b.convert(c))
		}
	}
	return out
}

func (b *builder) stringValue(n *sitter.Node) string {
	var sb strings.Builder
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "string_content" {
			sb.WriteString(b.text(c))
		}
	}
	return sb.String()
}

func nonNil(nodes ...tree.Node) []tree.Node {
	out := make([]tree.Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}
