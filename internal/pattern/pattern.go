// Package pattern holds declarative predicates over tree nodes and the
// matcher that evaluates them.
//
// Patterns are plain values. They are built once, either by hand or by the
// selector compiler, and may be shared between goroutines.
package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gnoswap-labs/rewrite/internal/tree"
)

// Pattern is one of the types declared in this package.
type Pattern interface {
	fmt.Stringer
	pattern()
}

// Symbol is a Ruby-style symbol literal (`:foo`).
type Symbol string

// Literal compares a derived value against a string, Symbol, number, bool or
// nil.
type Literal struct {
	Value any
}

// Regexp matches the rendered source text of a value.
type Regexp struct {
	Re *regexp.Regexp
}

// In succeeds when any of its alternatives matches.
type In []Pattern

// NotIn succeeds when none of its alternatives matches.
type NotIn []Pattern

// Not negates a pattern.
type Not struct {
	Pattern Pattern
}

// Entry constrains a single attribute step.
type Entry struct {
	Seg     tree.Segment
	Pattern Pattern
}

// Map is an ordered conjunction of attribute constraints.
type Map []Entry

// List matches a list value element by element. Lengths must agree.
type List []Pattern

// Or succeeds when any branch matches; bindings come from the first one.
type Or []Pattern

// Anything matches every present value.
type Anything struct{}

// Descendant matches Node when one of the node's ancestors matches Ancestor.
type Descendant struct {
	Ancestor Pattern
	Node     Pattern
}

// Capture binds the matched value under Name.
type Capture struct {
	Name    string
	Pattern Pattern
}

func (Literal) pattern()    {}
func (Regexp) pattern()     {}
func (In) pattern()         {}
func (NotIn) pattern()      {}
func (Not) pattern()        {}
func (Map) pattern()        {}
func (List) pattern()       {}
func (Or) pattern()         {}
func (Anything) pattern()   {}
func (Descendant) pattern() {}
func (Capture) pattern()    {}

// Lit wraps a literal. Go ints are normalised to int64.
func Lit(v any) Literal {
	switch x := v.(type) {
	case int:
		return Literal{Value: int64(x)}
	case int32:
		return Literal{Value: int64(x)}
	case float32:
		return Literal{Value: float64(x)}
	}
	return Literal{Value: v}
}

// Nil is the nil literal.
func Nil() Literal { return Literal{} }

// Sym is a symbol literal.
func Sym(s string) Literal { return Literal{Value: Symbol(s)} }

// Re compiles a regular expression pattern.
func Re(expr string) (Regexp, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Regexp{}, err
	}
	return Regexp{Re: re}, nil
}

// MustRe is Re for package-level declarations.
func MustRe(expr string) Regexp {
	r, err := Re(expr)
	if err != nil {
		panic(err)
	}
	return r
}

// Kind constrains the node kind.
func Kind(k tree.Kind) Entry {
	return Entry{Seg: tree.Segment{Name: tree.AttrKind}, Pattern: Lit(string(k))}
}

// Attr constrains the value at a dotted attribute path. Multi-segment paths
// become nested maps. It panics on a malformed path.
func Attr(path string, p Pattern) Entry {
	return AttrPath(tree.MustParsePath(path), p)
}

// AttrPath is Attr for an already parsed path.
func AttrPath(path tree.Path, p Pattern) Entry {
	for i := len(path) - 1; i > 0; i-- {
		p = Map{{Seg: path[i], Pattern: p}}
	}
	return Entry{Seg: path[0], Pattern: p}
}

// Node is shorthand for a map pattern over a node of the given kind.
func Node(k tree.Kind, entries ...Entry) Map {
	return append(Map{Kind(k)}, entries...)
}

func (l Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "nil"
	case Symbol:
		return ":" + string(v)
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprint(v)
	}
}

func (r Regexp) String() string { return "/" + r.Re.String() + "/" }

func (in In) String() string     { return "in(" + join(in) + ")" }
func (ni NotIn) String() string  { return "not in(" + join(ni) + ")" }
func (n Not) String() string     { return "not(" + n.Pattern.String() + ")" }
func (l List) String() string    { return "[" + join(l) + "]" }
func (o Or) String() string      { return "or(" + join(o) + ")" }
func (Anything) String() string  { return "*" }
func (c Capture) String() string { return c.Name + "@" + c.Pattern.String() }

func (d Descendant) String() string {
	return d.Ancestor.String() + " " + d.Node.String()
}

func (m Map) String() string {
	parts := make([]string, len(m))
	for i, e := range m {
		parts[i] = e.Seg.String() + ": " + e.Pattern.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func join(ps []Pattern) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}
