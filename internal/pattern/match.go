package pattern

import (
	"errors"
	"fmt"

	"github.com/gnoswap-labs/rewrite/internal/tree"
	"github.com/gnoswap-labs/rewrite/internal/tree/rubyast"
)

// Bindings maps capture names to the values they matched.
type Bindings map[string]tree.Value

// Matches reports whether n matches p. It has no ancestry, so Descendant
// patterns never match.
func Matches(n tree.Node, p Pattern) bool {
	_, ok := MatchIn(nil, n, p)
	return ok
}

// MatchIn matches n with its ancestors, outermost first.
func MatchIn(ancestors []tree.Node, n tree.Node, p Pattern) (Bindings, bool) {
	m := matcher{ancestors: ancestors, binds: Bindings{}}
	if !m.match(tree.Of(n), p, true) {
		return nil, false
	}
	return m.binds, true
}

// MatchValue matches an arbitrary value, such as a role's list.
func MatchValue(v tree.Value, p Pattern) (Bindings, bool) {
	m := matcher{binds: Bindings{}}
	if !m.match(v, p, false) {
		return nil, false
	}
	return m.binds, true
}

type matcher struct {
	ancestors []tree.Node
	binds     Bindings
}

// match evaluates p against v. top is true while v is the node the match
// was started on, the only place ancestry is known.
func (m *matcher) match(v tree.Value, p Pattern, top bool) bool {
	switch p := p.(type) {
	case Literal:
		return matchLiteral(v, p.Value)
	case Regexp:
		if v.IsAbsent() || p.Re == nil {
			return false
		}
		return p.Re.MatchString(v.Text())
	case In:
		for _, alt := range p {
			if m.probe(v, alt, top) {
				return true
			}
		}
		return false
	case NotIn:
		for _, alt := range p {
			if m.probe(v, alt, top) {
				return false
			}
		}
		return true
	case Not:
		return !m.probe(v, p.Pattern, top)
	case Map:
		for _, e := range p {
			next, err := tree.Step(v, e.Seg)
			if errors.Is(err, tree.ErrOutOfRange) {
				// a missing element reads as nil
				next, err = tree.Absent(), nil
			}
			if err != nil {
				return false
			}
			if !m.match(next, e.Pattern, false) {
				return false
			}
		}
		return true
	case List:
		if v.Kind() != tree.ListValue || len(v.List()) != len(p) {
			return false
		}
		for i, el := range p {
			if !m.match(tree.Of(v.List()[i]), el, false) {
				return false
			}
		}
		return true
	case Or:
		for _, alt := range p {
			saved := m.snapshot()
			if m.match(v, alt, top) {
				return true
			}
			m.binds = saved
		}
		return false
	case Anything:
		return !v.IsAbsent()
	case Descendant:
		if !top || v.Kind() != tree.NodeValue {
			return false
		}
		if !m.match(v, p.Node, false) {
			return false
		}
		for i := len(m.ancestors) - 1; i >= 0; i-- {
			outer := matcher{ancestors: m.ancestors[:i], binds: m.snapshot()}
			if outer.match(tree.Of(m.ancestors[i]), p.Ancestor, true) {
				m.binds = outer.binds
				return true
			}
		}
		return false
	case Capture:
		if !m.match(v, p.Pattern, top) {
			return false
		}
		m.binds[p.Name] = v
		return true
	}
	return false
}

// probe evaluates p without keeping its bindings.
func (m *matcher) probe(v tree.Value, p Pattern, top bool) bool {
	saved := m.snapshot()
	ok := m.match(v, p, top)
	m.binds = saved
	return ok
}

func (m *matcher) snapshot() Bindings {
	out := make(Bindings, len(m.binds))
	for k, v := range m.binds {
		out[k] = v
	}
	return out
}

func matchLiteral(v tree.Value, lit any) bool {
	switch v.Kind() {
	case tree.AbsentValue:
		return lit == nil
	case tree.ListValue:
		return false
	case tree.ScalarValue:
		return matchScalar(v.Scalar(), lit)
	}
	n := v.Node()
	switch want := lit.(type) {
	case nil:
		return n.Kind() == rubyast.Nil
	case bool:
		if want {
			return n.Kind() == rubyast.True
		}
		return n.Kind() == rubyast.False
	case Symbol:
		s := string(want)
		if n.Kind() == rubyast.Sym {
			got, _ := n.Value()
			return got == s
		}
		if nameLike(n.Kind()) {
			return n.Source() == s
		}
		return n.Source() == ":"+s
	case string:
		if got, ok := n.Value(); ok {
			if str, ok := got.(string); ok && str == want {
				return true
			}
		}
		return n.Source() == want
	default:
		w, ok := toFloat(want)
		if !ok {
			return false
		}
		got, ok := n.Value()
		if !ok {
			return false
		}
		g, ok := toFloat(got)
		return ok && g == w
	}
}

func matchScalar(got, lit any) bool {
	switch want := lit.(type) {
	case nil:
		return got == nil
	case bool:
		b, ok := got.(bool)
		return ok && b == want
	case Symbol:
		return got != nil && fmt.Sprint(got) == string(want)
	case string:
		return got != nil && fmt.Sprint(got) == want
	}
	w, ok := toFloat(lit)
	if !ok {
		return false
	}
	g, ok := toFloat(got)
	return ok && g == w
}

func nameLike(k tree.Kind) bool {
	switch k {
	case rubyast.Ident, rubyast.Const, rubyast.Op, rubyast.Ivar:
		return true
	}
	return false
}

func toFloat(x any) (float64, bool) {
	switch v := x.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
