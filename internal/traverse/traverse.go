// Package traverse walks trees on behalf of rules. Every search is depth
// first, pre-order and left to right over the original tree; edits
// scheduled by callbacks never affect what later searches see.
package traverse

import (
	"errors"

	"github.com/gnoswap-labs/rewrite/internal/pattern"
	"github.com/gnoswap-labs/rewrite/internal/tree"
)

// Scope is the node in view plus the chain of its ancestors, outermost
// first. Bindings holds the captures of the match that produced the scope.
type Scope struct {
	Node      tree.Node
	Ancestors []tree.Node
	Bindings  pattern.Bindings
}

// Root returns the scope for the root of a tree.
func Root(n tree.Node) Scope {
	return Scope{Node: n}
}

// Parent returns the immediate ancestor, or nil at the root.
func (s Scope) Parent() tree.Node {
	if len(s.Ancestors) == 0 {
		return nil
	}
	return s.Ancestors[len(s.Ancestors)-1]
}

// Matches evaluates p against the scope node with its ancestry.
func (s Scope) Matches(p pattern.Pattern) bool {
	_, ok := pattern.MatchIn(s.Ancestors, s.Node, p)
	return ok
}

var errStop = errors.New("stop")

type search struct {
	pattern     pattern.Pattern
	includeSelf bool
	descend     bool // keep searching inside a match
	first       bool // stop after the first match
	fn          func(Scope) error
}

func (s Scope) run(q search) error {
	err := s.walk(q, s.Node, s.Ancestors, q.includeSelf)
	if errors.Is(err, errStop) {
		return nil
	}
	return err
}

func (s Scope) walk(q search, n tree.Node, ancestors []tree.Node, test bool) error {
	if test {
		if binds, ok := pattern.MatchIn(ancestors, n, q.pattern); ok {
			chain := make([]tree.Node, len(ancestors))
			copy(chain, ancestors)
			if err := q.fn(Scope{Node: n, Ancestors: chain, Bindings: binds}); err != nil {
				return err
			}
			if q.first {
				return errStop
			}
			if !q.descend {
				return nil
			}
		}
	}
	next := append(ancestors[:len(ancestors):len(ancestors)], n)
	for _, c := range n.Children() {
		if err := s.walk(q, c, next, true); err != nil {
			return err
		}
	}
	return nil
}

// Within calls fn with a narrowed scope for every match at or below the
// scope node. The subtree of a match is not searched further by this call.
func (s Scope) Within(p pattern.Pattern, fn func(Scope) error) error {
	return s.run(search{pattern: p, includeSelf: true, fn: fn})
}

// WithinFirst is Within that stops after the first match.
func (s Scope) WithinFirst(p pattern.Pattern, fn func(Scope) error) error {
	return s.run(search{pattern: p, includeSelf: true, first: true, fn: fn})
}

// Each calls fn for every match at or below the scope node, including
// matches nested inside other matches.
func (s Scope) Each(p pattern.Pattern, fn func(Scope) error) error {
	return s.run(search{pattern: p, includeSelf: true, descend: true, fn: fn})
}

// Exists reports whether any strict descendant of the scope node matches.
func (s Scope) Exists(p pattern.Pattern) bool {
	found := false
	_ = s.run(search{pattern: p, first: true, fn: func(Scope) error {
		found = true
		return nil
	}})
	return found
}

// Find returns the scopes of every match, in visiting order.
func (s Scope) Find(p pattern.Pattern) []Scope {
	var out []Scope
	_ = s.Each(p, func(m Scope) error {
		out = append(out, m)
		return nil
	})
	return out
}

// Goto narrows to the value at path. A node value yields one scope, a list
// yields one per element, an absent value yields none. Paths that cannot be
// followed return the *tree.PathError.
func (s Scope) Goto(path tree.Path, fn func(Scope) error) error {
	v, err := path.ResolveNode(s.Node)
	if err != nil {
		return err
	}
	chain := append(s.Ancestors[:len(s.Ancestors):len(s.Ancestors)], s.Node)
	var targets []tree.Node
	switch v.Kind() {
	case tree.NodeValue:
		targets = []tree.Node{v.Node()}
	case tree.ListValue:
		targets = v.List()
	}
	for _, n := range targets {
		if err := fn(Scope{Node: n, Ancestors: chain, Bindings: s.Bindings}); err != nil {
			return err
		}
	}
	return nil
}
