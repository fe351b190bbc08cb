// Package tree defines the read-only view over a parsed program that the
// matcher, traversal engine and template renderer work against.
//
// Providers (see the ruby subpackage) build trees out of Basic nodes. A node
// never outlives the source buffer it was parsed from.
package tree

import (
	"fmt"
	"strings"
)

// Kind tags the syntactic category of a node.
type Kind string

// Range is a half-open byte interval [Start, End) into the original text.
type Range struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the range.
func (r Range) Len() int { return r.End - r.Start }

// Empty reports whether the range is zero-width.
func (r Range) Empty() bool { return r.Start == r.End }

// Overlaps reports whether two ranges share at least one byte, or whether a
// zero-width range sits strictly inside the other one.
func (r Range) Overlaps(o Range) bool {
	if r.Empty() && o.Empty() {
		return false
	}
	if r.Empty() {
		return o.Start < r.Start && r.Start < o.End
	}
	if o.Empty() {
		return r.Start < o.Start && o.Start < r.End
	}
	return r.Start < o.End && o.Start < r.End
}

// Contains reports whether o lies within r.
func (r Range) Contains(o Range) bool {
	return r.Start <= o.Start && o.End <= r.End
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Node is an immutable reference into a parsed tree.
type Node interface {
	Kind() Kind
	Range() Range
	// Children returns the ordered child nodes.
	Children() []Node
	// Roles returns the role names declared for the node's kind.
	Roles() []string
	// Role resolves a semantic role. Roles the kind does not declare fail
	// with *UnknownRoleError; declared roles without a child are Absent.
	Role(name string) (Value, error)
	// Value returns the derived scalar (symbol name, string payload,
	// number, bool, or nil for the nil literal).
	Value() (any, bool)
	// Source returns the node's original text.
	Source() string
}

// Parser produces a tree from source text.
type Parser interface {
	Parse(filename string, src []byte) (Node, error)
}

// UnknownRoleError is returned when a role is requested that the node kind
// does not declare.
type UnknownRoleError struct {
	Kind Kind
	Role string
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("node kind %q has no role %q", e.Kind, e.Role)
}

// ParseError reports a file the provider could not parse.
type ParseError struct {
	Filename string
	Line     int
	Column   int
	Msg      string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Filename, e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Filename, e.Msg)
}

// Walk visits n and its descendants depth-first in pre-order. Returning false
// from fn skips the children of the visited node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children() {
		Walk(c, fn)
	}
}

// Dump renders a tree as an indented outline, mainly for debugging and the
// query command.
func Dump(n Node) string {
	var sb strings.Builder
	var dump func(Node, int)
	dump = func(n Node, depth int) {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(string(n.Kind()))
		sb.WriteString(" ")
		sb.WriteString(n.Range().String())
		if v, ok := n.Value(); ok && v != nil {
			fmt.Fprintf(&sb, " %v", v)
		}
		sb.WriteString("\n")
		for _, c := range n.Children() {
			dump(c, depth+1)
		}
	}
	dump(n, 0)
	return sb.String()
}
