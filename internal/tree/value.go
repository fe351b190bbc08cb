package tree

import (
	"fmt"
	"strings"
)

// ValueKind tags the variants of Value.
type ValueKind int

const (
	AbsentValue ValueKind = iota
	NodeValue
	ListValue
	ScalarValue
)

func (k ValueKind) String() string {
	switch k {
	case AbsentValue:
		return "absent"
	case NodeValue:
		return "node"
	case ListValue:
		return "list"
	case ScalarValue:
		return "scalar"
	default:
		return "unknown"
	}
}

// Value is what a role or attribute path resolves to: nothing, a single
// node, an ordered list of nodes, or a scalar such as a size.
type Value struct {
	kind   ValueKind
	node   Node
	list   []Node
	scalar any
}

// Absent returns the empty value.
func Absent() Value { return Value{} }

// Of wraps a node; a nil node is Absent.
func Of(n Node) Value {
	if n == nil {
		return Value{}
	}
	return Value{kind: NodeValue, node: n}
}

// ListOf wraps an ordered list of nodes. The list may be empty.
func ListOf(nodes []Node) Value {
	if nodes == nil {
		nodes = []Node{}
	}
	return Value{kind: ListValue, list: nodes}
}

// Scalar wraps a derived scalar.
func Scalar(x any) Value { return Value{kind: ScalarValue, scalar: x} }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsAbsent() bool  { return v.kind == AbsentValue }
func (v Value) Node() Node      { return v.node }
func (v Value) List() []Node    { return v.list }
func (v Value) Scalar() any     { return v.scalar }

// Range returns the byte range covered by a node or a non-empty list.
func (v Value) Range() (Range, bool) {
	switch v.kind {
	case NodeValue:
		return v.node.Range(), true
	case ListValue:
		if len(v.list) == 0 {
			return Range{}, false
		}
		return Range{Start: v.list[0].Range().Start, End: v.list[len(v.list)-1].Range().End}, true
	}
	return Range{}, false
}

// Text renders the value as source text. Lists render as the original span
// from the first element to the last one, separators included.
func (v Value) Text() string {
	switch v.kind {
	case NodeValue:
		return v.node.Source()
	case ListValue:
		if len(v.list) == 0 {
			return ""
		}
		if s, ok := v.list[0].(spanner); ok {
			r, _ := v.Range()
			return s.span(r)
		}
		parts := make([]string, len(v.list))
		for i, n := range v.list {
			parts[i] = n.Source()
		}
		return strings.Join(parts, ", ")
	case ScalarValue:
		if v.scalar == nil {
			return "nil"
		}
		return fmt.Sprint(v.scalar)
	}
	return ""
}

func (v Value) String() string {
	return fmt.Sprintf("%s(%s)", v.kind, v.Text())
}

// spanner is implemented by nodes that can slice arbitrary ranges out of
// their source buffer.
type spanner interface {
	span(r Range) string
}
