package tree

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of an attribute path: a role or virtual attribute
// name, or an integer index (negative counts from the end).
type Segment struct {
	Name    string
	Index   int
	IsIndex bool
}

func (s Segment) String() string {
	if s.IsIndex {
		return strconv.Itoa(s.Index)
	}
	return s.Name
}

// Path is a parsed attribute path such as `arguments.first.receiver` or
// `arguments.-1.on_value`.
type Path []Segment

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Virtual attribute and derived selector names.
const (
	AttrSize     = "size"
	AttrLength   = "length"
	AttrFirst    = "first"
	AttrLast     = "last"
	AttrChildren = "children"
	AttrSource   = "source"
	AttrToSource = "to_source"
	AttrValue    = "value"
	AttrToValue  = "to_value"
	AttrKind     = "node_type"
	AttrType     = "type"
	AttrKindName = "kind"
)

// IsKindAttr reports whether name addresses the node kind.
func IsKindAttr(name string) bool {
	return name == AttrKind || name == AttrType || name == AttrKindName
}

// ParseSegment turns a single path token into a Segment. Tokens that parse
// as integers become indices.
func ParseSegment(tok string) (Segment, error) {
	if tok == "" {
		return Segment{}, errors.New("empty path segment")
	}
	if i, err := strconv.Atoi(tok); err == nil {
		return Segment{Index: i, IsIndex: true}, nil
	}
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if !(c == '_' || c == '?' || c == '!' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return Segment{}, fmt.Errorf("invalid character %q in path segment %q", c, tok)
		}
	}
	return Segment{Name: tok}, nil
}

// ParsePath parses a dotted attribute path. `[i]` is accepted as sugar for
// `.i`.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty path")
	}
	s = strings.ReplaceAll(s, "[", ".")
	s = strings.ReplaceAll(s, "]", "")
	var p Path
	for _, tok := range strings.Split(s, ".") {
		seg, err := ParseSegment(tok)
		if err != nil {
			return nil, fmt.Errorf("path %q: %w", s, err)
		}
		p = append(p, seg)
	}
	return p, nil
}

// MustParsePath is ParsePath for package-level declarations.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ErrOutOfRange is wrapped by a PathError for a list step past either end.
var ErrOutOfRange = errors.New("index out of range")

// PathError reports an attribute path that cannot be followed.
type PathError struct {
	Path    Path
	Segment Segment
	Reason  string
	Err     error
}

func (e *PathError) Error() string {
	msg := fmt.Sprintf("path %q: cannot resolve %q: %s", e.Path.String(), e.Segment.String(), e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PathError) Unwrap() error { return e.Err }

// Resolve follows p starting at v.
func (p Path) Resolve(v Value) (Value, error) {
	cur := v
	for _, seg := range p {
		next, err := Step(cur, seg)
		if err != nil {
			var pe *PathError
			if errors.As(err, &pe) {
				pe.Path = p
				return Value{}, pe
			}
			return Value{}, &PathError{Path: p, Segment: seg, Reason: "lookup failed", Err: err}
		}
		cur = next
	}
	return cur, nil
}

// ResolveNode follows p starting at n.
func (p Path) ResolveNode(n Node) (Value, error) {
	return p.Resolve(Of(n))
}

// Step follows a single segment from v.
func Step(v Value, seg Segment) (Value, error) {
	switch v.kind {
	case AbsentValue:
		return Value{}, &PathError{Segment: seg, Reason: "value is absent"}
	case NodeValue:
		return stepNode(v.node, seg)
	case ListValue:
		return stepList(v.list, seg)
	default:
		return stepScalar(v, seg)
	}
}

func stepNode(n Node, seg Segment) (Value, error) {
	if seg.IsIndex {
		return Value{}, &PathError{Segment: seg, Reason: fmt.Sprintf("node kind %q is not a list", n.Kind())}
	}
	v, err := n.Role(seg.Name)
	if err == nil {
		return v, nil
	}
	var unknown *UnknownRoleError
	if !errors.As(err, &unknown) {
		return Value{}, err
	}
	switch {
	case seg.Name == AttrSource || seg.Name == AttrToSource:
		return Scalar(n.Source()), nil
	case seg.Name == AttrValue || seg.Name == AttrToValue:
		if x, ok := n.Value(); ok {
			return Scalar(x), nil
		}
		return Scalar(n.Source()), nil
	case IsKindAttr(seg.Name):
		return Scalar(string(n.Kind())), nil
	case seg.Name == AttrChildren:
		return ListOf(n.Children()), nil
	}
	return Value{}, &PathError{Segment: seg, Reason: "unknown role", Err: err}
}

func stepList(list []Node, seg Segment) (Value, error) {
	idx := 0
	switch {
	case seg.IsIndex:
		idx = seg.Index
	case seg.Name == AttrSize || seg.Name == AttrLength:
		return Scalar(len(list)), nil
	case seg.Name == AttrFirst:
		idx = 0
	case seg.Name == AttrLast:
		idx = -1
	case seg.Name == AttrSource || seg.Name == AttrToSource:
		return Scalar(ListOf(list).Text()), nil
	default:
		return Value{}, &PathError{Segment: seg, Reason: "lists only support size, first, last and indices"}
	}
	if idx < 0 {
		idx += len(list)
	}
	if idx < 0 || idx >= len(list) {
		return Value{}, &PathError{Segment: seg, Reason: fmt.Sprintf("list of %d", len(list)), Err: ErrOutOfRange}
	}
	return Of(list[idx]), nil
}

func stepScalar(v Value, seg Segment) (Value, error) {
	switch seg.Name {
	case AttrSource, AttrToSource, AttrValue, AttrToValue:
		if !seg.IsIndex {
			return v, nil
		}
	}
	return Value{}, &PathError{Segment: seg, Reason: "scalars have no attributes"}
}
