package tree

// Source is the text buffer a tree was parsed from. Nodes share it by
// reference.
type Source struct {
	Filename string
	Text     []byte
}

// Slice returns the text covered by r, clamped to the buffer.
func (s *Source) Slice(r Range) string {
	start, end := r.Start, r.End
	if start < 0 {
		start = 0
	}
	if end > len(s.Text) {
		end = len(s.Text)
	}
	if start >= end {
		return ""
	}
	return string(s.Text[start:end])
}

// RoleResolver resolves roles that are computed rather than stored, such as
// the `<key>_value` accessors of hash literals. It reports false when the
// name is not one it handles.
type RoleResolver func(n *Basic, name string) (Value, bool)

// Basic is the Node implementation providers build trees from. The builder
// methods are meant to be called only while a tree is being constructed.
type Basic struct {
	kind     Kind
	rng      Range
	src      *Source
	children []Node
	roles    map[string]Value
	order    []string
	value    any
	hasValue bool
	resolve  RoleResolver
}

var _ Node = (*Basic)(nil)

// NewBasic creates a node of the given kind over r.
func NewBasic(src *Source, kind Kind, r Range) *Basic {
	return &Basic{
		kind:  kind,
		rng:   r,
		src:   src,
		roles: make(map[string]Value),
	}
}

// AddChild appends ordered children.
func (b *Basic) AddChild(children ...Node) *Basic {
	for _, c := range children {
		if c != nil {
			b.children = append(b.children, c)
		}
	}
	return b
}

// SetRole declares a role and binds its value. Binding Absent still declares
// the role.
func (b *Basic) SetRole(name string, v Value) *Basic {
	if _, ok := b.roles[name]; !ok {
		b.order = append(b.order, name)
	}
	b.roles[name] = v
	return b
}

// SetValue records the derived scalar.
func (b *Basic) SetValue(v any) *Basic {
	b.value = v
	b.hasValue = true
	return b
}

// SetResolver installs a resolver for computed roles.
func (b *Basic) SetResolver(r RoleResolver) *Basic {
	b.resolve = r
	return b
}

func (b *Basic) Kind() Kind       { return b.kind }
func (b *Basic) Range() Range     { return b.rng }
func (b *Basic) Children() []Node { return b.children }
func (b *Basic) Roles() []string  { return b.order }
func (b *Basic) Value() (any, bool) {
	return b.value, b.hasValue
}

// File returns the buffer the node was parsed from.
func (b *Basic) File() *Source { return b.src }

func (b *Basic) Source() string {
	if b.src == nil {
		return ""
	}
	return b.src.Slice(b.rng)
}

func (b *Basic) Role(name string) (Value, error) {
	if v, ok := b.roles[name]; ok {
		return v, nil
	}
	if b.resolve != nil {
		if v, ok := b.resolve(b, name); ok {
			return v, nil
		}
	}
	return Value{}, &UnknownRoleError{Kind: b.kind, Role: name}
}

func (b *Basic) span(r Range) string {
	if b.src == nil {
		return ""
	}
	return b.src.Slice(r)
}
