// Package rubyast is the closed node schema Ruby providers build trees in.
//
// Kinds follow the naming of the whitequark parser gem so that selectors read
// the way Ruby rule authors expect (`.send[message=keys]`). Every kind below
// declares a fixed role set; anything else is an unknown role.
package rubyast

import (
	"strings"

	"github.com/gnoswap-labs/rewrite/internal/tree"
)

const (
	Program tree.Kind = "program"
	Send    tree.Kind = "send"
	Block   tree.Kind = "block"
	Def     tree.Kind = "def"
	Defs    tree.Kind = "defs"
	Class   tree.Kind = "class"
	Module  tree.Kind = "module"
	Hash    tree.Kind = "hash"
	Pair    tree.Kind = "pair"
	Array   tree.Kind = "array"
	Index   tree.Kind = "index"
	Assign  tree.Kind = "assign"

	Const tree.Kind = "const"
	Ident tree.Kind = "ident"
	Op    tree.Kind = "op"
	Ivar  tree.Kind = "ivar"
	Sym   tree.Kind = "sym"
	Str   tree.Kind = "str"
	Int   tree.Kind = "int"
	Float tree.Kind = "float"
	Nil   tree.Kind = "nil"
	True  tree.Kind = "true"
	False tree.Kind = "false"
	Self  tree.Kind = "self"
)

const (
	RoleReceiver    = "receiver"
	RoleMessage     = "message"
	RoleArguments   = "arguments"
	RoleCaller      = "caller"
	RoleBody        = "body"
	RoleName        = "name"
	RoleParentClass = "parent_class"
	RoleKey         = "key"
	RoleValue       = "value"
	RolePairs       = "pairs"
	RoleKeys        = "keys"
	RoleValues      = "values"
	RoleElements    = "elements"
	RoleLeft        = "left"
	RoleRight       = "right"
)

// Schema lists the declared roles per kind. Leaf kinds declare none.
var Schema = map[tree.Kind][]string{
	Program: {RoleBody},
	Send:    {RoleReceiver, RoleMessage, RoleArguments},
	Block:   {RoleCaller, RoleArguments, RoleBody},
	Def:     {RoleName, RoleArguments, RoleBody},
	Defs:    {RoleReceiver, RoleName, RoleArguments, RoleBody},
	Class:   {RoleName, RoleParentClass, RoleBody},
	Module:  {RoleName, RoleBody},
	Hash:    {RolePairs, RoleKeys, RoleValues},
	Pair:    {RoleKey, RoleValue},
	Array:   {RoleElements},
	Index:   {RoleReceiver, RoleArguments},
	Assign:  {RoleLeft, RoleRight},
}

func node(src *tree.Source, kind tree.Kind, r tree.Range) *tree.Basic {
	return tree.NewBasic(src, kind, r)
}

// NewLeaf builds a role-less node with a derived value.
func NewLeaf(src *tree.Source, kind tree.Kind, r tree.Range, value any) *tree.Basic {
	return node(src, kind, r).SetValue(value)
}

// NewGeneric builds a node of a kind outside the schema. It only exposes
// children.
func NewGeneric(src *tree.Source, kind tree.Kind, r tree.Range, children []tree.Node) *tree.Basic {
	return node(src, kind, r).AddChild(children...)
}

func NewProgram(src *tree.Source, r tree.Range, body []tree.Node) *tree.Basic {
	return node(src, Program, r).
		AddChild(body...).
		SetRole(RoleBody, tree.ListOf(body))
}

func NewSend(src *tree.Source, r tree.Range, receiver, message tree.Node, args []tree.Node) *tree.Basic {
	return node(src, Send, r).
		AddChild(receiver, message).
		AddChild(args...).
		SetRole(RoleReceiver, tree.Of(receiver)).
		SetRole(RoleMessage, tree.Of(message)).
		SetRole(RoleArguments, tree.ListOf(args))
}

func NewBlock(src *tree.Source, r tree.Range, caller tree.Node, params, body []tree.Node) *tree.Basic {
	return node(src, Block, r).
		AddChild(caller).
		AddChild(params...).
		AddChild(body...).
		SetRole(RoleCaller, tree.Of(caller)).
		SetRole(RoleArguments, tree.ListOf(params)).
		SetRole(RoleBody, tree.ListOf(body))
}

func NewDef(src *tree.Source, r tree.Range, name tree.Node, params, body []tree.Node) *tree.Basic {
	return node(src, Def, r).
		AddChild(name).
		AddChild(params...).
		AddChild(body...).
		SetRole(RoleName, tree.Of(name)).
		SetRole(RoleArguments, tree.ListOf(params)).
		SetRole(RoleBody, tree.ListOf(body))
}

func NewDefs(src *tree.Source, r tree.Range, receiver, name tree.Node, params, body []tree.Node) *tree.Basic {
	return node(src, Defs, r).
		AddChild(receiver, name).
		AddChild(params...).
		AddChild(body...).
		SetRole(RoleReceiver, tree.Of(receiver)).
		SetRole(RoleName, tree.Of(name)).
		SetRole(RoleArguments, tree.ListOf(params)).
		SetRole(RoleBody, tree.ListOf(body))
}

func NewClass(src *tree.Source, r tree.Range, name, parent tree.Node, body []tree.Node) *tree.Basic {
	return node(src, Class, r).
		AddChild(name, parent).
		AddChild(body...).
		SetRole(RoleName, tree.Of(name)).
		SetRole(RoleParentClass, tree.Of(parent)).
		SetRole(RoleBody, tree.ListOf(body))
}

func NewModule(src *tree.Source, r tree.Range, name tree.Node, body []tree.Node) *tree.Basic {
	return node(src, Module, r).
		AddChild(name).
		AddChild(body...).
		SetRole(RoleName, tree.Of(name)).
		SetRole(RoleBody, tree.ListOf(body))
}

func NewPair(src *tree.Source, r tree.Range, key, value tree.Node) *tree.Basic {
	return node(src, Pair, r).
		AddChild(key, value).
		SetRole(RoleKey, tree.Of(key)).
		SetRole(RoleValue, tree.Of(value))
}

// NewHash builds a hash literal. Besides pairs, keys and values it resolves
// `<key>_pair` and `<key>_value` for every key whose derived value is key.
func NewHash(src *tree.Source, r tree.Range, pairs []tree.Node) *tree.Basic {
	var keys, values []tree.Node
	for _, p := range pairs {
		if k, err := p.Role(RoleKey); err == nil && !k.IsAbsent() {
			keys = append(keys, k.Node())
		}
		if v, err := p.Role(RoleValue); err == nil && !v.IsAbsent() {
			values = append(values, v.Node())
		}
	}
	return node(src, Hash, r).
		AddChild(pairs...).
		SetRole(RolePairs, tree.ListOf(pairs)).
		SetRole(RoleKeys, tree.ListOf(keys)).
		SetRole(RoleValues, tree.ListOf(values)).
		SetResolver(resolveHashKey)
}

func resolveHashKey(n *tree.Basic, name string) (tree.Value, bool) {
	var key, role string
	switch {
	case strings.HasSuffix(name, "_pair"):
		key, role = strings.TrimSuffix(name, "_pair"), ""
	case strings.HasSuffix(name, "_value"):
		key, role = strings.TrimSuffix(name, "_value"), RoleValue
	default:
		return tree.Value{}, false
	}
	if key == "" {
		return tree.Value{}, false
	}
	for _, p := range n.Children() {
		k, err := p.Role(RoleKey)
		if err != nil || k.IsAbsent() || KeyName(k.Node()) != key {
			continue
		}
		if role == "" {
			return tree.Of(p), true
		}
		v, err := p.Role(role)
		if err != nil {
			return tree.Value{}, false
		}
		return v, true
	}
	return tree.Absent(), true
}

// KeyName returns the name a hash key is addressed by: the symbol or string
// payload, or the source text for anything else.
func KeyName(n tree.Node) string {
	if v, ok := n.Value(); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return n.Source()
}

func NewArray(src *tree.Source, r tree.Range, elems []tree.Node) *tree.Basic {
	return node(src, Array, r).
		AddChild(elems...).
		SetRole(RoleElements, tree.ListOf(elems))
}

func NewIndex(src *tree.Source, r tree.Range, receiver tree.Node, args []tree.Node) *tree.Basic {
	return node(src, Index, r).
		AddChild(receiver).
		AddChild(args...).
		SetRole(RoleReceiver, tree.Of(receiver)).
		SetRole(RoleArguments, tree.ListOf(args))
}

func NewAssign(src *tree.Source, r tree.Range, left, right tree.Node) *tree.Basic {
	return node(src, Assign, r).
		AddChild(left, right).
		SetRole(RoleLeft, tree.Of(left)).
		SetRole(RoleRight, tree.Of(right))
}
