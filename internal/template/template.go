// Package template implements the replacement text language:
//
//	assert_nil({{ arguments.last }})
//
// Text outside `{{ }}` is copied verbatim, `\{{` produces a literal `{{`.
// Placeholders hold an attribute path resolved against the node being
// rewritten. Templates are parsed once and rendered per match.
package template

import (
	"fmt"
	"strings"

	"github.com/gnoswap-labs/rewrite/internal/tree"
)

// SyntaxError reports a malformed template.
type SyntaxError struct {
	Template string
	Position int
	Msg      string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("template %q: position %d: %s", e.Template, e.Position, e.Msg)
}

// ResolutionError reports a placeholder whose path does not exist on the
// node a template was rendered against.
type ResolutionError struct {
	Template string
	Path     tree.Path
	Node     tree.Range
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("template %q: cannot resolve {{ %s }} on node %s: %v", e.Template, e.Path, e.Node, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

type part struct {
	text string
	path tree.Path // nil for literal text
}

// Template is a parsed template.
type Template struct {
	src   string
	parts []part
}

// Parse parses a template string.
func Parse(s string) (*Template, error) {
	t := &Template{src: s}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.parts = append(t.parts, part{text: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], `\{{`):
			lit.WriteString("{{")
			i += 3
		case strings.HasPrefix(s[i:], "{{"):
			end := strings.Index(s[i+2:], "}}")
			if end < 0 {
				return nil, &SyntaxError{Template: s, Position: i, Msg: "unterminated placeholder"}
			}
			expr := strings.TrimSpace(s[i+2 : i+2+end])
			if expr == "" {
				return nil, &SyntaxError{Template: s, Position: i, Msg: "empty placeholder"}
			}
			path, err := tree.ParsePath(expr)
			if err != nil {
				return nil, &SyntaxError{Template: s, Position: i, Msg: err.Error()}
			}
			flush()
			t.parts = append(t.parts, part{path: path})
			i += end + 4
		default:
			lit.WriteByte(s[i])
			i++
		}
	}
	flush()
	return t, nil
}

// MustParse is Parse for package-level declarations.
func MustParse(s string) *Template {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Template) String() string { return t.src }

// Paths returns the placeholder paths in order of appearance.
func (t *Template) Paths() []tree.Path {
	var out []tree.Path
	for _, p := range t.parts {
		if p.path != nil {
			out = append(out, p.path)
		}
	}
	return out
}

// Render resolves every placeholder against n. Declared roles without a
// child render as the empty string.
func (t *Template) Render(n tree.Node) (string, error) {
	var sb strings.Builder
	for _, p := range t.parts {
		if p.path == nil {
			sb.WriteString(p.text)
			continue
		}
		v, err := p.path.ResolveNode(n)
		if err != nil {
			return "", &ResolutionError{Template: t.src, Path: p.path, Node: n.Range(), Err: err}
		}
		sb.WriteString(v.Text())
	}
	return sb.String(), nil
}

// Render parses and renders s in one step. Rule code built on literal
// templates should prefer MustParse at package level.
func Render(s string, n tree.Node) (string, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	return t.Render(n)
}

// Escape quotes s so that it renders as itself.
func Escape(s string) string {
	return strings.ReplaceAll(s, "{{", `\{{`)
}
