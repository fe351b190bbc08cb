package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnoswap-labs/rewrite/internal/tree"
	"github.com/gnoswap-labs/rewrite/internal/tree/rubyast"
	"github.com/gnoswap-labs/rewrite/internal/tree/treetest"
)

func stmt(t *testing.T, src string) tree.Node {
	t.Helper()
	body, err := treetest.Parse(src).Role(rubyast.RoleBody)
	require.NoError(t, err)
	return body.List()[0]
}

func TestRender(t *testing.T) {
	t.Parallel()
	n := stmt(t, `assert_equal(nil, foo.bar(1, "two"))`)
	tests := []struct {
		tmpl string
		want string
	}{
		{"assert_nil({{ arguments.last }})", `assert_nil(foo.bar(1, "two"))`},
		{"{{message}}", "assert_equal"},
		{"{{ arguments.1.receiver }}.{{ arguments.-1.message }}", "foo.bar"},
		{"[{{ arguments.last.arguments }}]", `[1, "two"]`},
		{"{{ arguments.last.arguments.last.value }}", "two"},
		{"{{ arguments.size }} args", "2 args"},
		{"{{ arguments[0] }}", "nil"},
		{"{{ arguments.first.to_source }}", "nil"},
		{`literal \{{ braces }}`, "literal {{ braces }}"},
		{"[{{ receiver }}]", "[]"},
		{"no placeholders", "no placeholders"},
	}
	for _, tt := range tests {
		got, err := Render(tt.tmpl, n)
		require.NoError(t, err, tt.tmpl)
		assert.Equal(t, tt.want, got, tt.tmpl)
	}
}

func TestRenderRoundTripsLiteralChildren(t *testing.T) {
	t.Parallel()
	n := stmt(t, `foo(:sym, "str", 'single', 42, 1.5, nil, true, [1, 2], {a: 1})`)
	args, err := n.Role(rubyast.RoleArguments)
	require.NoError(t, err)
	for i, a := range args.List() {
		tmpl := MustParse("{{ arguments." + string(rune('0'+i)) + " }}")
		got, err := tmpl.Render(n)
		require.NoError(t, err)
		assert.Equal(t, a.Source(), got)
	}
}

func TestResolutionError(t *testing.T) {
	t.Parallel()
	n := stmt(t, "foo(1)")
	for _, tmpl := range []string{"{{ arguments.3 }}", "{{ pairs }}", "{{ receiver.message }}", "{{ arguments.first.body }}"} {
		_, err := Render(tmpl, n)
		var re *ResolutionError
		require.ErrorAs(t, err, &re, tmpl)
		assert.Equal(t, n.Range(), re.Node)
	}
}

func TestSyntaxError(t *testing.T) {
	t.Parallel()
	for _, tmpl := range []string{"{{ open", "{{ }}", "{{ a b }}", "{{ a..b }}"} {
		_, err := Parse(tmpl)
		var se *SyntaxError
		assert.ErrorAs(t, err, &se, tmpl)
	}
	assert.Panics(t, func() { MustParse("{{") })
}

func TestPaths(t *testing.T) {
	t.Parallel()
	tmpl := MustParse("{{ receiver }}.each_key{{ arguments }}")
	paths := tmpl.Paths()
	require.Len(t, paths, 2)
	assert.Equal(t, "receiver", paths[0].String())
	assert.Equal(t, "arguments", paths[1].String())
	assert.Equal(t, "{{ receiver }}.each_key{{ arguments }}", tmpl.String())
}

func TestEscape(t *testing.T) {
	t.Parallel()
	n := stmt(t, "foo(1)")
	for _, raw := range []string{"plain", "{{ a }}", `x \{{ y`, "}}{{"} {
		out, err := MustParse(Escape(raw)).Render(n)
		require.NoError(t, err)
		assert.Equal(t, raw, out)
	}
}
