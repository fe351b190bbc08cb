package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnoswap-labs/rewrite/internal/pattern"
	"github.com/gnoswap-labs/rewrite/internal/tree"
	"github.com/gnoswap-labs/rewrite/internal/tree/rubyast"
	"github.com/gnoswap-labs/rewrite/internal/tree/treetest"
)

const corpus = `assert_equal(nil, x)
assert_equal(1, x)
t.assert_equal(nil, x)
a.keys.each
a.keys.each(1)
foo.deliver_signup(user)
after_commit :add_to_index, on: :create
class Notifier < ActionMailer::Base
  def signup(user)
    mail(to: user)
  end
end
h.each { |k, v| puts(k) }
`

// matchSet returns the source of every node in the corpus matching p,
// tracking ancestors so descendant patterns work.
func matchSet(t *testing.T, p pattern.Pattern) []string {
	t.Helper()
	var out []string
	var walk func(n tree.Node, anc []tree.Node)
	walk = func(n tree.Node, anc []tree.Node) {
		if _, ok := pattern.MatchIn(anc, n, p); ok {
			out = append(out, n.Range().String()+" "+n.Source())
		}
		next := append(append([]tree.Node{}, anc...), n)
		for _, c := range n.Children() {
			walk(c, next)
		}
	}
	walk(treetest.Parse(corpus), nil)
	return out
}

func TestCompileEquivalentToHandBuilt(t *testing.T) {
	t.Parallel()
	tests := []struct {
		selector string
		manual   pattern.Pattern
		matches  int
	}{
		{
			selector: ".send[receiver=nil][message=assert_equal][arguments.size=2][arguments.first=nil]",
			manual: pattern.Node(rubyast.Send,
				pattern.Attr("receiver", pattern.Nil()),
				pattern.Attr("message", pattern.Lit("assert_equal")),
				pattern.Attr("arguments.size", pattern.Lit(2)),
				pattern.Attr("arguments.first", pattern.Nil()),
			),
			matches: 1,
		},
		{
			selector: ".send[message=each][arguments.size=0][receiver=.send[message=keys][arguments.size=0]]",
			manual: pattern.Node(rubyast.Send,
				pattern.Attr("message", pattern.Lit("each")),
				pattern.Attr("arguments.size", pattern.Lit(0)),
				pattern.Attr("receiver", pattern.Node(rubyast.Send,
					pattern.Attr("message", pattern.Lit("keys")),
					pattern.Attr("arguments.size", pattern.Lit(0)),
				)),
			),
			matches: 1,
		},
		{
			selector: ".send[message=~/\\Adeliver_/]",
			manual:   pattern.Node(rubyast.Send, pattern.Attr("message", pattern.MustRe(`\Adeliver_`))),
			matches:  1,
		},
		{
			selector: ".send[message^=deliver_]",
			manual:   pattern.Node(rubyast.Send, pattern.Attr("message", pattern.MustRe(`^deliver_`))),
			matches:  1,
		},
		{
			selector: ".send[arguments.-1.on_value=:create]",
			manual:   pattern.Node(rubyast.Send, pattern.Attr("arguments.-1.on_value", pattern.Sym("create"))),
			matches:  1,
		},
		{
			selector: ".send[message in (assert_equal mail)]",
			manual: pattern.Node(rubyast.Send,
				pattern.Attr("message", pattern.In{pattern.Lit("assert_equal"), pattern.Lit("mail")}),
			),
			matches: 4,
		},
		{
			selector: ".send[message not in (assert_equal, mail)][receiver!=nil]",
			manual: pattern.Node(rubyast.Send,
				pattern.Attr("message", pattern.NotIn{pattern.Lit("assert_equal"), pattern.Lit("mail")}),
				pattern.Attr("receiver", pattern.Not{Pattern: pattern.Nil()}),
			),
			matches: 6,
		},
		{
			selector: ".class[parent_class=ActionMailer::Base] .send[message=mail]",
			manual: pattern.Descendant{
				Ancestor: pattern.Node(rubyast.Class, pattern.Attr("parent_class", pattern.Lit("ActionMailer::Base"))),
				Node:     pattern.Node(rubyast.Send, pattern.Attr("message", pattern.Lit("mail"))),
			},
			matches: 1,
		},
		{
			selector: ".block[caller.message=each][arguments.size=2], .def",
			manual: pattern.Or{
				pattern.Node(rubyast.Block,
					pattern.Attr("caller.message", pattern.Lit("each")),
					pattern.Attr("arguments.size", pattern.Lit(2)),
				),
				pattern.Node(rubyast.Def),
			},
			matches: 2,
		},
		{
			selector: ".send[arguments=(nil x)]",
			manual:   pattern.Node(rubyast.Send, pattern.Attr("arguments", pattern.List{pattern.Nil(), pattern.Lit("x")})),
			matches:  2,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.selector, func(t *testing.T) {
			t.Parallel()
			compiled, err := Compile(tt.selector)
			require.NoError(t, err)
			got := matchSet(t, compiled)
			assert.Equal(t, matchSet(t, tt.manual), got)
			assert.Len(t, got, tt.matches)
		})
	}
}

func TestCompileValues(t *testing.T) {
	t.Parallel()
	tests := []struct {
		selector string
		want     string
	}{
		{".send[arguments.0=42]", "{node_type: \"send\", arguments: {0: 42}}"},
		{".send[arguments.0=1.5]", "{node_type: \"send\", arguments: {0: 1.5}}"},
		{".send[arguments.0=true]", "{node_type: \"send\", arguments: {0: true}}"},
		{".send[arguments.0='a b']", "{node_type: \"send\", arguments: {0: \"a b\"}}"},
		{".send[arguments.0=:sym]", "{node_type: \"send\", arguments: {0: :sym}}"},
		{"*", "*"},
		{"*[message=foo]", "{message: \"foo\"}"},
	}
	for _, tt := range tests {
		p, err := Compile(tt.selector)
		require.NoError(t, err, tt.selector)
		assert.Equal(t, tt.want, p.String(), tt.selector)
	}
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()
	bad := []string{
		"",
		"send",
		".send[",
		".send[message]",
		".send[message=]",
		".send[message=foo",
		".send[message=~/(/]",
		".send[arguments=(a b]",
		".send[message=\"open]",
		".send[message not foo]",
		".[message=foo]",
		".send[message=foo] ,",
	}
	for _, s := range bad {
		_, err := Compile(s)
		var se *SyntaxError
		assert.ErrorAs(t, err, &se, "selector %q", s)
	}
}

func TestMustCompilePanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { MustCompile(".send[") })
	assert.NotPanics(t, func() { MustCompile(".send") })
}

func TestMissingListElementIsNil(t *testing.T) {
	t.Parallel()
	body, err := treetest.Parse("foo()\n").Role(rubyast.RoleBody)
	require.NoError(t, err)
	call := body.List()[0]

	for _, sel := range []string{
		".send[receiver=nil]",
		".send[arguments.first=nil]",
		".send[arguments.last=nil]",
		".send[arguments.-1=nil]",
	} {
		assert.True(t, pattern.Matches(call, MustCompile(sel)), sel)
	}
	assert.False(t, pattern.Matches(call, MustCompile(".send[arguments.first!=nil]")))
}
