package ruby

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnoswap-labs/rewrite/internal/tree"
	"github.com/gnoswap-labs/rewrite/internal/tree/rubyast"
)

func parse(t *testing.T, src string) tree.Node {
	t.Helper()
	n, err := New().Parse("test.rb", []byte(src))
	require.NoError(t, err)
	require.Equal(t, rubyast.Program, n.Kind())
	return n
}

func resolve(t *testing.T, n tree.Node, path string) tree.Value {
	t.Helper()
	v, err := tree.MustParsePath(path).ResolveNode(n)
	require.NoError(t, err, path)
	return v
}

func TestSendMapping(t *testing.T) {
	t.Parallel()
	prog := parse(t, "assert_equal(nil, foo.bar)\n")

	call := resolve(t, prog, "body.first").Node()
	require.Equal(t, rubyast.Send, call.Kind())
	assert.True(t, resolve(t, call, "receiver").IsAbsent())
	assert.Equal(t, "assert_equal", resolve(t, call, "message").Text())
	assert.Equal(t, 2, resolve(t, call, "arguments.size").Scalar())
	assert.Equal(t, rubyast.Nil, resolve(t, call, "arguments.first").Node().Kind())
	assert.Equal(t, "foo", resolve(t, call, "arguments.last.receiver").Text())
	assert.Equal(t, "nil, foo.bar", resolve(t, call, "arguments").Text())
}

func TestKeywordArgumentsBecomeHash(t *testing.T) {
	t.Parallel()
	prog := parse(t, "after_commit :foo, on: :create\n")

	call := resolve(t, prog, "body.first").Node()
	last := resolve(t, call, "arguments.last").Node()
	require.Equal(t, rubyast.Hash, last.Kind())
	assert.Equal(t, "on: :create", last.Source())
	assert.Equal(t, ":create", resolve(t, last, "on_value").Text())

	sym, ok := resolve(t, call, "arguments.first").Node().Value()
	require.True(t, ok)
	assert.Equal(t, "foo", sym)
}

func TestBlockMapping(t *testing.T) {
	t.Parallel()
	prog := parse(t, "h.keys.each { |k| puts k }\n")

	blk := resolve(t, prog, "body.first").Node()
	require.Equal(t, rubyast.Block, blk.Kind())
	assert.Equal(t, "h.keys.each", resolve(t, blk, "caller").Text())
	assert.Equal(t, "each", resolve(t, blk, "caller.message").Text())
	assert.Equal(t, "keys", resolve(t, blk, "caller.receiver.message").Text())
	assert.Equal(t, 1, resolve(t, blk, "arguments.size").Scalar())
	assert.Equal(t, "puts k", resolve(t, blk, "body.first").Text())
}

func TestOperatorsBecomeSends(t *testing.T) {
	t.Parallel()
	prog := parse(t, "assert(!actual.nil?)\nassert(\"x\" != actual)\n")

	not := resolve(t, prog, "body.first.arguments.first").Node()
	require.Equal(t, rubyast.Send, not.Kind())
	assert.Equal(t, "!", resolve(t, not, "message").Text())
	assert.Equal(t, "nil?", resolve(t, not, "receiver.message").Text())
	assert.Equal(t, 0, resolve(t, not, "arguments.size").Scalar())

	neq := resolve(t, prog, "body.last.arguments.first").Node()
	assert.Equal(t, "!=", resolve(t, neq, "message").Text())
	assert.Equal(t, "\"x\"", resolve(t, neq, "receiver").Text())
	assert.Equal(t, "actual", resolve(t, neq, "arguments").Text())
}

func TestBooleanOperatorsKeepTheirKind(t *testing.T) {
	t.Parallel()
	prog := parse(t, "a && b(1)\n")

	and := resolve(t, prog, "body.first").Node()
	assert.Equal(t, tree.Kind("binary"), and.Kind())
	assert.Equal(t, "a && b(1)", and.Source())
	children := and.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "a", children[0].Source())
	assert.Equal(t, rubyast.Send, children[1].Kind())
}

func TestClassAndDefMapping(t *testing.T) {
	t.Parallel()
	src := "class Notifier < ActionMailer::Base\n  def signup(user)\n    # comment\n    mail(to: user)\n  end\nend\n"
	prog := parse(t, src)

	class := resolve(t, prog, "body.first").Node()
	require.Equal(t, rubyast.Class, class.Kind())
	assert.Equal(t, "Notifier", resolve(t, class, "name").Text())
	assert.Equal(t, "ActionMailer::Base", resolve(t, class, "parent_class").Text())

	def := resolve(t, class, "body.first").Node()
	require.Equal(t, rubyast.Def, def.Kind())
	assert.Equal(t, "signup", resolve(t, def, "name").Text())
	assert.Equal(t, 1, resolve(t, def, "body.size").Scalar())
	assert.Equal(t, "mail(to: user)", resolve(t, def, "body.first").Text())
}

func TestParseError(t *testing.T) {
	t.Parallel()
	_, err := New().Parse("broken.rb", []byte("def foo(\n"))
	var pe *tree.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "broken.rb", pe.Filename)
	assert.Positive(t, pe.Line)
}
