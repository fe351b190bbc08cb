package rewrite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gnoswap-labs/rewrite/internal/selector"
	"github.com/gnoswap-labs/rewrite/internal/tree"
	"github.com/gnoswap-labs/rewrite/internal/tree/treetest"
	"github.com/gnoswap-labs/rewrite/rewrite"
	"github.com/gnoswap-labs/rewrite/scanner"
)

func TestQuery(t *testing.T) {
	t.Parallel()
	root := writeProject(t, map[string]string{
		"a.rb": "h.keys.each\nx.keys\n",
		"b.rb": "h.keys.each(\n",
		"c.rb": "puts 1\n",
	})
	files, err := scanner.New(root, ".rb").Scan()
	require.NoError(t, err)
	runner, err := rewrite.NewRunner(treetest.Parser{}, rewrite.DefaultConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	matches, err := runner.Query(context.Background(), selector.MustCompile(".send[message=keys]"), files)
	require.Error(t, err)
	var pe *tree.ParseError
	assert.ErrorAs(t, err, &pe)
	assert.Contains(t, err.Error(), "b.rb")

	require.Len(t, matches, 2)
	assert.Equal(t, "a.rb", matches[0].Rel)
	assert.Equal(t, "h.keys", matches[0].Text)
	assert.Equal(t, rewrite.Position{Line: 1, Column: 1}, matches[0].Start)
	assert.Equal(t, rewrite.Position{Line: 1, Column: 6}, matches[0].End)
	assert.Equal(t, "x.keys", matches[1].Text)
	assert.Equal(t, rewrite.Position{Line: 2, Column: 1}, matches[1].Start)
	assert.Equal(t, "x.keys", matches[1].Lines[1])
}

func TestPositionAt(t *testing.T) {
	t.Parallel()
	src := []byte("ab\ncd\n")
	tests := []struct {
		offset int
		want   rewrite.Position
	}{
		{0, rewrite.Position{Line: 1, Column: 1}},
		{2, rewrite.Position{Line: 1, Column: 3}},
		{3, rewrite.Position{Line: 2, Column: 1}},
		{4, rewrite.Position{Line: 2, Column: 2}},
		{100, rewrite.Position{Line: 3, Column: 1}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rewrite.PositionAt(src, tt.offset), "offset %d", tt.offset)
	}
}
