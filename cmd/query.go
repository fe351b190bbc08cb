package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoswap-labs/rewrite/formatter"
	"github.com/gnoswap-labs/rewrite/internal/pattern"
	"github.com/gnoswap-labs/rewrite/internal/selector"
	"github.com/gnoswap-labs/rewrite/internal/tree"
	"github.com/gnoswap-labs/rewrite/internal/tree/ruby"
	"github.com/gnoswap-labs/rewrite/rewrite"
	"github.com/gnoswap-labs/rewrite/scanner"
)

var (
	showTree bool
	watch    bool
)

var queryCmd = &cobra.Command{
	Use:   "query <selector> [root]",
	Short: "List the nodes matching a selector",
	Long: `Prints every node under root (default ".") that matches the selector.
Example) rewrite query '.send[receiver=nil][message=assert_equal][arguments.first=nil]' test`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) > 1 {
			root = args[1]
		}
		cfg, err := rewrite.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		q, err := newQuery(logger, ruby.New(), cmd.OutOrStdout(), args[0], cfg)
		if err != nil {
			return err
		}
		s := scanner.New(root, cfg.Extensions...)

		if !watch {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			_, err := q.run(ctx, s)
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if _, err := q.run(ctx, s); err != nil {
			logger.Warn("query failed", zap.Error(err))
		}
		return watchFiles(ctx, logger, s, func(f scanner.FileInfo) {
			if _, err := q.print(ctx, []scanner.FileInfo{f}); err != nil {
				logger.Warn("query failed", zap.String("file", f.Rel), zap.Error(err))
			}
		})
	},
}

func init() {
	queryCmd.Flags().BoolVar(&showTree, "tree", false, "Print the tree of every match")
	queryCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Query changed files again until interrupted")
}

type query struct {
	text    string
	pattern pattern.Pattern
	runner  *rewrite.Runner
	out     io.Writer
}

func newQuery(logger *zap.Logger, parser tree.Parser, out io.Writer, text string, cfg rewrite.Config) (*query, error) {
	p, err := selector.Compile(text)
	if err != nil {
		return nil, err
	}
	runner, err := rewrite.NewRunner(parser, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &query{text: text, pattern: p, runner: runner, out: out}, nil
}

// run queries every file s finds and prints a summary line.
func (q *query) run(ctx context.Context, s *scanner.Scanner) (int, error) {
	files, err := s.Scan()
	if err != nil {
		return 0, fmt.Errorf("scan: %w", err)
	}
	matches, err := q.print(ctx, files)
	fmt.Fprintf(q.out, "%d matches in %d files\n", len(matches), countFiles(matches))
	return len(matches), err
}

func (q *query) print(ctx context.Context, files []scanner.FileInfo) ([]rewrite.Match, error) {
	matches, err := q.runner.Query(ctx, q.pattern, files)
	fmt.Fprint(q.out, formatter.Matches(q.text, matches))
	if showTree {
		for _, m := range matches {
			fmt.Fprintln(q.out, tree.Dump(m.Node))
		}
	}
	return matches, err
}

func runQuery(ctx context.Context, logger *zap.Logger, parser tree.Parser, out io.Writer, text, root string, cfg rewrite.Config) (int, error) {
	q, err := newQuery(logger, parser, out, text, cfg)
	if err != nil {
		return 0, err
	}
	return q.run(ctx, scanner.New(root, cfg.Extensions...))
}

func countFiles(matches []rewrite.Match) int {
	seen := make(map[string]struct{})
	for _, m := range matches {
		seen[m.Rel] = struct{}{}
	}
	return len(seen)
}
