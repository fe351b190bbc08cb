package rewrite

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnoswap-labs/rewrite/internal/pattern"
	"github.com/gnoswap-labs/rewrite/internal/traverse"
	"github.com/gnoswap-labs/rewrite/internal/tree"
	"github.com/gnoswap-labs/rewrite/scanner"
)

// Position is a 1-based line and byte column.
type Position struct {
	Line   int
	Column int
}

// Match is one node found by Query.
type Match struct {
	Rel   string
	Node  tree.Node
	Kind  tree.Kind
	Range tree.Range
	// Start is the first byte of the node, End its last one.
	Start Position
	End   Position
	Text  string
	// Lines holds the whole file, shared by every match in it.
	Lines []string
}

// Query reports every node matching p, nested matches included. Files
// that cannot be read or parsed are skipped and returned together as a
// *multierror.Error next to the matches that were found.
func (r *Runner) Query(ctx context.Context, p pattern.Pattern, files []scanner.FileInfo) ([]Match, error) {
	var (
		mu      sync.Mutex
		matches []Match
		errs    *multierror.Error
	)
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if r.OnStage != nil {
		r.OnStage(PhaseCollect, len(files))
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, f := range files {
		f := f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			found, err := r.queryFile(f, p)
			if r.OnFile != nil {
				r.OnFile(PhaseCollect, f.Rel)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger.Warn("skipping file", zap.String("file", f.Rel), zap.Error(err))
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", f.Rel, err))
				return nil
			}
			matches = append(matches, found...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Rel != matches[j].Rel {
			return matches[i].Rel < matches[j].Rel
		}
		return matches[i].Range.Start < matches[j].Range.Start
	})
	return matches, errs.ErrorOrNil()
}

func (r *Runner) queryFile(f scanner.FileInfo, p pattern.Pattern) ([]Match, error) {
	src, root, err := r.load(f)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(src), "\n")
	var out []Match
	for _, s := range traverse.Root(root).Find(p) {
		rng := s.Node.Range()
		last := rng.End - 1
		if rng.Empty() {
			last = rng.Start
		}
		out = append(out, Match{
			Rel:   f.Rel,
			Node:  s.Node,
			Kind:  s.Node.Kind(),
			Range: rng,
			Start: PositionAt(src, rng.Start),
			End:   PositionAt(src, last),
			Text:  s.Node.Source(),
			Lines: lines,
		})
	}
	return out, nil
}

// PositionAt converts a byte offset into a line and column.
func PositionAt(src []byte, offset int) Position {
	if offset > len(src) {
		offset = len(src)
	}
	if offset < 0 {
		offset = 0
	}
	before := src[:offset]
	line := bytes.Count(before, []byte("\n")) + 1
	col := offset - bytes.LastIndexByte(before, '\n')
	return Position{Line: line, Column: col}
}
