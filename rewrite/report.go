package rewrite

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/gnoswap-labs/rewrite/internal/fixer"
)

// FileResult is the outcome of one file in one stage.
type FileResult struct {
	Path  string
	Rel   string
	Phase Phase

	Original []byte
	// Text is the rendered file. It equals Original unless Changed.
	Text    []byte
	Changed bool
	Edits   int

	// Dropped lists edit groups rejected by conflicts under RejectGroups.
	Dropped   []int
	Conflicts []*fixer.ConflictError
	// Failures are matches whose rewrite was skipped, e.g. on an
	// unresolvable template placeholder.
	Failures []error
	// Err is set when the whole file was left alone: parse failures,
	// conflicts under RejectFile, rule errors and write errors.
	Err error
}

// Report collects the results of a run.
type Report struct {
	Rules   []string
	Skipped []Skip
	Files   []*FileResult

	mu sync.Mutex
}

func (r *Report) add(f *FileResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Files = append(r.Files, f)
}

func (r *Report) sort() {
	sort.SliceStable(r.Files, func(i, j int) bool {
		if r.Files[i].Phase != r.Files[j].Phase {
			return r.Files[i].Phase == PhaseCollect
		}
		return r.Files[i].Rel < r.Files[j].Rel
	})
}

// Changed returns the rewritten files.
func (r *Report) Changed() []*FileResult {
	var out []*FileResult
	for _, f := range r.Files {
		if f.Changed {
			out = append(out, f)
		}
	}
	return out
}

// File returns the rewrite stage result for rel.
func (r *Report) File(rel string) (*FileResult, bool) {
	for _, f := range r.Files {
		if f.Rel == rel && f.Phase == PhaseRewrite {
			return f, true
		}
	}
	return nil, false
}

// Err merges every file level error of the run, or returns nil.
func (r *Report) Err() error {
	var result *multierror.Error
	for _, f := range r.Files {
		if f.Err != nil {
			result = multierror.Append(result, fmt.Errorf("%s (%s): %w", f.Rel, f.Phase, f.Err))
		}
	}
	return result.ErrorOrNil()
}

// Failures merges every skipped match of the run, or returns nil.
func (r *Report) Failures() error {
	var result *multierror.Error
	for _, f := range r.Files {
		for _, err := range f.Failures {
			result = multierror.Append(result, fmt.Errorf("%s: %w", f.Rel, err))
		}
	}
	return result.ErrorOrNil()
}
