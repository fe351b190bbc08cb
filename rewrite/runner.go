package rewrite

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnoswap-labs/rewrite/internal/facts"
	"github.com/gnoswap-labs/rewrite/internal/fixer"
	"github.com/gnoswap-labs/rewrite/internal/traverse"
	"github.com/gnoswap-labs/rewrite/internal/tree"
	"github.com/gnoswap-labs/rewrite/scanner"
)

// Runner executes plans. Files are processed in parallel; each file is
// parsed, searched and rendered by a single goroutine.
type Runner struct {
	Parser  tree.Parser
	Workers int
	Policy  fixer.ConflictPolicy
	DryRun  bool

	// OnStage is called before a stage starts with the number of files it
	// will visit. OnFile is called after each file. Both may be nil and
	// must be safe for concurrent use.
	OnStage func(phase Phase, files int)
	OnFile  func(phase Phase, rel string)

	logger *zap.Logger
}

func NewRunner(parser tree.Parser, cfg Config, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy, err := fixer.ParsePolicy(cfg.Conflict)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	return &Runner{
		Parser:  parser,
		Workers: cfg.Workers,
		Policy:  policy,
		DryRun:  cfg.DryRun,
		logger:  logger,
	}, nil
}

type work struct {
	file  scanner.FileInfo
	steps []Step
}

func assign(steps []Step, files []scanner.FileInfo) []work {
	var out []work
	for _, f := range files {
		var sel []Step
		for _, s := range steps {
			if s.Selects(f.Rel) {
				sel = append(sel, s)
			}
		}
		if len(sel) > 0 {
			out = append(out, work{file: f, steps: sel})
		}
	}
	return out
}

// Run executes plan over files. Every collect step finishes over all of
// its files and the fact store is frozen before the first rewrite step
// starts. Rewritten files are written only once every file of the rewrite
// stage rendered, so a configuration error or cancellation leaves the
// project untouched. File level problems are recorded in the report; the
// returned error is reserved for configuration errors and cancellation.
func (r *Runner) Run(ctx context.Context, plan *Plan, files []scanner.FileInfo) (*Report, error) {
	report := &Report{Rules: plan.Rules, Skipped: plan.Skipped}
	store := facts.New()
	fix := fixer.New(r.DryRun, r.Policy, r.logger)

	collect := assign(plan.Collect, files)
	r.logger.Info("collect stage", zap.Int("files", len(collect)), zap.Int("tasks", len(plan.Collect)))
	err := r.stage(ctx, PhaseCollect, collect, func(w work) error {
		return r.collectFile(w, store, report)
	})
	if err != nil {
		report.sort()
		return report, err
	}
	store.Freeze()

	rewrite := assign(plan.Rewrite, files)
	r.logger.Info("rewrite stage", zap.Int("files", len(rewrite)), zap.Int("tasks", len(plan.Rewrite)))
	var out pending
	err = r.stage(ctx, PhaseRewrite, rewrite, func(w work) error {
		return r.rewriteFile(w, store, fix, report, &out)
	})
	if err != nil {
		out.discard()
	} else {
		out.write(fix, r.logger)
	}
	report.sort()
	return report, err
}

// pending holds rendered files until the rewrite stage is over.
type pending struct {
	mu    sync.Mutex
	files []pendingFile
}

type pendingFile struct {
	res *FileResult
	out *fixer.Result
}

func (p *pending) add(res *FileResult, out *fixer.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files = append(p.files, pendingFile{res: res, out: out})
}

func (p *pending) write(fix *fixer.Fixer, logger *zap.Logger) {
	for _, f := range p.files {
		if err := fix.Write(f.res.Path, f.out); err != nil {
			logger.Error("failed to write file", zap.String("file", f.res.Rel), zap.Error(err))
			f.res.Err = err
			f.res.Text = f.res.Original
			f.res.Changed = false
		}
	}
}

func (p *pending) discard() {
	for _, f := range p.files {
		f.res.Text = f.res.Original
		f.res.Changed = false
	}
}

func (r *Runner) stage(ctx context.Context, phase Phase, items []work, fn func(work) error) error {
	if r.OnStage != nil {
		r.OnStage(phase, len(items))
	}
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, w := range items {
		w := w
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := fn(w)
			if r.OnFile != nil {
				r.OnFile(phase, w.file.Rel)
			}
			return err
		})
	}
	return g.Wait()
}

func (r *Runner) load(f scanner.FileInfo) ([]byte, tree.Node, error) {
	src, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}
	root, err := r.Parser.Parse(f.Path, src)
	if err != nil {
		return src, nil, err
	}
	return src, root, nil
}

// runStep runs one task body over a whole file. Only configuration errors
// are returned; anything else ends up in res.
func (r *Runner) runStep(run *fileRun, root tree.Node, res *FileResult) error {
	inst := newInstance(run, traverse.Root(root))
	err := run.step.Task.Body(inst)
	switch {
	case err == nil:
		inst.frame.commit(run.buf)
	case IsConfigurationError(err):
		return err
	case recoverable(err):
		run.fail(err, root)
	default:
		r.logger.Error("rule failed", zap.String("file", run.rel), zap.String("rule", run.step.Name()), zap.Error(err))
		res.Err = fmt.Errorf("rule %s: %w", run.step.Name(), err)
	}
	res.Failures = append(res.Failures, run.failures...)
	return nil
}

func (r *Runner) collectFile(w work, store *facts.Store, report *Report) error {
	res := &FileResult{Path: w.file.Path, Rel: w.file.Rel, Phase: PhaseCollect}
	src, root, err := r.load(w.file)
	res.Original, res.Text = src, src
	if err != nil {
		r.logger.Warn("skipping file", zap.String("file", w.file.Rel), zap.Error(err))
		res.Err = err
		report.add(res)
		return nil
	}
	for _, step := range w.steps {
		run := &fileRun{step: step, rel: w.file.Rel, src: src, store: store, logger: r.logger}
		if err := r.runStep(run, root, res); err != nil {
			return err
		}
		if res.Err != nil {
			break
		}
	}
	report.add(res)
	return nil
}

func (r *Runner) rewriteFile(w work, store *facts.Store, fix *fixer.Fixer, report *Report, out *pending) error {
	res := &FileResult{Path: w.file.Path, Rel: w.file.Rel, Phase: PhaseRewrite}
	defer report.add(res)

	src, root, err := r.load(w.file)
	res.Original, res.Text = src, src
	if err != nil {
		r.logger.Warn("skipping file", zap.String("file", w.file.Rel), zap.Error(err))
		res.Err = err
		return nil
	}

	buf := fixer.NewBuffer(w.file.Path, src)
	for _, step := range w.steps {
		run := &fileRun{step: step, rel: w.file.Rel, src: src, buf: buf, store: store, logger: r.logger}
		if err := r.runStep(run, root, res); err != nil {
			return err
		}
		if res.Err != nil {
			return nil
		}
	}

	rendered, err := fix.Render(buf)
	if rendered != nil {
		res.Text = rendered.Text
		res.Changed = rendered.Changed && err == nil
		res.Edits = len(rendered.Applied)
		res.Dropped = rendered.Dropped
		res.Conflicts = rendered.Conflicts
	}
	if err != nil {
		res.Err = err
		res.Text = src
		res.Changed = false
		return nil
	}
	if res.Changed {
		out.add(res, rendered)
	}
	return nil
}
