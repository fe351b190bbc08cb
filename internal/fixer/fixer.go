// Package fixer holds the mutation buffer rules schedule edits into and the
// patch applier that renders and writes the rewritten file.
package fixer

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

type Fixer struct {
	DryRun bool
	Policy ConflictPolicy
	logger *zap.Logger
}

func New(dryRun bool, policy ConflictPolicy, logger *zap.Logger) *Fixer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fixer{
		DryRun: dryRun,
		Policy: policy,
		logger: logger,
	}
}

// Fix renders buf and writes the result back to its file unless the fixer
// runs dry or nothing changed. A conflict under RejectFile leaves the file
// untouched and is returned as *ConflictError.
func (f *Fixer) Fix(buf *Buffer) (*Result, error) {
	res, err := f.Render(buf)
	if err != nil {
		return res, err
	}
	return res, f.Write(buf.Filename(), res)
}

// Render renders buf under the fixer's conflict policy without touching
// the file.
func (f *Fixer) Render(buf *Buffer) (*Result, error) {
	res, err := buf.Render(f.Policy)
	for _, c := range res.Conflicts {
		f.logger.Warn("edit conflict",
			zap.String("file", buf.Filename()),
			zap.String("first", c.A.String()),
			zap.String("second", c.B.String()),
		)
	}
	return res, err
}

// Write stores a rendered result at path, keeping the file mode. Unchanged
// results and dry runs write nothing.
func (f *Fixer) Write(path string, res *Result) error {
	if res == nil || !res.Changed {
		return nil
	}

	if f.DryRun {
		f.logger.Info("would rewrite file", zap.String("file", path), zap.Int("edits", len(res.Applied)))
		return nil
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, res.Text, mode); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	f.logger.Info("rewrote file", zap.String("file", path), zap.Int("edits", len(res.Applied)))
	return nil
}
