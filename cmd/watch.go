package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/gnoswap-labs/rewrite/scanner"
)

// settle is how long a written file is left alone before it is read, so
// that editors saving in several steps are seen once.
const settle = 100 * time.Millisecond

// watchFiles calls fn for every write to a file s would scan, until ctx is
// done.
func watchFiles(ctx context.Context, logger *zap.Logger, s *scanner.Scanner, fn func(scanner.FileInfo)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Close()

	dirs, err := s.Dirs()
	if err != nil {
		return fmt.Errorf("error adding directory to watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("error adding directory to watcher: %w", err)
		}
	}
	logger.Info("watching", zap.Int("dirs", len(dirs)))

	pending := make(map[string]struct{})
	timer := time.NewTimer(settle)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if event.Has(fsnotify.Create) && s.LookupDir(event.Name) {
				if err := watchDir(watcher, s, event.Name, pending); err != nil {
					logger.Warn("error adding directory to watcher", zap.String("dir", event.Name), zap.Error(err))
				}
				timer.Reset(settle)
				continue
			}
			if _, ok := s.Lookup(event.Name); ok {
				pending[event.Name] = struct{}{}
				timer.Reset(settle)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))
		case <-timer.C:
			for path := range pending {
				if f, ok := s.Lookup(path); ok {
					fn(f)
				}
			}
			clear(pending)
		}
	}
}

// watchDir adds a new directory and the directories below it that s
// descends into. Files already inside are queued, since they may have been
// written before the directory was watched.
func watchDir(watcher *fsnotify.Watcher, s *scanner.Scanner, dir string, pending map[string]struct{}) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if _, ok := s.Lookup(path); ok {
				pending[path] = struct{}{}
			}
			return nil
		}
		if !s.LookupDir(path) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
