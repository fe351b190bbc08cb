package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	ignore "github.com/sabhiram/go-gitignore"
)

type FileInfo struct {
	Path string // as found under the root
	Rel  string // slash separated, relative to the root
	Size int64
}

var skipDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	"node_modules": {},
	"vendor":       {},
	"tmp":          {},
	"log":          {},
}

type Scanner struct {
	rootDir    string
	extensions []string
	ignore     *ignore.GitIgnore
}

// New returns a scanner over rootDir. Files listed in the root .gitignore are
// skipped.
func New(rootDir string, extensions ...string) *Scanner {
	s := &Scanner{
		rootDir:    rootDir,
		extensions: extensions,
	}
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(rootDir, ".gitignore")); err == nil {
		s.ignore = gi
	}
	return s
}

// Scan walks the root and returns matching files sorted by relative path.
func (s *Scanner) Scan() ([]FileInfo, error) {
	var (
		files []FileInfo
		mutex sync.Mutex
		wg    sync.WaitGroup
	)

	if info, err := os.Stat(s.rootDir); err == nil && !info.IsDir() {
		if !s.isTargetFile(s.rootDir) {
			return nil, nil
		}
		return []FileInfo{{Path: s.rootDir, Rel: filepath.ToSlash(filepath.Base(s.rootDir)), Size: info.Size()}}, nil
	}

	err := filepath.Walk(s.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(s.rootDir, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if path == s.rootDir {
				return nil
			}
			if _, skip := skipDirs[info.Name()]; skip {
				return filepath.SkipDir
			}
			if s.ignore != nil && s.ignore.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if s.ignore != nil && s.ignore.MatchesPath(rel) {
			return nil
		}

		if s.isTargetFile(path) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				fileInfo := FileInfo{
					Path: path,
					Rel:  rel,
					Size: info.Size(),
				}
				mutex.Lock()
				files = append(files, fileInfo)
				mutex.Unlock()
			}()
		}
		return nil
	})

	wg.Wait()
	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, err
}

// Dirs returns the root and every directory Scan descends into.
func (s *Scanner) Dirs() ([]string, error) {
	var dirs []string
	err := filepath.Walk(s.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != s.rootDir {
			rel, err := filepath.Rel(s.rootDir, path)
			if err != nil {
				return err
			}
			if s.skipped(filepath.ToSlash(rel), true) {
				return filepath.SkipDir
			}
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs, err
}

// Lookup returns the FileInfo of path when Scan would report it.
func (s *Scanner) Lookup(path string) (FileInfo, bool) {
	rel, ok := s.rel(path)
	if !ok || s.skipped(rel, false) || !s.isTargetFile(path) {
		return FileInfo{}, false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return FileInfo{}, false
	}
	return FileInfo{Path: path, Rel: rel, Size: info.Size()}, true
}

// LookupDir reports whether path is a directory Scan descends into.
func (s *Scanner) LookupDir(path string) bool {
	rel, ok := s.rel(path)
	if !ok || rel != "." && s.skipped(rel, true) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// rel returns path relative to the root, or false when it lies outside.
func (s *Scanner) rel(path string) (string, bool) {
	rel, err := filepath.Rel(s.rootDir, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

// skipped reports whether rel, or a directory above it, is left out.
func (s *Scanner) skipped(rel string, dir bool) bool {
	parts := strings.Split(rel, "/")
	dirs := parts
	if !dir {
		dirs = parts[:len(parts)-1]
	}
	for i, p := range dirs {
		if _, skip := skipDirs[p]; skip {
			return true
		}
		if s.ignore != nil && s.ignore.MatchesPath(strings.Join(parts[:i+1], "/")+"/") {
			return true
		}
	}
	return !dir && s.ignore != nil && s.ignore.MatchesPath(rel)
}

func (s *Scanner) isTargetFile(path string) bool {
	if len(s.extensions) == 0 {
		return true
	}

	ext := filepath.Ext(path)
	for _, targetExt := range s.extensions {
		if ext == targetExt {
			return true
		}
	}
	return false
}

// FileSet selects files by gitignore-style globs such as
// "app/mailers/**/*.rb" or "**/*_test.rb". A leading "!" excludes.
type FileSet struct {
	globs   []string
	matcher *ignore.GitIgnore
}

// NewFileSet compiles globs. An empty set matches every file.
func NewFileSet(globs ...string) *FileSet {
	fs := &FileSet{globs: globs}
	if len(globs) > 0 {
		fs.matcher = ignore.CompileIgnoreLines(globs...)
	}
	return fs
}

func (fs *FileSet) String() string {
	if len(fs.globs) == 0 {
		return "**/*"
	}
	return strings.Join(fs.globs, ", ")
}

// Match reports whether the relative, slash separated path is selected.
func (fs *FileSet) Match(rel string) bool {
	if fs.matcher == nil {
		return true
	}
	return fs.matcher.MatchesPath(rel)
}

// Select filters files, keeping their order.
func (fs *FileSet) Select(files []FileInfo) []FileInfo {
	var out []FileInfo
	for _, f := range files {
		if fs.Match(f.Rel) {
			out = append(out, f)
		}
	}
	return out
}
