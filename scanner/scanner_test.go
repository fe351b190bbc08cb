package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	tempDir := t.TempDir()
	for path, content := range files {
		fullPath := filepath.Join(tempDir, path)
		err := os.MkdirAll(filepath.Dir(fullPath), 0o755)
		require.NoError(t, err)
		err = os.WriteFile(fullPath, []byte(content), 0o644)
		require.NoError(t, err)
	}
	return tempDir
}

func rels(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Rel
	}
	return out
}

func TestProjectScanner(t *testing.T) {
	t.Parallel()
	tempDir := writeTree(t, map[string]string{
		"app/models/user.rb":             "class User; end",
		"app/mailers/notifier.rb":        "class Notifier < ActionMailer::Base; end",
		"lib/tasks/db.rake":              "task :db",
		"README.md":                      "# readme",
		"vendor/bundle/gem.rb":           "skipped",
		"coverage/index.rb":              "ignored",
		"test/models/user_test.rb":       "class UserTest; end",
		".gitignore":                     "coverage/\n",
		"node_modules/pkg/index.rb":      "skipped",
		"app/models/concerns/.gitkeep":   "",
		"test/fixtures/files/sample.txt": "text",
	})

	scannedFiles, err := New(tempDir, ".rb", ".rake").Scan()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"app/mailers/notifier.rb",
		"app/models/user.rb",
		"lib/tasks/db.rake",
		"test/models/user_test.rb",
	}, rels(scannedFiles))

	for _, file := range scannedFiles {
		assert.Greater(t, file.Size, int64(0), "File size should be greater than 0")
		assert.Equal(t, filepath.Join(tempDir, filepath.FromSlash(file.Rel)), file.Path)
	}
}

func TestScanSingleFile(t *testing.T) {
	t.Parallel()
	tempDir := writeTree(t, map[string]string{"a.rb": "x", "b.txt": "y"})

	files, err := New(filepath.Join(tempDir, "a.rb"), ".rb").Scan()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.rb", files[0].Rel)

	files, err = New(filepath.Join(tempDir, "b.txt"), ".rb").Scan()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFileSet(t *testing.T) {
	t.Parallel()
	files := []FileInfo{
		{Rel: "app/mailers/notifier.rb"},
		{Rel: "app/mailers/admin/report_mailer.rb"},
		{Rel: "app/models/user.rb"},
		{Rel: "test/models/user_test.rb"},
		{Rel: "spec/models/user_spec.rb"},
	}
	tests := []struct {
		globs []string
		want  []string
	}{
		{nil, rels(files)},
		{[]string{"app/mailers/**/*.rb"}, []string{"app/mailers/notifier.rb", "app/mailers/admin/report_mailer.rb"}},
		{[]string{"**/*_test.rb"}, []string{"test/models/user_test.rb"}},
		{[]string{"app/**/*.rb", "!app/mailers/**"}, []string{"app/models/user.rb"}},
		{[]string{"test/**/*_test.rb", "spec/**/*_spec.rb"}, []string{"test/models/user_test.rb", "spec/models/user_spec.rb"}},
	}
	for _, tt := range tests {
		fs := NewFileSet(tt.globs...)
		assert.Equal(t, tt.want, rels(fs.Select(files)), fs.String())
	}
}

func TestDirsAndLookup(t *testing.T) {
	t.Parallel()
	tempDir := writeTree(t, map[string]string{
		"app/models/user.rb":   "class User; end",
		"vendor/bundle/gem.rb": "skipped",
		"coverage/index.rb":    "ignored",
		"README.md":            "# readme",
		".gitignore":           "coverage/\n",
	})
	s := New(tempDir, ".rb")

	dirs, err := s.Dirs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		tempDir,
		filepath.Join(tempDir, "app"),
		filepath.Join(tempDir, "app", "models"),
	}, dirs)

	f, ok := s.Lookup(filepath.Join(tempDir, "app", "models", "user.rb"))
	require.True(t, ok)
	assert.Equal(t, "app/models/user.rb", f.Rel)
	assert.Equal(t, int64(len("class User; end")), f.Size)

	for _, rel := range []string{"vendor/bundle/gem.rb", "coverage/index.rb", "README.md", "app/missing.rb"} {
		_, ok := s.Lookup(filepath.Join(tempDir, filepath.FromSlash(rel)))
		assert.False(t, ok, rel)
	}
	_, ok = s.Lookup(filepath.Join(filepath.Dir(tempDir), "outside.rb"))
	assert.False(t, ok)

	assert.True(t, s.LookupDir(tempDir))
	assert.True(t, s.LookupDir(filepath.Join(tempDir, "app", "models")))
	assert.False(t, s.LookupDir(filepath.Join(tempDir, "vendor", "bundle")))
	assert.False(t, s.LookupDir(filepath.Join(tempDir, "coverage")))
	assert.False(t, s.LookupDir(filepath.Join(tempDir, "app", "models", "user.rb")))
	assert.False(t, s.LookupDir(filepath.Dir(tempDir)))
}
