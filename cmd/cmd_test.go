package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gnoswap-labs/rewrite/internal/tree/ruby"
	"github.com/gnoswap-labs/rewrite/rewrite"
	"github.com/gnoswap-labs/rewrite/rules"
	"github.com/gnoswap-labs/rewrite/scanner"
)

func init() {
	color.NoColor = true
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestRunRewrite(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	config := filepath.Join(t.TempDir(), "rewrite.yaml")
	writeFiles(t, root, map[string]string{
		"test/models/user_test.rb": "assert_equal(nil, user.name)\n",
	})
	require.NoError(t, os.WriteFile(config, []byte("rules: [minitest/assert_nil]\nworkers: 2\n"), 0o644))

	var out bytes.Buffer
	opts := runOptions{config: config, root: root, dryRun: true}
	report, err := runRewrite(context.Background(), zaptest.NewLogger(t), ruby.New(), &out, opts)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Contains(t, out.String(), "test/models/user_test.rb: would rewrite (2 edits)\n")
	assert.Contains(t, out.String(), "-assert_equal(nil, user.name)\n+assert_nil(user.name)\n")
	assert.Contains(t, out.String(), "1 file would be rewritten")

	data, err := os.ReadFile(filepath.Join(root, "test/models/user_test.rb"))
	require.NoError(t, err)
	assert.Equal(t, "assert_equal(nil, user.name)\n", string(data), "dry run leaves files alone")

	out.Reset()
	opts.dryRun = false
	_, err = runRewrite(context.Background(), zaptest.NewLogger(t), ruby.New(), &out, opts)
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "--- a/", "diffs are opt-in outside dry runs")
	data, err = os.ReadFile(filepath.Join(root, "test/models/user_test.rb"))
	require.NoError(t, err)
	assert.Equal(t, "assert_nil(user.name)\n", string(data))
}

func TestRunRewriteRuleFlagAndRuleFiles(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	dir := t.TempDir()
	ruleFile := filepath.Join(dir, "rules.yaml")
	config := filepath.Join(dir, "rewrite.yaml")
	writeFiles(t, root, map[string]string{
		"lib/a.rb": "debug(x)\nputs(x)\n",
	})
	require.NoError(t, os.WriteFile(ruleFile, []byte(`
rules:
  - name: custom/debug
    find: .send[receiver=nil][message=debug]
    actions:
      - remove: true
`), 0o644))
	require.NoError(t, os.WriteFile(config, []byte("rules: [minitest/assert_nil]\nrule_files: ["+ruleFile+"]\n"), 0o644))

	var out bytes.Buffer
	_, err := runRewrite(context.Background(), zaptest.NewLogger(t), ruby.New(), &out, runOptions{
		config: config,
		root:   root,
		rules:  []string{"custom/debug"},
	})
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(root, "lib/a.rb"))
	require.NoError(t, err)
	assert.Equal(t, "puts(x)\n", string(data))
}

func TestRunRewriteErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("workers: 1\n"), 0o644))
	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("rules: [nope/missing]\n"), 0o644))

	_, err := runRewrite(context.Background(), zaptest.NewLogger(t), ruby.New(), &bytes.Buffer{}, runOptions{config: empty, root: dir})
	assert.ErrorIs(t, err, errNoRules)

	_, err = runRewrite(context.Background(), zaptest.NewLogger(t), ruby.New(), &bytes.Buffer{}, runOptions{config: unknown, root: dir})
	require.Error(t, err)
	assert.True(t, rewrite.IsConfigurationError(err))
}

func TestRunQuery(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"test/a_test.rb": "assert_equal(nil, a)\nassert_equal(1, b)\n",
		"test/b_test.rb": "  assert_equal(nil, c)\n",
	})

	var out bytes.Buffer
	n, err := runQuery(context.Background(), zaptest.NewLogger(t), ruby.New(), &out,
		".send[message=assert_equal][arguments.first=nil]", root, rewrite.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, out.String(), " --> test/a_test.rb:1:1\n")
	assert.Contains(t, out.String(), " --> test/b_test.rb:1:3\n")
	assert.Contains(t, out.String(), "2 matches in 2 files\n")

	_, err = runQuery(context.Background(), zaptest.NewLogger(t), ruby.New(), &out, ".send[", root, rewrite.DefaultConfig())
	assert.Error(t, err)
}

func TestListRules(t *testing.T) {
	t.Parallel()
	reg := rewrite.NewRegistry()
	require.NoError(t, rules.Register(reg))

	var out bytes.Buffer
	listRules(&out, reg)
	assert.Contains(t, out.String(), "minitest/assert_nil\n    Use assert_nil if expecting nil.\n")
	assert.Contains(t, out.String(), "rails/convert_mailers_2_3_to_3_0\n    Convert Rails 2.3 mailers to the Rails 3.0 API.\n    guards: if_gem rails >= 3.0\n")
	assert.Contains(t, out.String(), "    includes: ruby/deprecate_dir_exists, ruby/deprecate_file_exists, ruby/deprecate_fixnum_and_bignum\n")
}

func TestInitConfigurationFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".rewrite.yaml")
	require.NoError(t, initConfigurationFile(path, false))

	cfg, err := rewrite.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, rewrite.DefaultConfig().Extensions, cfg.Extensions)
	assert.Equal(t, "reject-file", cfg.Conflict)

	assert.Error(t, initConfigurationFile(path, false))
	assert.NoError(t, initConfigurationFile(path, true))
}

func TestWatchFiles(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"lib/a.rb": "x\n", "lib/notes.txt": "x\n"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	seen := make(chan string, 8)
	done := make(chan error, 1)
	go func() {
		done <- watchFiles(ctx, zaptest.NewLogger(t), scanner.New(root, ".rb"), func(f scanner.FileInfo) {
			select {
			case seen <- f.Rel:
			default:
			}
		})
	}()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(root, "lib", "notes.txt"), []byte("y\n"), 0o644)
		_ = os.WriteFile(filepath.Join(root, "lib", "a.rb"), []byte("y\n"), 0o644)
		select {
		case rel := <-seen:
			return rel == "lib/a.rb"
		case <-time.After(300 * time.Millisecond):
			return false
		}
	}, 10*time.Second, 10*time.Millisecond)

	newFile := filepath.Join(root, "lib", "new", "b.rb")
	require.Eventually(t, func() bool {
		_ = os.MkdirAll(filepath.Dir(newFile), 0o755)
		_ = os.WriteFile(newFile, []byte("y\n"), 0o644)
		for {
			select {
			case rel := <-seen:
				if rel == "lib/new/b.rb" {
					return true
				}
			case <-time.After(300 * time.Millisecond):
				return false
			}
		}
	}, 10*time.Second, 10*time.Millisecond, "files in directories created while watching are seen")

	cancel()
	assert.NoError(t, <-done)
}
