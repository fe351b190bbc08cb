package rewrite_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gnoswap-labs/rewrite/internal/fixer"
	"github.com/gnoswap-labs/rewrite/internal/selector"
	"github.com/gnoswap-labs/rewrite/internal/tree"
	"github.com/gnoswap-labs/rewrite/internal/tree/treetest"
	"github.com/gnoswap-labs/rewrite/rewrite"
	"github.com/gnoswap-labs/rewrite/scanner"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func run(t *testing.T, root string, cfg rewrite.Config, rules ...*rewrite.Rule) *rewrite.Report {
	t.Helper()
	reg := rewrite.NewRegistry()
	require.NoError(t, reg.Register(rules...))
	var names []string
	for _, r := range rules {
		names = append(names, r.Name)
	}
	plan, err := rewrite.NewPlan(reg, names, rewrite.Env{})
	require.NoError(t, err)

	files, err := scanner.New(root, ".rb").Scan()
	require.NoError(t, err)

	runner, err := rewrite.NewRunner(treetest.Parser{}, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	report, err := runner.Run(context.Background(), plan, files)
	require.NoError(t, err)
	return report
}

var keysEach = &rewrite.Rule{
	Name: "ruby/keys_each",
	Tasks: []rewrite.Task{{
		Body: func(i *rewrite.Instance) error {
			p := selector.MustCompile(".send[receiver=.send[message=keys][arguments.size=0]][message=each][arguments.size=0]")
			return i.With(p, func(m *rewrite.Instance) error {
				return m.Group(func() error {
					if err := m.Replace("receiver", "{{receiver.receiver}}"); err != nil {
						return err
					}
					return m.Replace("message", "each_key")
				})
			})
		},
	}},
}

func TestKeysEachToEachKeyIsIdempotent(t *testing.T) {
	t.Parallel()
	root := writeProject(t, map[string]string{
		"lib/a.rb": "a.keys.each { |k| puts k }\na.keys.each(1)\nb.keys(1).each\n",
	})
	want := "a.each_key { |k| puts k }\na.keys.each(1)\nb.keys(1).each\n"

	report := run(t, root, rewrite.DefaultConfig(), keysEach)
	require.NoError(t, report.Err())
	require.Len(t, report.Changed(), 1)
	assert.Equal(t, want, readFile(t, root, "lib/a.rb"))

	report = run(t, root, rewrite.DefaultConfig(), keysEach)
	require.NoError(t, report.Err())
	assert.Empty(t, report.Changed())
	assert.Equal(t, want, readFile(t, root, "lib/a.rb"))
}

func mailerRules() []*rewrite.Rule {
	mailerClass := selector.MustCompile(".class[parent_class=ActionMailer::Base]")
	def := selector.MustCompile(".def")
	deliver := selector.MustCompile(`.send[message=~/\Adeliver_/]`)
	return []*rewrite.Rule{
		{
			Name: "test/collect_mailers",
			Tasks: []rewrite.Task{{
				Phase:  rewrite.PhaseCollect,
				Files:  []string{"app/mailers/**/*.rb"},
				Writes: []string{"mailers"},
				Body: func(i *rewrite.Instance) error {
					return i.Within(mailerClass, func(c *rewrite.Instance) error {
						class, err := c.Render("{{name}}")
						if err != nil {
							return err
						}
						return c.Within(def, func(d *rewrite.Instance) error {
							name, err := d.Render("{{name}}")
							if err != nil {
								return err
							}
							return d.Collect("mailers", class, name)
						})
					})
				},
			}},
		},
		{
			Name: "test/deliver",
			Tasks: []rewrite.Task{{
				Files: []string{"app/controllers/**/*.rb"},
				Reads: []string{"mailers"},
				Body: func(i *rewrite.Instance) error {
					mailers, err := i.Facts("mailers")
					if err != nil {
						return err
					}
					return i.With(deliver, func(m *rewrite.Instance) error {
						receiver, err := m.Render("{{receiver}}")
						if err != nil {
							return err
						}
						message, err := m.Render("{{message}}")
						if err != nil {
							return err
						}
						method := strings.TrimPrefix(message, "deliver_")
						if !mailers.Has(receiver, method) {
							return nil
						}
						return m.ReplaceWith("{{receiver}}." + method + "({{arguments}}).deliver")
					})
				},
			}},
		},
	}
}

func TestCollectedFactsGateRewrites(t *testing.T) {
	t.Parallel()
	root := writeProject(t, map[string]string{
		"app/mailers/foo.rb":             "class Foo < ActionMailer::Base\n  def bar(x)\n  end\nend\n",
		"app/controllers/users.rb":       "Foo.deliver_bar(x)\nFoo.deliver_baz(x)\nQux.deliver_bar(x)\n",
		"app/controllers/admin/posts.rb": "Foo.deliver_bar(post)\n",
	})
	cfg := rewrite.DefaultConfig()
	cfg.Workers = 4

	report := run(t, root, cfg, mailerRules()...)
	require.NoError(t, report.Err())
	assert.Equal(t, "Foo.bar(x).deliver\nFoo.deliver_baz(x)\nQux.deliver_bar(x)\n", readFile(t, root, "app/controllers/users.rb"))
	assert.Equal(t, "Foo.bar(post).deliver\n", readFile(t, root, "app/controllers/admin/posts.rb"))
	assert.Equal(t, "class Foo < ActionMailer::Base\n  def bar(x)\n  end\nend\n", readFile(t, root, "app/mailers/foo.rb"))

	res, ok := report.File("app/controllers/users.rb")
	require.True(t, ok)
	assert.True(t, res.Changed)
	assert.Equal(t, 1, res.Edits)
	_, ok = report.File("app/mailers/foo.rb")
	assert.False(t, ok, "mailers are only visited by the collect stage")
}

func TestParseFailureSkipsOnlyThatFile(t *testing.T) {
	t.Parallel()
	root := writeProject(t, map[string]string{
		"a.rb": "h.keys.each\n",
		"b.rb": "h.keys.each(\n",
	})
	report := run(t, root, rewrite.DefaultConfig(), keysEach)
	assert.Equal(t, "h.each_key\n", readFile(t, root, "a.rb"))
	assert.Equal(t, "h.keys.each(\n", readFile(t, root, "b.rb"))

	err := report.Err()
	require.Error(t, err)
	var pe *tree.ParseError
	assert.ErrorAs(t, err, &pe)
	assert.Contains(t, err.Error(), "b.rb")
}

func conflictingRules() []*rewrite.Rule {
	foo := selector.MustCompile(".send[message=foo]")
	replace := func(name, with string) *rewrite.Rule {
		return &rewrite.Rule{Name: name, Tasks: []rewrite.Task{{
			Body: func(i *rewrite.Instance) error {
				return i.With(foo, func(m *rewrite.Instance) error { return m.Replace("message", with) })
			},
		}}}
	}
	bar := selector.MustCompile(".send[message=bar]")
	return []*rewrite.Rule{
		replace("test/one", "one"),
		replace("test/two", "two"),
		{Name: "test/bar", Tasks: []rewrite.Task{{
			Body: func(i *rewrite.Instance) error {
				return i.With(bar, func(m *rewrite.Instance) error { return m.Replace("message", "baz") })
			},
		}}},
	}
}

func TestConflictPolicies(t *testing.T) {
	t.Parallel()
	src := "foo(1)\nbar(2)\n"

	root := writeProject(t, map[string]string{"a.rb": src})
	report := run(t, root, rewrite.DefaultConfig(), conflictingRules()...)
	assert.Equal(t, src, readFile(t, root, "a.rb"))
	var conflict *fixer.ConflictError
	assert.ErrorAs(t, report.Err(), &conflict)

	root = writeProject(t, map[string]string{"a.rb": src})
	cfg := rewrite.DefaultConfig()
	cfg.Conflict = fixer.RejectGroups.String()
	report = run(t, root, cfg, conflictingRules()...)
	require.NoError(t, report.Err())
	assert.Equal(t, "foo(1)\nbaz(2)\n", readFile(t, root, "a.rb"))
	res, ok := report.File("a.rb")
	require.True(t, ok)
	assert.Len(t, res.Dropped, 2)
	assert.Len(t, res.Conflicts, 1)
}

func TestDryRunLeavesFiles(t *testing.T) {
	t.Parallel()
	root := writeProject(t, map[string]string{"a.rb": "h.keys.each\n"})
	cfg := rewrite.DefaultConfig()
	cfg.DryRun = true
	report := run(t, root, cfg, keysEach)
	require.NoError(t, report.Err())
	assert.Equal(t, "h.keys.each\n", readFile(t, root, "a.rb"))
	changed := report.Changed()
	require.Len(t, changed, 1)
	assert.Equal(t, "h.each_key\n", string(changed[0].Text))
	assert.Equal(t, "h.keys.each\n", string(changed[0].Original))
}

func TestRunnerProgressAndCancel(t *testing.T) {
	t.Parallel()
	root := writeProject(t, map[string]string{"a.rb": "x(1)\n", "b.rb": "y(2)\n"})
	reg := rewrite.NewRegistry()
	require.NoError(t, reg.Register(keysEach))
	plan, err := rewrite.NewPlan(reg, []string{keysEach.Name}, rewrite.Env{})
	require.NoError(t, err)
	files, err := scanner.New(root, ".rb").Scan()
	require.NoError(t, err)

	runner, err := rewrite.NewRunner(treetest.Parser{}, rewrite.DefaultConfig(), nil)
	require.NoError(t, err)
	stages := map[rewrite.Phase]int{}
	seen := make(chan string, 4)
	runner.OnStage = func(p rewrite.Phase, n int) { stages[p] = n }
	runner.OnFile = func(_ rewrite.Phase, rel string) { seen <- rel }

	_, err = runner.Run(context.Background(), plan, files)
	require.NoError(t, err)
	close(seen)
	assert.Equal(t, map[rewrite.Phase]int{rewrite.PhaseCollect: 0, rewrite.PhaseRewrite: 2}, stages)
	assert.Len(t, seen, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner.OnFile = nil
	_, err = runner.Run(ctx, plan, files)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBadTemplateLeavesEveryFileUntouched(t *testing.T) {
	t.Parallel()
	root := writeProject(t, map[string]string{"a.rb": "foo(1)\n", "b.rb": "foo(2)\n"})
	rule := &rewrite.Rule{
		Name: "test/bad_template",
		Tasks: []rewrite.Task{{
			Body: func(i *rewrite.Instance) error {
				return i.With(selector.MustCompile(".send[message=foo]"), func(m *rewrite.Instance) error {
					if m.Filename() == "b.rb" {
						return m.ReplaceWith("{{ unterminated")
					}
					return m.ReplaceWith("baz(1)")
				})
			},
		}},
	}
	reg := rewrite.NewRegistry()
	require.NoError(t, reg.Register(rule))
	plan, err := rewrite.NewPlan(reg, []string{rule.Name}, rewrite.Env{})
	require.NoError(t, err)
	files, err := scanner.New(root, ".rb").Scan()
	require.NoError(t, err)

	cfg := rewrite.DefaultConfig()
	cfg.Workers = 1
	runner, err := rewrite.NewRunner(treetest.Parser{}, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	report, err := runner.Run(context.Background(), plan, files)
	require.Error(t, err)
	assert.True(t, rewrite.IsConfigurationError(err))
	assert.Equal(t, "foo(1)\n", readFile(t, root, "a.rb"))
	assert.Equal(t, "foo(2)\n", readFile(t, root, "b.rb"))
	assert.Empty(t, report.Changed())
}
