package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gnoswap-labs/rewrite/internal/facts"
	"github.com/gnoswap-labs/rewrite/internal/fixer"
	"github.com/gnoswap-labs/rewrite/internal/selector"
	"github.com/gnoswap-labs/rewrite/internal/template"
	"github.com/gnoswap-labs/rewrite/internal/traverse"
	"github.com/gnoswap-labs/rewrite/internal/tree/treetest"
)

func runBody(t *testing.T, phase Phase, src string, body func(*Instance) error) (string, *fileRun, error) {
	t.Helper()
	rule := &Rule{Name: "test/rule", Tasks: []Task{{Phase: phase, Body: body}}}
	run := &fileRun{
		step:   Step{Rule: rule, Task: &rule.Tasks[0]},
		rel:    "test.rb",
		src:    []byte(src),
		store:  facts.New(),
		logger: zap.NewNop(),
	}
	if phase == PhaseRewrite {
		run.buf = fixer.NewBuffer("test.rb", run.src)
	}
	inst := newInstance(run, traverse.Root(treetest.Parse(src)))
	if err := body(inst); err != nil {
		return src, run, err
	}
	if run.buf == nil {
		return src, run, nil
	}
	inst.frame.commit(run.buf)
	res, err := run.buf.Render(fixer.RejectFile)
	require.NoError(t, err)
	return string(res.Text), run, nil
}

func rewriteSource(t *testing.T, src string, body func(*Instance) error) string {
	t.Helper()
	out, _, err := runBody(t, PhaseRewrite, src, body)
	require.NoError(t, err)
	return out
}

var (
	anyFoo   = selector.MustCompile(".send[message=foo]")
	assertEq = selector.MustCompile(".send[receiver=nil][message=assert_equal][arguments.size=2][arguments.first=nil]")
)

func TestAssertEqualNilBecomesAssertNil(t *testing.T) {
	t.Parallel()
	body := func(i *Instance) error {
		return i.With(assertEq, func(m *Instance) error {
			return m.Group(func() error {
				if err := m.Replace("message", "assert_nil"); err != nil {
					return err
				}
				return m.Delete("arguments.first", AndComma())
			})
		})
	}
	src := "assert_equal(nil, x)\nassert_equal(nil)\nassert_equal(1, x)\n"
	assert.Equal(t, "assert_nil(x)\nassert_equal(nil)\nassert_equal(1, x)\n", rewriteSource(t, src, body))
}

func TestEditOperations(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  string
		body func(*Instance) error
		want string
	}{
		{
			name: "replace with reindents continuation lines",
			src:  "def a\n  foo(1)\nend\n",
			body: func(i *Instance) error {
				return i.With(anyFoo, func(m *Instance) error { return m.ReplaceWith("bar({{arguments}})\nbaz") })
			},
			want: "def a\n  bar(1)\n  baz\nend\n",
		},
		{
			name: "remove takes the whole line",
			src:  "a(0)\nfoo(1)\nb(2)\n",
			body: func(i *Instance) error {
				return i.With(anyFoo, func(m *Instance) error { return m.Remove() })
			},
			want: "a(0)\nb(2)\n",
		},
		{
			name: "remove inside an argument list",
			src:  "bar(foo(1), 2)\n",
			body: func(i *Instance) error {
				return i.With(anyFoo, func(m *Instance) error { return m.Remove() })
			},
			want: "bar(2)\n",
		},
		{
			name: "delete last argument with and comma",
			src:  "bar(1, 2)\n",
			body: func(i *Instance) error {
				return i.With(selector.MustCompile(".send[message=bar]"), func(m *Instance) error {
					return m.Delete("arguments.last", AndComma())
				})
			},
			want: "bar(1)\n",
		},
		{
			name: "insert at end and start",
			src:  "Foo.bar(x)\n",
			body: func(i *Instance) error {
				return i.With(selector.MustCompile(".send[message=bar]"), func(m *Instance) error {
					if err := m.Insert(".deliver"); err != nil {
						return err
					}
					return m.Insert("*", At(AtStart), To("arguments.first"))
				})
			},
			want: "Foo.bar(*x).deliver\n",
		},
		{
			name: "insert after and before keep indentation",
			src:  "def a\n  foo(1)\nend\n",
			body: func(i *Instance) error {
				return i.With(anyFoo, func(m *Instance) error {
					if err := m.InsertAfter("after({{arguments.first}})"); err != nil {
						return err
					}
					return m.InsertBefore("before")
				})
			},
			want: "def a\n  before\n  foo(1)\n  after(1)\nend\n",
		},
		{
			name: "append and prepend to a body",
			src:  "def a\n  foo(1)\nend\n",
			body: func(i *Instance) error {
				return i.With(selector.MustCompile(".def"), func(m *Instance) error {
					if err := m.Append("last({{name}})"); err != nil {
						return err
					}
					return m.Prepend("first")
				})
			},
			want: "def a\n  first\n  foo(1)\n  last(a)\nend\n",
		},
		{
			name: "append to a one line class",
			src:  "class A; end\n",
			body: func(i *Instance) error {
				return i.With(selector.MustCompile(".class"), func(m *Instance) error { return m.Append("x(1)") })
			},
			want: "class A; x(1); end\n",
		},
		{
			name: "goto visits every element of a list",
			src:  "foo(a, b)\n",
			body: func(i *Instance) error {
				return i.With(anyFoo, func(m *Instance) error {
					return m.Goto("arguments", func(arg *Instance) error { return arg.ReplaceWith("{{source}}!") })
				})
			},
			want: "foo(a!, b!)\n",
		},
		{
			name: "if exist and unless exist",
			src:  "foo(bar(1))\nfoo(2)\n",
			body: func(i *Instance) error {
				bar := selector.MustCompile(".send[message=bar]")
				return i.Within(anyFoo, func(m *Instance) error {
					if err := m.IfExist(bar, func() error { return m.Replace("message", "with_bar") }); err != nil {
						return err
					}
					return m.UnlessExist(bar, func() error { return m.Replace("message", "without_bar") })
				})
			},
			want: "with_bar(bar(1))\nwithout_bar(2)\n",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, rewriteSource(t, tt.src, tt.body))
		})
	}
}

func TestResolutionFailureDropsOnlyThatMatch(t *testing.T) {
	t.Parallel()
	src := "foo(1)\nfoo()\nfoo(2)\n"
	out, run, err := runBody(t, PhaseRewrite, src, func(i *Instance) error {
		return i.With(anyFoo, func(m *Instance) error {
			if err := m.Replace("message", "bar"); err != nil {
				return err
			}
			return m.Insert(" # {{arguments.first}}")
		})
	})
	require.NoError(t, err)
	assert.Equal(t, "bar(1) # 1\nfoo()\nbar(2) # 2\n", out)
	require.Len(t, run.failures, 1)
	var re *template.ResolutionError
	assert.ErrorAs(t, run.failures[0], &re)
	assert.False(t, IsConfigurationError(run.failures[0]))
}

func TestExplicitGroupFailureDropsTheMatch(t *testing.T) {
	t.Parallel()
	out, run, err := runBody(t, PhaseRewrite, "foo(1)\n", func(i *Instance) error {
		return i.With(anyFoo, func(m *Instance) error {
			if err := m.Replace("message", "bar"); err != nil {
				return err
			}
			return m.Group(func() error {
				if err := m.Insert(".x"); err != nil {
					return err
				}
				return m.Replace("receiver", "y")
			})
		})
	})
	require.NoError(t, err)
	assert.Equal(t, "foo(1)\n", out)
	require.Len(t, run.failures, 1)
	var te *TargetError
	assert.ErrorAs(t, run.failures[0], &te)
}

func TestGroupFailureDropsNestedMatches(t *testing.T) {
	t.Parallel()
	wrap := selector.MustCompile(".send[message=wrap]")
	out, run, err := runBody(t, PhaseRewrite, "wrap(foo(1))\nfoo(2)\n", func(i *Instance) error {
		return i.Within(wrap, func(w *Instance) error {
			return w.Group(func() error {
				err := w.With(anyFoo, func(m *Instance) error { return m.Replace("message", "bar") })
				if err != nil {
					return err
				}
				return w.Replace("message", "{{receiver.message}}")
			})
		})
	})
	require.NoError(t, err)
	assert.Equal(t, "wrap(foo(1))\nfoo(2)\n", out)
	require.Len(t, run.failures, 1)
	var re *template.ResolutionError
	assert.ErrorAs(t, run.failures[0], &re)
}

func TestNestedMatchesCommitWithTheirParent(t *testing.T) {
	t.Parallel()
	wrap := selector.MustCompile(".send[message=wrap]")
	out := rewriteSource(t, "wrap(foo(1))\n", func(i *Instance) error {
		return i.Within(wrap, func(w *Instance) error {
			return w.Group(func() error {
				err := w.With(anyFoo, func(m *Instance) error { return m.Replace("message", "bar") })
				if err != nil {
					return err
				}
				return w.Replace("message", "outer")
			})
		})
	})
	assert.Equal(t, "outer(bar(1))\n", out)
}

func TestPhaseViolationsAreConfigurationErrors(t *testing.T) {
	t.Parallel()

	_, _, err := runBody(t, PhaseCollect, "foo(1)\n", func(i *Instance) error {
		return i.With(anyFoo, func(m *Instance) error { return m.ReplaceWith("bar") })
	})
	assert.True(t, IsConfigurationError(err), "collect tasks cannot edit: %v", err)

	_, _, err = runBody(t, PhaseRewrite, "foo(1)\n", func(i *Instance) error {
		return i.Collect("mailers", "Foo", "bar")
	})
	assert.True(t, IsConfigurationError(err), "rewrite tasks cannot collect: %v", err)

	_, _, err = runBody(t, PhaseRewrite, "foo(1)\n", func(i *Instance) error {
		_, err := i.Facts("mailers")
		return err
	})
	assert.True(t, IsConfigurationError(err), "undeclared read: %v", err)

	_, _, err = runBody(t, PhaseRewrite, "foo(1)\n", func(i *Instance) error {
		return i.With(anyFoo, func(m *Instance) error { return m.ReplaceWith("{{ ") })
	})
	assert.True(t, IsConfigurationError(err), "bad template: %v", err)
}

func TestCaptureAndGet(t *testing.T) {
	t.Parallel()
	p := selector.MustCompile(".send[message=foo]")
	_, _, err := runBody(t, PhaseRewrite, "foo(1, 2)\n", func(i *Instance) error {
		return i.With(p, func(m *Instance) error {
			v, err := m.Get("arguments.size")
			require.NoError(t, err)
			assert.Equal(t, 2, v.Scalar())
			assert.Equal(t, "test.rb", m.Filename())
			assert.Equal(t, "test/rule", m.Rule())
			assert.Equal(t, "foo(1, 2)", m.Node().Source())
			return nil
		})
	})
	require.NoError(t, err)
}
