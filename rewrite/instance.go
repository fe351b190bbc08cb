package rewrite

import (
	"bytes"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/gnoswap-labs/rewrite/internal/facts"
	"github.com/gnoswap-labs/rewrite/internal/fixer"
	"github.com/gnoswap-labs/rewrite/internal/pattern"
	"github.com/gnoswap-labs/rewrite/internal/template"
	"github.com/gnoswap-labs/rewrite/internal/traverse"
	"github.com/gnoswap-labs/rewrite/internal/tree"
)

// fileRun is the state one task body shares across all of its matches in
// one file.
type fileRun struct {
	step   Step
	rel    string
	src    []byte
	buf    *fixer.Buffer // nil while collecting
	store  *facts.Store
	logger *zap.Logger

	failures []error
}

func (f *fileRun) fail(err error, at tree.Node) {
	f.logger.Warn("rewrite skipped",
		zap.String("file", f.rel),
		zap.String("rule", f.step.Name()),
		zap.Stringer("node", at.Range()),
		zap.Error(err),
	)
	f.failures = append(f.failures, err)
}

// frame holds the edit groups of one match, nested matches included. They
// are committed together when the outermost match returns, or dropped
// together when any enclosing match or explicit group fails.
type frame struct {
	label  string
	group  *fixer.Group // implicit group of the match
	open   *fixer.Group // explicit group in progress
	closed []*fixer.Group
}

func (f *frame) commit(buf *fixer.Buffer) {
	if buf == nil {
		return
	}
	buf.Commit(f.group)
	for _, g := range f.closed {
		buf.Commit(g)
	}
}

// adopt takes over the groups of a nested match that succeeded. Inside an
// explicit group they join it and share its fate under every conflict
// policy.
func (f *frame) adopt(child *frame) {
	groups := append([]*fixer.Group{child.group}, child.closed...)
	for _, g := range groups {
		if g == nil {
			continue
		}
		if f.open != nil {
			f.open.Merge(g)
			continue
		}
		f.closed = append(f.closed, g)
	}
}

// Instance is what a task body sees: one node in view inside one file, and
// the operations that search below it and schedule edits against it.
type Instance struct {
	run   *fileRun
	scope traverse.Scope
	frame *frame
}

func newInstance(run *fileRun, scope traverse.Scope) *Instance {
	return &Instance{run: run, scope: scope, frame: newFrame(run, scope.Node)}
}

func newFrame(run *fileRun, n tree.Node) *frame {
	return &frame{label: fmt.Sprintf("%s@%s", run.step.Name(), n.Range())}
}

// Node returns the node in view.
func (i *Instance) Node() tree.Node { return i.scope.Node }

// Scope returns the node in view together with its ancestors.
func (i *Instance) Scope() traverse.Scope { return i.scope }

// Filename returns the path of the file relative to the project root.
func (i *Instance) Filename() string { return i.run.rel }

// Rule returns the name of the running step.
func (i *Instance) Rule() string { return i.run.step.Name() }

// Capture returns a value bound by a Capture pattern of the match that
// produced this scope.
func (i *Instance) Capture(name string) (tree.Value, bool) {
	v, ok := i.scope.Bindings[name]
	return v, ok
}

// Get resolves an attribute path against the node in view.
func (i *Instance) Get(path string) (tree.Value, error) {
	p, err := i.path(path)
	if err != nil {
		return tree.Value{}, err
	}
	return p.ResolveNode(i.scope.Node)
}

func (i *Instance) enter(s traverse.Scope, fn func(*Instance) error) error {
	child := &Instance{run: i.run, scope: s, frame: newFrame(i.run, s.Node)}
	if err := fn(child); err != nil {
		if recoverable(err) {
			i.run.fail(err, s.Node)
			return nil
		}
		return err
	}
	i.frame.adopt(child.frame)
	return nil
}

// Within runs fn for every match at or below the node in view without
// searching inside a match. Each match is its own rewrite: a failing
// placeholder drops that match's edits only.
func (i *Instance) Within(p pattern.Pattern, fn func(*Instance) error) error {
	return i.scope.Within(p, func(s traverse.Scope) error { return i.enter(s, fn) })
}

// WithinFirst is Within that stops after the first match.
func (i *Instance) WithinFirst(p pattern.Pattern, fn func(*Instance) error) error {
	return i.scope.WithinFirst(p, func(s traverse.Scope) error { return i.enter(s, fn) })
}

// With runs fn for every match at or below the node in view, including
// matches nested inside other matches.
func (i *Instance) With(p pattern.Pattern, fn func(*Instance) error) error {
	return i.scope.Each(p, func(s traverse.Scope) error { return i.enter(s, fn) })
}

// Exists reports whether a strict descendant of the node in view matches.
func (i *Instance) Exists(p pattern.Pattern) bool {
	return i.scope.Exists(p)
}

// IfExist runs fn when a descendant matches p.
func (i *Instance) IfExist(p pattern.Pattern, fn func() error) error {
	if !i.Exists(p) {
		return nil
	}
	return fn()
}

// UnlessExist runs fn when no descendant matches p.
func (i *Instance) UnlessExist(p pattern.Pattern, fn func() error) error {
	if i.Exists(p) {
		return nil
	}
	return fn()
}

// Goto narrows to the node, or each node of the list, at path. Edits made
// there belong to the current match.
func (i *Instance) Goto(path string, fn func(*Instance) error) error {
	p, err := i.path(path)
	if err != nil {
		return err
	}
	return i.scope.Goto(p, func(s traverse.Scope) error {
		return fn(&Instance{run: i.run, scope: s, frame: i.frame})
	})
}

// Group runs fn with every edit it schedules collected in one explicit
// group. Nested groups join the outer one.
func (i *Instance) Group(fn func() error) error {
	if i.frame.open != nil {
		return fn()
	}
	if i.run.buf == nil {
		return i.readOnly()
	}
	g := i.run.buf.Open(i.frame.label)
	i.frame.open = g
	err := fn()
	i.frame.open = nil
	if err != nil {
		return err
	}
	i.frame.closed = append(i.frame.closed, g)
	return nil
}

// Render renders a template against the node in view.
func (i *Instance) Render(tmpl string) (string, error) {
	t, err := i.template(tmpl)
	if err != nil {
		return "", err
	}
	return t.Render(i.scope.Node)
}

// Replace substitutes the node at target with the rendered template.
func (i *Instance) Replace(target, with string) error {
	r, err := i.target(target)
	if err != nil {
		return err
	}
	text, err := i.Render(with)
	if err != nil {
		return err
	}
	return i.edit(func(g *fixer.Group) error { return g.Replace(r, text) })
}

// ReplaceWith substitutes the node in view. Continuation lines of a multi
// line result are indented like the node's first line.
func (i *Instance) ReplaceWith(with string) error {
	text, err := i.Render(with)
	if err != nil {
		return err
	}
	r := i.scope.Node.Range()
	text = fixer.Reindent(text, fixer.IndentAt(i.run.src, r.Start))
	return i.edit(func(g *fixer.Group) error { return g.Replace(r, text) })
}

type deleteOptions struct {
	andComma bool
}

// DeleteOption configures Delete.
type DeleteOption func(*deleteOptions)

// AndComma also removes the separator that kept the target in its list.
func AndComma() DeleteOption {
	return func(o *deleteOptions) { o.andComma = true }
}

// Delete removes the node at target.
func (i *Instance) Delete(target string, opts ...DeleteOption) error {
	var o deleteOptions
	for _, opt := range opts {
		opt(&o)
	}
	r, err := i.target(target)
	if err != nil {
		return err
	}
	if o.andComma {
		r = fixer.AndComma(i.run.src, r)
	}
	return i.edit(func(g *fixer.Group) error { return g.Delete(r) })
}

// Remove deletes the node in view. A node alone on its line takes the line
// with it; otherwise the neighbouring comma goes.
func (i *Instance) Remove() error {
	r := i.scope.Node.Range()
	if line, ok := fixer.WholeLine(i.run.src, r); ok {
		r = line
	} else {
		r = fixer.AndComma(i.run.src, r)
	}
	return i.edit(func(g *fixer.Group) error { return g.Delete(r) })
}

// Side selects the side of the target Insert writes to.
type Side int

const (
	AtEnd Side = iota
	AtStart
)

type insertOptions struct {
	at     Side
	target string
}

// InsertOption configures Insert.
type InsertOption func(*insertOptions)

// At selects the side of the target.
func At(side Side) InsertOption {
	return func(o *insertOptions) { o.at = side }
}

// To inserts relative to the node at path instead of the node in view.
func To(path string) InsertOption {
	return func(o *insertOptions) { o.target = path }
}

// Insert writes the rendered code right at the start or end of a target.
func (i *Instance) Insert(code string, opts ...InsertOption) error {
	var o insertOptions
	for _, opt := range opts {
		opt(&o)
	}
	r, err := i.target(o.target)
	if err != nil {
		return err
	}
	text, err := i.Render(code)
	if err != nil {
		return err
	}
	if o.at == AtStart {
		return i.edit(func(g *fixer.Group) error { return g.Insert(r.Start, text, fixer.AnchorStart) })
	}
	return i.edit(func(g *fixer.Group) error { return g.Insert(r.End, text, fixer.AnchorEnd) })
}

// InsertAfter adds the rendered code on a new line after the node in view.
func (i *Instance) InsertAfter(code string) error {
	text, err := i.Render(code)
	if err != nil {
		return err
	}
	r := i.scope.Node.Range()
	indent := fixer.IndentAt(i.run.src, r.Start)
	text = "\n" + indent + fixer.Reindent(text, indent)
	return i.edit(func(g *fixer.Group) error { return g.Insert(r.End, text, fixer.AnchorEnd) })
}

// InsertBefore adds the rendered code on a new line before the node in view.
func (i *Instance) InsertBefore(code string) error {
	text, err := i.Render(code)
	if err != nil {
		return err
	}
	r := i.scope.Node.Range()
	indent := fixer.IndentAt(i.run.src, r.Start)
	text = fixer.Reindent(text, indent) + "\n" + indent
	return i.edit(func(g *fixer.Group) error { return g.Insert(r.Start, text, fixer.AnchorStart) })
}

var endKeyword = []byte("end")

// Append adds the rendered code as the last statement of the body of the
// node in view (a class, module, def or block).
func (i *Instance) Append(code string) error {
	text, err := i.Render(code)
	if err != nil {
		return err
	}
	src, r := i.run.src, i.scope.Node.Range()
	closer := r.End - len(endKeyword)
	if r.Len() < len(endKeyword) || !bytes.Equal(src[closer:r.End], endKeyword) {
		closer = r.End - 1
		if r.Len() == 0 || src[closer] != '}' {
			return &TargetError{Path: "body", Node: r}
		}
	}
	lineStart := closer
	for lineStart > r.Start && (src[lineStart-1] == ' ' || src[lineStart-1] == '\t') {
		lineStart--
	}
	if lineStart > 0 && src[lineStart-1] == '\n' {
		indent := string(src[lineStart:closer]) + "  "
		text = indent + fixer.Reindent(text, indent) + "\n"
		return i.edit(func(g *fixer.Group) error { return g.Insert(lineStart, text, fixer.AnchorStart) })
	}
	return i.edit(func(g *fixer.Group) error { return g.Insert(closer, text+"; ", fixer.AnchorStart) })
}

// Prepend adds the rendered code as the first statement of the body of the
// node in view.
func (i *Instance) Prepend(code string) error {
	text, err := i.Render(code)
	if err != nil {
		return err
	}
	src, r := i.run.src, i.scope.Node.Range()
	nl := bytes.IndexByte(src[r.Start:r.End], '\n')
	if nl < 0 {
		return &TargetError{Path: "body", Node: r}
	}
	at := r.Start + nl + 1
	indent := fixer.IndentAt(src, r.Start) + "  "
	text = indent + fixer.Reindent(text, indent) + "\n"
	return i.edit(func(g *fixer.Group) error { return g.Insert(at, text, fixer.AnchorStart) })
}

// Facts returns a frozen fact store the task declared in Reads.
func (i *Instance) Facts(name string) (facts.Table, error) {
	if !contains(i.run.step.Task.Reads, name) {
		return facts.Table{}, configErrorf(i.run.step.Rule.Name, "task %s reads undeclared fact store %q", i.run.step.Name(), name)
	}
	return i.run.store.Table(name), nil
}

// Collect records value under key in a fact store the task declared in
// Writes. Only collect tasks may call it.
func (i *Instance) Collect(store, key, value string) error {
	step := i.run.step
	if step.Task.Phase != PhaseCollect || !contains(step.Task.Writes, store) {
		return configErrorf(step.Rule.Name, "task %s writes undeclared fact store %q", step.Name(), store)
	}
	return i.run.store.Add(store, key, value)
}

func (i *Instance) readOnly() error {
	return configErrorf(i.run.step.Rule.Name, "collect task %s cannot edit files", i.run.step.Name())
}

func (i *Instance) edit(add func(*fixer.Group) error) error {
	if i.run.buf == nil {
		return i.readOnly()
	}
	g := i.frame.open
	if g == nil {
		if i.frame.group == nil {
			i.frame.group = i.run.buf.Open(i.frame.label)
		}
		g = i.frame.group
	}
	return add(g)
}

func (i *Instance) target(path string) (tree.Range, error) {
	if path == "" {
		return i.scope.Node.Range(), nil
	}
	v, err := i.Get(path)
	if err != nil {
		return tree.Range{}, err
	}
	r, ok := v.Range()
	if !ok {
		return tree.Range{}, &TargetError{Path: path, Node: i.scope.Node.Range()}
	}
	return r, nil
}

var (
	templates sync.Map // string -> *template.Template
	paths     sync.Map // string -> tree.Path
)

func (i *Instance) template(s string) (*template.Template, error) {
	if t, ok := templates.Load(s); ok {
		return t.(*template.Template), nil
	}
	t, err := template.Parse(s)
	if err != nil {
		return nil, &ConfigurationError{Rule: i.run.step.Rule.Name, Err: err}
	}
	templates.Store(s, t)
	return t, nil
}

func (i *Instance) path(s string) (tree.Path, error) {
	if p, ok := paths.Load(s); ok {
		return p.(tree.Path), nil
	}
	p, err := tree.ParsePath(s)
	if err != nil {
		return nil, &ConfigurationError{Rule: i.run.step.Rule.Name, Err: err}
	}
	paths.Store(s, p)
	return p, nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
