package fixer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gnoswap-labs/rewrite/internal/tree"
)

// EditKind is the operation an edit performs.
type EditKind int

const (
	Insert EditKind = iota
	Delete
	Replace
)

func (k EditKind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	case Replace:
		return "replace"
	}
	return "unknown"
}

// Anchor decides the order of inserts that land on the same offset. An
// end-anchored insert belongs to the text before the offset and is emitted
// ahead of start-anchored inserts, which belong to the text after it.
type Anchor int

const (
	AnchorStart Anchor = iota
	AnchorEnd
)

// Edit is a single scheduled change to the original text.
type Edit struct {
	Range  tree.Range
	Kind   EditKind
	Text   string
	Anchor Anchor
	Group  int

	seq int
}

func (e Edit) String() string {
	if e.Kind == Insert {
		return fmt.Sprintf("insert at %d (group %d)", e.Range.Start, e.Group)
	}
	return fmt.Sprintf("%s %s (group %d)", e.Kind, e.Range, e.Group)
}

func (e Edit) sameAs(o Edit) bool {
	return e.Range == o.Range && e.Kind == o.Kind && e.Text == o.Text && e.Anchor == o.Anchor
}

// priority orders edits that start at the same offset.
func (e Edit) priority() int {
	switch {
	case e.Kind == Insert && e.Anchor == AnchorEnd:
		return 0
	case e.Kind == Insert:
		return 1
	}
	return 2
}

// ConflictPolicy selects what happens when edits overlap.
type ConflictPolicy int

const (
	// RejectFile leaves the whole file unmodified.
	RejectFile ConflictPolicy = iota
	// RejectGroups drops only the groups involved in a conflict.
	RejectGroups
)

// ParsePolicy maps a configuration value to a policy.
func ParsePolicy(s string) (ConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject-file", "file":
		return RejectFile, nil
	case "reject-groups", "groups":
		return RejectGroups, nil
	}
	return RejectFile, fmt.Errorf("unknown conflict policy %q", s)
}

func (p ConflictPolicy) String() string {
	if p == RejectGroups {
		return "reject-groups"
	}
	return "reject-file"
}

// ConflictError reports two overlapping edits.
type ConflictError struct {
	Filename string
	A, B     Edit
	Labels   [2]string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: conflicting edits: %s [%s] overlaps %s [%s]",
		e.Filename, e.A, e.Labels[0], e.B, e.Labels[1])
}

// ErrInvalidRange is returned when an edit targets bytes outside the source.
var ErrInvalidRange = errors.New("edit range outside source")

// Buffer collects the edit groups scheduled against one file.
type Buffer struct {
	filename string
	src      []byte
	groups   []*Group
	labels   map[int]string
	nextID   int
	seq      int
}

// NewBuffer returns an empty buffer over src.
func NewBuffer(filename string, src []byte) *Buffer {
	return &Buffer{filename: filename, src: src, labels: make(map[int]string), nextID: 1}
}

// Source returns the original text.
func (b *Buffer) Source() []byte { return b.src }

// Filename returns the name the buffer was created for.
func (b *Buffer) Filename() string { return b.filename }

// Open starts a new, uncommitted group.
func (b *Buffer) Open(label string) *Group {
	g := &Group{id: b.nextID, label: label, buf: b}
	b.nextID++
	return g
}

// Commit adds a group's edits to the buffer. Empty groups are ignored.
func (b *Buffer) Commit(g *Group) {
	if g == nil || len(g.edits) == 0 || g.committed {
		return
	}
	g.committed = true
	b.groups = append(b.groups, g)
	b.labels[g.id] = g.label
}

// Groups returns the committed groups in commit order.
func (b *Buffer) Groups() []*Group { return b.groups }

// Group is an ordered set of edits applied all together or not at all.
type Group struct {
	id        int
	label     string
	buf       *Buffer
	edits     []Edit
	committed bool
}

func (g *Group) ID() int       { return g.id }
func (g *Group) Label() string { return g.label }
func (g *Group) Edits() []Edit { return g.edits }
func (g *Group) Len() int      { return len(g.edits) }

// Merge moves the edits of o into g, so that they are applied or dropped
// with g. o is left empty.
func (g *Group) Merge(o *Group) {
	if o == nil || o == g {
		return
	}
	for _, e := range o.edits {
		e.Group = g.id
		g.edits = append(g.edits, e)
	}
	o.edits = nil
}

func (g *Group) add(e Edit) error {
	if e.Range.Start < 0 || e.Range.End > len(g.buf.src) || e.Range.Start > e.Range.End {
		return fmt.Errorf("%w: %s", ErrInvalidRange, e.Range)
	}
	e.Group = g.id
	e.seq = g.buf.seq
	g.buf.seq++
	g.edits = append(g.edits, e)
	return nil
}

// Insert schedules text at offset.
func (g *Group) Insert(offset int, text string, anchor Anchor) error {
	return g.add(Edit{Range: tree.Range{Start: offset, End: offset}, Kind: Insert, Text: text, Anchor: anchor})
}

// Delete schedules removal of r.
func (g *Group) Delete(r tree.Range) error {
	return g.add(Edit{Range: r, Kind: Delete})
}

// Replace schedules substitution of r by text.
func (g *Group) Replace(r tree.Range, text string) error {
	return g.add(Edit{Range: r, Kind: Replace, Text: text})
}

// Result is the outcome of rendering a buffer.
type Result struct {
	Text      []byte
	Changed   bool
	Applied   []Edit
	Dropped   []int
	Conflicts []*ConflictError
}

// Render applies the committed groups to the original text. Under RejectFile
// any conflict returns the first *ConflictError and the original text. Under
// RejectGroups the conflicting groups are dropped, listed in Result.Dropped
// and Result.Conflicts, and the remaining groups are rendered.
func (b *Buffer) Render(policy ConflictPolicy) (*Result, error) {
	edits := b.collect(nil)
	conflicts := b.conflicts(edits)
	res := &Result{Conflicts: conflicts}
	if len(conflicts) > 0 {
		if policy == RejectFile {
			res.Text = b.src
			return res, conflicts[0]
		}
		drop := make(map[int]bool)
		for _, c := range conflicts {
			drop[c.A.Group] = true
			drop[c.B.Group] = true
		}
		for id := range drop {
			res.Dropped = append(res.Dropped, id)
		}
		sort.Ints(res.Dropped)
		edits = b.collect(drop)
	}
	res.Text, res.Applied = apply(b.src, edits)
	res.Changed = string(res.Text) != string(b.src)
	return res, nil
}

// collect flattens the committed groups, skipping dropped ones, collapses
// exact duplicates and sorts into render order.
func (b *Buffer) collect(drop map[int]bool) []Edit {
	var edits []Edit
	for _, g := range b.groups {
		if drop[g.id] {
			continue
		}
	next:
		for _, e := range g.edits {
			for _, seen := range edits {
				if seen.sameAs(e) {
					continue next
				}
			}
			edits = append(edits, e)
		}
	}
	sort.SliceStable(edits, func(i, j int) bool {
		a, c := edits[i], edits[j]
		if a.Range.Start != c.Range.Start {
			return a.Range.Start < c.Range.Start
		}
		if a.priority() != c.priority() {
			return a.priority() < c.priority()
		}
		return a.seq < c.seq
	})
	return edits
}

func (b *Buffer) conflicts(sorted []Edit) []*ConflictError {
	var out []*ConflictError
	for i := range sorted {
		for j := i + 1; j < len(sorted) && sorted[j].Range.Start <= sorted[i].Range.End; j++ {
			if !sorted[i].Range.Overlaps(sorted[j].Range) {
				continue
			}
			out = append(out, &ConflictError{
				Filename: b.filename,
				A:        sorted[i],
				B:        sorted[j],
				Labels:   [2]string{b.labels[sorted[i].Group], b.labels[sorted[j].Group]},
			})
		}
	}
	return out
}

// apply walks src once, copying unedited spans and substituting edits. The
// edits must be sorted and free of overlaps.
func apply(src []byte, edits []Edit) ([]byte, []Edit) {
	var sb strings.Builder
	sb.Grow(len(src))
	cursor := 0
	for _, e := range edits {
		if e.Range.Start > cursor {
			sb.Write(src[cursor:e.Range.Start])
			cursor = e.Range.Start
		}
		sb.WriteString(e.Text)
		if e.Range.End > cursor {
			cursor = e.Range.End
		}
	}
	sb.Write(src[cursor:])
	return []byte(sb.String()), edits
}
