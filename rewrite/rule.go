// Package rewrite ties the engine together: the rule contract, the per-file
// Instance rules drive, the planner that orders collect and rewrite stages,
// and the runner that executes a plan over a file set.
package rewrite

import (
	"fmt"
	"strings"
)

// Phase tells the planner which stage a task belongs to.
type Phase int

const (
	// PhaseRewrite tasks schedule edits and may read frozen fact stores.
	PhaseRewrite Phase = iota
	// PhaseCollect tasks only write fact stores. They all finish before any
	// rewrite task starts.
	PhaseCollect
)

func (p Phase) String() string {
	switch p {
	case PhaseCollect:
		return "collect"
	case PhaseRewrite:
		return "rewrite"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Task is one body run over a file set.
type Task struct {
	Phase Phase
	// Files are gitignore-style globs relative to the project root. Empty
	// means every scanned file.
	Files []string
	// Reads and Writes name the fact stores the body touches.
	Reads  []string
	Writes []string
	// Guards gate this task only, in addition to the rule's guards.
	Guards []Guard
	Body   func(*Instance) error
}

// Rule is a named set of tasks.
type Rule struct {
	Name        string
	Description string
	Guards      []Guard
	// Includes names other registered rules whose tasks run as part of
	// this one, before its own.
	Includes []string
	Tasks    []Task
}

// Group returns the part of the name before the slash ("rails" for
// "rails/convert_mailers_2_3_to_3_0").
func (r *Rule) Group() string {
	if i := strings.IndexByte(r.Name, '/'); i >= 0 {
		return r.Name[:i]
	}
	return ""
}

func (r *Rule) String() string { return r.Name }
