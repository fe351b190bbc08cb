package rewrite

import (
	"fmt"
	"strings"

	"github.com/gnoswap-labs/rewrite/scanner"
)

// Step is one task scheduled in a stage.
type Step struct {
	Rule  *Rule
	Task  *Task
	Index int

	files *scanner.FileSet
}

// Name identifies the step in logs and edit group labels.
func (s Step) Name() string {
	if len(s.Rule.Tasks) == 1 {
		return s.Rule.Name
	}
	return fmt.Sprintf("%s#%d", s.Rule.Name, s.Index)
}

// Selects reports whether the step runs over the file at rel.
func (s Step) Selects(rel string) bool {
	return s.files.Match(rel)
}

// Skip records a rule or task a guard turned off.
type Skip struct {
	Name  string
	Guard string
}

// Plan is the ordered work of a run: every collect step over all of its
// files, a freeze of the fact stores, then every rewrite step.
type Plan struct {
	Rules   []string
	Collect []Step
	Rewrite []Step
	Skipped []Skip
}

// NewPlan expands includes, evaluates guards and checks fact store usage
// for the named rules. Every problem is a *ConfigurationError.
func NewPlan(reg *Registry, names []string, env Env) (*Plan, error) {
	p := &planner{
		reg:     reg,
		env:     env,
		state:   make(map[string]visit),
		onPath:  make(map[string]bool),
		skipped: make(map[string]bool),
		plan:    &Plan{},
	}
	for _, name := range names {
		if err := p.visit(name, nil, true); err != nil {
			return nil, err
		}
	}
	for _, name := range p.plan.Rules {
		rule, _ := reg.Get(name)
		if err := p.schedule(rule); err != nil {
			return nil, err
		}
	}
	if err := p.plan.validate(); err != nil {
		return nil, err
	}
	return p.plan, nil
}

type visit int

const (
	unvisited visit = iota
	inactive
	active
)

type planner struct {
	reg     *Registry
	env     Env
	state   map[string]visit
	onPath  map[string]bool
	skipped map[string]bool
	plan    *Plan
}

func (p *planner) visit(name string, path []string, parentActive bool) error {
	if p.onPath[name] {
		return configErrorf(name, "snippet cycle: %s", strings.Join(append(path, name), " -> "))
	}
	st := p.state[name]
	if st == active || (st == inactive && !parentActive) {
		return nil
	}
	rule, ok := p.reg.Get(name)
	if !ok {
		if len(path) == 0 {
			return configErrorf(name, "unknown rule")
		}
		return configErrorf(path[len(path)-1], "unknown snippet %q", name)
	}

	on := parentActive
	if on {
		pass, failed, err := check(rule.Guards, p.env)
		if err != nil {
			return &ConfigurationError{Rule: name, Err: err}
		}
		if !pass {
			if !p.skipped[name] {
				p.skipped[name] = true
				p.plan.Skipped = append(p.plan.Skipped, Skip{Name: name, Guard: failed})
			}
			on = false
		}
	}

	p.onPath[name] = true
	for _, inc := range rule.Includes {
		if err := p.visit(inc, append(path, name), on); err != nil {
			return err
		}
	}
	delete(p.onPath, name)

	if on {
		p.state[name] = active
		p.plan.Rules = append(p.plan.Rules, name)
	} else if st == unvisited {
		p.state[name] = inactive
	}
	return nil
}

func (p *planner) schedule(rule *Rule) error {
	for i := range rule.Tasks {
		t := &rule.Tasks[i]
		step := Step{Rule: rule, Task: t, Index: i, files: scanner.NewFileSet(t.Files...)}
		pass, failed, err := check(t.Guards, p.env)
		if err != nil {
			return &ConfigurationError{Rule: rule.Name, Err: err}
		}
		if !pass {
			p.plan.Skipped = append(p.plan.Skipped, Skip{Name: step.Name(), Guard: failed})
			continue
		}
		switch t.Phase {
		case PhaseCollect:
			p.plan.Collect = append(p.plan.Collect, step)
		case PhaseRewrite:
			p.plan.Rewrite = append(p.plan.Rewrite, step)
		default:
			return configErrorf(rule.Name, "task %d has unknown phase %s", i, t.Phase)
		}
	}
	return nil
}

func check(guards []Guard, env Env) (bool, string, error) {
	for _, g := range guards {
		ok, err := g.Check(env)
		if err != nil {
			return false, g.String(), err
		}
		if !ok {
			return false, g.String(), nil
		}
	}
	return true, "", nil
}

func (p *Plan) validate() error {
	written := make(map[string]bool)
	for _, s := range p.Collect {
		for _, name := range s.Task.Writes {
			written[name] = true
		}
	}
	for _, s := range p.Rewrite {
		if len(s.Task.Writes) > 0 {
			return configErrorf(s.Rule.Name, "rewrite task %s writes fact store %q", s.Name(), s.Task.Writes[0])
		}
	}
	for _, s := range p.Collect {
		for _, name := range s.Task.Reads {
			if written[name] {
				return configErrorf(s.Rule.Name, "collect task %s reads fact store %q written in the same stage", s.Name(), name)
			}
		}
	}
	for _, steps := range [][]Step{p.Collect, p.Rewrite} {
		for _, s := range steps {
			for _, name := range s.Task.Reads {
				if !written[name] {
					return configErrorf(s.Rule.Name, "task %s reads fact store %q that no collect task writes", s.Name(), name)
				}
			}
		}
	}
	return nil
}

// Steps returns the steps of both stages in execution order.
func (p *Plan) Steps() []Step {
	return append(append([]Step(nil), p.Collect...), p.Rewrite...)
}
