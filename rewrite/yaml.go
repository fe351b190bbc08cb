package rewrite

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gnoswap-labs/rewrite/internal/pattern"
	"github.com/gnoswap-labs/rewrite/internal/selector"
	"github.com/gnoswap-labs/rewrite/internal/template"
	"github.com/gnoswap-labs/rewrite/internal/tree"
)

// RuleSpec is a rule declared in YAML:
//
//	rules:
//	  - name: ruby/keys_each
//	    files: ["**/*.rb"]
//	    find: .send[receiver=.send[message=keys][arguments.size=0]][message=each][arguments.size=0]
//	    actions:
//	      - replace: receiver
//	        with: "{{receiver.receiver}}"
//	      - replace: message
//	        with: each_key
type RuleSpec struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Files       []string     `yaml:"files"`
	Gems        []GemSpec    `yaml:"if_gem"`
	Find        string       `yaml:"find"`
	Mode        string       `yaml:"mode"` // each (default), within, first
	IfExist     string       `yaml:"if_exist"`
	UnlessExist string       `yaml:"unless_exist"`
	Actions     []ActionSpec `yaml:"actions"`
}

type GemSpec struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// ActionSpec holds exactly one edit.
type ActionSpec struct {
	Replace      string `yaml:"replace"`
	With         string `yaml:"with"`
	ReplaceWith  string `yaml:"replace_with"`
	Delete       string `yaml:"delete"`
	AndComma     bool   `yaml:"and_comma"`
	Remove       bool   `yaml:"remove"`
	Insert       string `yaml:"insert"`
	At           string `yaml:"at"`
	To           string `yaml:"to"`
	InsertAfter  string `yaml:"insert_after"`
	InsertBefore string `yaml:"insert_before"`
	Append       string `yaml:"append"`
	Prepend      string `yaml:"prepend"`
}

type RulesConfig struct {
	Rules []RuleSpec `yaml:"rules"`
}

// LoadRules reads and compiles a YAML rule file.
func LoadRules(path string) ([]*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// ParseRules compiles YAML rule definitions. Selectors and templates are
// checked here so that a bad rule never reaches a run.
func ParseRules(data []byte) ([]*Rule, error) {
	var cfg RulesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	out := make([]*Rule, 0, len(cfg.Rules))
	for _, spec := range cfg.Rules {
		rule, err := spec.Compile()
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

// Compile turns the spec into a single-task rewrite rule.
func (s RuleSpec) Compile() (*Rule, error) {
	if s.Name == "" {
		return nil, &ConfigurationError{Err: fmt.Errorf("rule without a name")}
	}
	wrap := func(err error) error { return &ConfigurationError{Rule: s.Name, Err: err} }

	find, err := selector.Compile(s.Find)
	if err != nil {
		return nil, wrap(err)
	}
	var ifExist, unlessExist pattern.Pattern
	if s.IfExist != "" {
		if ifExist, err = selector.Compile(s.IfExist); err != nil {
			return nil, wrap(err)
		}
	}
	if s.UnlessExist != "" {
		if unlessExist, err = selector.Compile(s.UnlessExist); err != nil {
			return nil, wrap(err)
		}
	}
	if len(s.Actions) == 0 {
		return nil, configErrorf(s.Name, "no actions")
	}
	actions := make([]func(*Instance) error, len(s.Actions))
	for i, a := range s.Actions {
		if actions[i], err = a.compile(); err != nil {
			return nil, configErrorf(s.Name, "action %d: %w", i, err)
		}
	}

	var search func(*Instance, pattern.Pattern, func(*Instance) error) error
	switch s.Mode {
	case "", "each":
		search = (*Instance).With
	case "within":
		search = (*Instance).Within
	case "first":
		search = (*Instance).WithinFirst
	default:
		return nil, configErrorf(s.Name, "unknown mode %q", s.Mode)
	}

	rule := &Rule{Name: s.Name, Description: s.Description}
	for _, g := range s.Gems {
		rule.Guards = append(rule.Guards, IfGem(g.Name, g.Version))
	}
	rule.Tasks = []Task{{
		Phase: PhaseRewrite,
		Files: s.Files,
		Body: func(inst *Instance) error {
			return search(inst, find, func(m *Instance) error {
				if ifExist != nil && !m.Exists(ifExist) {
					return nil
				}
				if unlessExist != nil && m.Exists(unlessExist) {
					return nil
				}
				for _, act := range actions {
					if err := act(m); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}}
	return rule, nil
}

func checkTemplate(s string) error {
	_, err := template.Parse(s)
	return err
}

func checkPath(s string) error {
	if s == "" {
		return nil
	}
	_, err := tree.ParsePath(s)
	return err
}

func (a ActionSpec) compile() (func(*Instance) error, error) {
	var (
		verbs int
		act   func(*Instance) error
		check []error
	)
	set := func(fn func(*Instance) error, errs ...error) {
		verbs++
		act = fn
		check = append(check, errs...)
	}
	if a.Replace != "" {
		set(func(i *Instance) error { return i.Replace(a.Replace, a.With) }, checkPath(a.Replace), checkTemplate(a.With))
	}
	if a.ReplaceWith != "" {
		set(func(i *Instance) error { return i.ReplaceWith(a.ReplaceWith) }, checkTemplate(a.ReplaceWith))
	}
	if a.Delete != "" {
		var opts []DeleteOption
		if a.AndComma {
			opts = append(opts, AndComma())
		}
		set(func(i *Instance) error { return i.Delete(a.Delete, opts...) }, checkPath(a.Delete))
	}
	if a.Remove {
		set(func(i *Instance) error { return i.Remove() })
	}
	if a.Insert != "" {
		opts := []InsertOption{To(a.To)}
		switch a.At {
		case "", "end":
		case "start", "beginning":
			opts = append(opts, At(AtStart))
		default:
			check = append(check, fmt.Errorf("unknown insert position %q", a.At))
		}
		set(func(i *Instance) error { return i.Insert(a.Insert, opts...) }, checkTemplate(a.Insert), checkPath(a.To))
	}
	if a.InsertAfter != "" {
		set(func(i *Instance) error { return i.InsertAfter(a.InsertAfter) }, checkTemplate(a.InsertAfter))
	}
	if a.InsertBefore != "" {
		set(func(i *Instance) error { return i.InsertBefore(a.InsertBefore) }, checkTemplate(a.InsertBefore))
	}
	if a.Append != "" {
		set(func(i *Instance) error { return i.Append(a.Append) }, checkTemplate(a.Append))
	}
	if a.Prepend != "" {
		set(func(i *Instance) error { return i.Prepend(a.Prepend) }, checkTemplate(a.Prepend))
	}
	if verbs != 1 {
		return nil, fmt.Errorf("want exactly one edit, got %d", verbs)
	}
	for _, err := range check {
		if err != nil {
			return nil, err
		}
	}
	return act, nil
}
