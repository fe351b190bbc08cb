package rewrite

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds rules by name.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]*Rule
}

func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]*Rule)}
}

// Register adds rules. A duplicate or unnamed rule is a configuration error.
func (r *Registry) Register(rules ...*Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range rules {
		if rule.Name == "" {
			return &ConfigurationError{Err: fmt.Errorf("rule without a name")}
		}
		if _, ok := r.rules[rule.Name]; ok {
			return configErrorf(rule.Name, "registered twice")
		}
		for i, t := range rule.Tasks {
			if t.Body == nil {
				return configErrorf(rule.Name, "task %d has no body", i)
			}
		}
		r.rules[rule.Name] = rule
	}
	return nil
}

// MustRegister is Register that panics.
func (r *Registry) MustRegister(rules ...*Rule) {
	if err := r.Register(rules...); err != nil {
		panic(err)
	}
}

func (r *Registry) Get(name string) (*Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[name]
	return rule, ok
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.rules))
	for name := range r.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rules returns every registered rule sorted by name.
func (r *Registry) Rules() []*Rule {
	names := r.Names()
	out := make([]*Rule, 0, len(names))
	for _, name := range names {
		rule, _ := r.Get(name)
		out = append(out, rule)
	}
	return out
}
