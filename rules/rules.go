// Package rules holds the built-in rewrite rules.
//
// Rules are grouped by the library they migrate (minitest, rspec, rails,
// ruby) and named `group/name`.
package rules

import (
	"github.com/gnoswap-labs/rewrite/internal/pattern"
	"github.com/gnoswap-labs/rewrite/rewrite"
)

// File sets shared by the built-in rules.
var (
	rubyFiles    = []string{"**/*.rb", "**/*.rake"}
	minitestFile = []string{"test/**/*_test.rb"}
	rspecFiles   = []string{"spec/**/*_spec.rb"}
	modelFiles   = []string{"app/models/**/*.rb"}
	mailerFiles  = []string{"app/mailers/**/*.rb", "app/models/**/*.rb"}
	appFiles     = []string{"app/**/*.rb", "lib/**/*.rb"}
)

// All returns a fresh copy of every built-in rule.
func All() []*rewrite.Rule {
	return []*rewrite.Rule{
		assertNil(),
		refuteNil(),
		assertIncludes(),
		refuteEqual(),
		keysEachToEachKey(),
		deprecateDirExists(),
		deprecateFileExists(),
		deprecateFixnumAndBignum(),
		upgrade24To25(),
		deprecateErrorsAsHash(),
		convertAfterCommit(),
		convertMailers(),
		methodStub(),
		beCloseToBeWithin(),
	}
}

// Register adds the built-in rules to reg.
func Register(reg *rewrite.Registry) error {
	return reg.Register(All()...)
}

// replaceEach returns a task body that rewrites every match of p with the
// edits made by fn, all in one group.
func replaceEach(p pattern.Pattern, fn func(*rewrite.Instance) error) func(*rewrite.Instance) error {
	return func(i *rewrite.Instance) error {
		return i.With(p, func(m *rewrite.Instance) error {
			return m.Group(func() error { return fn(m) })
		})
	}
}
