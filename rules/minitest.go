package rules

import (
	"github.com/gnoswap-labs/rewrite/internal/selector"
	"github.com/gnoswap-labs/rewrite/rewrite"
)

var (
	assertEqualNil = selector.MustCompile(".send[receiver=nil][message=assert_equal][arguments.size=2][arguments.first=nil]")

	assertNotNil = selector.MustCompile(".send[receiver=nil][message=assert][arguments.size=1][arguments.first=.send[message='!'][receiver=.send[message=nil?]]]")
	refuteIsNil  = selector.MustCompile(".send[receiver=nil][message=refute][arguments.size=1][arguments.first=.send[message=nil?]]")

	assertInclude = selector.MustCompile(".send[receiver=nil][message=assert][arguments.size=1][arguments.first=.send[message=include?][arguments.size=1]]")

	assertNotEqual = selector.MustCompile(".send[receiver=nil][message=assert][arguments.size=1][arguments.first=.send[message='!=']]")
	assertNotEq    = selector.MustCompile(".send[receiver=nil][message=assert][arguments.size=1][arguments.first=.send[message='=='][receiver=.send[message='!']]]")
)

// assert_equal(nil, actual) => assert_nil(actual)
func assertNil() *rewrite.Rule {
	return &rewrite.Rule{
		Name:        "minitest/assert_nil",
		Description: "Use assert_nil if expecting nil.",
		Tasks: []rewrite.Task{{
			Files: minitestFile,
			Body: replaceEach(assertEqualNil, func(m *rewrite.Instance) error {
				if err := m.Replace("message", "assert_nil"); err != nil {
					return err
				}
				return m.Delete("arguments.first", rewrite.AndComma())
			}),
		}},
	}
}

// assert(!actual.nil?) => refute_nil(actual)
// refute(actual.nil?)  => refute_nil(actual)
func refuteNil() *rewrite.Rule {
	return &rewrite.Rule{
		Name:        "minitest/refute_nil",
		Description: "Use refute_nil if not expecting nil.",
		Tasks: []rewrite.Task{
			{
				Files: minitestFile,
				Body: replaceEach(assertNotNil, func(m *rewrite.Instance) error {
					if err := m.Replace("message", "refute_nil"); err != nil {
						return err
					}
					return m.Replace("arguments", "{{arguments.first.receiver.receiver}}")
				}),
			},
			{
				Files: minitestFile,
				Body: replaceEach(refuteIsNil, func(m *rewrite.Instance) error {
					if err := m.Replace("message", "refute_nil"); err != nil {
						return err
					}
					return m.Replace("arguments", "{{arguments.first.receiver}}")
				}),
			},
		},
	}
}

// assert(collection.include?(object)) => assert_includes(collection, object)
func assertIncludes() *rewrite.Rule {
	return &rewrite.Rule{
		Name:        "minitest/assert_includes",
		Description: "Use assert_includes to assert if the object is included in the collection.",
		Tasks: []rewrite.Task{{
			Files: minitestFile,
			Body: replaceEach(assertInclude, func(m *rewrite.Instance) error {
				if err := m.Replace("message", "assert_includes"); err != nil {
					return err
				}
				return m.Replace("arguments", "{{arguments.first.receiver}}, {{arguments.first.arguments.first}}")
			}),
		}},
	}
}

// assert("rubocop-minitest" != actual)  => refute_equal("rubocop-minitest", actual)
// assert(!"rubocop-minitest" == actual) => refute_equal("rubocop-minitest", actual)
func refuteEqual() *rewrite.Rule {
	return &rewrite.Rule{
		Name:        "minitest/refute_equal",
		Description: "Use refute_equal if expected and actual should not be same.",
		Tasks: []rewrite.Task{{
			Files: minitestFile,
			Body: func(i *rewrite.Instance) error {
				err := i.With(assertNotEqual, func(m *rewrite.Instance) error {
					return m.Group(func() error {
						if err := m.Replace("message", "refute_equal"); err != nil {
							return err
						}
						return m.Replace("arguments", "{{arguments.first.receiver}}, {{arguments.first.arguments}}")
					})
				})
				if err != nil {
					return err
				}
				return i.With(assertNotEq, func(m *rewrite.Instance) error {
					return m.Group(func() error {
						if err := m.Replace("message", "refute_equal"); err != nil {
							return err
						}
						return m.Replace("arguments", "{{arguments.first.receiver.receiver}}, {{arguments.first.arguments}}")
					})
				})
			},
		}},
	}
}
