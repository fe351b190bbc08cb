package rules

import (
	"github.com/gnoswap-labs/rewrite/internal/pattern"
	"github.com/gnoswap-labs/rewrite/internal/selector"
	"github.com/gnoswap-labs/rewrite/rewrite"
)

var (
	keysEach   = selector.MustCompile(".send[receiver=.send[message=keys][arguments.size=0]][message=each][arguments.size=0]")
	dirExists  = selector.MustCompile(".send[receiver=Dir][message=exists?]")
	fileExists = selector.MustCompile(".send[receiver=File][message=exists?]")
	fixnum     = selector.MustCompile(".const[source in (Fixnum Bignum)]")
)

// params.keys.each {} => params.each_key {}
func keysEachToEachKey() *rewrite.Rule {
	return &rewrite.Rule{
		Name:        "ruby/keys_each_to_each_key",
		Description: "Convert Hash#keys.each to Hash#each_key.",
		Tasks: []rewrite.Task{{
			Files: rubyFiles,
			Body: replaceEach(keysEach, func(m *rewrite.Instance) error {
				if err := m.Replace("receiver", "{{receiver.receiver}}"); err != nil {
					return err
				}
				return m.Replace("message", "each_key")
			}),
		}},
	}
}

// renameMessage renames the message of every send matching p.
func renameMessage(name, desc string, p pattern.Pattern, to string) *rewrite.Rule {
	return &rewrite.Rule{
		Name:        name,
		Description: desc,
		Tasks: []rewrite.Task{{
			Files: rubyFiles,
			Body: replaceEach(p, func(m *rewrite.Instance) error {
				return m.Replace("message", to)
			}),
		}},
	}
}

// Dir.exists?(path) => Dir.exist?(path)
func deprecateDirExists() *rewrite.Rule {
	return renameMessage("ruby/deprecate_dir_exists", "Use Dir.exist? instead of the deprecated Dir.exists?.", dirExists, "exist?")
}

// File.exists?(path) => File.exist?(path)
func deprecateFileExists() *rewrite.Rule {
	return renameMessage("ruby/deprecate_file_exists", "Use File.exist? instead of the deprecated File.exists?.", fileExists, "exist?")
}

// Fixnum, Bignum => Integer
func deprecateFixnumAndBignum() *rewrite.Rule {
	return &rewrite.Rule{
		Name:        "ruby/deprecate_fixnum_and_bignum",
		Description: "Use Integer instead of Fixnum and Bignum.",
		Tasks: []rewrite.Task{{
			Files: rubyFiles,
			Body: replaceEach(fixnum, func(m *rewrite.Instance) error {
				return m.ReplaceWith("Integer")
			}),
		}},
	}
}

func upgrade24To25() *rewrite.Rule {
	return &rewrite.Rule{
		Name:        "ruby/upgrade_2_4_to_2_5",
		Description: "Upgrade ruby 2.4 to 2.5.",
		Includes: []string{
			"ruby/deprecate_dir_exists",
			"ruby/deprecate_file_exists",
			"ruby/deprecate_fixnum_and_bignum",
		},
	}
}
