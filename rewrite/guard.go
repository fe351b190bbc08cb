package rewrite

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-version"
)

// Env is what guards are evaluated against.
type Env struct {
	// Gems maps gem name to the version the project uses.
	Gems map[string]string
}

// Guard gates whether a rule or task runs at all.
type Guard interface {
	Check(env Env) (bool, error)
	String() string
}

type gemGuard struct {
	name       string
	constraint string
}

// IfGem passes when the project's version of gem satisfies constraint
// (">= 6.1", "~> 3.0", ...). A gem the project does not use fails the guard.
func IfGem(name, constraint string) Guard {
	return gemGuard{name: name, constraint: constraint}
}

func (g gemGuard) String() string {
	return fmt.Sprintf("if_gem %s %s", g.name, g.constraint)
}

func (g gemGuard) Check(env Env) (bool, error) {
	c, err := version.NewConstraint(g.constraint)
	if err != nil {
		return false, fmt.Errorf("%s: %w", g, err)
	}
	raw, ok := env.Gems[g.name]
	if !ok {
		return false, nil
	}
	v, err := version.NewVersion(raw)
	if err != nil {
		return false, fmt.Errorf("%s: gem version %q: %w", g, raw, err)
	}
	return c.Check(v), nil
}

// LoadGemfileLock reads the resolved gem versions from a Gemfile.lock.
func LoadGemfileLock(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseGemfileLock(f)
}

func parseGemfileLock(r io.Reader) (map[string]string, error) {
	gems := make(map[string]string)
	inSpecs := false
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || !strings.HasPrefix(line, " ") {
			inSpecs = false
			continue
		}
		if strings.TrimSpace(line) == "specs:" {
			inSpecs = true
			continue
		}
		// "    name (1.2.3)" at depth four; dependencies sit deeper
		if !inSpecs || !strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "     ") {
			continue
		}
		name, rest, ok := strings.Cut(strings.TrimSpace(line), " (")
		if !ok {
			continue
		}
		v := strings.TrimSuffix(rest, ")")
		// platform suffix: 1.13.3-x86_64-linux
		if i := strings.IndexByte(v, '-'); i > 0 {
			v = v[:i]
		}
		gems[name] = v
	}
	return gems, sc.Err()
}
