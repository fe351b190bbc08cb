package fixer

import (
	"strings"

	"github.com/gnoswap-labs/rewrite/internal/tree"
)

// AndComma widens a delete so that removing one element of a comma
// separated list keeps the list well formed. It swallows a following comma
// and the blanks after it, or, when none follows, the preceding comma and
// the whitespace before the range.
func AndComma(src []byte, r tree.Range) tree.Range {
	i := r.End
	for i < len(src) && isBlank(src[i]) {
		i++
	}
	if i < len(src) && src[i] == ',' {
		i++
		for i < len(src) && isBlank(src[i]) {
			i++
		}
		return tree.Range{Start: r.Start, End: i}
	}
	j := r.Start
	for j > 0 && isSpace(src[j-1]) {
		j--
	}
	if j > 0 && src[j-1] == ',' {
		return tree.Range{Start: j - 1, End: r.End}
	}
	return r
}

// WholeLine extends r to cover its entire line, newline included, when
// nothing but whitespace shares the line with it.
func WholeLine(src []byte, r tree.Range) (tree.Range, bool) {
	start := r.Start
	for start > 0 && isBlank(src[start-1]) {
		start--
	}
	if start > 0 && src[start-1] != '\n' {
		return r, false
	}
	end := r.End
	for end < len(src) && isBlank(src[end]) {
		end++
	}
	switch {
	case end == len(src):
	case src[end] == '\n':
		end++
	default:
		return r, false
	}
	return tree.Range{Start: start, End: end}, true
}

// IndentAt returns the leading whitespace of the line containing offset.
func IndentAt(src []byte, offset int) string {
	if offset > len(src) {
		offset = len(src)
	}
	lineStart := offset
	for lineStart > 0 && src[lineStart-1] != '\n' {
		lineStart--
	}
	return extractIndent(string(src[lineStart:offset]))
}

func extractIndent(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// Reindent prefixes every line but the first with indent. The first line
// lands at the column of the text it replaces; empty lines stay empty.
func Reindent(code, indent string) string {
	if indent == "" || !strings.Contains(code, "\n") {
		return code
	}
	lines := strings.Split(code, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "" {
			lines[i] = indent + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

func isBlank(c byte) bool { return c == ' ' || c == '\t' }
func isSpace(c byte) bool { return isBlank(c) || c == '\n' || c == '\r' }
