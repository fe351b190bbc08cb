package formatter

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const diffContext = 3

type diffLine struct {
	op   diffmatchpatch.Operation
	text string
	// 1-based line numbers in the old and new text before this line
	oldNo, newNo int
}

// Diff renders a unified diff of a rewritten file. It returns "" when the
// two texts are equal.
func Diff(rel string, before, after []byte) string {
	if string(before) == string(after) {
		return ""
	}
	lines := diffLines(string(before), string(after))

	var sb strings.Builder
	sb.WriteString(fileStyle.Sprintf("--- a/%s\n", rel))
	sb.WriteString(fileStyle.Sprintf("+++ b/%s\n", rel))
	for _, h := range hunks(lines) {
		writeHunk(&sb, h)
	}
	return sb.String()
}

func diffLines(a, b string) []diffLine {
	dmp := diffmatchpatch.New()
	src, dst, table := dmp.DiffLinesToRunes(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(src, dst, false), table)

	var out []diffLine
	oldNo, newNo := 1, 1
	for _, d := range diffs {
		for _, text := range splitLines(d.Text) {
			out = append(out, diffLine{op: d.Type, text: text, oldNo: oldNo, newNo: newNo})
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				oldNo++
				newNo++
			case diffmatchpatch.DiffDelete:
				oldNo++
			case diffmatchpatch.DiffInsert:
				newNo++
			}
		}
	}
	return out
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\n")
	}
	return lines
}

// hunks groups changed lines with their context. Changes separated by at
// most twice the context share a hunk.
func hunks(lines []diffLine) [][]diffLine {
	var out [][]diffLine
	i := 0
	for i < len(lines) {
		if lines[i].op == diffmatchpatch.DiffEqual {
			i++
			continue
		}
		start := i - diffContext
		if start < 0 {
			start = 0
		}
		end := i
		for end < len(lines) {
			if lines[end].op != diffmatchpatch.DiffEqual {
				end++
				continue
			}
			run := end
			for run < len(lines) && lines[run].op == diffmatchpatch.DiffEqual {
				run++
			}
			if run == len(lines) || run-end > 2*diffContext {
				end += diffContext
				if end > len(lines) {
					end = len(lines)
				}
				break
			}
			end = run
		}
		out = append(out, lines[start:end])
		i = end
	}
	return out
}

func writeHunk(sb *strings.Builder, h []diffLine) {
	var oldCount, newCount int
	for _, l := range h {
		if l.op != diffmatchpatch.DiffInsert {
			oldCount++
		}
		if l.op != diffmatchpatch.DiffDelete {
			newCount++
		}
	}
	oldStart, newStart := h[0].oldNo, h[0].newNo
	if oldCount == 0 {
		oldStart--
	}
	if newCount == 0 {
		newStart--
	}
	sb.WriteString(hunkStyle.Sprintf("@@ -%d,%d +%d,%d @@\n", oldStart, oldCount, newStart, newCount))
	for _, l := range h {
		switch l.op {
		case diffmatchpatch.DiffDelete:
			sb.WriteString(removeStyle.Sprint("-"+l.text) + "\n")
		case diffmatchpatch.DiffInsert:
			sb.WriteString(addStyle.Sprint("+"+l.text) + "\n")
		default:
			sb.WriteString(fmt.Sprintf(" %s\n", l.text))
		}
	}
}
