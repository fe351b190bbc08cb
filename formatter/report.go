package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/gnoswap-labs/rewrite/rewrite"
)

type ReportOptions struct {
	// DryRun words the report for files that were not written.
	DryRun bool
	// Diff prints a unified diff under every rewritten file.
	Diff bool
}

// WriteReport prints one block per file that was rewritten or had
// problems, followed by skipped rules and a summary line.
func WriteReport(w io.Writer, report *rewrite.Report, opts ReportOptions) error {
	var sb strings.Builder
	var files, edits, warnings, errs int

	for _, f := range report.Files {
		if f.Changed {
			files++
			edits += f.Edits
			verb := "rewrote"
			if opts.DryRun {
				verb = "would rewrite"
			}
			sb.WriteString(fileStyle.Sprint(f.Rel))
			sb.WriteString(fmt.Sprintf(": %s (%s)\n", verb, plural(f.Edits, "edit")))
			if opts.Diff {
				sb.WriteString(Diff(f.Rel, f.Original, f.Text))
			}
		}
		if len(f.Dropped) > 0 {
			warnings++
			sb.WriteString(warningStyle.Sprint("warning: "))
			sb.WriteString(fmt.Sprintf("%s: dropped %s\n", f.Rel, plural(len(f.Dropped), "conflicting edit group")))
			for _, c := range f.Conflicts {
				sb.WriteString(lineStyle.Sprint("  = ") + c.Error() + "\n")
			}
		}
		for _, err := range f.Failures {
			warnings++
			sb.WriteString(warningStyle.Sprint("warning: "))
			sb.WriteString(fmt.Sprintf("%s: %v\n", f.Rel, err))
		}
		if f.Err != nil {
			errs++
			sb.WriteString(errorStyle.Sprint("error: "))
			sb.WriteString(fmt.Sprintf("%s (%s): %v\n", f.Rel, f.Phase, f.Err))
		}
	}

	for _, s := range report.Skipped {
		sb.WriteString(suggestionStyle.Sprint("note: "))
		sb.WriteString(fmt.Sprintf("skipped %s (%s)\n", s.Name, s.Guard))
	}

	summary := fmt.Sprintf("%s rewritten", plural(files, "file"))
	if opts.DryRun {
		summary = fmt.Sprintf("%s would be rewritten", plural(files, "file"))
	}
	summary += fmt.Sprintf(", %s, %s, %s\n", plural(edits, "edit"), plural(warnings, "warning"), plural(errs, "error"))
	if errs > 0 {
		sb.WriteString(errorStyle.Sprint(summary))
	} else {
		sb.WriteString(summary)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
