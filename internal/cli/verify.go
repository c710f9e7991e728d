package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/trialkit/internal/presentation/tui"
	"github.com/aretw0/trialkit/pkg/audit"
)

// ErrAuditIssues is returned when verification finds issues in the trail.
var ErrAuditIssues = errors.New("audit trail has issues")

// VerifyOptions configures the audit verify command.
type VerifyOptions struct {
	Path     string
	Markdown bool
	Width    int
}

// Verify reads an audit.jsonl file, checks it and prints the report.
// Markdown output is rendered with glamour on a terminal and printed raw otherwise.
func Verify(opts VerifyOptions, stdout io.Writer) (audit.Report, error) {
	entries, skipped, err := audit.ReadFile(opts.Path)
	if err != nil {
		return audit.Report{}, err
	}
	report := audit.Verify(entries)

	if opts.Markdown {
		md := report.Markdown()
		if tui.IsTerminal(stdout) {
			width := opts.Width
			if width <= 0 {
				width = 100
			}
			if rendered, err := tui.NewRenderer(width)(md); err == nil {
				md = rendered
			}
		}
		fmt.Fprint(stdout, md)
	} else {
		detail := fmt.Sprintf("%d records, %d issue(s)", report.Records, len(report.Issues))
		tui.Verdict(stdout, report.OK(), detail)
		tui.Stat(stdout, "planned", report.Planned)
		tui.Stat(stdout, "executed", report.Executed)
		tui.Stat(stdout, "send errors", report.SendErrors)
		tui.Stat(stdout, "responder actions", report.Actions)
		for _, is := range report.Issues {
			fmt.Fprintf(stdout, "  - seq %d %s: %s\n", is.Seq, is.Kind, is.Message)
		}
	}
	if skipped > 0 {
		printSystemMessage(stdout, "Skipped %d unreadable line(s).", skipped)
	}
	if !report.OK() {
		return report, ErrAuditIssues
	}
	return report, nil
}
