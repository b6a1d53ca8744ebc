// File: internal/reporting/text_reporter.go
package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/fdmtools/printdoctor-cli/api/schemas"
)

// TextReporter renders a human-readable summary of the report.
type TextReporter struct {
	writer io.WriteCloser
}

// NewTextReporter creates a plain-text reporter. It takes ownership of
// the writer and closes it on Close.
func NewTextReporter(writer io.WriteCloser) *TextReporter {
	return &TextReporter{writer: writer}
}

func (r *TextReporter) Write(report *schemas.Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Print Quality Report: %s\n", report.FileName)
	fmt.Fprintf(&b, "Analyzed: %s\n", report.AnalyzedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Score: %.1f/100 (%s, severity %s)\n", report.Score, report.Grade, report.Severity)
	b.WriteString("\n")

	fmt.Fprintf(&b, "Layers: %d  Retractions: %d\n", report.Metrics.LayerCount, report.Metrics.RetractionCount)
	if report.Metrics.PrintTimeSec != nil {
		fmt.Fprintf(&b, "Estimated print time: %s\n", formatDuration(*report.Metrics.PrintTimeSec))
	}
	if report.Metrics.FilamentUsedMM != nil {
		fmt.Fprintf(&b, "Filament used: %.1f mm\n", *report.Metrics.FilamentUsedMM)
	}

	if len(report.Issues) == 0 {
		b.WriteString("\nNo issues found.\n")
	} else {
		fmt.Fprintf(&b, "\nIssues (%d):\n", len(report.Issues))
		for _, issue := range report.Issues {
			loc := fmt.Sprintf("line %d", issue.Line)
			if issue.IsGrouped {
				loc = fmt.Sprintf("%d occurrences, first at line %d", issue.GroupCount, issue.Line)
			}
			fmt.Fprintf(&b, "  [%s] %s (%s): %s\n", strings.ToUpper(string(issue.Severity)), issue.Type, loc, issue.Description)
			if issue.Suggestion != "" {
				fmt.Fprintf(&b, "      suggestion: %s\n", issue.Suggestion)
			}
		}
	}

	if len(report.Patches) > 0 {
		fmt.Fprintf(&b, "\nSuggested patches (%d):\n", len(report.Patches))
		for _, patch := range report.Patches {
			fmt.Fprintf(&b, "  line %d %s", patch.Line, patch.Action)
			if patch.AutofixOK {
				b.WriteString(" [autofix]")
			}
			b.WriteString("\n")
			if patch.Action != schemas.PatchInsert {
				fmt.Fprintf(&b, "    - %s\n", patch.OriginalLine)
			}
			if patch.Action != schemas.PatchDelete {
				fmt.Fprintf(&b, "    + %s\n", patch.NewLine)
			}
		}
	}

	if len(report.Guides) > 0 {
		b.WriteString("\nSolution guides:\n")
		for _, guide := range report.Guides {
			fmt.Fprintf(&b, "  %s\n", guide.Title)
			for i, step := range guide.Steps {
				fmt.Fprintf(&b, "    %d. %s\n", i+1, step)
			}
		}
	}

	if len(report.Warnings) > 0 {
		fmt.Fprintf(&b, "\nParse warnings (%d):\n", len(report.Warnings))
		for _, w := range report.Warnings {
			fmt.Fprintf(&b, "  line %d: %s\n", w.Line, w.Message)
		}
	}

	if report.Saved {
		fmt.Fprintf(&b, "\nSaved as report %s\n", report.SavedID)
	}

	_, err := io.WriteString(r.writer, b.String())
	return err
}

// formatDuration renders seconds as a compact h/m/s string.
func formatDuration(sec int) string {
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func (r *TextReporter) Close() error {
	return r.writer.Close()
}
