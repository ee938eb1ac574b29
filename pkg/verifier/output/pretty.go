package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/verifier/pkg/verifier/types"
)

// PrettyFormatter renders a styled report for terminal display.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Report) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatTable(r))
	w.WriteString(f.formatFooter(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}
	return nil
}

func (f *PrettyFormatter) formatHeader(r *Report) string {
	lines := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("List:"), ValueStyle.Render(r.Manifest)),
		fmt.Sprintf("%s %s  %s %s",
			LabelStyle.Render("Format:"), ValueStyle.Render(r.Format),
			LabelStyle.Render("Entries:"), ValueStyle.Render(fmt.Sprintf("%d", len(r.Entries)))),
	}
	if r.Interrupted {
		lines = append(lines, WarningStyle.Bold(true).Render("Verification interrupted by user"))
	}
	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatTable(r *Report) string {
	if len(r.Entries) == 0 {
		return MutedStyle.Render("  No entries in list\n")
	}

	width := 0
	for _, e := range r.Entries {
		width = max(width, len(e.Status.String()))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "  %s  %s\n",
		TableHeaderStyle.Render(padRight("STATUS", width)),
		TableHeaderStyle.Render("NAME"))

	for _, e := range r.Entries {
		status := StatusStyle(e.Status).Render(padRight(e.Status.String(), width))
		fmt.Fprintf(&sb, "  %s  %s\n", status, PathStyle.Render(e.Name))

		switch {
		case e.Status == types.Bad:
			fmt.Fprintf(&sb, "  %s  %s %s\n", strings.Repeat(" ", width),
				LabelStyle.Render("expected "+e.Algorithm), DigestStyle.Render(e.Expected))
			fmt.Fprintf(&sb, "  %s  %s %s\n", strings.Repeat(" ", width),
				LabelStyle.Render("actual   "+e.Algorithm), DigestStyle.Render(e.Actual))
		case e.Error != "":
			fmt.Fprintf(&sb, "  %s  %s\n", strings.Repeat(" ", width), MutedStyle.Render(e.Error))
		}
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *Report) string {
	s := r.Summary
	parts := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Files:"), ValueStyle.Render(fmt.Sprintf("%d", s.Total))),
		SuccessStyle.Render(fmt.Sprintf("%d good", s.Good)),
	}
	if bad := s.Bad + s.Errors + s.WrongSize; bad > 0 {
		parts = append(parts, ErrorStyle.Render(fmt.Sprintf("%d bad", bad)))
	}
	if s.NotFound > 0 {
		parts = append(parts, WarningStyle.Render(fmt.Sprintf("%d missing", s.NotFound)))
	}
	if s.Ignored > 0 {
		parts = append(parts, MutedStyle.Render(fmt.Sprintf("%d ignored", s.Ignored)))
	}
	parts = append(parts, fmt.Sprintf("%s %s in %s",
		LabelStyle.Render("Hashed:"),
		ValueStyle.Render(humanize.IBytes(uint64(max(s.BytesHashed, 0)))),
		ValueStyle.Render(formatDuration(r.Elapsed))))

	return FooterBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder
	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
