package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

var tableHeader = []string{"STATUS", "ALGORITHM", "EXPECTED", "ACTUAL", "NAME"}

func row(e EntryResult) []string {
	return []string{e.Status.String(), e.Algorithm, e.Expected, e.Actual, e.Name}
}

// TSVFormatter formats output as tab-separated values.
type TSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TSVFormatter) Format(w *bytes.Buffer, r *Report) error {
	w.WriteString(strings.Join(tableHeader, "\t"))
	w.WriteByte('\n')
	for _, e := range r.Entries {
		w.WriteString(strings.Join(row(e), "\t"))
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("tsv", func() Formatter {
		return &TSVFormatter{}
	})
}

var _ Formatter = (*TSVFormatter)(nil)

// CSVFormatter formats output as RFC 4180 comma-separated values.
type CSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *CSVFormatter) Format(w *bytes.Buffer, r *Report) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(tableHeader); err != nil {
		return err
	}
	for _, e := range r.Entries {
		if err := writer.Write(row(e)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func init() {
	Register("csv", func() Formatter {
		return &CSVFormatter{}
	})
}

var _ Formatter = (*CSVFormatter)(nil)

// MarkdownFormatter formats output as a GitHub-flavored Markdown table
// followed by the summary line.
type MarkdownFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *MarkdownFormatter) Format(w *bytes.Buffer, r *Report) error {
	w.WriteString("| STATUS | ALGORITHM | NAME |\n")
	w.WriteString("|--------|-----------|------|\n")
	for _, e := range r.Entries {
		fmt.Fprintf(w, "| %s | %s | %s |\n",
			e.Status, escapeMarkdownPipe(e.Algorithm), escapeMarkdownPipe(e.Name))
	}
	fmt.Fprintf(w, "\n**%s**\n", r.Summary)
	return nil
}

func escapeMarkdownPipe(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func init() {
	Register("markdown", func() Formatter {
		return &MarkdownFormatter{}
	})
}

var _ Formatter = (*MarkdownFormatter)(nil)
