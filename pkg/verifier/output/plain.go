package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
)

// PlainFormatter writes an unstyled, column-aligned table followed by the
// summary line. It is suitable for scripting and log files.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if _, err := fmt.Fprint(tw, "STATUS\tALGORITHM\tNAME\n"); err != nil {
		return err
	}
	for _, e := range r.Entries {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Status, e.Algorithm, e.Name); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%s\n", r.Summary)
	if r.Interrupted {
		w.WriteString("interrupted\n")
	}
	return nil
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)

// FailuresFormatter writes the name of each entry that did not verify, one
// per line, for piping to other tools.
type FailuresFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *FailuresFormatter) Format(w *bytes.Buffer, r *Report) error {
	for _, e := range r.Failures() {
		w.WriteString(e.Name)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("failures", func() Formatter {
		return &FailuresFormatter{}
	})
}

var _ Formatter = (*FailuresFormatter)(nil)
