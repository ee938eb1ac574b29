package output

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/jamesainslie/verifier/pkg/verifier/types"
)

// document is the structure shared by the JSON and YAML formatters.
type document struct {
	Meta    meta          `json:"meta" yaml:"meta"`
	Entries []EntryResult `json:"entries" yaml:"entries"`
	Summary types.Summary `json:"summary" yaml:"summary"`
}

type meta struct {
	Manifest    string   `json:"manifest" yaml:"manifest"`
	Format      string   `json:"format" yaml:"format"`
	Elapsed     string   `json:"elapsed" yaml:"elapsed"`
	Interrupted bool     `json:"interrupted" yaml:"interrupted"`
	Failed      int      `json:"failed" yaml:"failed"`
	Warnings    []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func buildDocument(r *Report) document {
	entries := r.Entries
	if entries == nil {
		entries = []EntryResult{}
	}
	return document{
		Meta: meta{
			Manifest:    r.Manifest,
			Format:      r.Format,
			Elapsed:     formatDurationString(r.Elapsed),
			Interrupted: r.Interrupted,
			Failed:      r.Summary.Failed(),
			Warnings:    r.Warnings,
		},
		Entries: entries,
		Summary: r.Summary,
	}
}

// formatDurationString formats a duration for structured output.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

// JSONFormatter writes the report as one indented JSON document.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildDocument(r))
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

var _ Formatter = (*JSONFormatter)(nil)

// JSONLFormatter writes one compact JSON object per entry, suitable for jq.
type JSONLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Report) error {
	for _, e := range r.Entries {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{}
	})
}

var _ Formatter = (*JSONLFormatter)(nil)
