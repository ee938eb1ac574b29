// Package output renders verification reports in the formats selectable
// with -o (pretty, plain, json, jsonl, yaml, csv, tsv, markdown, template,
// failures).
//
// Formatters are looked up by name from a registry:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, report); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/verifier/pkg/verifier/engine"
	"github.com/jamesainslie/verifier/pkg/verifier/manifest"
	"github.com/jamesainslie/verifier/pkg/verifier/types"
)

// EntryResult is the outcome of one manifest entry.
type EntryResult struct {
	// Name is the entry's path as written in the list.
	Name string `json:"name" yaml:"name"`

	// Algorithm is the display name of the entry's algorithm.
	Algorithm string `json:"algorithm" yaml:"algorithm"`

	Status types.Status `json:"status" yaml:"status"`

	// Expected is the digest recorded in the list.
	Expected string `json:"expected" yaml:"expected"`

	// Actual is the computed digest, empty when the file was not hashed.
	Actual string `json:"actual,omitempty" yaml:"actual,omitempty"`

	// Size is the expected size, nil when the list does not record one.
	Size *uint64 `json:"size,omitempty" yaml:"size,omitempty"`

	// Error explains Error and NotFound outcomes.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the complete output of one verification run.
type Report struct {
	// Manifest is the path of the verification list.
	Manifest string `json:"manifest" yaml:"manifest"`

	// Format is the list dialect.
	Format string `json:"format" yaml:"format"`

	Entries []EntryResult `json:"entries" yaml:"entries"`
	Summary types.Summary `json:"summary" yaml:"summary"`
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`

	// Interrupted is set when the run was cancelled before every entry finished.
	Interrupted bool `json:"interrupted" yaml:"interrupted"`

	// Warnings holds non-fatal problems found in the list, such as digests of
	// the wrong width.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NewReport builds a report for m with every entry still pending.
func NewReport(m *manifest.Manifest) *Report {
	r := &Report{
		Manifest: m.SourcePath,
		Format:   m.Kind.String(),
		Entries:  make([]EntryResult, len(m.Entries)),
	}
	r.Summary.Total = len(m.Entries)
	for i, e := range m.Entries {
		r.Entries[i] = EntryResult{
			Name:      e.Name,
			Algorithm: e.Algorithm.String(),
			Status:    types.Pending,
			Expected:  e.Digest,
			Size:      e.Size,
		}
	}
	for _, issue := range m.Validate() {
		r.Warnings = append(r.Warnings, issue.Error())
	}
	return r
}

// Apply records an engine event. Events for unknown indexes are ignored.
func (r *Report) Apply(ev engine.Event) {
	if ev.Index < 0 || ev.Index >= len(r.Entries) {
		return
	}
	res := &r.Entries[ev.Index]
	res.Status = ev.Status
	if ev.Digest != "" {
		res.Actual = ev.Digest
	}
	if ev.Err != nil {
		res.Error = ev.Err.Error()
	}
}

// Complete records the end of the run.
func (r *Report) Complete(c engine.Completion) {
	r.Summary = c.Summary
	r.Elapsed = c.Elapsed
	r.Interrupted = c.State == types.Aborted
}

// Failures returns the entries whose status counts against the run.
func (r *Report) Failures() []EntryResult {
	var out []EntryResult
	for _, e := range r.Entries {
		if e.Status.Failed() {
			out = append(out, e)
		}
	}
	return out
}

// Formatter renders a Report.
type Formatter interface {
	// Format writes the formatted report to the buffer.
	Format(w *bytes.Buffer, r *Report) error
}

// FormatterFactory creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates an empty formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory, replacing any with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns the registered formatter names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
