// Package history keeps a record of past verification runs on disk, one
// JSON document per run.
package history

import (
	"time"

	"github.com/jamesainslie/verifier/pkg/verifier/types"
)

// Operation is the kind of run recorded.
type Operation string

const (
	// OpVerify records a verification of an existing list.
	OpVerify Operation = "verify"
	// OpCreate records the creation of a new list.
	OpCreate Operation = "create"
)

// Run is one recorded run.
type Run struct {
	ID          string        `json:"id"`
	Operation   Operation     `json:"operation"`
	Manifest    string        `json:"manifest"`
	Format      string        `json:"format"`
	Started     time.Time     `json:"started"`
	Finished    time.Time     `json:"finished"`
	Interrupted bool          `json:"interrupted"`
	Summary     types.Summary `json:"summary"`
	Failures    []Failure     `json:"failures,omitempty"`
}

// Failure is an entry that did not verify.
type Failure struct {
	Name     string       `json:"name"`
	Status   types.Status `json:"status"`
	Expected string       `json:"expected,omitempty"`
	Actual   string       `json:"actual,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
