package engine

import (
	"errors"
	"time"

	"github.com/jamesainslie/verifier/pkg/verifier/manifest"
	"github.com/jamesainslie/verifier/pkg/verifier/types"
)

var (
	// ErrCancelled is carried by the completion of a run that was cancelled.
	ErrCancelled = errors.New("verification cancelled")

	// ErrBaseDir is returned when the directory that list entries are relative
	// to cannot be resolved.
	ErrBaseDir = errors.New("cannot resolve base directory")
)

// Event reports a state change of one entry. Events for a run are delivered
// in list order.
type Event struct {
	// Index is the position of Entry in the manifest.
	Index int

	Entry  *manifest.Entry
	Status types.Status

	// FilePercent is the share of the current file read so far, 0 to 100.
	FilePercent int

	// TotalPercent is the aggregate progress of the run, 0 to 100.
	TotalPercent int

	// Digest is the computed uppercase hex digest, set once hashing finished.
	Digest string

	// Err explains Error and NotFound outcomes.
	Err error
}

// Completion is delivered once when a run ends.
type Completion struct {
	// Err is nil for a completed run, ErrCancelled for a cancelled one, or
	// wraps ErrBaseDir.
	Err     error
	State   types.RunState
	Summary types.Summary
	Elapsed time.Duration
}
