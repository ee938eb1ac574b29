// Package types provides core data types shared across the verifier packages.
// It includes per-entry and run-level states, the aggregate run summary,
// and utility functions for parsing and formatting sizes.
package types

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// ErrInvalidConfiguration is returned when a setting is rejected before any I/O begins,
// such as a non-positive buffer size or an out-of-range notify interval.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Status is the state of a single manifest entry during verification.
type Status int

// Entry states. Pending and InProgress are transient; the rest are terminal.
const (
	Pending Status = iota
	InProgress
	Good
	Bad
	Error
	NotFound
	WrongSize
	Ignored
)

var statusNames = map[Status]string{
	Pending:    "pending",
	InProgress: "in-progress",
	Good:       "good",
	Bad:        "bad",
	Error:      "error",
	NotFound:   "not-found",
	WrongSize:  "wrong-size",
	Ignored:    "ignored",
}

// String returns the lowercase name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Terminal reports whether the status ends an entry's processing.
func (s Status) Terminal() bool {
	return s >= Good && s <= Ignored
}

// Failed reports whether the status counts against a run.
// WrongSize and Error are reported as bad files alongside Bad and NotFound.
func (s Status) Failed() bool {
	switch s {
	case Bad, Error, NotFound, WrongSize:
		return true
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParseStatus parses a status name as produced by Status.String.
func ParseStatus(name string) (Status, error) {
	for st, n := range statusNames {
		if n == name {
			return st, nil
		}
	}
	return Pending, fmt.Errorf("unknown status %q", name)
}

// RunState is the lifecycle state of a verification run.
type RunState int

// Run states. Completed and Aborted are final.
const (
	Idle RunState = iota
	Running
	Completed
	Aborted
)

// String returns the lowercase name of the run state.
func (r RunState) String() string {
	switch r {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("runstate(%d)", int(r))
}

// Summary aggregates the terminal states reached during a run.
type Summary struct {
	// Total is the number of entries in the manifest.
	Total int `json:"total" yaml:"total"`

	// Processed is the number of entries that reached a terminal state.
	Processed int `json:"processed" yaml:"processed"`

	Good      int `json:"good" yaml:"good"`
	Bad       int `json:"bad" yaml:"bad"`
	Errors    int `json:"errors" yaml:"errors"`
	NotFound  int `json:"not_found" yaml:"not_found"`
	WrongSize int `json:"wrong_size" yaml:"wrong_size"`
	Ignored   int `json:"ignored" yaml:"ignored"`

	// BytesHashed is the number of bytes streamed through hashers.
	BytesHashed int64 `json:"bytes_hashed" yaml:"bytes_hashed"`
}

// Add records one terminal status.
func (s *Summary) Add(st Status) {
	switch st {
	case Good:
		s.Good++
	case Bad:
		s.Bad++
	case Error:
		s.Errors++
	case NotFound:
		s.NotFound++
	case WrongSize:
		s.WrongSize++
	case Ignored:
		s.Ignored++
	default:
		return
	}
	s.Processed++
}

// Failed returns the number of entries that did not verify.
func (s Summary) Failed() int {
	return s.Bad + s.Errors + s.NotFound + s.WrongSize
}

// String renders the summary the way the run log reports it:
// "N Files: G Good / B Bad / M Missing", where errors and size
// mismatches count as bad.
func (s Summary) String() string {
	return fmt.Sprintf("%d Files: %d Good / %d Bad / %d Missing",
		s.Total, s.Good, s.Bad+s.Errors+s.WrongSize, s.NotFound)
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string and returns the size in bytes.
// It supports plain bytes ("4096") and binary suffixes K, M, G, T with optional
// B or iB ("64K", "64KB", "64KiB"). Decimal values are truncated.
//
// Returns ErrInvalidSize if the format is not recognized.
// Returns ErrNegativeSize if the value is negative.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}

	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a human-readable string
// using binary (IEC) units.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
