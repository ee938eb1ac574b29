// Package manifest reads and writes file verification lists.
//
// Four dialects are supported and unified into one in-memory model:
//
//   - structured XML (.verify, .vfy) with per-entry algorithm, size and timestamps
//   - SFV (.sfv), "name CRC32" lines
//   - BSD-style MD5 (.md5), "MD5 (name) = digest" lines
//   - md5sum-style (.md5, .md5sum), "digest *name" lines
//
// Basic usage:
//
//	m, err := manifest.Load("release.sfv")
//	if err != nil {
//	    return err
//	}
//	if err := manifest.RequireEntries(m); err != nil {
//	    return err
//	}
package manifest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/jamesainslie/verifier/pkg/verifier/algorithm"
)

var (
	// ErrUnsupportedFormat indicates that neither the extension nor the content
	// matched a known list dialect.
	ErrUnsupportedFormat = errors.New("unsupported verification list format")

	// ErrMalformedManifest indicates that a structured list could not be parsed.
	ErrMalformedManifest = errors.New("malformed verification list")

	// ErrNoEntries indicates a list in a recognized format that holds no entries.
	ErrNoEntries = errors.New("no entries found")

	// ErrIncompatibleAlgorithm indicates an entry whose algorithm the target
	// dialect cannot express.
	ErrIncompatibleAlgorithm = errors.New("algorithm not supported by list format")

	// ErrUnrepresentableName is returned by writers for names their
	// dialect would read back differently.
	ErrUnrepresentableName = errors.New("name cannot be written in list format")
)

// SchemaVersion is the version attribute written to structured lists.
const SchemaVersion = "1.0"

// Kind identifies a list dialect.
type Kind int

// List dialects.
const (
	KindUnknown Kind = iota
	StructuredXML
	SimpleChecksum
	KeyedMD5
	BareMD5Sum
)

var kindNames = map[Kind]string{
	KindUnknown:    "unknown",
	StructuredXML:  "verify",
	SimpleChecksum: "sfv",
	KeyedMD5:       "md5",
	BareMD5Sum:     "md5sum",
}

// String returns the short name of the dialect.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Extension returns the conventional file extension for the dialect, including the dot.
func (k Kind) Extension() string {
	switch k {
	case StructuredXML:
		return ".verify"
	case SimpleChecksum:
		return ".sfv"
	case KeyedMD5, BareMD5Sum:
		return ".md5"
	}
	return ""
}

// ParseKind parses a dialect name as accepted on the command line.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verify", "vfy", "xml":
		return StructuredXML, nil
	case "sfv":
		return SimpleChecksum, nil
	case "md5", "bsd":
		return KeyedMD5, nil
	case "md5sum", "sum":
		return BareMD5Sum, nil
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Entry is one verification record.
type Entry struct {
	// Name is the file path as written in the list, relative to the list's directory
	// unless absolute.
	Name string

	// Algorithm is the digest algorithm the expected value was produced with.
	Algorithm algorithm.ID

	// Digest is the expected digest as hex, compared case-insensitively.
	Digest string

	// Size is the expected size in bytes, nil when the list does not record one.
	Size *uint64

	// Created and Modified are the expected timestamps, nil when absent.
	Created  *time.Time
	Modified *time.Time

	// Ignore excludes the entry from verification.
	Ignore bool
}

// Comment is a free-text note attached to a list.
type Comment struct {
	Lang string
	Text string
}

// Metadata describes a list.
type Metadata struct {
	Created     *time.Time
	CreatedBy   string
	Application string
	ListName    string
	Comments    []Comment
}

// Manifest is a parsed verification list. Entries keep the order of the source.
type Manifest struct {
	Kind       Kind
	SourcePath string
	Version    string
	Info       Metadata
	Entries    []*Entry
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.Entries)
}

// Active returns the number of entries not marked ignored.
func (m *Manifest) Active() int {
	n := 0
	for _, e := range m.Entries {
		if !e.Ignore {
			n++
		}
	}
	return n
}

// IgnoreMatching marks entries whose name, or base name, matches any of the
// glob patterns. It returns the number of entries newly marked.
func (m *Manifest) IgnoreMatching(patterns []string) (int, error) {
	n := 0
	for _, e := range m.Entries {
		if e.Ignore {
			continue
		}
		name := normalizeSlashes(e.Name)
		for _, p := range patterns {
			full, err := path.Match(p, name)
			if err != nil {
				return n, fmt.Errorf("bad ignore pattern %q: %w", p, err)
			}
			base, _ := path.Match(p, path.Base(name))
			if full || base {
				e.Ignore = true
				n++
				break
			}
		}
	}
	return n, nil
}

// RequireEntries returns ErrNoEntries when m holds no entries.
func RequireEntries(m *Manifest) error {
	if m == nil || len(m.Entries) == 0 {
		return ErrNoEntries
	}
	return nil
}

// Issue describes a questionable entry found by Validate.
type Issue struct {
	Index int
	Entry *Entry
	Err   error
}

func (i Issue) Error() string {
	return fmt.Sprintf("entry %d (%s): %v", i.Index+1, i.Entry.Name, i.Err)
}

// Validate checks every entry's digest against its algorithm's output width.
// Legacy dialects do not enforce this, so problems are reported rather than fatal.
func (m *Manifest) Validate() []Issue {
	var issues []Issue
	for i, e := range m.Entries {
		info, err := algorithm.Lookup(e.Algorithm)
		if err != nil {
			issues = append(issues, Issue{Index: i, Entry: e, Err: err})
			continue
		}
		digest := strings.TrimSpace(e.Digest)
		if len(digest) != info.HexLen() {
			issues = append(issues, Issue{Index: i, Entry: e,
				Err: fmt.Errorf("%s digest has %d hex digits, want %d", info.Name, len(digest), info.HexLen())})
			continue
		}
		if _, err := hex.DecodeString(digest); err != nil {
			issues = append(issues, Issue{Index: i, Entry: e, Err: fmt.Errorf("digest is not hex: %w", err)})
		}
	}
	return issues
}

func normalizeSlashes(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}
