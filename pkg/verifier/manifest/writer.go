package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jamesainslie/verifier/pkg/verifier/algorithm"
)

// Writer serializes a Manifest in one dialect.
type Writer interface {
	Write(w io.Writer, m *Manifest) error
}

// WriterFor returns the writer for a dialect.
func WriterFor(k Kind) (Writer, error) {
	switch k {
	case StructuredXML:
		return XMLWriter{}, nil
	case SimpleChecksum:
		return SFVWriter{}, nil
	case KeyedMD5:
		return KeyedMD5Writer{}, nil
	case BareMD5Sum:
		return BareMD5Writer{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, k)
}

// Supports reports whether dialect k can carry digests of algorithm id.
func (k Kind) Supports(id algorithm.ID) bool {
	switch k {
	case StructuredXML:
		return id.Valid()
	case SimpleChecksum:
		return id == algorithm.CRC32Reversed
	case KeyedMD5, BareMD5Sum:
		return id == algorithm.MD5
	}
	return false
}

func checkAlgorithms(k Kind, m *Manifest) error {
	for _, e := range m.Entries {
		if !k.Supports(e.Algorithm) {
			return fmt.Errorf("%w: %s cannot hold %s digest for %s", ErrIncompatibleAlgorithm, k, e.Algorithm, e.Name)
		}
	}
	return nil
}

// checkNames rejects names that a line dialect would not read back intact.
// Lines are trimmed on read, and SFV treats a leading ';' as a comment
// while md5sum strips a leading '*' as the binary-mode marker.
func checkNames(k Kind, m *Manifest) error {
	for _, e := range m.Entries {
		bad := e.Name == "" ||
			strings.ContainsAny(e.Name, "\r\n") ||
			strings.TrimSpace(e.Name) != e.Name
		switch k {
		case SimpleChecksum:
			bad = bad || strings.HasPrefix(e.Name, ";")
		case BareMD5Sum:
			bad = bad || strings.HasPrefix(e.Name, "*")
		}
		if bad {
			return fmt.Errorf("%w: %s: %q", ErrUnrepresentableName, k, e.Name)
		}
	}
	return nil
}

// SFVWriter writes "name CRC32" lists with a ';' comment header.
type SFVWriter struct{}

// Write implements Writer.
func (SFVWriter) Write(w io.Writer, m *Manifest) error {
	if err := checkAlgorithms(SimpleChecksum, m); err != nil {
		return err
	}
	if err := checkNames(SimpleChecksum, m); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	if app := m.Info.Application; app != "" {
		created := ""
		if m.Info.Created != nil {
			created = " on " + m.Info.Created.Format(time.DateTime)
		}
		fmt.Fprintf(bw, "; Generated by %s%s\n", app, created)
	}
	for _, c := range m.Info.Comments {
		for _, line := range strings.Split(c.Text, "\n") {
			fmt.Fprintf(bw, "; %s\n", strings.TrimSpace(line))
		}
	}
	for _, e := range m.Entries {
		fmt.Fprintf(bw, "%s %s\n", e.Name, strings.ToUpper(e.Digest))
	}
	return bw.Flush()
}

// KeyedMD5Writer writes BSD-style "MD5 (name) = digest" lists.
type KeyedMD5Writer struct{}

// Write implements Writer.
func (KeyedMD5Writer) Write(w io.Writer, m *Manifest) error {
	if err := checkAlgorithms(KeyedMD5, m); err != nil {
		return err
	}
	if err := checkNames(KeyedMD5, m); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	for _, e := range m.Entries {
		fmt.Fprintf(bw, "MD5 (%s) = %s\n", e.Name, strings.ToLower(e.Digest))
	}
	return bw.Flush()
}

// BareMD5Writer writes md5sum-style lists in binary mode ("digest *name").
type BareMD5Writer struct{}

// Write implements Writer.
func (BareMD5Writer) Write(w io.Writer, m *Manifest) error {
	if err := checkAlgorithms(BareMD5Sum, m); err != nil {
		return err
	}
	if err := checkNames(BareMD5Sum, m); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	for _, e := range m.Entries {
		fmt.Fprintf(bw, "%s *%s\n", strings.ToLower(e.Digest), e.Name)
	}
	return bw.Flush()
}

// Save writes m to path in dialect k, atomically replacing any existing file.
func Save(path string, m *Manifest, k Kind) error {
	wr, err := WriterFor(k)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".verify-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Chmod(0o644)

	if err := wr.Write(tmp, m); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	m.Kind = k
	m.SourcePath = path
	return nil
}
