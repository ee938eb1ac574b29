package manifest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Reader parses one list dialect.
type Reader interface {
	// Read parses r into a Manifest. SourcePath is left for the caller to set.
	Read(r io.Reader) (*Manifest, error)
}

// ReaderFor returns the reader for a file extension. The extension is matched
// case-insensitively, with or without its leading dot.
func ReaderFor(ext string) (Reader, error) {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "verify", "vfy":
		return XMLReader{}, nil
	case "sfv":
		return SFVReader{}, nil
	case "md5", "md5sum":
		return MD5Reader{}, nil
	}
	return nil, fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext)
}

// ReaderForKind returns the reader for a dialect, bypassing extension dispatch.
func ReaderForKind(k Kind) (Reader, error) {
	switch k {
	case StructuredXML:
		return XMLReader{}, nil
	case SimpleChecksum:
		return SFVReader{}, nil
	case KeyedMD5:
		return KeyedMD5Reader{}, nil
	case BareMD5Sum:
		return BareMD5Reader{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, k)
}

// Load reads the list at path, choosing the dialect by extension.
func Load(path string) (*Manifest, error) {
	rd, err := ReaderFor(filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return load(path, rd)
}

// LoadAs reads the list at path with an explicit dialect.
func LoadAs(path string, k Kind) (*Manifest, error) {
	rd, err := ReaderForKind(k)
	if err != nil {
		return nil, err
	}
	return load(path, rd)
}

// Detect reads the list at path, choosing the dialect from its content.
func Detect(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied list path
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	k, err := Sniff(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	rd, err := ReaderForKind(k)
	if err != nil {
		return nil, err
	}
	m, err := rd.Read(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	m.SourcePath = path
	return m, nil
}

func load(path string, rd Reader) (*Manifest, error) {
	f, err := os.Open(path) //nolint:gosec // user-supplied list path
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	m, err := rd.Read(f)
	if err != nil {
		return nil, err
	}
	m.SourcePath = path
	return m, nil
}

// Sniff inspects content and returns the dialect it most plausibly holds.
// A line dialect is only chosen when at least one line matches its grammar.
func Sniff(r io.Reader) (Kind, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return KindUnknown, err
	}

	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if bytes.HasPrefix(trimmed, []byte("<")) && bytes.Contains(trimmed, []byte("<verify")) {
		return StructuredXML, nil
	}

	for _, k := range []Kind{BareMD5Sum, KeyedMD5, SimpleChecksum} {
		g := grammars[k]
		if n, _ := g.count(bytes.NewReader(data)); n > 0 {
			return k, nil
		}
	}
	return KindUnknown, ErrUnsupportedFormat
}
