package manifest

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/jamesainslie/verifier/pkg/verifier/algorithm"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// maxLineSize bounds a single list line.
const maxLineSize = 1 << 20

// lineGrammar is a one-entry-per-line dialect. Lines that do not match are skipped.
type lineGrammar struct {
	re        *regexp.Regexp
	name      int
	digest    int
	algorithm algorithm.ID
}

var grammars = map[Kind]lineGrammar{
	SimpleChecksum: {
		re:        regexp.MustCompile(`^([^;].*) ([0-9a-fA-F]{8})$`),
		name:      1,
		digest:    2,
		algorithm: algorithm.CRC32Reversed,
	},
	KeyedMD5: {
		re:        regexp.MustCompile(`^MD5 \((.+)\) = ([0-9a-fA-F]{32})$`),
		name:      1,
		digest:    2,
		algorithm: algorithm.MD5,
	},
	BareMD5Sum: {
		re:        regexp.MustCompile(`^([0-9a-fA-F]{32})\s+\**(.+)$`),
		name:      2,
		digest:    1,
		algorithm: algorithm.MD5,
	},
}

// scan calls fn for every trimmed line of r.
func scan(r io.Reader, fn func(line string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	first := true
	for sc.Scan() {
		line := sc.Bytes()
		if first {
			line = bytes.TrimPrefix(line, utf8BOM)
			first = false
		}
		fn(strings.TrimSpace(string(line)))
	}
	return sc.Err()
}

func (g lineGrammar) parse(r io.Reader) ([]*Entry, error) {
	var entries []*Entry
	err := scan(r, func(line string) {
		m := g.re.FindStringSubmatch(line)
		if m == nil {
			return
		}
		entries = append(entries, &Entry{
			Name:      strings.TrimSpace(m[g.name]),
			Digest:    strings.TrimSpace(m[g.digest]),
			Algorithm: g.algorithm,
		})
	})
	return entries, err
}

func (g lineGrammar) count(r io.Reader) (int, error) {
	n := 0
	err := scan(r, func(line string) {
		if g.re.MatchString(line) {
			n++
		}
	})
	return n, err
}

// SFVReader reads "name CRC32" lists. Lines starting with ';' are comments
// and are kept as list metadata.
type SFVReader struct{}

// Read implements Reader.
func (SFVReader) Read(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	entries, err := grammars[SimpleChecksum].parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	m := &Manifest{Kind: SimpleChecksum, Entries: entries}
	err = scan(bytes.NewReader(data), func(line string) {
		if text, ok := strings.CutPrefix(line, ";"); ok {
			m.Info.Comments = append(m.Info.Comments, Comment{Lang: "en", Text: strings.TrimSpace(text)})
		}
	})
	return m, err
}

// KeyedMD5Reader reads BSD-style "MD5 (name) = digest" lists.
type KeyedMD5Reader struct{}

// Read implements Reader.
func (KeyedMD5Reader) Read(r io.Reader) (*Manifest, error) {
	entries, err := grammars[KeyedMD5].parse(r)
	if err != nil {
		return nil, err
	}
	return &Manifest{Kind: KeyedMD5, Entries: entries}, nil
}

// BareMD5Reader reads md5sum-style "digest *name" lists. Leading '*' binary
// markers are stripped from names.
type BareMD5Reader struct{}

// Read implements Reader.
func (BareMD5Reader) Read(r io.Reader) (*Manifest, error) {
	entries, err := grammars[BareMD5Sum].parse(r)
	if err != nil {
		return nil, err
	}
	return &Manifest{Kind: BareMD5Sum, Entries: entries}, nil
}

// MD5Reader handles the extensions shared by both MD5 dialects. It tries the
// md5sum grammar first and falls back to the BSD grammar when that yields no
// entries. The returned Kind records the dialect actually used.
type MD5Reader struct{}

// Read implements Reader.
func (MD5Reader) Read(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m, err := BareMD5Reader{}.Read(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(m.Entries) > 0 {
		return m, nil
	}
	return KeyedMD5Reader{}.Read(bytes.NewReader(data))
}
