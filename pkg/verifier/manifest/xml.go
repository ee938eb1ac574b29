package manifest

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jamesainslie/verifier/pkg/verifier/algorithm"
	"golang.org/x/text/encoding/htmlindex"
)

type xmlDocument struct {
	XMLName     xml.Name        `xml:"verify"`
	Version     string          `xml:"version,attr,omitempty"`
	Information *xmlInformation `xml:"information"`
	Files       []xmlFile       `xml:"filelist>file"`
}

type xmlInformation struct {
	Created     string       `xml:"created,omitempty"`
	CreatedBy   string       `xml:"createdby,omitempty"`
	Application string       `xml:"application,omitempty"`
	ListName    string       `xml:"listname,omitempty"`
	Comments    []xmlComment `xml:"comments"`
}

type xmlComment struct {
	Lang string `xml:"lang,attr,omitempty"`
	Text string `xml:",chardata"`
}

type xmlFile struct {
	Name     string `xml:"name,attr"`
	Type     string `xml:"type,attr"`
	Size     string `xml:"size,attr,omitempty"`
	Created  string `xml:"created,attr,omitempty"`
	Modified string `xml:"modified,attr,omitempty"`
	Digest   string `xml:",chardata"`
}

// xsdDateTime layouts accepted on read, most specific first.
var xsdDateTime = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDateTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range xsdDateTime {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid dateTime %q", s)
}

func formatDateTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// charsetReader lets lists declare legacy encodings such as windows-1252.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, err
	}
	return enc.NewDecoder().Reader(input), nil
}

// XMLReader reads structured lists.
type XMLReader struct{}

// Read implements Reader.
func (XMLReader) Read(r io.Reader) (*Manifest, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	var doc xmlDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedManifest, err)
	}

	m := &Manifest{Kind: StructuredXML, Version: doc.Version}

	if info := doc.Information; info != nil {
		created, err := parseDateTime(info.Created)
		if err != nil {
			return nil, fmt.Errorf("%w: information: %w", ErrMalformedManifest, err)
		}
		m.Info = Metadata{
			Created:     created,
			CreatedBy:   info.CreatedBy,
			Application: info.Application,
			ListName:    info.ListName,
		}
		for _, c := range info.Comments {
			lang := c.Lang
			if lang == "" {
				lang = "en"
			}
			m.Info.Comments = append(m.Info.Comments, Comment{Lang: lang, Text: c.Text})
		}
	}

	m.Entries = make([]*Entry, 0, len(doc.Files))
	for i, f := range doc.Files {
		e, err := f.entry()
		if err != nil {
			return nil, fmt.Errorf("%w: file %d (%s): %w", ErrMalformedManifest, i+1, f.Name, err)
		}
		m.Entries = append(m.Entries, e)
	}
	return m, nil
}

func (f xmlFile) entry() (*Entry, error) {
	id, err := algorithm.ParseToken(f.Type)
	if err != nil {
		return nil, err
	}

	e := &Entry{
		Name:      f.Name,
		Algorithm: id,
		Digest:    strings.TrimSpace(f.Digest),
	}

	if s := strings.TrimSpace(f.Size); s != "" {
		size, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid size %q", f.Size)
		}
		e.Size = &size
	}
	if e.Created, err = parseDateTime(f.Created); err != nil {
		return nil, err
	}
	if e.Modified, err = parseDateTime(f.Modified); err != nil {
		return nil, err
	}
	return e, nil
}

// XMLWriter writes structured lists.
type XMLWriter struct{}

// Write implements Writer.
func (XMLWriter) Write(w io.Writer, m *Manifest) error {
	doc := xmlDocument{Version: m.Version}
	if doc.Version == "" {
		doc.Version = SchemaVersion
	}

	info := m.Info
	if info.Created != nil || info.CreatedBy != "" || info.Application != "" || info.ListName != "" || len(info.Comments) > 0 {
		doc.Information = &xmlInformation{
			Created:     formatDateTime(info.Created),
			CreatedBy:   info.CreatedBy,
			Application: info.Application,
			ListName:    info.ListName,
		}
		for _, c := range info.Comments {
			doc.Information.Comments = append(doc.Information.Comments, xmlComment(c))
		}
	}

	doc.Files = make([]xmlFile, 0, len(m.Entries))
	for _, e := range m.Entries {
		tok, err := algorithm.Token(e.Algorithm)
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name, err)
		}
		f := xmlFile{
			Name:     e.Name,
			Type:     tok,
			Digest:   strings.ToUpper(e.Digest),
			Created:  formatDateTime(e.Created),
			Modified: formatDateTime(e.Modified),
		}
		if e.Size != nil {
			f.Size = strconv.FormatUint(*e.Size, 10)
		}
		doc.Files = append(doc.Files, f)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
