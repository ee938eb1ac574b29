package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/verifier/pkg/verifier/algorithm"
	"github.com/jamesainslie/verifier/pkg/verifier/engine"
	"github.com/jamesainslie/verifier/pkg/verifier/manifest"
	"github.com/jamesainslie/verifier/pkg/verifier/types"
)

func sampleReport() *Report {
	size := uint64(3)
	return &Report{
		Manifest: "/data/release.sfv",
		Format:   "sfv",
		Entries: []EntryResult{
			{Name: "a.bin", Algorithm: "MD5", Status: types.Good, Expected: "AA", Actual: "AA", Size: &size},
			{Name: "b|c.bin", Algorithm: "MD5", Status: types.Bad, Expected: "AA", Actual: "BB"},
			{Name: "gone.bin", Algorithm: "CRC (32bit Rev.)", Status: types.NotFound, Expected: "01020304", Error: "file does not exist"},
		},
		Summary: types.Summary{Total: 3, Processed: 3, Good: 1, Bad: 1, NotFound: 1, BytesHashed: 2048},
		Elapsed: 1500 * time.Millisecond,
	}
}

func TestRegistryHasAllFormatters(t *testing.T) {
	want := []string{"csv", "failures", "json", "jsonl", "markdown", "plain", "pretty", "template", "tsv", "yaml"}
	assert.Equal(t, want, Available())

	for _, name := range want {
		f, err := Get(name)
		require.NoError(t, err, name)
		assert.NotNil(t, f)
	}

	_, err := Get("nope")
	assert.Error(t, err)
}

func TestRegistryIsolated(t *testing.T) {
	reg := NewRegistry()
	assert.Empty(t, reg.Available())

	reg.Register("x", func() Formatter { return &PlainFormatter{} })
	reg.Register("x", func() Formatter { return &JSONFormatter{} })

	f, err := reg.Get("x")
	require.NoError(t, err)
	assert.IsType(t, &JSONFormatter{}, f)
}

func TestNewReportAndApply(t *testing.T) {
	size := uint64(5)
	m := &manifest.Manifest{
		Kind:       manifest.SimpleChecksum,
		SourcePath: "/x/list.sfv",
		Entries: []*manifest.Entry{
			{Name: "one", Algorithm: algorithm.MD5, Digest: "900150983CD24FB0D6963F7D28E17F72", Size: &size},
			{Name: "two", Algorithm: algorithm.MD5, Digest: "short"},
		},
	}

	r := NewReport(m)
	require.Len(t, r.Entries, 2)
	assert.Equal(t, "/x/list.sfv", r.Manifest)
	assert.Equal(t, "sfv", r.Format)
	assert.Equal(t, types.Pending, r.Entries[0].Status)
	assert.Equal(t, &size, r.Entries[0].Size)
	assert.Equal(t, 2, r.Summary.Total)
	require.Len(t, r.Warnings, 1, "the short digest is reported")
	assert.Contains(t, r.Warnings[0], "two")

	r.Apply(engine.Event{Index: 0, Status: types.Good, Digest: "900150983CD24FB0D6963F7D28E17F72"})
	r.Apply(engine.Event{Index: 1, Status: types.NotFound, Err: fs.ErrNotExist})
	r.Apply(engine.Event{Index: 7, Status: types.Bad})

	assert.Equal(t, types.Good, r.Entries[0].Status)
	assert.Equal(t, "900150983CD24FB0D6963F7D28E17F72", r.Entries[0].Actual)
	assert.Equal(t, types.NotFound, r.Entries[1].Status)
	assert.Equal(t, fs.ErrNotExist.Error(), r.Entries[1].Error)

	r.Complete(engine.Completion{
		Err:     engine.ErrCancelled,
		State:   types.Aborted,
		Summary: types.Summary{Total: 2, Processed: 2, Good: 1, NotFound: 1},
		Elapsed: time.Second,
	})
	assert.True(t, r.Interrupted)
	assert.Equal(t, time.Second, r.Elapsed)
	assert.Equal(t, 1, r.Summary.Failed())

	failures := r.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "two", failures[0].Name)
}

func TestPrettyFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "/data/release.sfv")
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "a.bin")
	assert.Contains(t, out, "expected MD5")
	assert.Contains(t, out, "file does not exist")
	assert.Contains(t, out, "1 good")
	assert.Contains(t, out, "1 bad")
	assert.Contains(t, out, "1 missing")
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "1.5s")
	assert.NotContains(t, out, "interrupted")
}

func TestPrettyFormatterEmptyAndInterrupted(t *testing.T) {
	var buf bytes.Buffer
	r := &Report{Manifest: "empty.md5", Format: "md5", Interrupted: true, Warnings: []string{"odd digest"}}
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, r))

	out := buf.String()
	assert.Contains(t, out, "No entries in list")
	assert.Contains(t, out, "Verification interrupted by user")
	assert.Contains(t, out, "Warnings:")
	assert.Contains(t, out, "odd digest")
}

func TestPlainFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PlainFormatter{}).Format(&buf, sampleReport()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.True(t, strings.HasPrefix(lines[0], "STATUS"))
	assert.True(t, strings.HasPrefix(lines[1], "good"))
	assert.True(t, strings.HasSuffix(lines[1], "a.bin"))
	assert.Equal(t, "3 Files: 1 Good / 1 Bad / 1 Missing", lines[len(lines)-1])
	assert.NotContains(t, buf.String(), "\x1b[", "no styling")
}

func TestFailuresFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&FailuresFormatter{}).Format(&buf, sampleReport()))
	assert.Equal(t, "b|c.bin\ngone.bin\n", buf.String())
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, sampleReport()))

	var doc struct {
		Meta struct {
			Manifest string `json:"manifest"`
			Elapsed  string `json:"elapsed"`
			Failed   int    `json:"failed"`
		} `json:"meta"`
		Entries []struct {
			Name   string  `json:"name"`
			Status string  `json:"status"`
			Size   *uint64 `json:"size"`
			Error  string  `json:"error"`
		} `json:"entries"`
		Summary types.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "/data/release.sfv", doc.Meta.Manifest)
	assert.Equal(t, "1.5s", doc.Meta.Elapsed)
	assert.Equal(t, 2, doc.Meta.Failed)
	require.Len(t, doc.Entries, 3)
	assert.Equal(t, "good", doc.Entries[0].Status)
	require.NotNil(t, doc.Entries[0].Size)
	assert.Equal(t, uint64(3), *doc.Entries[0].Size)
	assert.Nil(t, doc.Entries[1].Size)
	assert.Equal(t, "not-found", doc.Entries[2].Status)
	assert.Equal(t, 1, doc.Summary.NotFound)
}

func TestJSONFormatterEmptyEntriesIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, &Report{}))
	assert.Contains(t, buf.String(), `"entries": []`)
}

func TestJSONLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONLFormatter{}).Format(&buf, sampleReport()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		var e EntryResult
		require.NoError(t, json.Unmarshal([]byte(line), &e))
	}

	var bad EntryResult
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &bad))
	assert.Equal(t, types.Bad, bad.Status)
	assert.Equal(t, "BB", bad.Actual)
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&YAMLFormatter{}).Format(&buf, sampleReport()))

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Contains(t, doc, "meta")
	assert.Contains(t, doc, "summary")

	entries, ok := doc["entries"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 3)
	first := entries[0].(map[string]any)
	assert.Equal(t, "good", first["status"])
	assert.Equal(t, "a.bin", first["name"])
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&CSVFormatter{}).Format(&buf, sampleReport()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, tableHeader, records[0])
	assert.Equal(t, []string{"bad", "MD5", "AA", "BB", "b|c.bin"}, records[2])
	assert.Equal(t, "CRC (32bit Rev.)", records[3][1])
}

func TestTSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&TSVFormatter{}).Format(&buf, sampleReport()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "STATUS\tALGORITHM\tEXPECTED\tACTUAL\tNAME", lines[0])
	assert.Equal(t, "good\tMD5\tAA\tAA\ta.bin", lines[1])
}

func TestMarkdownFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&MarkdownFormatter{}).Format(&buf, sampleReport()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "| STATUS | ALGORITHM | NAME |\n|--------|"))
	assert.Contains(t, out, `| bad | MD5 | b\|c.bin |`)
	assert.Contains(t, out, "**3 Files: 1 Good / 1 Bad / 1 Missing**")
}

func TestTemplateFormatter(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     string
		wantErr  bool
	}{
		{
			name:     "default",
			template: defaultTemplate,
			want:     "good\ta.bin\nbad\tb|c.bin\nnot-found\tgone.bin\n",
		},
		{
			name:     "summary and bytes",
			template: `{{.Summary.Good}}/{{.Summary.Total}} {{bytes .Summary.BytesHashed}}`,
			want:     "1/3 2.0 KiB",
		},
		{
			name:     "failed helper",
			template: `{{range failed .}}{{.Name}};{{end}}`,
			want:     "b|c.bin;gone.bin;",
		},
		{
			name:     "parse error",
			template: `{{.Broken`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := NewTemplateFormatter(tt.template).Format(&buf, sampleReport())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestTemplateFormatterSetTemplate(t *testing.T) {
	f := NewTemplateFormatter("a")
	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, sampleReport()))

	f.SetTemplate("{{.Format}}")
	buf.Reset()
	require.NoError(t, f.Format(&buf, sampleReport()))
	assert.Equal(t, "sfv", buf.String())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}

func TestStatusStyle(t *testing.T) {
	assert.Equal(t, SuccessStyle, StatusStyle(types.Good))
	assert.Equal(t, ErrorStyle, StatusStyle(types.Bad))
	assert.Equal(t, WarningStyle, StatusStyle(types.NotFound))
	assert.Equal(t, MutedStyle, StatusStyle(types.Ignored))
}
