package types

import (
	"errors"
	"testing"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "plain bytes", input: "4096", want: 4096},
		{name: "zero bytes", input: "0", want: 0},
		{name: "bytes with B suffix", input: "512B", want: 512},
		{name: "kilobytes", input: "64K", want: 64 * 1024},
		{name: "kilobytes with iB", input: "64KiB", want: 64 * 1024},
		{name: "megabytes lowercase", input: "1m", want: 1024 * 1024},
		{name: "gigabytes with B", input: "2GB", want: 2 * 1024 * 1024 * 1024},
		{name: "whitespace", input: "  8K  ", want: 8 * 1024},
		{name: "decimal values truncated", input: "1.5K", want: 1536},

		{name: "empty string", input: "", wantErr: true},
		{name: "invalid suffix", input: "100X", wantErr: true},
		{name: "negative value", input: "-1K", wantErr: true},
		{name: "letters only", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseSizeNegativeSentinel(t *testing.T) {
	if _, err := ParseSize("-5"); !errors.Is(err, ErrNegativeSize) {
		t.Errorf("ParseSize(-5) error = %v, want ErrNegativeSize", err)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{1024, "1.0 KiB"},
		{1536 * 1024, "1.5 MiB"},
		{-1, "0 B"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestStatus(t *testing.T) {
	for st := Pending; st <= Ignored; st++ {
		parsed, err := ParseStatus(st.String())
		if err != nil {
			t.Fatalf("ParseStatus(%q) error = %v", st.String(), err)
		}
		if parsed != st {
			t.Errorf("ParseStatus(%q) = %v, want %v", st.String(), parsed, st)
		}
	}

	if Pending.Terminal() || InProgress.Terminal() {
		t.Error("transient states reported as terminal")
	}
	for _, st := range []Status{Good, Bad, Error, NotFound, WrongSize, Ignored} {
		if !st.Terminal() {
			t.Errorf("%v should be terminal", st)
		}
	}
	if Good.Failed() || Ignored.Failed() {
		t.Error("good or ignored entries reported as failed")
	}
	if _, err := ParseStatus("bogus"); err == nil {
		t.Error("ParseStatus(bogus) should fail")
	}
}

func TestSummary(t *testing.T) {
	s := Summary{Total: 7}
	for _, st := range []Status{Good, Good, Bad, Error, WrongSize, NotFound, Ignored, InProgress} {
		s.Add(st)
	}

	if s.Processed != 7 {
		t.Errorf("Processed = %d, want 7", s.Processed)
	}
	if s.Failed() != 4 {
		t.Errorf("Failed() = %d, want 4", s.Failed())
	}
	want := "7 Files: 2 Good / 3 Bad / 1 Missing"
	if got := s.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
