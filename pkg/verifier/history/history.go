package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get when no run matches.
var ErrNotFound = errors.New("run not found")

// ErrAmbiguous is returned by Get when an id prefix matches several runs.
var ErrAmbiguous = errors.New("ambiguous run id")

// Log stores runs as JSON files in a directory.
type Log struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// New returns a Log rooted at dir. The directory is created on first Save.
func New(dir string) (*Log, error) {
	if dir == "" {
		return nil, errors.New("history directory cannot be empty")
	}
	return &Log{dir: dir, now: time.Now}, nil
}

// Dir returns the directory runs are stored in.
func (l *Log) Dir() string {
	return l.dir
}

// Save assigns run an id if it has none and writes it.
func (l *Log) Save(run *Run) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Finished.IsZero() {
		run.Finished = l.now().UTC()
	}
	if run.Started.IsZero() {
		run.Started = run.Finished
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	path := filepath.Join(l.dir, filename(run))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// filename sorts runs chronologically in a directory listing.
func filename(run *Run) string {
	return fmt.Sprintf("%s-%s.json", run.Started.UTC().Format("20060102T150405"), run.ID)
}

// List returns runs newest first. A limit of zero or less returns all.
func (l *Log) List(limit int) ([]Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	runs, err := l.readAll()
	if err != nil {
		return nil, err
	}
	slices.SortFunc(runs, func(a, b Run) int { return b.Started.Compare(a.Started) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Get returns the run whose id equals or starts with id.
func (l *Log) Get(id string) (*Run, error) {
	if id == "" {
		return nil, errors.New("run id cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	runs, err := l.readAll()
	if err != nil {
		return nil, err
	}

	var match *Run
	for i := range runs {
		switch {
		case runs[i].ID == id:
			return &runs[i], nil
		case strings.HasPrefix(runs[i].ID, id):
			if match != nil {
				return nil, fmt.Errorf("%w: %s", ErrAmbiguous, id)
			}
			match = &runs[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return match, nil
}

// Cleanup removes runs that finished more than retentionDays ago and
// returns how many were removed. Zero or less keeps everything.
func (l *Log) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().AddDate(0, 0, -retentionDays)
	files, err := l.files()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, name := range files {
		run, err := l.read(name)
		if err != nil || !run.Finished.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(l.dir, name)); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (l *Log) files() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// readAll skips files that cannot be parsed.
func (l *Log) readAll() ([]Run, error) {
	names, err := l.files()
	if err != nil {
		return nil, err
	}
	runs := make([]Run, 0, len(names))
	for _, name := range names {
		run, err := l.read(name)
		if err != nil {
			continue
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

func (l *Log) read(name string) (*Run, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, name))
	if err != nil {
		return nil, err
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	return &run, nil
}

// WriteText writes the run as a plain-text log: one line per failure
// followed by the summary line.
func (r *Run) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", r.Operation, r.Manifest)
	fmt.Fprintf(&b, "Started:  %s\n", r.Started.Local().Format(time.DateTime))
	fmt.Fprintf(&b, "Finished: %s\n", r.Finished.Local().Format(time.DateTime))
	if r.Interrupted {
		b.WriteString("Run was cancelled before all files were checked.\n")
	}
	if len(r.Failures) > 0 {
		b.WriteString("\n")
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "%-10s %s", f.Status, f.Name)
		if f.Error != "" {
			fmt.Fprintf(&b, " (%s)", f.Error)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n%s\n", r.Summary)
	_, err := io.WriteString(w, b.String())
	return err
}
