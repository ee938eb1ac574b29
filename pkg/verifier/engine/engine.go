// Package engine verifies the entries of a manifest against the files on
// disk. A run is executed by a single background goroutine that reports
// every state change on an event channel, in list order, and finishes with
// exactly one Completion.
//
// A typical caller:
//
//	eng, err := engine.New(m, engine.Options{})
//	if err != nil {
//	    return err
//	}
//	done := eng.Run(ctx, func(ev engine.Event) {
//	    fmt.Println(ev.Entry.Name, ev.Status)
//	})
//	fmt.Println(done.Summary)
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jamesainslie/verifier/pkg/verifier/algorithm"
	"github.com/jamesainslie/verifier/pkg/verifier/calculator"
	"github.com/jamesainslie/verifier/pkg/verifier/logging"
	"github.com/jamesainslie/verifier/pkg/verifier/manifest"
	"github.com/jamesainslie/verifier/pkg/verifier/progress"
	"github.com/jamesainslie/verifier/pkg/verifier/types"
)

// eventBuffer is the capacity of the event channel.
const eventBuffer = 64

// Options configures an Engine. The zero value is usable.
type Options struct {
	// Registry supplies hashers. Nil uses algorithm.Default.
	Registry *algorithm.Registry

	// Opener opens listed files. Nil uses OSOpener.
	Opener Opener

	// Logger receives run diagnostics. Nil uses logging.Get("engine").
	Logger *logging.Logger

	// NotifyInterval is the file-percent step between progress events.
	// Zero uses progress.DefaultInterval.
	NotifyInterval int

	// BufferSize is the hashing block size. Zero uses calculator.DefaultBufferSize.
	BufferSize int

	// BaseDir overrides the directory relative entry names are resolved
	// against. Empty uses the directory of the manifest's SourcePath.
	BaseDir string

	// Cache, when set, lets unchanged files that were good last time be
	// reported good without hashing them again.
	Cache Cache

	// Now returns the current time. Nil uses time.Now.
	Now func() time.Time
}

// Engine runs one verification of a manifest. An Engine cannot be restarted;
// build a new one to verify the same manifest again.
//
// Entries must not be modified while the run is in progress.
type Engine struct {
	manifest *manifest.Manifest
	opts     Options
	log      *logging.Logger

	mu     sync.Mutex
	state  types.RunState
	cancel context.CancelFunc

	events chan Event
	done   chan Completion
	final  *Completion
}

// New validates opts and returns an idle engine for m.
func New(m *manifest.Manifest, opts Options) (*Engine, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil manifest", types.ErrInvalidConfiguration)
	}
	switch {
	case opts.NotifyInterval == 0:
		opts.NotifyInterval = progress.DefaultInterval
	case opts.NotifyInterval < 1 || opts.NotifyInterval > 100:
		return nil, fmt.Errorf("%w: notify interval %d outside 1..100",
			types.ErrInvalidConfiguration, opts.NotifyInterval)
	}
	switch {
	case opts.BufferSize == 0:
		opts.BufferSize = calculator.DefaultBufferSize
	case opts.BufferSize < 0:
		return nil, fmt.Errorf("%w: buffer size must be positive, got %d",
			types.ErrInvalidConfiguration, opts.BufferSize)
	}
	if opts.Registry == nil {
		opts.Registry = algorithm.Default
	}
	if opts.Opener == nil {
		opts.Opener = OSOpener{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logging.Get("engine")
	}

	return &Engine{
		manifest: m,
		opts:     opts,
		log:      log,
		events:   make(chan Event, eventBuffer),
		done:     make(chan Completion, 1),
	}, nil
}

// Start launches the run and reports whether it did. It does nothing unless
// the engine is idle. The run stops early when ctx is cancelled or Cancel
// is called.
func (e *Engine) Start(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != types.Idle {
		return false
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.state = types.Running
	go e.run(ctx)
	return true
}

// Cancel asks a running engine to stop at the next block read or entry
// boundary. It is safe to call at any time and more than once.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// State returns the run state.
func (e *Engine) State() types.RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Events returns the event channel. It is closed after the last event, just
// before the completion is delivered. Callers must drain it for the run to
// make progress.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Done delivers the single Completion of the run.
func (e *Engine) Done() <-chan Completion {
	return e.done
}

// Run starts the engine if it is idle, passes every event to fn in order,
// and returns the completion. fn may be nil. On an engine that has already
// finished it returns the recorded completion.
func (e *Engine) Run(ctx context.Context, fn func(Event)) Completion {
	e.Start(ctx)
	for ev := range e.events {
		if fn != nil {
			fn(ev)
		}
	}
	select {
	case c := <-e.done:
		return c
	default:
		e.mu.Lock()
		defer e.mu.Unlock()
		return *e.final
	}
}

// Manifest returns the manifest being verified.
func (e *Engine) Manifest() *manifest.Manifest {
	return e.manifest
}

// run is the worker loop.
func (e *Engine) run(ctx context.Context) {
	start := e.opts.Now()
	entries := e.manifest.Entries
	sum := types.Summary{Total: len(entries)}

	finish := func(state types.RunState, err error) {
		e.finish(Completion{Err: err, State: state, Summary: sum, Elapsed: e.opts.Now().Sub(start)})
	}

	base, err := e.baseDir()
	if err != nil {
		e.log.Error("verification aborted", "manifest", e.manifest.SourcePath, "error", err)
		finish(types.Aborted, err)
		return
	}
	e.log.Info("verification started", "manifest", e.manifest.SourcePath, "entries", len(entries), "base", base)

	for i, entry := range entries {
		if ctx.Err() != nil {
			e.log.Warn("verification cancelled", "processed", sum.Processed, "total", sum.Total)
			finish(types.Aborted, ErrCancelled)
			return
		}

		out, err := e.verify(ctx, i, entry, base, sum.Processed)
		if err != nil {
			e.log.Warn("verification cancelled", "entry", entry.Name, "processed", sum.Processed, "total", sum.Total)
			finish(types.Aborted, ErrCancelled)
			return
		}

		sum.Add(out.status)
		sum.BytesHashed += out.hashed
		e.logOutcome(entry, out)

		e.emit(ctx, Event{
			Index:        i,
			Entry:        entry,
			Status:       out.status,
			FilePercent:  100,
			TotalPercent: aggregate(sum.Processed, 0, sum.Total),
			Digest:       out.digest,
			Err:          out.err,
		})
	}

	e.log.Info("verification finished", "summary", sum.String(), "bytes", sum.BytesHashed)
	finish(types.Completed, nil)
}

func (e *Engine) finish(c Completion) {
	e.mu.Lock()
	e.state = c.State
	e.final = &c
	e.mu.Unlock()

	close(e.events)
	e.done <- c
}

// outcome is the terminal result of one entry.
type outcome struct {
	status types.Status
	digest string
	err    error
	hashed int64
}

// verify drives one entry through its states. It returns an error only when
// the run was cancelled; every other failure is an outcome.
func (e *Engine) verify(ctx context.Context, idx int, entry *manifest.Entry, base string, processed int) (outcome, error) {
	total := len(e.manifest.Entries)

	if entry.Ignore {
		return outcome{status: types.Ignored}, nil
	}

	e.emit(ctx, Event{
		Index:        idx,
		Entry:        entry,
		Status:       types.InProgress,
		TotalPercent: aggregate(processed, 0, total),
	})

	path := resolve(base, entry.Name)
	f, err := e.opts.Opener.Open(path)
	if err != nil {
		if ctx.Err() != nil {
			return outcome{}, ctx.Err()
		}
		if errors.Is(err, fs.ErrNotExist) {
			return outcome{status: types.NotFound, err: err}, nil
		}
		return outcome{status: types.Error, err: err}, nil
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			e.log.Debug("close failed", "path", path, "error", cerr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return outcome{status: types.Error, err: fmt.Errorf("stat %s: %w", path, err)}, nil
	}
	if info.IsDir() {
		return outcome{status: types.Error, err: fmt.Errorf("%s: is a directory", path)}, nil
	}
	if entry.Size != nil && uint64(info.Size()) != *entry.Size {
		return outcome{status: types.WrongSize}, nil
	}

	expected := strings.ToUpper(strings.TrimSpace(entry.Digest))
	if e.opts.Cache != nil && e.opts.Cache.Fresh(path, entry.Algorithm, expected, info.Size(), info.ModTime()) {
		e.log.Debug("unchanged since last good result", "path", path)
		return outcome{status: types.Good, digest: expected}, nil
	}

	calc := calculator.New(e.opts.Registry)
	if err := calc.SetBufferSize(e.opts.BufferSize); err != nil {
		return outcome{status: types.Error, err: err}, nil
	}
	if err := calc.Add(entry.Algorithm); err != nil {
		return outcome{status: types.Error, err: err}, nil
	}

	pr, err := progress.NewReader(ctx, f, info.Size(), e.opts.NotifyInterval, func(u progress.Update) {
		e.emit(ctx, Event{
			Index:        idx,
			Entry:        entry,
			Status:       types.InProgress,
			FilePercent:  u.Percent,
			TotalPercent: aggregate(processed, u.Percent, total),
		})
	})
	if err != nil {
		return outcome{status: types.Error, err: err}, nil
	}

	if err := calc.ComputeReader(ctx, pr); err != nil {
		if ctx.Err() != nil {
			return outcome{}, ctx.Err()
		}
		return outcome{status: types.Error, err: fmt.Errorf("read %s: %w", path, err), hashed: pr.Position()}, nil
	}

	out := outcome{status: types.Bad, digest: calc.Hex(entry.Algorithm), hashed: calc.Processed()}
	if out.digest == expected {
		out.status = types.Good
	}
	if e.opts.Cache != nil {
		if err := e.opts.Cache.Record(path, entry.Algorithm, expected, info.Size(), info.ModTime(), out.status); err != nil {
			e.log.Warn("cache update failed", "path", path, "error", err)
		}
	}
	return out, nil
}

func (e *Engine) logOutcome(entry *manifest.Entry, out outcome) {
	switch out.status {
	case types.Good, types.Ignored:
		e.log.Debug("entry verified", "entry", entry.Name, "status", out.status)
	case types.Error, types.NotFound:
		e.log.Warn("entry failed", "entry", entry.Name, "status", out.status, "error", out.err)
	default:
		e.log.Warn("entry failed", "entry", entry.Name, "status", out.status, "digest", out.digest)
	}
}

// emit delivers ev unless the run has been cancelled and the consumer is
// not keeping up.
func (e *Engine) emit(ctx context.Context, ev Event) {
	select {
	case e.events <- ev:
		return
	default:
	}
	select {
	case e.events <- ev:
	case <-ctx.Done():
	}
}

// baseDir returns the absolute directory that relative entry names are
// resolved against.
func (e *Engine) baseDir() (string, error) {
	dir := e.opts.BaseDir
	if dir == "" {
		if e.manifest.SourcePath == "" {
			return "", fmt.Errorf("%w: manifest has no source path", ErrBaseDir)
		}
		dir = filepath.Dir(e.manifest.SourcePath)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBaseDir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBaseDir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrBaseDir, abs)
	}
	return abs, nil
}

// resolve maps a listed name to a path. Lists written on Windows use
// backslashes, so both separators are accepted.
func resolve(base, name string) string {
	p := filepath.FromSlash(strings.ReplaceAll(name, `\`, "/"))
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// aggregate is the run percentage with processed entries finished and the
// current one filePercent done. The two terms are floored separately so the
// value never decreases across an entry boundary.
func aggregate(processed, filePercent, total int) int {
	if total <= 0 {
		return 100
	}
	return processed*100/total + filePercent/total
}
