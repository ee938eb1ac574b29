package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/verifier/cmd/verify/tui"
	"github.com/jamesainslie/verifier/pkg/verifier/cache"
	"github.com/jamesainslie/verifier/pkg/verifier/engine"
	"github.com/jamesainslie/verifier/pkg/verifier/history"
	"github.com/jamesainslie/verifier/pkg/verifier/logging"
	"github.com/jamesainslie/verifier/pkg/verifier/manifest"
	"github.com/jamesainslie/verifier/pkg/verifier/output"
	"github.com/jamesainslie/verifier/pkg/verifier/watcher"
)

// Verify flags.
var (
	listFormat     string
	detectFormat   bool
	ignoreGlobs    []string
	watchMode      bool
	templateStr    string
	noTUI          bool
	noHistory      bool
	baseDir        string
	notifyInterval int
)

func addVerifyFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&listFormat, "format", "", "read the list as this format (verify, sfv, md5, md5sum)")
	f.BoolVar(&detectFormat, "detect", false, "pick the list format from its content")
	f.StringSliceVar(&ignoreGlobs, "ignore", nil, "skip entries matching these globs")
	f.Bool("incremental", false, "skip files unchanged since they last verified good")
	f.BoolVar(&watchMode, "watch", false, "re-verify when listed files change")
	f.StringP("output", "o", "", "report format (pretty, plain, json, jsonl, yaml, csv, tsv, markdown, failures, template)")
	f.StringVar(&templateStr, "template", "", "Go template for -o template")
	f.BoolVar(&noTUI, "no-tui", false, "do not show the progress view")
	f.BoolVar(&noHistory, "no-history", false, "do not record this run")
	f.StringVar(&baseDir, "base-dir", "", "directory entries are relative to (default: the list's directory)")
	f.IntVar(&notifyInterval, "notify-interval", 0, "file percent between progress updates (1-100)")

	_ = v.BindPFlag("cache.enabled", f.Lookup("incremental"))
	_ = v.BindPFlag("output", f.Lookup("output"))
	_ = v.BindPFlag("notify_interval", f.Lookup("notify-interval"))
}

// loadError keeps the user-facing message while still matching the
// underlying error with errors.Is.
type loadError struct {
	msg string
	err error
}

func (e *loadError) Error() string { return e.msg }
func (e *loadError) Unwrap() error { return e.err }

// loadManifest reads the list at path and maps failures to the messages
// shown to users.
func loadManifest(path, format string, detect bool) (*manifest.Manifest, error) {
	var (
		m   *manifest.Manifest
		err error
	)
	switch {
	case format != "":
		var k manifest.Kind
		if k, err = manifest.ParseKind(format); err != nil {
			return nil, err
		}
		m, err = manifest.LoadAs(path, k)
	case detect:
		m, err = manifest.Detect(path)
	default:
		m, err = manifest.Load(path)
	}
	if err == nil {
		err = manifest.RequireEntries(m)
	}
	if err != nil {
		return nil, describeLoadError(path, err)
	}
	return m, nil
}

func describeLoadError(path string, err error) error {
	var pathErr *os.PathError
	switch {
	case errors.Is(err, manifest.ErrNoEntries):
		return &loadError{msg: fmt.Sprintf("no entries found in %s", path), err: err}
	case errors.Is(err, manifest.ErrUnsupportedFormat), errors.Is(err, manifest.ErrMalformedManifest):
		return &loadError{msg: fmt.Sprintf("%s does not contain a supported file verification list format", path), err: err}
	case errors.As(err, &pathErr):
		return &loadError{msg: fmt.Sprintf("could not open file verification list %s", path), err: err}
	}
	return err
}

// selectFormatter returns the report formatter for name.
func selectFormatter(name, tmpl string) (output.Formatter, error) {
	if name == "template" {
		if tmpl == "" {
			return nil, fmt.Errorf("--template is required when using -o template")
		}
		return output.NewTemplateFormatter(tmpl), nil
	}
	f, err := output.Get(name)
	if err != nil {
		return nil, fmt.Errorf("invalid output format: %w", err)
	}
	return f, nil
}

// verifyJob holds everything a single verification pass needs.
type verifyJob struct {
	manifest  *manifest.Manifest
	options   engine.Options
	formatter output.Formatter
	useTUI    bool
	out       io.Writer
}

func runVerify(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	path := args[0]
	log := logging.Get("cli").With("path", path)

	m, err := loadManifest(path, listFormat, detectFormat)
	if err != nil {
		return err
	}

	patterns := ignorePatterns()
	if len(patterns) > 0 {
		n, err := m.IgnoreMatching(patterns)
		if err != nil {
			return err
		}
		printVerbose("ignoring %d entries", n)
	}

	formatName := cfg.Output
	formatter, err := selectFormatter(formatName, templateStr)
	if err != nil {
		return err
	}

	bufSize, err := cfg.BufferBytes()
	if err != nil {
		return err
	}
	opts := engine.Options{
		BufferSize:     bufSize,
		NotifyInterval: cfg.NotifyInterval,
		BaseDir:        baseDir,
	}

	if cfg.Cache.Enabled {
		c, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			printWarning("incremental mode disabled: %v", err)
		} else {
			defer func() { _ = c.Close() }()
			opts.Cache = c
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job := &verifyJob{
		manifest:  m,
		options:   opts,
		formatter: formatter,
		useTUI:    wantTUI(formatName),
		out:       cmd.OutOrStdout(),
	}

	log.Info("verifying list", "format", m.Kind, "entries", m.Len())
	report, err := job.run(ctx)
	if err != nil {
		return err
	}

	if watchMode {
		return watchList(ctx, job)
	}
	if report.Interrupted || report.Summary.Failed() > 0 {
		return errFailed
	}
	return nil
}

// wantTUI reports whether the progress view should be shown.
func wantTUI(format string) bool {
	if noTUI || getQuiet() || format != "pretty" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// run verifies the list once, prints the report and records history.
func (j *verifyJob) run(ctx context.Context) (*output.Report, error) {
	eng, err := engine.New(j.manifest, j.options)
	if err != nil {
		return nil, err
	}
	report := output.NewReport(j.manifest)
	started := time.Now()

	var completion engine.Completion
	if j.useTUI {
		if completion, err = j.runTUI(ctx, eng, report); err != nil {
			printVerbose("progress view failed: %v", err)
		}
	} else {
		completion = eng.Run(ctx, report.Apply)
		report.Complete(completion)
	}
	if errors.Is(completion.Err, engine.ErrBaseDir) {
		return nil, completion.Err
	}

	var buf bytes.Buffer
	if err := j.formatter.Format(&buf, report); err != nil {
		return nil, fmt.Errorf("formatting report: %w", err)
	}
	if _, err := buf.WriteTo(j.out); err != nil {
		return nil, err
	}

	recordVerify(report, started)
	return report, nil
}

func (j *verifyJob) runTUI(ctx context.Context, eng *engine.Engine, report *output.Report) (engine.Completion, error) {
	if err := initLogging(true); err != nil {
		printVerbose("logging disabled: %v", err)
	}
	logs := logging.Subscribe()
	defer func() {
		logging.Unsubscribe(logs)
		recent := logging.RecentEntries()
		if err := initLogging(false); err != nil {
			printVerbose("logging disabled: %v", err)
		}
		replayWarnings(recent)
	}()

	if !eng.Start(ctx) {
		return engine.Completion{}, fmt.Errorf("engine already started")
	}
	return tui.Run(eng, report, tui.Options{Title: j.manifest.SourcePath, Logs: logs})
}

// replayWarnings prints the warnings and errors logged while the progress
// view had the terminal.
func replayWarnings(recent *logging.Buffer) {
	if recent == nil {
		return
	}
	for _, e := range recent.Entries() {
		if e.Level >= logging.LevelWarn {
			printWarning("%s: %s", e.Component, e.Message)
		}
	}
}

// recordVerify saves the run to history unless disabled.
func recordVerify(report *output.Report, started time.Time) {
	if noHistory || !cfg.History.Enabled {
		return
	}
	hist, err := history.New(cfg.History.Path)
	if err != nil {
		printVerbose("history disabled: %v", err)
		return
	}

	run := &history.Run{
		Operation:   history.OpVerify,
		Manifest:    report.Manifest,
		Format:      report.Format,
		Started:     started,
		Finished:    time.Now(),
		Interrupted: report.Interrupted,
		Summary:     report.Summary,
	}
	for _, e := range report.Failures() {
		run.Failures = append(run.Failures, history.Failure{
			Name:     e.Name,
			Status:   e.Status,
			Expected: e.Expected,
			Actual:   e.Actual,
			Error:    e.Error,
		})
	}
	if err := hist.Save(run); err != nil {
		printVerbose("failed to save history: %v", err)
	}
}

// watchList re-verifies the list whenever it or a listed file changes,
// until ctx is cancelled.
func watchList(ctx context.Context, job *verifyJob) error {
	base := job.options.BaseDir
	if base == "" {
		base = filepath.Dir(job.manifest.SourcePath)
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return err
	}

	filter := newListFilter(job.manifest, base)
	w, err := watcher.New(watcher.Options{
		Debounce: time.Duration(cfg.Watch.DebounceMS) * time.Millisecond,
		Filter:   filter.accept,
	})
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Watch(base); err != nil {
		return fmt.Errorf("watching %s: %w", base, err)
	}
	if listDir, err := filepath.Abs(filepath.Dir(job.manifest.SourcePath)); err == nil && listDir != base {
		if err := w.Watch(listDir); err != nil {
			return fmt.Errorf("watching %s: %w", listDir, err)
		}
	}

	printInfo("Watching %s for changes (Ctrl+C to stop)", base)
	w.Run(ctx, func(paths []string) {
		printVerbose("%d paths changed", len(paths))
		if m, err := reloadIfChanged(job.manifest, paths); err != nil {
			printWarning("%v", err)
			return
		} else if m != nil {
			job.manifest = m
			filter.reset(m)
		}
		if _, err := job.run(ctx); err != nil {
			printError("%v", err)
		}
	})
	return nil
}

// listFilter matches the list and its entries. The watcher calls accept
// from the same goroutine that runs batches, so reset needs no locking.
type listFilter struct {
	base  string
	match func(string) bool
}

func newListFilter(m *manifest.Manifest, base string) *listFilter {
	f := &listFilter{base: base}
	f.reset(m)
	return f
}

func (f *listFilter) reset(m *manifest.Manifest) {
	f.match = watcher.ManifestFilter(m, f.base)
}

func (f *listFilter) accept(path string) bool {
	return f.match(path)
}

// reloadIfChanged reloads the list when it is among paths. It returns nil
// when the list did not change.
func reloadIfChanged(m *manifest.Manifest, paths []string) (*manifest.Manifest, error) {
	src, err := filepath.Abs(m.SourcePath)
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		if filepath.Clean(p) != src {
			continue
		}
		next, err := loadManifest(m.SourcePath, listFormat, detectFormat)
		if err != nil {
			return nil, err
		}
		if _, err := next.IgnoreMatching(ignorePatterns()); err != nil {
			return nil, err
		}
		return next, nil
	}
	return nil, nil
}

// ignorePatterns merges configured and command line ignore globs.
func ignorePatterns() []string {
	return append(append([]string{}, cfg.Ignore...), ignoreGlobs...)
}

var _ tui.Runner = (*engine.Engine)(nil)
