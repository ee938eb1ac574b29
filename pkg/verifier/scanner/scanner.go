package scanner

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
)

// ErrNotDirectory is returned when the scan root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// progressEvery throttles OnProgress calls.
const progressEvery = 20 * time.Millisecond

// Scanner walks a directory tree in parallel using fastwalk.
type Scanner struct {
	opts Options
	root string
	skip map[string]struct{}

	dirs  atomic.Int64
	files atomic.Int64
	bytes atomic.Int64
	last  atomic.Int64

	mu      sync.Mutex
	results []File
	errors  []Error
}

// New creates a Scanner.
func New(opts Options) *Scanner {
	if opts.Root == "" {
		opts.Root = "."
	}
	skip := make(map[string]struct{}, len(opts.Skip))
	for _, p := range opts.Skip {
		if abs, err := filepath.Abs(p); err == nil {
			skip[abs] = struct{}{}
		}
	}
	return &Scanner{opts: opts, skip: skip}
}

// Scan walks the tree. Unreadable entries are collected in Result.Errors
// rather than failing the scan.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	start := time.Now()

	root, err := filepath.Abs(s.opts.Root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}
	s.root = root

	conf := fastwalk.Config{Follow: s.opts.FollowSymlinks}
	err = fastwalk.Walk(&conf, root, s.visit(ctx))
	if err != nil && !errors.Is(err, fastwalk.ErrSkipFiles) {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.report(true, root)

	slices.SortFunc(s.results, func(a, b File) int { return cmp.Compare(a.Rel, b.Rel) })
	return &Result{
		Root:    root,
		Files:   s.results,
		Dirs:    s.dirs.Load(),
		Bytes:   s.bytes.Load(),
		Errors:  s.errors,
		Elapsed: time.Since(start),
	}, nil
}

func (s *Scanner) visit(ctx context.Context) fs.WalkDirFunc {
	return func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			s.addError(p, err)
			return nil
		}
		if p == s.root {
			return nil
		}

		rel := filepath.ToSlash(strings.TrimPrefix(p, s.root+string(filepath.Separator)))
		if s.excluded(rel) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			s.dirs.Add(1)
			s.report(false, p)
			return nil
		}
		if _, skip := s.skip[p]; skip {
			return nil
		}

		info, err := d.Info()
		if d.Type()&fs.ModeSymlink != 0 && s.opts.FollowSymlinks {
			info, err = os.Stat(p)
		}
		if err != nil {
			s.addError(p, err)
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		s.files.Add(1)
		s.bytes.Add(info.Size())
		s.mu.Lock()
		s.results = append(s.results, File{Rel: rel, Path: p, Size: info.Size(), ModTime: info.ModTime()})
		s.mu.Unlock()
		s.report(false, p)
		return nil
	}
}

// excluded reports whether rel (slash separated) is hidden or matches an
// exclude pattern.
func (s *Scanner) excluded(rel string) bool {
	base := path.Base(rel)
	if !s.opts.Hidden && strings.HasPrefix(base, ".") {
		return true
	}
	for _, pattern := range s.opts.Exclude {
		if Match(pattern, rel) {
			return true
		}
	}
	return false
}

// Match reports whether a slash-separated relative path matches pattern by
// base name, as a whole, or as a directory prefix.
func Match(pattern, rel string) bool {
	pattern = strings.TrimSuffix(filepath.ToSlash(pattern), "/")
	if pattern == "" {
		return false
	}
	if rel == pattern || strings.HasPrefix(rel, pattern+"/") {
		return true
	}
	if ok, err := path.Match(pattern, path.Base(rel)); err == nil && ok {
		return true
	}
	ok, err := path.Match(pattern, rel)
	return err == nil && ok
}

func (s *Scanner) addError(p string, err error) {
	s.mu.Lock()
	s.errors = append(s.errors, Error{Path: p, Error: err.Error()})
	s.mu.Unlock()
}

func (s *Scanner) report(force bool, current string) {
	if s.opts.OnProgress == nil {
		return
	}
	now := time.Now().UnixNano()
	last := s.last.Load()
	if !force && now-last < int64(progressEvery) {
		return
	}
	if !force && !s.last.CompareAndSwap(last, now) {
		return
	}
	s.last.Store(now)
	s.opts.OnProgress(Progress{
		Dirs:        s.dirs.Load(),
		Files:       s.files.Load(),
		Bytes:       s.bytes.Load(),
		CurrentPath: current,
	})
}
