package watcher

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/jamesainslie/verifier/pkg/verifier/algorithm"
	"github.com/jamesainslie/verifier/pkg/verifier/logging"
	"github.com/jamesainslie/verifier/pkg/verifier/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// batches collects delivered batches for assertions from the test goroutine.
type batches struct {
	mu  sync.Mutex
	got [][]string
}

func (b *batches) add(paths []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, paths)
}

func (b *batches) all() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.got)
}

func (b *batches) flat() []string {
	var out []string
	for _, batch := range b.all() {
		out = append(out, batch...)
	}
	return out
}

func startWatcher(t *testing.T, root string, opts Options) (*Watcher, *batches) {
	t.Helper()
	if opts.Debounce == 0 {
		opts.Debounce = 50 * time.Millisecond
	}
	opts.Logger = logging.Nop()
	w, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, w.Watch(root))

	ctx, cancel := context.WithCancel(context.Background())
	got := &batches{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx, got.add)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})
	return w, got
}

func TestWatchTracksSubdirectories(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	w, err := New(Options{Logger: logging.Nop()})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch(root))
	assert.Equal(t, []string{root, filepath.Join(root, "a"), sub}, w.Watched())

	_, err = os.Stat(filepath.Join(root, "missing"))
	require.Error(t, err)
	assert.Error(t, w.Watch(filepath.Join(root, "missing")))
}

func TestRunDebouncesIntoOneBatch(t *testing.T) {
	root := t.TempDir()
	_, got := startWatcher(t, root, Options{Debounce: 150 * time.Millisecond})

	target := filepath.Join(root, "data.bin")
	for i := range 5 {
		require.NoError(t, os.WriteFile(target, []byte{byte(i)}, 0o644))
	}

	require.Eventually(t, func() bool { return len(got.all()) > 0 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)

	all := got.all()
	require.Len(t, all, 1)
	assert.Equal(t, []string{target}, all[0])
}

func TestRunAppliesFilter(t *testing.T) {
	root := t.TempDir()
	wanted := filepath.Join(root, "listed.bin")
	_, got := startWatcher(t, root, Options{Filter: func(p string) bool { return p == wanted }})

	require.NoError(t, os.WriteFile(filepath.Join(root, "other.bin"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(wanted, []byte("y"), 0o644))

	require.Eventually(t, func() bool { return slices.Contains(got.flat(), wanted) }, 3*time.Second, 10*time.Millisecond)
	assert.NotContains(t, got.flat(), filepath.Join(root, "other.bin"))
}

func TestRunWatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	w, got := startWatcher(t, root, Options{})

	dir := filepath.Join(root, "fresh")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.Eventually(t, func() bool { return slices.Contains(w.Watched(), dir) }, 3*time.Second, 10*time.Millisecond)

	inner := filepath.Join(dir, "inner.bin")
	require.NoError(t, os.WriteFile(inner, []byte("z"), 0o644))
	require.Eventually(t, func() bool { return slices.Contains(got.flat(), inner) }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, os.RemoveAll(dir))
	require.Eventually(t, func() bool { return !slices.Contains(w.Watched(), dir) }, 3*time.Second, 10*time.Millisecond)
}

func TestCloseEndsRun(t *testing.T) {
	w, err := New(Options{Logger: logging.Nop()})
	require.NoError(t, err)
	require.NoError(t, w.Watch(t.TempDir()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(context.Background(), func([]string) {})
	}()

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
	assert.Empty(t, w.Watched())
}

func TestManifestFilter(t *testing.T) {
	base := t.TempDir()
	m := &manifest.Manifest{
		SourcePath: filepath.Join(base, "list.sfv"),
		Entries: []*manifest.Entry{
			{Name: "a.bin", Algorithm: algorithm.CRC32Reversed},
			{Name: `dir\b.bin`, Algorithm: algorithm.CRC32Reversed},
		},
	}
	filter := ManifestFilter(m, base)

	assert.True(t, filter(filepath.Join(base, "list.sfv")))
	assert.True(t, filter(filepath.Join(base, "a.bin")))
	assert.True(t, filter(filepath.Join(base, "dir", "b.bin")))
	assert.False(t, filter(filepath.Join(base, "c.bin")))
}
