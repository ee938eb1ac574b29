package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func rels(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Rel
	}
	return out
}

func TestScanSortedRelativePaths(t *testing.T) {
	root := buildTree(t, map[string]string{
		"b.txt":         "bb",
		"a.txt":         "a",
		"dir/c.bin":     "ccc",
		"dir/sub/d.bin": "dddd",
	})

	res, err := New(Options{Root: root}).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "b.txt", "dir/c.bin", "dir/sub/d.bin"}, rels(res.Files))
	assert.Equal(t, int64(10), res.Bytes)
	assert.Equal(t, int64(2), res.Dirs)
	assert.Empty(t, res.Errors)
	assert.Equal(t, filepath.Join(root, "dir", "c.bin"), res.Files[2].Path)
	assert.Equal(t, int64(3), res.Files[2].Size)
}

func TestScanExcludesAndHidden(t *testing.T) {
	root := buildTree(t, map[string]string{
		"keep.txt":        "k",
		"skip.tmp":        "s",
		"cache/x.bin":     "x",
		".git/config":     "g",
		".hidden":         "h",
		"nested/log.tmp":  "l",
		"nested/keep.bin": "k",
	})

	res, err := New(Options{Root: root, Exclude: []string{"*.tmp", "cache"}}).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.txt", "nested/keep.bin"}, rels(res.Files))

	res, err = New(Options{Root: root, Hidden: true, Exclude: []string{"*.tmp", "cache/"}}).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{".git/config", ".hidden", "keep.txt", "nested/keep.bin"}, rels(res.Files))
}

func TestScanSkipsListedPaths(t *testing.T) {
	root := buildTree(t, map[string]string{"a.txt": "a", "out.sfv": "; list"})

	res, err := New(Options{Root: root, Skip: []string{filepath.Join(root, "out.sfv")}}).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, rels(res.Files))
}

func TestScanRootErrors(t *testing.T) {
	root := buildTree(t, map[string]string{"file.txt": "x"})

	_, err := New(Options{Root: filepath.Join(root, "file.txt")}).Scan(context.Background())
	assert.ErrorIs(t, err, ErrNotDirectory)

	_, err = New(Options{Root: filepath.Join(root, "missing")}).Scan(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestScanCancelled(t *testing.T) {
	root := buildTree(t, map[string]string{"a": "a", "b/c": "c"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{Root: root}).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanReportsProgress(t *testing.T) {
	root := buildTree(t, map[string]string{"a": "a", "b": "b"})
	var calls atomic.Int64
	var last atomic.Value

	_, err := New(Options{Root: root, OnProgress: func(p Progress) {
		calls.Add(1)
		last.Store(p)
	}}).Scan(context.Background())
	require.NoError(t, err)

	assert.Positive(t, calls.Load())
	final, ok := last.Load().(Progress)
	require.True(t, ok)
	assert.Equal(t, int64(2), final.Files)
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern, rel string
		want         bool
	}{
		{"*.tmp", "a.tmp", true},
		{"*.tmp", "dir/a.tmp", true},
		{"dir", "dir/a.tmp", true},
		{"dir/", "dir/sub/a", true},
		{"dir", "dirty/a", false},
		{"dir/*.bin", "dir/x.bin", true},
		{"dir/*.bin", "other/x.bin", false},
		{"", "a", false},
		{"[", "a", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Match(tt.pattern, tt.rel), "%q vs %q", tt.pattern, tt.rel)
	}
}
