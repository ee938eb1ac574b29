package engine

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // test vectors
	"encoding/hex"
	"errors"
	"hash"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jamesainslie/verifier/pkg/verifier/algorithm"
	"github.com/jamesainslie/verifier/pkg/verifier/cache"
	"github.com/jamesainslie/verifier/pkg/verifier/logging"
	"github.com/jamesainslie/verifier/pkg/verifier/manifest"
	"github.com/jamesainslie/verifier/pkg/verifier/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackingOpener serves in-memory files and counts opens and closes.
type trackingOpener struct {
	mu      sync.Mutex
	files   map[string][]byte
	opens   int
	closes  int
	openErr error
	readErr error
	onRead  func(reads int)
}

func newTrackingOpener(files map[string][]byte) *trackingOpener {
	return &trackingOpener{files: files}
}

func (o *trackingOpener) Open(name string) (fs.File, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.openErr != nil {
		return nil, o.openErr
	}
	base := filepath.Base(name)
	data, ok := o.files[base]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	o.opens++
	return &trackedFile{opener: o, name: base, r: bytes.NewReader(data), size: int64(len(data))}, nil
}

func (o *trackingOpener) counts() (opens, closes int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens, o.closes
}

type trackedFile struct {
	opener *trackingOpener
	name   string
	r      *bytes.Reader
	size   int64
	reads  int
}

func (f *trackedFile) Read(p []byte) (int, error) {
	if f.opener.readErr != nil {
		return 0, f.opener.readErr
	}
	n, err := f.r.Read(p)
	f.reads++
	if f.opener.onRead != nil {
		f.opener.onRead(f.reads)
	}
	return n, err
}

func (f *trackedFile) Close() error {
	f.opener.mu.Lock()
	defer f.opener.mu.Unlock()
	f.opener.closes++
	return nil
}

func (f *trackedFile) Stat() (fs.FileInfo, error) {
	return fileInfo{name: f.name, size: f.size}, nil
}

type fileInfo struct {
	name string
	size int64
}

func (i fileInfo) Name() string       { return i.name }
func (i fileInfo) Size() int64        { return i.size }
func (i fileInfo) Mode() fs.FileMode  { return 0o644 }
func (i fileInfo) ModTime() time.Time { return time.Unix(1700000000, 0) }
func (i fileInfo) IsDir() bool        { return false }
func (i fileInfo) Sys() any           { return nil }

// countingRegistry returns a registry whose MD5 factory counts how many
// hashers it hands out.
func countingRegistry(t *testing.T) (*algorithm.Registry, *int) {
	t.Helper()
	calls := 0
	reg := algorithm.NewRegistry()
	require.NoError(t, reg.Register(algorithm.MD5, func() hash.Hash {
		calls++
		return md5.New() //nolint:gosec // test vectors
	}))
	return reg, &calls
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // test vectors
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func sizePtr(n int) *uint64 {
	v := uint64(n)
	return &v
}

func newManifest(t *testing.T, entries ...*manifest.Entry) *manifest.Manifest {
	t.Helper()
	return &manifest.Manifest{
		Kind:       manifest.StructuredXML,
		SourcePath: filepath.Join(t.TempDir(), "list.verify"),
		Entries:    entries,
	}
}

func newEngine(t *testing.T, m *manifest.Manifest, opts Options) *Engine {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	e, err := New(m, opts)
	require.NoError(t, err)
	return e
}

func collect(t *testing.T, e *Engine) ([]Event, Completion) {
	t.Helper()
	var events []Event
	done := e.Run(context.Background(), func(ev Event) { events = append(events, ev) })
	return events, done
}

func terminal(events []Event) map[int]Event {
	out := make(map[int]Event)
	for _, ev := range events {
		if ev.Status.Terminal() {
			out[ev.Index] = ev
		}
	}
	return out
}

func TestVerifyOutcomes(t *testing.T) {
	dir := t.TempDir()
	good := []byte("good data")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.bin"), good, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.bin"), []byte("changed"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "short.bin"), []byte("abc"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiger.bin"), []byte("abc"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "nested.bin"), good, 0o644))

	m := &manifest.Manifest{
		SourcePath: filepath.Join(dir, "list.verify"),
		Entries: []*manifest.Entry{
			{Name: "good.bin", Algorithm: algorithm.MD5, Digest: strings.ToLower(md5Hex(good))},
			{Name: "bad.bin", Algorithm: algorithm.MD5, Digest: md5Hex(good)},
			{Name: "missing.bin", Algorithm: algorithm.MD5, Digest: md5Hex(good)},
			{Name: "short.bin", Algorithm: algorithm.MD5, Digest: md5Hex(good), Size: sizePtr(99)},
			{Name: "good.bin", Algorithm: algorithm.MD5, Digest: md5Hex(good), Ignore: true},
			{Name: "tiger.bin", Algorithm: algorithm.Tiger, Digest: "00"},
			{Name: `sub\nested.bin`, Algorithm: algorithm.MD5, Digest: md5Hex(good), Size: sizePtr(len(good))},
			{Name: "sub", Algorithm: algorithm.MD5, Digest: md5Hex(good)},
		},
	}

	e := newEngine(t, m, Options{})
	events, done := collect(t, e)

	require.NoError(t, done.Err)
	assert.Equal(t, types.Completed, done.State)
	assert.Equal(t, types.Completed, e.State())

	got := terminal(events)
	want := []types.Status{
		types.Good, types.Bad, types.NotFound, types.WrongSize,
		types.Ignored, types.Error, types.Good, types.Error,
	}
	require.Len(t, got, len(want))
	for i, st := range want {
		assert.Equal(t, st, got[i].Status, "entry %d (%s)", i, m.Entries[i].Name)
	}

	assert.Equal(t, md5Hex(good), got[0].Digest)
	assert.ErrorIs(t, got[2].Err, fs.ErrNotExist)
	assert.ErrorIs(t, got[5].Err, algorithm.ErrUnavailable)

	sum := done.Summary
	assert.Equal(t, 8, sum.Total)
	assert.Equal(t, 8, sum.Processed)
	assert.Equal(t, 2, sum.Good)
	assert.Equal(t, 1, sum.Bad)
	assert.Equal(t, 1, sum.NotFound)
	assert.Equal(t, 1, sum.WrongSize)
	assert.Equal(t, 1, sum.Ignored)
	assert.Equal(t, 2, sum.Errors)
	assert.Equal(t, int64(2*len(good)+len("changed")), sum.BytesHashed)

	_, open := <-e.Events()
	assert.False(t, open, "events closed after completion")
}

func TestWrongSizeNeverHashes(t *testing.T) {
	reg, calls := countingRegistry(t)
	opener := newTrackingOpener(map[string][]byte{"a.bin": []byte("12345")})
	m := newManifest(t, &manifest.Entry{Name: "a.bin", Algorithm: algorithm.MD5, Digest: md5Hex([]byte("12345")), Size: sizePtr(6)})

	events, done := collect(t, newEngine(t, m, Options{Registry: reg, Opener: opener}))

	require.NoError(t, done.Err)
	assert.Equal(t, types.WrongSize, terminal(events)[0].Status)
	assert.Zero(t, *calls)
	opens, closes := opener.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
}

func TestAbsentSizeIsNotZero(t *testing.T) {
	opener := newTrackingOpener(map[string][]byte{"empty.bin": {}, "full.bin": []byte("x")})
	m := newManifest(t,
		&manifest.Entry{Name: "empty.bin", Algorithm: algorithm.MD5, Digest: md5Hex(nil), Size: sizePtr(0)},
		&manifest.Entry{Name: "full.bin", Algorithm: algorithm.MD5, Digest: md5Hex([]byte("x"))},
	)

	events, done := collect(t, newEngine(t, m, Options{Opener: opener}))
	require.NoError(t, done.Err)
	got := terminal(events)
	assert.Equal(t, types.Good, got[0].Status)
	assert.Equal(t, types.Good, got[1].Status)
}

func TestIgnoredNeverOpens(t *testing.T) {
	opener := newTrackingOpener(map[string][]byte{"a.bin": []byte("data")})
	m := newManifest(t, &manifest.Entry{Name: "a.bin", Algorithm: algorithm.MD5, Digest: "00", Ignore: true})

	events, done := collect(t, newEngine(t, m, Options{Opener: opener}))

	require.NoError(t, done.Err)
	require.Len(t, events, 1)
	assert.Equal(t, types.Ignored, events[0].Status)
	assert.Equal(t, 100, events[0].TotalPercent)
	opens, _ := opener.counts()
	assert.Zero(t, opens)
}

func TestCancelMidFile(t *testing.T) {
	data := bytes.Repeat([]byte("z"), 64*1024)
	opener := newTrackingOpener(map[string][]byte{"big.bin": data, "next.bin": data})
	m := newManifest(t,
		&manifest.Entry{Name: "big.bin", Algorithm: algorithm.MD5, Digest: md5Hex(data)},
		&manifest.Entry{Name: "next.bin", Algorithm: algorithm.MD5, Digest: md5Hex(data)},
	)
	e := newEngine(t, m, Options{Opener: opener, BufferSize: 4096})
	opener.onRead = func(reads int) {
		if reads == 2 {
			e.Cancel()
		}
	}

	events, done := collect(t, e)

	assert.ErrorIs(t, done.Err, ErrCancelled)
	assert.Equal(t, types.Aborted, done.State)
	assert.Equal(t, types.Aborted, e.State())
	assert.Zero(t, done.Summary.Processed)

	opens, closes := opener.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, opens, closes, "no leaked handles")

	for _, ev := range events {
		assert.False(t, ev.Status.Terminal(), "no terminal status for the interrupted entry")
	}

	select {
	case c := <-e.Done():
		t.Fatalf("second completion delivered: %+v", c)
	default:
	}
}

func TestCancelledBeforeFirstEntry(t *testing.T) {
	opener := newTrackingOpener(map[string][]byte{"a.bin": []byte("a")})
	m := newManifest(t, &manifest.Entry{Name: "a.bin", Algorithm: algorithm.MD5, Digest: md5Hex([]byte("a"))})
	e := newEngine(t, m, Options{Opener: opener})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := e.Run(ctx, nil)

	assert.ErrorIs(t, done.Err, ErrCancelled)
	opens, _ := opener.counts()
	assert.Zero(t, opens)
}

func TestAggregatePercentMonotonic(t *testing.T) {
	files := map[string][]byte{
		"a.bin": bytes.Repeat([]byte("a"), 10000),
		"b.bin": {},
		"c.bin": bytes.Repeat([]byte("c"), 3333),
		"d.bin": bytes.Repeat([]byte("d"), 77),
	}
	var entries []*manifest.Entry
	for _, name := range []string{"a.bin", "b.bin", "c.bin", "d.bin", "x.bin"} {
		entries = append(entries, &manifest.Entry{Name: name, Algorithm: algorithm.MD5, Digest: md5Hex(files[name])})
	}
	m := newManifest(t, entries...)

	events, done := collect(t, newEngine(t, m, Options{Opener: newTrackingOpener(files), BufferSize: 512}))
	require.NoError(t, done.Err)
	require.NotEmpty(t, events)

	last := 0
	for i, ev := range events {
		assert.GreaterOrEqual(t, ev.TotalPercent, last, "event %d", i)
		assert.LessOrEqual(t, ev.TotalPercent, 100)
		last = ev.TotalPercent
	}
	assert.Equal(t, 100, last)
}

func TestEventsInListOrder(t *testing.T) {
	files := map[string][]byte{"a": []byte("1"), "b": []byte("2"), "c": []byte("3")}
	m := newManifest(t,
		&manifest.Entry{Name: "a", Algorithm: algorithm.MD5, Digest: md5Hex(files["a"])},
		&manifest.Entry{Name: "b", Algorithm: algorithm.MD5, Digest: md5Hex(files["b"])},
		&manifest.Entry{Name: "c", Algorithm: algorithm.MD5, Digest: md5Hex(files["c"])},
	)

	events, done := collect(t, newEngine(t, m, Options{Opener: newTrackingOpener(files)}))
	require.NoError(t, done.Err)

	idx := 0
	sawStart := false
	for _, ev := range events {
		require.GreaterOrEqual(t, ev.Index, idx)
		if ev.Index > idx {
			idx = ev.Index
			sawStart = false
		}
		if ev.Status == types.InProgress {
			sawStart = true
			continue
		}
		assert.True(t, sawStart, "entry %d reached %s without InProgress", ev.Index, ev.Status)
		assert.Equal(t, types.Good, ev.Status)
	}
	assert.Equal(t, 2, idx)
}

func TestOpenAndReadErrors(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		opener := newTrackingOpener(nil)
		opener.openErr = &fs.PathError{Op: "open", Path: "a", Err: fs.ErrPermission}
		m := newManifest(t, &manifest.Entry{Name: "a", Algorithm: algorithm.MD5, Digest: "00"})

		events, done := collect(t, newEngine(t, m, Options{Opener: opener}))
		require.NoError(t, done.Err)
		ev := terminal(events)[0]
		assert.Equal(t, types.Error, ev.Status)
		assert.ErrorIs(t, ev.Err, fs.ErrPermission)
	})

	t.Run("read", func(t *testing.T) {
		readErr := errors.New("disk on fire")
		opener := newTrackingOpener(map[string][]byte{"a": []byte("abc"), "b": []byte("b")})
		opener.readErr = readErr
		m := newManifest(t,
			&manifest.Entry{Name: "a", Algorithm: algorithm.MD5, Digest: "00"},
			&manifest.Entry{Name: "b", Algorithm: algorithm.MD5, Digest: "00"},
		)

		events, done := collect(t, newEngine(t, m, Options{Opener: opener}))
		require.NoError(t, done.Err, "hashing errors do not abort the run")
		got := terminal(events)
		assert.Equal(t, types.Error, got[0].Status)
		assert.ErrorIs(t, got[0].Err, readErr)
		assert.Equal(t, types.Error, got[1].Status)
		opens, closes := opener.counts()
		assert.Equal(t, 2, opens)
		assert.Equal(t, 2, closes)
	})
}

func TestBaseDirFailureAborts(t *testing.T) {
	m := &manifest.Manifest{
		SourcePath: filepath.Join(t.TempDir(), "gone", "list.sfv"),
		Entries:    []*manifest.Entry{{Name: "a", Algorithm: algorithm.MD5, Digest: "00"}},
	}
	events, done := collect(t, newEngine(t, m, Options{}))

	assert.ErrorIs(t, done.Err, ErrBaseDir)
	assert.Equal(t, types.Aborted, done.State)
	assert.Empty(t, events)

	_, done = collect(t, newEngine(t, &manifest.Manifest{}, Options{}))
	assert.ErrorIs(t, done.Err, ErrBaseDir)
}

func TestBaseDirOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	m := &manifest.Manifest{Entries: []*manifest.Entry{{Name: "a.txt", Algorithm: algorithm.MD5, Digest: md5Hex([]byte("a"))}}}

	events, done := collect(t, newEngine(t, m, Options{BaseDir: dir}))
	require.NoError(t, done.Err)
	assert.Equal(t, types.Good, terminal(events)[0].Status)
}

func TestStartOnlyOnce(t *testing.T) {
	opener := newTrackingOpener(map[string][]byte{"a": []byte("a")})
	m := newManifest(t, &manifest.Entry{Name: "a", Algorithm: algorithm.MD5, Digest: md5Hex([]byte("a"))})
	e := newEngine(t, m, Options{Opener: opener})
	assert.Equal(t, types.Idle, e.State())

	assert.True(t, e.Start(context.Background()))
	assert.False(t, e.Start(context.Background()))

	done := e.Run(context.Background(), nil)
	require.NoError(t, done.Err)
	assert.False(t, e.Start(context.Background()), "finished engines do not restart")
	opens, _ := opener.counts()
	assert.Equal(t, 1, opens)
}

func TestRunAfterFinishReturnsCompletion(t *testing.T) {
	opener := newTrackingOpener(map[string][]byte{"a": []byte("a")})
	m := newManifest(t, &manifest.Entry{Name: "a", Algorithm: algorithm.MD5, Digest: md5Hex([]byte("a"))})
	e := newEngine(t, m, Options{Opener: opener})

	first := e.Run(context.Background(), nil)
	require.NoError(t, first.Err)

	again := make(chan Completion, 1)
	go func() { again <- e.Run(context.Background(), nil) }()

	select {
	case c := <-again:
		assert.Equal(t, first, c)
		assert.Equal(t, 1, c.Summary.Good)
	case <-time.After(2 * time.Second):
		t.Fatal("Run on a finished engine did not return")
	}
	opens, _ := opener.counts()
	assert.Equal(t, 1, opens)
}

func TestEmptyManifestCompletes(t *testing.T) {
	events, done := collect(t, newEngine(t, newManifest(t), Options{}))
	require.NoError(t, done.Err)
	assert.Empty(t, events)
	assert.Zero(t, done.Summary.Total)
}

func TestNewValidatesOptions(t *testing.T) {
	m := newManifest(t)
	for _, opts := range []Options{
		{NotifyInterval: -1},
		{NotifyInterval: 101},
		{BufferSize: -5},
	} {
		_, err := New(m, opts)
		assert.ErrorIs(t, err, types.ErrInvalidConfiguration, "%+v", opts)
	}
	_, err := New(nil, Options{})
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
}

func TestNotifyInterval(t *testing.T) {
	data := bytes.Repeat([]byte("n"), 1000)
	m := newManifest(t, &manifest.Entry{Name: "n", Algorithm: algorithm.MD5, Digest: md5Hex(data)})

	count := func(interval int) int {
		events, done := collect(t, newEngine(t, m, Options{
			Opener:         newTrackingOpener(map[string][]byte{"n": data}),
			BufferSize:     10,
			NotifyInterval: interval,
		}))
		require.NoError(t, done.Err)
		n := 0
		for _, ev := range events {
			if ev.Status == types.InProgress && ev.FilePercent > 0 {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 20, count(0))
	assert.Equal(t, 4, count(25))
}

func TestCacheSkipsUnchangedGoodFiles(t *testing.T) {
	c, err := cache.OpenInMemory()
	require.NoError(t, err)
	defer c.Close()

	data := []byte("cached")
	reg, calls := countingRegistry(t)
	m := newManifest(t,
		&manifest.Entry{Name: "ok", Algorithm: algorithm.MD5, Digest: md5Hex(data)},
		&manifest.Entry{Name: "bad", Algorithm: algorithm.MD5, Digest: md5Hex(data)},
	)
	files := map[string][]byte{"ok": data, "bad": []byte("other")}

	run := func() map[int]Event {
		events, done := collect(t, newEngine(t, m, Options{Registry: reg, Opener: newTrackingOpener(files), Cache: c}))
		require.NoError(t, done.Err)
		return terminal(events)
	}

	first := run()
	assert.Equal(t, types.Good, first[0].Status)
	assert.Equal(t, types.Bad, first[1].Status)
	assert.Equal(t, 2, *calls)

	second := run()
	assert.Equal(t, types.Good, second[0].Status)
	assert.Equal(t, md5Hex(data), second[0].Digest)
	assert.Equal(t, types.Bad, second[1].Status)
	assert.Equal(t, 3, *calls, "only the bad file is hashed again")
}

func TestResolve(t *testing.T) {
	base := filepath.Join(string(filepath.Separator)+"data", "set")
	tests := []struct {
		name string
		want string
	}{
		{"a.bin", filepath.Join(base, "a.bin")},
		{"dir/a.bin", filepath.Join(base, "dir", "a.bin")},
		{`dir\a.bin`, filepath.Join(base, "dir", "a.bin")},
		{"../up.bin", filepath.Join(base, "..", "up.bin")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolve(base, tt.name), tt.name)
	}

	abs := filepath.Join(string(filepath.Separator)+"elsewhere", "f.bin")
	assert.Equal(t, abs, resolve(base, abs))
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		processed, file, total, want int
	}{
		{0, 0, 3, 0},
		{0, 50, 3, 16},
		{1, 0, 3, 33},
		{1, 100, 3, 66},
		{2, 0, 3, 66},
		{3, 0, 3, 100},
		{0, 0, 0, 100},
		{0, 99, 1, 99},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, aggregate(tt.processed, tt.file, tt.total), "%+v", tt)
	}
}
