package engine

import (
	"io/fs"
	"os"
	"time"

	"github.com/jamesainslie/verifier/pkg/verifier/algorithm"
	"github.com/jamesainslie/verifier/pkg/verifier/types"
)

// Opener resolves a path to a readable file. Stat on the returned file must
// report its current size.
type Opener interface {
	Open(name string) (fs.File, error)
}

// OSOpener opens files on the local filesystem and hints the kernel that
// they will be read sequentially.
type OSOpener struct{}

// Open implements Opener.
func (OSOpener) Open(name string) (fs.File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	adviseSequential(f)
	return f, nil
}

// Cache remembers previous outcomes so unchanged files can be skipped.
// *cache.Cache implements it.
type Cache interface {
	Fresh(path string, id algorithm.ID, digest string, size int64, modTime time.Time) bool
	Record(path string, id algorithm.ID, digest string, size int64, modTime time.Time, status types.Status) error
}
