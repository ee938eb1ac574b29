// Package scanner enumerates the files under a directory so that a
// verification list can be built from them.
package scanner

import "time"

// Options configures a scan.
type Options struct {
	// Root is the directory to enumerate.
	Root string

	// Exclude contains glob patterns. A pattern matches a file or directory
	// by base name, by path relative to Root, or as a path prefix.
	Exclude []string

	// Skip lists absolute paths that are never reported, typically the list
	// being written.
	Skip []string

	// Hidden includes dot files and dot directories.
	Hidden bool

	// FollowSymlinks follows symbolic links to directories.
	FollowSymlinks bool

	// OnProgress is called periodically from walker goroutines.
	OnProgress func(Progress)
}

// File is one regular file found by a scan.
type File struct {
	// Rel is the path relative to the root, with forward slashes.
	Rel     string
	Path    string
	Size    int64
	ModTime time.Time
}

// Error records a path that could not be read.
type Error struct {
	Path  string
	Error string
}

// Progress is a snapshot of a running scan.
type Progress struct {
	Dirs        int64
	Files       int64
	Bytes       int64
	CurrentPath string
}

// Result is the outcome of a scan. Files are sorted by Rel.
type Result struct {
	Root    string
	Files   []File
	Dirs    int64
	Bytes   int64
	Errors  []Error
	Elapsed time.Duration
}
