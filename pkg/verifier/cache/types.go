package cache

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/jamesainslie/verifier/pkg/verifier/algorithm"
	"github.com/jamesainslie/verifier/pkg/verifier/types"
)

// Version is incremented when the record encoding changes. Records written
// with another version are treated as missing.
const Version = 1

// KeySeparator separates the file path from the algorithm token in keys.
const KeySeparator = '\x00'

// Record is the outcome of the last verification of one file with one
// algorithm.
type Record struct {
	Version    int
	Digest     string // uppercase hex
	Size       int64
	ModTime    int64 // UnixNano
	Status     types.Status
	VerifiedAt time.Time
}

// Matches reports whether r describes a file with the given digest, size
// and modification time.
func (r *Record) Matches(digest string, size int64, modTime time.Time) bool {
	return r.Digest == digest && r.Size == size && r.ModTime == modTime.UnixNano()
}

// Encode serializes the record with gob.
func (r *Record) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes gob data into the record.
func (r *Record) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(r)
}

// MakeKey builds the key <path>\x00<token>.
func MakeKey(path string, id algorithm.ID) []byte {
	tok, err := algorithm.Token(id)
	if err != nil {
		tok = id.String()
	}
	return []byte(path + string(KeySeparator) + tok)
}

// ParseKey splits a key into its path and algorithm token.
func ParseKey(key []byte) (path, token string) {
	idx := bytes.IndexByte(key, KeySeparator)
	if idx == -1 {
		return string(key), ""
	}
	return string(key[:idx]), string(key[idx+1:])
}
