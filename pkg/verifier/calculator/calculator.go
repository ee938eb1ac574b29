// Package calculator computes several digests over one input in a single pass.
package calculator

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"slices"
	"strings"

	"github.com/jamesainslie/verifier/pkg/verifier/algorithm"
	"github.com/jamesainslie/verifier/pkg/verifier/types"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// DefaultBufferSize is the block size used when streaming.
const DefaultBufferSize = 4096

// ErrOutOfRange is returned when ComputeRange is given bounds outside the buffer.
var ErrOutOfRange = errors.New("range outside buffer")

// textEncoder converts text input to single bytes. Runes outside
// Windows-1252 are replaced rather than rejected.
func textEncoder() *encoding.Encoder {
	return encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
}

// Calculator drives a set of hashers over the same input.
// It is not safe for concurrent use.
type Calculator struct {
	registry   *algorithm.Registry
	order      []algorithm.ID
	hashers    map[algorithm.ID]hash.Hash
	digests    map[algorithm.ID][]byte
	bufferSize int
	processed  int64
}

// New creates a Calculator that obtains hashers from reg.
// A nil reg uses algorithm.Default.
func New(reg *algorithm.Registry) *Calculator {
	if reg == nil {
		reg = algorithm.Default
	}
	return &Calculator{
		registry:   reg,
		hashers:    make(map[algorithm.ID]hash.Hash),
		digests:    make(map[algorithm.ID][]byte),
		bufferSize: DefaultBufferSize,
	}
}

// Add activates an algorithm. Adding one that is already active does nothing.
func (c *Calculator) Add(id algorithm.ID) error {
	if _, ok := c.hashers[id]; ok {
		return nil
	}
	h, err := c.registry.New(id)
	if err != nil {
		return err
	}
	c.hashers[id] = h
	c.order = append(c.order, id)
	return nil
}

// Remove deactivates an algorithm and discards its digest.
func (c *Calculator) Remove(id algorithm.ID) {
	if _, ok := c.hashers[id]; !ok {
		return
	}
	delete(c.hashers, id)
	delete(c.digests, id)
	c.order = slices.DeleteFunc(c.order, func(x algorithm.ID) bool { return x == id })
}

// Algorithms returns the active algorithms in the order they were added.
func (c *Calculator) Algorithms() []algorithm.ID {
	return slices.Clone(c.order)
}

// SetBufferSize sets the block size used by ComputeReader.
func (c *Calculator) SetBufferSize(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: buffer size must be positive, got %d", types.ErrInvalidConfiguration, n)
	}
	c.bufferSize = n
	return nil
}

// BufferSize returns the block size used by ComputeReader.
func (c *Calculator) BufferSize() int {
	return c.bufferSize
}

// Processed returns the number of bytes consumed by the last compute call.
func (c *Calculator) Processed() int64 {
	return c.processed
}

// ComputeBytes hashes b with every active algorithm.
func (c *Calculator) ComputeBytes(b []byte) {
	c.reset()
	c.final(b)
}

// ComputeRange hashes b[offset:offset+count] with every active algorithm.
func (c *Calculator) ComputeRange(b []byte, offset, count int) error {
	if offset < 0 || count < 0 || offset > len(b) || count > len(b)-offset {
		return fmt.Errorf("%w: offset %d count %d length %d", ErrOutOfRange, offset, count, len(b))
	}
	c.ComputeBytes(b[offset : offset+count])
	return nil
}

// ComputeText hashes s after encoding it to single bytes.
func (c *Calculator) ComputeText(s string) error {
	b, err := textEncoder().Bytes([]byte(s))
	if err != nil {
		return fmt.Errorf("encode text: %w", err)
	}
	c.ComputeBytes(b)
	return nil
}

// ComputeReader streams r through every active algorithm in fixed-size blocks.
// Full blocks are fed incrementally; the final short or empty block finalizes
// every hasher, so all of them see the same bytes exactly once.
func (c *Calculator) ComputeReader(ctx context.Context, r io.Reader) error {
	c.reset()
	buf := make([]byte, c.bufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := io.ReadFull(r, buf)
		switch {
		case err == nil:
			c.feed(buf)
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			c.final(buf[:n])
			return nil
		default:
			return err
		}
	}
}

// Digest returns the digest produced for id by the last compute call.
func (c *Calculator) Digest(id algorithm.ID) ([]byte, bool) {
	d, ok := c.digests[id]
	return d, ok
}

// Hex returns the uppercase hex digest for id, or "" if none was computed.
func (c *Calculator) Hex(id algorithm.ID) string {
	d, ok := c.digests[id]
	if !ok {
		return ""
	}
	return strings.ToUpper(hex.EncodeToString(d))
}

func (c *Calculator) reset() {
	c.processed = 0
	clear(c.digests)
	for _, h := range c.hashers {
		h.Reset()
	}
}

func (c *Calculator) feed(b []byte) {
	c.processed += int64(len(b))
	for _, id := range c.order {
		_, _ = c.hashers[id].Write(b)
	}
}

func (c *Calculator) final(b []byte) {
	c.feed(b)
	for _, id := range c.order {
		c.digests[id] = c.hashers[id].Sum(nil)
	}
}
