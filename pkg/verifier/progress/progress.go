// Package progress provides a reader that reports how much of a source of
// known length has been consumed.
package progress

import (
	"context"
	"fmt"
	"io"

	"github.com/jamesainslie/verifier/pkg/verifier/types"
)

// DefaultInterval is the default notification granularity in percent.
const DefaultInterval = 5

// Update is delivered each time the percentage read advances by at least
// the configured interval.
type Update struct {
	// Percent is the integer percentage of the source consumed, 0 to 100.
	Percent int

	// Position is the number of bytes consumed so far.
	Position int64
}

// Reader wraps an io.Reader of known length and reports progress as it is read.
// Every Read first checks its context, so a cancelled context stops a
// consumer such as io.Copy at the next block boundary.
type Reader struct {
	ctx      context.Context
	r        io.Reader
	total    int64
	interval int
	notify   func(Update)

	pos          int64
	current      int
	lastNotified int
}

// NewReader creates a Reader over r, which is expected to yield total bytes.
// interval must be between 1 and 100. notify may be nil.
func NewReader(ctx context.Context, r io.Reader, total int64, interval int, notify func(Update)) (*Reader, error) {
	if interval < 1 || interval > 100 {
		return nil, fmt.Errorf("%w: notify interval %d outside 1..100", types.ErrInvalidConfiguration, interval)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Reader{
		ctx:      ctx,
		r:        r,
		total:    total,
		interval: interval,
		notify:   notify,
	}, nil
}

// Read implements io.Reader.
func (p *Reader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}

	n, err := p.r.Read(b)
	if n > 0 || err == io.EOF {
		p.pos += int64(n)
		p.update()
	}
	return n, err
}

func (p *Reader) update() {
	p.current = p.percent()
	if p.current-p.lastNotified < p.interval {
		return
	}
	p.lastNotified = p.current
	if p.notify != nil {
		p.notify(Update{Percent: p.current, Position: p.pos})
	}
}

func (p *Reader) percent() int {
	if p.total <= 0 {
		return 100
	}
	pct := p.pos * 100 / p.total
	if pct > 100 {
		return 100
	}
	return int(pct)
}

// Percent returns the percentage consumed so far.
func (p *Reader) Percent() int {
	return p.current
}

// Position returns the number of bytes consumed so far.
func (p *Reader) Position() int64 {
	return p.pos
}

// Total returns the expected length of the source.
func (p *Reader) Total() int64 {
	return p.total
}
