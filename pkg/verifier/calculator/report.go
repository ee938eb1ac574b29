package calculator

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Result is one computed digest, ready for display.
type Result struct {
	Algorithm string `json:"algorithm" yaml:"algorithm"`
	Digest    string `json:"digest" yaml:"digest"`
}

// Results returns the digests of the last compute call in insertion order.
func (c *Calculator) Results() []Result {
	out := make([]Result, 0, len(c.order))
	for _, id := range c.order {
		if _, ok := c.digests[id]; !ok {
			continue
		}
		out = append(out, Result{Algorithm: id.String(), Digest: c.Hex(id)})
	}
	return out
}

// WriteReport writes a plain-text report: a header naming the input, one
// aligned "name: DIGEST" line per algorithm, and the elapsed time.
func (c *Calculator) WriteReport(w io.Writer, input string, elapsed time.Duration) error {
	results := c.Results()

	width := 0
	for _, r := range results {
		width = max(width, len(r.Algorithm))
	}

	var b strings.Builder
	b.WriteString("Hash Calculator Report\n")
	fmt.Fprintf(&b, "Input: %s\n", input)
	fmt.Fprintf(&b, "Size: %s\n\n", humanize.IBytes(uint64(c.processed)))
	for _, r := range results {
		fmt.Fprintf(&b, "%-*s %s\n", width+1, r.Algorithm+":", r.Digest)
	}
	fmt.Fprintf(&b, "\nCalculations completed in: %s\n", elapsed.Round(time.Millisecond))

	_, err := io.WriteString(w, b.String())
	return err
}
