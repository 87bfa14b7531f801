// Package scrubber invokes the modem-scraping subprocess and parses its
// output. The executable itself is opaque and out of scope; this
// package only defines how it is invoked and how its stdout is parsed.
package scrubber

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// FieldCount is the exact number of delimiter-separated numeric fields
// the scrubber must write to stdout: downstream Ch1..Ch8 power+SNR pairs
// (16 fields) plus upstream Ch1..Ch4 power (4 fields).
const FieldCount = 20

// Result holds the 20 parsed fields, or no fields at all (every entry
// nil) with Malformed set when the scrubber's output did not conform.
type Result struct {
	DownstreamPowerDBmV [8]*float64
	DownstreamSNRdB     [8]*float64
	UpstreamPowerDBmV   [4]*float64
	Malformed           bool
}

// Run invokes path with modemIP as its single argument, in a restricted
// environment, bounded by timeout, and parses its stdout. A scrubber that
// exits non-zero or times out returns an error; one that exits zero but
// produces output that does not parse into exactly FieldCount numeric
// fields returns Result{Malformed: true} and a nil error — malformed
// output is a per-tick recoverable condition, persisted with
// null-markers, not a tick failure.
func Run(ctx context.Context, path, modemIP string, timeout time.Duration) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, modemIP)
	cmd.Env = []string{"PATH=/usr/bin:/bin"}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("scrubber: run %q %q: %w", path, modemIP, err)
	}

	return parseFields(stdout.String()), nil
}

// parseFields splits raw on runs of whitespace/commas and maps the first
// 20 numeric tokens onto the downstream/upstream layout. Any deviation —
// wrong count, non-numeric token — yields Malformed.
func parseFields(raw string) Result {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) != FieldCount {
		return Result{Malformed: true}
	}

	values := make([]float64, FieldCount)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Result{Malformed: true}
		}
		values[i] = v
	}

	var r Result
	idx := 0
	for ch := 0; ch < 8; ch++ {
		p, s := values[idx], values[idx+1]
		r.DownstreamPowerDBmV[ch] = &p
		r.DownstreamSNRdB[ch] = &s
		idx += 2
	}
	for ch := 0; ch < 4; ch++ {
		p := values[idx]
		r.UpstreamPowerDBmV[ch] = &p
		idx++
	}
	return r
}
