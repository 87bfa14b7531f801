// Package probe defines the ICMP echo probing contract used by the
// worker entry point, with a grounded implementation in
// internal/probe/icmpprobe.
package probe

import (
	"context"
	"time"
)

// Prober issues a single ICMP echo request to host and reports the
// round-trip time, or an error on timeout/unreachable.
type Prober interface {
	Ping(ctx context.Context, host string, timeout time.Duration) (time.Duration, error)
}
