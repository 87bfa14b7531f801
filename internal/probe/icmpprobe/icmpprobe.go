// Package icmpprobe implements internal/probe.Prober against raw ICMP
// echo requests, using golang.org/x/net/icmp and golang.org/x/net/ipv4 —
// grounded on the x/net usage found in the retrieval pack
// (malbeclabs-doublezero, nmxmxh-inos_v1). Opening the raw socket
// requires CAP_NET_RAW, the one capability internal/privilege preserves
// across the supervisor's credential drop.
package icmpprobe

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// Prober issues ICMPv4 echo requests, opening a fresh raw socket for each
// Ping.
type Prober struct {
	id int
}

// New constructs a Prober. id is used as the ICMP echo identifier field,
// distinguishing this process's requests from any other concurrent
// pinger on the same host.
func New() *Prober {
	return &Prober{id: os.Getpid() & 0xffff}
}

// Ping sends one ICMPv4 echo request to host and returns the round-trip
// time. A non-nil error on timeout, DNS failure, or any other I/O
// failure; it does not distinguish timeout from other errors itself — a
// reply that does not arrive before the deadline yields an error wrapping
// os.ErrDeadlineExceeded, which callers can test with errors.Is.
func (p *Prober) Ping(ctx context.Context, host string, timeout time.Duration) (time.Duration, error) {
	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return 0, fmt.Errorf("icmpprobe: listen (requires CAP_NET_RAW): %w", err)
	}
	defer conn.Close()

	dst, err := net.ResolveIPAddr("ip4", host)
	if err != nil {
		return 0, fmt.Errorf("icmpprobe: resolve %q: %w", host, err)
	}

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   p.id,
			Seq:  1,
			Data: []byte("icmond"),
		},
	}
	wire, err := msg.Marshal(nil)
	if err != nil {
		return 0, fmt.Errorf("icmpprobe: marshal echo request: %w", err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(timeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return 0, fmt.Errorf("icmpprobe: set deadline: %w", err)
	}

	start := time.Now()
	if _, err := conn.WriteTo(wire, dst); err != nil {
		return 0, fmt.Errorf("icmpprobe: write to %q: %w", host, err)
	}

	reply := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(reply)
		if err != nil {
			return 0, fmt.Errorf("icmpprobe: read reply from %q: %w", host, err)
		}
		if peer.String() != dst.String() {
			continue
		}
		parsed, err := icmp.ParseMessage(1, reply[:n])
		if err != nil {
			return 0, fmt.Errorf("icmpprobe: parse reply: %w", err)
		}
		if parsed.Type != ipv4.ICMPTypeEchoReply {
			continue
		}
		return time.Since(start), nil
	}
}
