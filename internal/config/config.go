// Package config implements the configuration snapshot, file grammar,
// CLI overlay and validation. The live snapshot is immutable once
// built; internal/reconfig is the only package that swaps it for a new
// one.
package config

import (
	"fmt"
	"net"
	"time"
)

// StagingMode is the "ramdisk" key's tri-state value.
type StagingMode int

const (
	StagingOff StagingMode = iota
	StagingOn
	StagingAuto
)

// Snapshot is the immutable configuration in effect at any instant. It
// is produced by Load and replaced wholesale by internal/reconfig on a
// successful reload — never mutated in place.
type Snapshot struct {
	Daemon  bool
	Ramdisk StagingMode

	Interval time.Duration
	LogLevel string
	Database string

	InetPingHosts   []string
	InetPingTimeout time.Duration

	ModemPowerControl bool
	ModemPowerUpDelay time.Duration
	ModemIP           net.IP
	ModemPingTimeout  time.Duration
	ModemScrubber     string
	ModemScrubberTimeout time.Duration

	ScheduleDST    bool
	ScheduleString string
}

// Defaults returns the compiled-in default snapshot, the starting point
// before the config file and command line are overlaid.
func Defaults() *Snapshot {
	return &Snapshot{
		Daemon:               true,
		Ramdisk:              StagingAuto,
		Interval:             30 * time.Second,
		LogLevel:             "info",
		Database:             "/var/lib/icmond/icmond.db",
		InetPingTimeout:      1000 * time.Millisecond,
		ModemPowerUpDelay:    0,
		ModemPingTimeout:     1000 * time.Millisecond,
		ModemScrubberTimeout: 2000 * time.Millisecond,
		ScheduleDST:          false,
	}
}

// Clone returns a shallow copy suitable as the starting point for an
// overlay.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.InetPingHosts = append([]string(nil), s.InetPingHosts...)
	return &c
}

// Validate checks value ranges and required fields. It accumulates
// every violation rather than stopping at the first, matching the
// schedule parser's accumulate-don't-abort
// policy, and returns a single joined error when any were found.
func (s *Snapshot) Validate() error {
	var problems []string

	if s.Interval < 5*time.Second || s.Interval > 3600*time.Second {
		problems = append(problems, fmt.Sprintf("interval %s out of range [5s, 3600s]", s.Interval))
	}
	switch s.LogLevel {
	case "error", "info", "debug":
	default:
		problems = append(problems, fmt.Sprintf("loglevel %q not one of error/info/debug", s.LogLevel))
	}
	if s.Database == "" {
		problems = append(problems, "database path must not be empty")
	}
	if s.InetPingTimeout < 100*time.Millisecond || s.InetPingTimeout > 3000*time.Millisecond {
		problems = append(problems, fmt.Sprintf("inet pingtimeout %s out of range [100ms, 3000ms]", s.InetPingTimeout))
	}
	if s.ModemPowerUpDelay < 0 || s.ModemPowerUpDelay > 300*time.Second {
		problems = append(problems, fmt.Sprintf("modem powerupdelay %s out of range [0s, 300s]", s.ModemPowerUpDelay))
	}
	if s.ModemIP != nil && s.ModemIP.To4() == nil {
		problems = append(problems, fmt.Sprintf("modem ip %q is not an IPv4 literal", s.ModemIP))
	}
	if s.ModemPingTimeout < 100*time.Millisecond || s.ModemPingTimeout > 3000*time.Millisecond {
		problems = append(problems, fmt.Sprintf("modem pingtimeout %s out of range [100ms, 3000ms]", s.ModemPingTimeout))
	}
	if s.ModemScrubberTimeout < 200*time.Millisecond || s.ModemScrubberTimeout > 5000*time.Millisecond {
		problems = append(problems, fmt.Sprintf("modem scrubbertimeout %s out of range [200ms, 5000ms]", s.ModemScrubberTimeout))
	}
	if s.ModemScrubber != "" {
		// pinghosts validation (Open Question, resolved in DESIGN.md): host
		// names are not resolved or checked here or elsewhere; only the
		// non-empty check below applies.
	}
	if len(s.InetPingHosts) == 0 {
		problems = append(problems, "inet pinghosts must name at least one host")
	}

	if len(problems) == 0 {
		return nil
	}
	err := fmt.Errorf("config: %d problem(s) found", len(problems))
	for _, p := range problems {
		err = fmt.Errorf("%w\n  - %s", err, p)
	}
	return err
}
