// Package privilege implements the three-phase credential/capability
// state machine: a one-time permanent uid/gid drop at startup, restoring
// exactly CAP_NET_RAW's effective flag after each fork (a credential
// change clears it), and a reload phase that can never re-elevate.
//
// Capability management is only meaningful on Linux; other platforms get
// a State whose methods return a clear error — capability handling falls
// back to "run under a dedicated least-privilege account" where
// fine-grained capabilities do not exist.
package privilege

import "log/slog"

// State is the supervisor's privilege/capability machinery. The zero
// value is not usable; construct with New.
type State struct {
	logger *slog.Logger
	done   bool // Startup has completed; set once and never cleared
}

// New constructs a State bound to logger (nil is replaced with a no-op
// logger).
func New(logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &State{logger: logger}
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
