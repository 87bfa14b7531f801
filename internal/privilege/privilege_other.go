//go:build !linux

package privilege

import "fmt"

// Startup always fails on non-Linux platforms: fine-grained capabilities
// are a Linux kernel feature. The documented alternative is to run the
// daemon under a dedicated least-privilege account that already holds
// the required socket-creation privilege (e.g. via setuid-root helper or
// platform ACL), and skip this state machine entirely.
func (s *State) Startup(username string) error {
	return fmt.Errorf("privilege: capability management requires Linux; run %q under a pre-provisioned least-privilege account instead", username)
}

// RestoreAfterFork is a no-op stand-in; there is nothing to restore
// because Startup never narrowed anything.
func RestoreAfterFork() error { return nil }

// Reload mirrors Startup's refusal.
func (s *State) Reload() error {
	return fmt.Errorf("privilege: capability management requires Linux")
}
