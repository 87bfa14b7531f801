// Package pidfile implements the exclusive advisory pidfile lock,
// grounded on original_source/pidfile.c's open-then-lockf sequence but
// using github.com/gofrs/flock (found in the retrieval pack's
// dagu-org-dagu manifest) in place of a raw lockf(2) call, since flock
// gives a portable TryLock that does not block.
package pidfile

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

// Handle is a held pidfile lock. Must be released with Unlock before
// process exit.
type Handle struct {
	path string
	lock *flock.Flock
}

// Lock creates (if absent) and exclusively locks the pidfile at path,
// writing the current process's decimal pid followed by a newline, mode
// 0600. This must be called by the daemon process itself after its
// final fork — file locks are not inherited across fork in the required
// way.
func Lock(path string) (*Handle, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("pidfile: lock %q: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("pidfile: %q is already locked by another instance", path)
	}

	if err := os.Chmod(path, 0o600); err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("pidfile: chmod %q: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("pidfile: open %q for write: %w", path, err)
	}
	_, writeErr := fmt.Fprintf(f, "%d\n", os.Getpid())
	closeErr := f.Close()
	if writeErr != nil {
		lock.Unlock()
		return nil, fmt.Errorf("pidfile: write pid to %q: %w", path, writeErr)
	}
	if closeErr != nil {
		lock.Unlock()
		return nil, fmt.Errorf("pidfile: close %q: %w", path, closeErr)
	}

	return &Handle{path: path, lock: lock}, nil
}

// Unlock releases the lock and removes the pidfile. No checks are made
// beyond logging by the caller — shutdown proceeds regardless, per
// original_source/pidfile.c's pidfile_unlock().
func (h *Handle) Unlock() error {
	if err := h.lock.Unlock(); err != nil {
		return fmt.Errorf("pidfile: unlock %q: %w", h.path, err)
	}
	return os.Remove(h.path)
}
