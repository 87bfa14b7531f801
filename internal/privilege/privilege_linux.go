//go:build linux

package privilege

import (
	"fmt"
	"os/user"
	"strconv"
	"syscall"

	"github.com/syndtr/gocapability/capability"
	"golang.org/x/sys/unix"
)

// rawSocketCap is the single capability the daemon is ever entitled to:
// CAP_NET_RAW, required by the ICMP echo prober's raw socket.
const rawSocketCap = capability.CAP_NET_RAW

// Startup performs the permanent, one-time credential drop: set
// PR_SET_KEEPCAPS so the upcoming uid/gid change does not wipe the
// process's capability sets, reduce ancillary groups to the target
// account's primary group, setregid, setuid, then narrow the permitted/
// effective/inheritable capability sets to exactly {CAP_NET_RAW}.
//
// Ordering is grounded directly on original_source/user.c:
// user_changeto() — setgroups before setregid before setuid — and
// original_source/main.c's prctl(PR_SET_KEEPCAPS, 1L, 0, 0) call issued
// before any of the three.
func (s *State) Startup(username string) error {
	if s.done {
		return fmt.Errorf("privilege: Startup called twice")
	}
	if syscall.Geteuid() != 0 {
		return fmt.Errorf("privilege: must be invoked as root to drop to %q", username)
	}

	u, err := user.Lookup(username)
	if err != nil {
		return fmt.Errorf("privilege: lookup user %q: %w", username, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("privilege: parse uid: %w", err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("privilege: parse gid: %w", err)
	}

	if err := unix.Prctl(unix.PR_SET_KEEPCAPS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("privilege: PR_SET_KEEPCAPS: %w", err)
	}

	if err := syscall.Setgroups([]int{gid}); err != nil {
		return fmt.Errorf("privilege: setgroups: %w", err)
	}
	if err := syscall.Setregid(gid, gid); err != nil {
		return fmt.Errorf("privilege: setregid: %w", err)
	}
	if err := syscall.Setuid(uid); err != nil {
		return fmt.Errorf("privilege: setuid: %w", err)
	}

	if err := setCapabilities(rawSocketCap); err != nil {
		return fmt.Errorf("privilege: narrow capability set: %w", err)
	}

	// A plain execve (no setuid-root file, no ambient bit) hands the
	// child only what the kernel can derive from the file's own
	// capabilities — an empty set for icmond's worker binary. Raising
	// CAP_NET_RAW into the ambient set is what actually survives the
	// worker/ancillary re-exec in internal/worker: the kernel adds the
	// ambient set back into the new image's permitted and effective sets
	// as long as the capability is still permitted and inheritable at
	// raise time, which setCapabilities above just arranged.
	if err := unix.Prctl(unix.PR_CAP_AMBIENT, unix.PR_CAP_AMBIENT_RAISE, uintptr(rawSocketCap), 0, 0); err != nil {
		return fmt.Errorf("privilege: raise CAP_NET_RAW into ambient set: %w", err)
	}

	s.done = true
	s.logger.Info("privilege: permanently dropped to unprivileged account",
		"user", username, "uid", uid, "gid", gid)
	return nil
}

// RestoreAfterFork is called in the re-exec'd worker/ancillary child,
// before it does anything that needs CAP_NET_RAW. Startup's
// PR_CAP_AMBIENT_RAISE means the kernel already folded CAP_NET_RAW back
// into this process's permitted and effective sets across the execve —
// this is a verification, not a restore. If the capability is not even
// Permitted at this point (ambient raise skipped, or running under a
// GOOS/kernel that cleared it anyway), that is a programming defect, not
// a runtime condition — the caller should treat a non-nil error here as
// fatal and exit immediately.
func RestoreAfterFork() error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return fmt.Errorf("privilege: load process capabilities: %w", err)
	}
	if err := caps.Load(); err != nil {
		return fmt.Errorf("privilege: load process capabilities: %w", err)
	}
	if !caps.Get(capability.PERMITTED, rawSocketCap) {
		return fmt.Errorf("privilege: CAP_NET_RAW not permitted post-fork (programming defect)")
	}
	caps.Set(capability.EFFECTIVE, rawSocketCap)
	if err := caps.Apply(capability.CAPS); err != nil {
		return fmt.Errorf("privilege: restore effective CAP_NET_RAW: %w", err)
	}
	return nil
}

// setCapabilities narrows the process's permitted/effective/inheritable
// sets to exactly the given capability, dropping everything else.
func setCapabilities(cap capability.Cap) error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return err
	}
	if err := caps.Load(); err != nil {
		return err
	}
	caps.Clear(capability.CAPS)
	caps.Set(capability.PERMITTED|capability.EFFECTIVE|capability.INHERITABLE, cap)
	return caps.Apply(capability.CAPS)
}

// Reload is the third phase transition: it can never re-elevate, since
// the permanent drop in Startup is irreversible by design (setuid(2)'s
// documented behavior once RUID, EUID and SUID are all non-root). A
// reload that needs administrator-only resources must fail cleanly
// rather than attempt any credential change here.
func (s *State) Reload() error {
	if !s.done {
		return fmt.Errorf("privilege: Reload called before Startup")
	}
	return nil
}
