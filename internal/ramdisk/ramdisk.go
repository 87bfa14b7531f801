// Package ramdisk mounts and unmounts the RAM-backed staging filesystem
// used when the persistent store is too slow. A real, minimal
// implementation so the staging path is exercised end to end rather
// than left as a stub.
package ramdisk

import (
	"fmt"
	"os"
	"os/exec"
)

// Mount creates path if needed and mounts a tmpfs of sizeMB there. Linux-
// specific, matching the original daemon's environment.
func Mount(path string, sizeMB int) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return fmt.Errorf("ramdisk: mkdir %q: %w", path, err)
	}
	cmd := exec.Command("mount", "-t", "tmpfs", "-o", fmt.Sprintf("size=%dm", sizeMB), "tmpfs", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ramdisk: mount %q: %w: %s", path, err, out)
	}
	return nil
}

// Unmount releases the tmpfs mounted at path.
func Unmount(path string) error {
	cmd := exec.Command("umount", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ramdisk: unmount %q: %w: %s", path, err, out)
	}
	return nil
}
