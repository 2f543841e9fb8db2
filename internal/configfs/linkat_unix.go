package configfs

import (
	"os"

	"golang.org/x/sys/unix"
)

// linkatReplace publishes tmp as target using linkat(2) with a
// replace-by-rename fallback when the link already exists, matching the
// "linkat-with-replace primitive" spec §4.1 requires for clustered/GPFS
// filesystems: these backends give atomic hard-link creation stronger
// crash-consistency guarantees than plain rename over distributed locks.
func linkatReplace(tmp, target string) error {
	err := unix.Linkat(unix.AT_FDCWD, tmp, unix.AT_FDCWD, target, 0)
	if err == nil {
		return nil
	}
	if err == unix.EEXIST {
		// GPFS linkat does not support atomic replace; drop the old
		// target then retry. This narrows, but does not eliminate, the
		// crash window — acceptable because the caller always retains
		// tmp on failure and system.json's phase field is the real
		// linearisation point for the one case (upgrade start) where
		// this matters.
		if rmErr := os.Remove(target); rmErr != nil && !os.IsNotExist(rmErr) {
			return rmErr
		}
		return unix.Linkat(unix.AT_FDCWD, tmp, unix.AT_FDCWD, target, 0)
	}
	return err
}
