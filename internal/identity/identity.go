// Package identity resolves account filesystem identities and probes
// filesystem accessibility under a scoped UID/GID, never mutating the
// process-wide identity (spec §9 "Identity juggling"). Scoped acquisition
// runs on a dedicated, OS-thread-locked goroutine using Linux's per-thread
// Setfsuid/Setfsgid, restoring the thread's identity on every exit path
// before releasing it back to the runtime's thread pool.
package identity

import (
	"fmt"
	"os"
	"os/user"
	"runtime"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/red-hat-storage/noobaa-core/internal/errs"
)

// Identity is the resolved filesystem identity of an account: either an
// explicit uid/gid pair or one resolved from a distinguished name.
type Identity struct {
	UID *int
	GID *int
	DN  string
}

// Resolve validates that exactly one identity form is set (spec §4.2.1)
// and, for a distinguished name, resolves it to numeric uid/gid via the
// host's user database.
func Resolve(uid, gid *int, dn string) (resolvedUID, resolvedGID int, err error) {
	hasUIDGID := uid != nil || gid != nil
	hasDN := dn != ""
	switch {
	case hasUIDGID && hasDN:
		return 0, 0, errs.New(errs.InvalidArgument, "exactly one of uid/gid or distinguished_name must be supplied, not both")
	case !hasUIDGID && !hasDN:
		return 0, 0, errs.New(errs.InvalidArgument, "exactly one of uid/gid or distinguished_name must be supplied")
	case hasDN:
		u, err := user.Lookup(dn)
		if err != nil {
			return 0, 0, errs.Wrap(errs.InvalidAccountDistinguishedName, err, fmt.Sprintf("cannot resolve distinguished name %q", dn))
		}
		ruid, err1 := strconv.Atoi(u.Uid)
		rgid, err2 := strconv.Atoi(u.Gid)
		if err1 != nil || err2 != nil {
			return 0, 0, errs.Newf(errs.InvalidAccountDistinguishedName, "distinguished name %q resolved to non-numeric uid/gid", dn)
		}
		return ruid, rgid, nil
	default:
		if uid == nil || gid == nil {
			return 0, 0, errs.New(errs.InvalidArgument, "both uid and gid must be supplied together")
		}
		return *uid, *gid, nil
	}
}

// Scope acquires uid/gid as the filesystem identity of the current
// goroutine's OS thread for the duration of fn, then restores the
// thread's original fsuid/fsgid before returning — even if fn panics.
// The thread is never returned to the scheduler's free pool mid-scope
// (runtime.LockOSThread) so no other goroutine observes the borrowed
// identity.
func Scope(uid, gid int, fn func() error) (err error) {
	done := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		origGID := unix.Setfsgid(gid)
		origUID := unix.Setfsuid(uid)
		defer func() {
			unix.Setfsuid(origUID)
			unix.Setfsgid(origGID)
		}()

		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic during scoped identity probe: %v", r)
			}
		}()
		done <- fn()
	}()
	return <-done
}

// ProbeReadWrite verifies that path exists, is a directory, and is both
// readable and writable under uid/gid — spec §4.2 rule 3
// (new_buckets_path accessibility).
func ProbeReadWrite(path string, uid, gid int) error {
	if path == "" {
		return errs.New(errs.InaccessibleAccountNewBucketsPath, "new_buckets_path must not be empty")
	}
	return Scope(uid, gid, func() error {
		info, err := os.Stat(path)
		if err != nil {
			return errs.Wrap(errs.InaccessibleAccountNewBucketsPath, err, fmt.Sprintf("new_buckets_path %q does not exist", path))
		}
		if !info.IsDir() {
			return errs.Newf(errs.InaccessibleAccountNewBucketsPath, "new_buckets_path %q is not a directory", path)
		}
		if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
			return errs.Wrap(errs.InaccessibleAccountNewBucketsPath, err, fmt.Sprintf("new_buckets_path %q is not readable/writable by uid=%d gid=%d", path, uid, gid))
		}
		// probe write with a throwaway file, since Access() checks the
		// real identity's permission bits, not ACLs/quota edge cases.
		probe := path + "/.nsfs-probe-" + strconv.Itoa(os.Getpid())
		f, err := os.OpenFile(probe, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return errs.Wrap(errs.InaccessibleAccountNewBucketsPath, err, fmt.Sprintf("new_buckets_path %q is not writable", path))
		}
		f.Close()
		os.Remove(probe)
		return nil
	})
}
