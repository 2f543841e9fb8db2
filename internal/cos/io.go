// Package cos provides the low-level, POSIX-filesystem primitives shared
// by every component that persists state: directory/file creation, the
// atomic rename write contract, and a tie-breaker generator for temp file
// names. Grounded on the teacher's cmn/cos/io.go and cmn/shortid.go.
package cos

import (
	"os"
	"path/filepath"
	ratomic "sync/atomic"

	"github.com/teris-io/shortid"
)

const (
	PermRWR      os.FileMode = 0o644
	configDirMode os.FileMode = 0o755
)

// CreateDir creates dir (and parents) if it does not already exist.
func CreateDir(dir string) error {
	return os.MkdirAll(dir, configDirMode)
}

// CreateFile creates a new write-only, create-or-truncate file, creating
// its parent directory first if necessary.
func CreateFile(fqn string) (*os.File, error) {
	if err := CreateDir(filepath.Dir(fqn)); err != nil {
		return nil, err
	}
	return os.OpenFile(fqn, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, PermRWR)
}

// Rename renames src to dst, creating dst's parent directory on the slow
// path if it doesn't exist yet.
func Rename(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !os.IsNotExist(err) {
		return err
	}
	if err := CreateDir(filepath.Dir(dst)); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

// RemoveFile removes path; returns nil if the path does not exist
// (delete_config_file and unlink_access_key are idempotent per spec §4.1).
func RemoveFile(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// FlushClose fsyncs then closes file. The caller is responsible for
// propagating the error — the atomic write contract (spec §4.1) requires
// every write be fsynced before the rename that publishes it.
func FlushClose(file *os.File) error {
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// tie is a process-wide monotonic counter mixed into GenTie so that two
// temp files created in the same nanosecond never collide.
var tie int64

const tieAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenTie returns a short, cheap-to-generate, collision-resistant suffix
// for temp file names, mixing a per-process counter (teacher style) with
// a shortid-generated component so that suffixes stay unique even across
// process restarts sharing the same filesystem.
func GenTie() string {
	n := ratomic.AddInt64(&tie, 1)
	b0 := tieAlphabet[n&0x3f]
	b1 := tieAlphabet[-n&0x3f]
	b2 := tieAlphabet[(n>>2)&0x3f]
	sid, err := shortid.Generate()
	if err != nil {
		return string([]byte{b0, b1, b2})
	}
	return string([]byte{b0, b1, b2}) + "-" + sid
}
