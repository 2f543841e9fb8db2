// Package glacierwal implements the GlacierWAL component (spec §4.4): an
// append-only log with active/inactive segment swap, an exclusive
// processor handoff, and a newline-framed record reader. Two independent
// WAL instances exist in practice — one for migrate requests, one for
// restore requests — each owning its own directory.
package glacierwal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/red-hat-storage/noobaa-core/internal/cos"
	"github.com/red-hat-storage/noobaa-core/internal/errs"
	"github.com/red-hat-storage/noobaa-core/internal/nlog"
)

const (
	activeName = "active.log"
	lockName   = ".wal.lock"
	segmentExt = ".log"
	// pipeBuf is the conservative record-size bound below which O_APPEND
	// writes from independent processes are guaranteed not to interleave
	// (spec §4.4: "bounded below PIPE_BUF").
	pipeBuf = 4096
)

// WAL is one append-only glacier request log.
type WAL struct {
	Dir string

	mu      sync.Mutex // serialises appends within this process
	genSeq  int64       // per-process tie-breaker for generation names
}

func New(dir string) *WAL { return &WAL{Dir: dir} }

func (w *WAL) activePath() string { return filepath.Join(w.Dir, activeName) }
func (w *WAL) lockPath() string   { return filepath.Join(w.Dir, lockName) }

// EnsureDir creates the WAL directory if missing.
func (w *WAL) EnsureDir() error {
	if err := cos.CreateDir(w.Dir); err != nil {
		return errs.Wrap(errs.IO, err, "create wal dir "+w.Dir)
	}
	return nil
}

// Append writes record, newline-terminated, to the active segment.
// Appends from this process are serialised by an in-process lock;
// records at or above pipeBuf additionally take the WAL's advisory file
// lock so that concurrent writers (including from other processes) never
// interleave a record larger than the atomic-write guarantee O_APPEND
// gives for free.
func (w *WAL) Append(record string) error {
	if strings.ContainsRune(record, '\n') {
		return errs.New(errs.InvalidArgument, "wal record must not contain an embedded newline")
	}
	line := record + "\n"

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.EnsureDir(); err != nil {
		return err
	}

	var fl *flock.Flock
	if len(line) >= pipeBuf {
		fl = flock.New(w.lockPath())
		if err := fl.Lock(); err != nil {
			return errs.Wrap(errs.IO, err, "lock wal for large append")
		}
		defer fl.Unlock()
	}

	f, err := os.OpenFile(w.activePath(), os.O_WRONLY|os.O_CREATE|os.O_APPEND, cos.PermRWR)
	if err != nil {
		return errs.Wrap(errs.IO, err, "open active segment")
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return errs.Wrap(errs.IO, err, "append to active segment")
	}
	return nil
}

// nextGeneration returns a monotonically increasing-enough identifier
// for a newly sealed segment: a nanosecond timestamp disambiguated by a
// per-process counter, so two swaps in the same process never collide
// even if the clock does not advance between them.
func (w *WAL) nextGeneration() string {
	n := atomic.AddInt64(&w.genSeq, 1)
	return fmt.Sprintf("%020d-%04d", time.Now().UnixNano(), n&0xffff)
}

// Swap atomically rotates the active segment to inactive (spec §4.4
// "_swap"). If the active file is empty or absent, it is a documented
// no-op (spec §9 open question (a)): never produce an empty inactive
// segment. Returns the new inactive segment's path, or "" if nothing was
// rotated.
func (w *WAL) Swap() (string, error) {
	if err := w.EnsureDir(); err != nil {
		return "", err
	}
	fl := flock.New(w.lockPath())
	if err := fl.Lock(); err != nil {
		return "", errs.Wrap(errs.IO, err, "lock wal for swap")
	}
	defer fl.Unlock()

	info, err := os.Stat(w.activePath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errs.Wrap(errs.IO, err, "stat active segment")
	}
	if info.Size() == 0 {
		return "", nil
	}

	inactive := filepath.Join(w.Dir, w.nextGeneration()+segmentExt)
	if err := cos.Rename(w.activePath(), inactive); err != nil {
		return "", errs.Wrap(errs.IO, err, "rename active segment to "+inactive)
	}
	return inactive, nil
}

// ListInactive enumerates sealed segments, oldest first.
func (w *WAL) ListInactive() ([]string, error) {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.IO, err, "readdir "+w.Dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == activeName || !strings.HasSuffix(e.Name(), segmentExt) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Join(w.Dir, n)
	}
	return out, nil
}

// ProcessFunc processes one sealed segment, returning true if it was
// fully and successfully processed (and may now be deleted) or false to
// retain it for a future pass.
type ProcessFunc func(segmentPath string) (processed bool, err error)

// ProcessInactive enumerates inactive segments and, for each, attempts
// to acquire an exclusive advisory lock; a contended lock means another
// processor already owns that segment, so this call skips it rather than
// blocking (spec §4.4, §5). The lock is released on every exit path,
// including a panic from fn, which is not recovered here — callers that
// need to survive a panicking fn should wrap it themselves.
func (w *WAL) ProcessInactive(fn ProcessFunc) error {
	segments, err := w.ListInactive()
	if err != nil {
		return err
	}
	for _, seg := range segments {
		fl := flock.New(seg)
		locked, err := fl.TryLock()
		if err != nil {
			nlog.Warningf("glacierwal: try-lock %s: %v", seg, err)
			continue
		}
		if !locked {
			continue // another processor owns this segment; skip, don't wait
		}
		func() {
			defer fl.Unlock()
			processed, ferr := fn(seg)
			if ferr != nil {
				nlog.Errorf("glacierwal: process %s: %v", seg, ferr)
				return
			}
			if processed {
				if err := cos.RemoveFile(seg); err != nil {
					nlog.Errorf("glacierwal: delete processed segment %s: %v", seg, err)
				}
			}
		}()
	}
	return nil
}

// ReadRecords opens segment in EXCLUSIVE mode (spec §4.4: advisory lock
// combined with read access) and returns every complete,
// newline-terminated record in file order. Use this for standalone reads
// (diagnostics, tests). A ProcessFunc passed to ProcessInactive already
// holds the segment's exclusive lock and must call readRecordsLocked
// instead, or this call will deadlock against its own outer lock.
func ReadRecords(segmentPath string) ([]string, error) {
	fl := flock.New(segmentPath)
	if err := fl.Lock(); err != nil {
		return nil, errs.Wrap(errs.IO, err, "lock segment for read "+segmentPath)
	}
	defer fl.Unlock()
	return readRecordsLocked(segmentPath)
}

// readRecordsLocked is ReadRecords without taking the lock itself, for
// callers (ProcessFunc implementations) that already hold it.
func readRecordsLocked(segmentPath string) ([]string, error) {
	f, err := os.Open(segmentPath)
	if err != nil {
		return nil, errs.Wrap(errs.IO, err, "open segment "+segmentPath)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errs.Wrap(errs.IO, err, "read segment "+segmentPath)
	}
	if len(data) == 0 {
		return nil, nil
	}
	trailingPartial := data[len(data)-1] != '\n'
	text := strings.TrimSuffix(string(data), "\n")
	lines := strings.Split(text, "\n")
	if trailingPartial && len(lines) > 0 {
		nlog.Warningf("glacierwal: %s: discarding partial trailing record %q", segmentPath, lines[len(lines)-1])
		lines = lines[:len(lines)-1]
	}
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l == "" {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}
