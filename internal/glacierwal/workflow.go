package glacierwal

import (
	"context"
	"time"

	"github.com/red-hat-storage/noobaa-core/internal/glacier"
)

// RecordMigrate appends path — an object's absolute filesystem location
// newly written with storage class GLACIER — to the migrate WAL (spec
// §4.4 "Migrate workflow").
func RecordMigrate(wal *WAL, path string) error { return wal.Append(path) }

// RecordRestore appends key's absolute filesystem location to the
// restore WAL and marks the object as restoring, via the caller-supplied
// xattr setter (kept as a parameter rather than importing the glacier
// package's concrete type so this file stays a pure orchestration
// layer). bucket/path resolution to an absolute filesystem path is the
// external S3 layer's responsibility (spec §1).
func RecordRestore(wal *WAL, absPath string) error {
	if err := glacier.SetRestoreStatus(absPath, glacier.RestoreStatus{Ongoing: true}); err != nil {
		return err
	}
	return wal.Append(absPath)
}

// ProcessMigrate drains every sealed segment of the migrate WAL: for
// each, it calls backend.Migrate and retains the segment iff any entries
// failed (spec §4.4 "Migrate workflow").
func ProcessMigrate(ctx context.Context, wal *WAL, backend glacier.Backend) error {
	return wal.ProcessInactive(func(segmentPath string) (bool, error) {
		failed, err := backend.Migrate(ctx, segmentPath)
		if err != nil {
			return false, err
		}
		return len(failed) == 0, nil
	})
}

// ProcessRestore drains every sealed segment of the restore WAL: for
// each, it calls backend.Restore; on success it clears the ongoing flag
// and stamps expiry_time = now + days for every entry in the segment
// (spec §4.4 "Restore workflow").
func ProcessRestore(ctx context.Context, wal *WAL, backend glacier.Backend, days int) error {
	return wal.ProcessInactive(func(segmentPath string) (bool, error) {
		ok, err := backend.Restore(ctx, segmentPath)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		records, err := readRecordsLocked(segmentPath)
		if err != nil {
			return false, err
		}
		expiry := time.Now().AddDate(0, 0, days)
		for _, path := range records {
			status := glacier.RestoreStatus{Ongoing: false, ExpiryTime: &expiry}
			if err := glacier.SetRestoreStatus(path, status); err != nil {
				return false, err
			}
		}
		return true, nil
	})
}
