package glacier

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/red-hat-storage/noobaa-core/internal/nlog"
)

// ExpirationScan walks root and invokes backend.ProcessExpired for every
// regular file whose restore_status.expiry_time has passed (spec §4.4
// "Expiration scan"). Idempotent: a processed object's xattr is expected
// to be cleared by ProcessExpired's own implementation, so a repeated
// scan before that happens simply retries.
func ExpirationScan(ctx context.Context, backend Backend, root string, now time.Time) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			nlog.Warningf("glacier: expiration scan: %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		st, err := GetRestoreStatus(path)
		if err != nil {
			nlog.Warningf("glacier: expiration scan: read status %s: %v", path, err)
			return nil
		}
		if st == nil || st.Ongoing || st.ExpiryTime == nil {
			return nil
		}
		if st.ExpiryTime.After(now) {
			return nil
		}
		if err := backend.ProcessExpired(ctx, path); err != nil {
			nlog.Errorf("glacier: process expired %s: %v", path, err)
		}
		return nil
	})
}
