package glacier

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sys/unix"

	"github.com/red-hat-storage/noobaa-core/internal/errs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// restoreStatusXattr is the extended attribute restore status is stored
// under, matching the teacher's fs/xattr_unix.go "user.ais.*" naming
// convention for ais-managed metadata.
const restoreStatusXattr = "user.nsfs.restore_status"

// RestoreStatus is the xattr payload spec §4.4 describes:
// {ongoing: true} while a restore request is in flight, then
// {ongoing: false, expiry_time: ...} once the backend has restored the
// object.
type RestoreStatus struct {
	Ongoing    bool       `json:"ongoing"`
	ExpiryTime *time.Time `json:"expiry_time,omitempty"`
}

// SetRestoreStatus marshals and sets the xattr on path.
func SetRestoreStatus(path string, st RestoreStatus) error {
	b, err := json.Marshal(st)
	if err != nil {
		return errs.Wrap(errs.IO, err, "marshal restore_status")
	}
	if err := unix.Setxattr(path, restoreStatusXattr, b, 0); err != nil {
		return errs.Wrap(errs.IO, err, "set restore_status xattr on "+path)
	}
	return nil
}

// GetRestoreStatus reads and unmarshals the xattr from path. Returns
// (nil, nil) if the attribute is not set.
func GetRestoreStatus(path string) (*RestoreStatus, error) {
	buf := make([]byte, 4096)
	n, err := unix.Getxattr(path, restoreStatusXattr, buf)
	if err != nil {
		if err == unix.ENODATA {
			return nil, nil
		}
		return nil, errs.Wrap(errs.IO, err, "get restore_status xattr on "+path)
	}
	st := &RestoreStatus{}
	if err := json.Unmarshal(buf[:n], st); err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "parse restore_status xattr on "+path)
	}
	return st, nil
}

// ClearRestoreStatus removes the xattr; tolerates it already being
// absent.
func ClearRestoreStatus(path string) error {
	err := unix.Removexattr(path, restoreStatusXattr)
	if err != nil && err != unix.ENODATA {
		return errs.Wrap(errs.IO, err, "remove restore_status xattr on "+path)
	}
	return nil
}
