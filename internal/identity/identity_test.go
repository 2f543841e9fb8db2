package identity_test

import (
	"os"
	"testing"

	"github.com/red-hat-storage/noobaa-core/internal/errs"
	"github.com/red-hat-storage/noobaa-core/internal/identity"
)

func TestResolveRejectsBothFormsAndNeither(t *testing.T) {
	uid := 1001
	if _, _, err := identity.Resolve(&uid, &uid, "svc"); errs.KindOf(err) != errs.InvalidArgument {
		t.Fatalf("both forms: kind = %v, want InvalidArgument", err)
	}
	if _, _, err := identity.Resolve(nil, nil, ""); errs.KindOf(err) != errs.InvalidArgument {
		t.Fatalf("neither form: kind = %v, want InvalidArgument", err)
	}
}

func TestResolveUIDGIDPassthrough(t *testing.T) {
	uid, gid := 1001, 1002
	rUID, rGID, err := identity.Resolve(&uid, &gid, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rUID != uid || rGID != gid {
		t.Fatalf("got (%d,%d), want (%d,%d)", rUID, rGID, uid, gid)
	}
}

func TestResolveDistinguishedNameUnresolvable(t *testing.T) {
	_, _, err := identity.Resolve(nil, nil, "no-such-user-xyz")
	if errs.KindOf(err) != errs.InvalidAccountDistinguishedName {
		t.Fatalf("kind = %v, want InvalidAccountDistinguishedName", err)
	}
}

// TestProbeReadWriteUnderOwnIdentity covers spec §8's "probing
// new_buckets_path under the account's identity succeeds for both read
// and write" invariant, using the running test process's own uid/gid
// (Setfsuid/Setfsgid to one's own real id needs no privilege).
func TestProbeReadWriteUnderOwnIdentity(t *testing.T) {
	dir := t.TempDir()
	if err := identity.ProbeReadWrite(dir, os.Getuid(), os.Getgid()); err != nil {
		t.Fatalf("ProbeReadWrite: %v", err)
	}
}

func TestProbeReadWriteMissingPath(t *testing.T) {
	err := identity.ProbeReadWrite("/nonexistent/path/for/test", os.Getuid(), os.Getgid())
	if errs.KindOf(err) != errs.InaccessibleAccountNewBucketsPath {
		t.Fatalf("kind = %v, want InaccessibleAccountNewBucketsPath", err)
	}
}
