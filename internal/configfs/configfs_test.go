package configfs_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/red-hat-storage/noobaa-core/internal/account"
	"github.com/red-hat-storage/noobaa-core/internal/bucket"
	"github.com/red-hat-storage/noobaa-core/internal/configfs"
	"github.com/red-hat-storage/noobaa-core/internal/errs"
)

func newTestCFS(t *testing.T) *configfs.ConfigFS {
	t.Helper()
	cfs := configfs.New(t.TempDir(), configfs.BackendNone)
	if err := cfs.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout: %v", err)
	}
	return cfs
}

func testAccount(name, accessKey string) *account.Account {
	uid, gid := 1001, 1001
	return &account.Account{
		ID:           account.NewID(),
		Name:         name,
		CreationDate: time.Now().UTC(),
		AccessKeys:   []account.AccessKey{{AccessKey: accessKey, SecretKey: "s3cr3t"}},
		NSFSAccountConfig: account.NSFSConfig{
			UID: &uid, GID: &gid, NewBucketsPath: "/tmp",
		},
	}
}

func TestCreateAccountAndAccessKeySymlinkInvariant(t *testing.T) {
	cfs := newTestCFS(t)
	a := testAccount("alice", "AAAAAAAAAAAAAAAAAAAA")

	if err := cfs.CreateAccount(a); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := cfs.LinkAccessKey(a.AccessKeys[0].AccessKey, a.Name); err != nil {
		t.Fatalf("LinkAccessKey: %v", err)
	}

	got, err := cfs.GetAccountByAccessKey(a.AccessKeys[0].AccessKey)
	if err != nil {
		t.Fatalf("GetAccountByAccessKey: %v", err)
	}
	if got.Name != a.Name {
		t.Fatalf("resolved account name = %q, want %q", got.Name, a.Name)
	}
}

func TestCreateAccountAlreadyExists(t *testing.T) {
	cfs := newTestCFS(t)
	a := testAccount("bob", "BBBBBBBBBBBBBBBBBBBB")
	if err := cfs.CreateAccount(a); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := cfs.CreateAccount(a); errs.KindOf(err) != errs.AlreadyExists {
		t.Fatalf("second CreateAccount kind = %v, want AlreadyExists", err)
	}
}

func TestLinkAccessKeyConflict(t *testing.T) {
	cfs := newTestCFS(t)
	a1 := testAccount("carol", "CCCCCCCCCCCCCCCCCCCC")
	a2 := testAccount("dave", "DDDDDDDDDDDDDDDDDDDD")
	if err := cfs.CreateAccount(a1); err != nil {
		t.Fatalf("create a1: %v", err)
	}
	if err := cfs.CreateAccount(a2); err != nil {
		t.Fatalf("create a2: %v", err)
	}
	if err := cfs.LinkAccessKey("SHARED00000000000000", a1.Name); err != nil {
		t.Fatalf("link to a1: %v", err)
	}
	err := cfs.LinkAccessKey("SHARED00000000000000", a2.Name)
	if errs.KindOf(err) != errs.AccessKeyAlreadyExists {
		t.Fatalf("kind = %v, want AccessKeyAlreadyExists", err)
	}
	// idempotent re-link to the same account succeeds
	if err := cfs.LinkAccessKey("SHARED00000000000000", a1.Name); err != nil {
		t.Fatalf("idempotent re-link: %v", err)
	}
}

// TestDeleteAccountRoundTrip covers spec §8's "add(A); delete(A) leaves
// the directory in its initial state" round-trip property.
func TestDeleteAccountRoundTrip(t *testing.T) {
	cfs := newTestCFS(t)
	a := testAccount("erin", "EEEEEEEEEEEEEEEEEEEE")
	if err := cfs.CreateAccount(a); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := cfs.LinkAccessKey(a.AccessKeys[0].AccessKey, a.Name); err != nil {
		t.Fatalf("LinkAccessKey: %v", err)
	}
	if err := cfs.DeleteAccount(a.Name); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	if _, err := cfs.GetAccountByAccessKey(a.AccessKeys[0].AccessKey); errs.KindOf(err) != errs.NotFound {
		t.Fatalf("access key symlink should be gone, got err %v", err)
	}
	names, err := cfs.ListAccounts()
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected empty account list after delete, got %d", len(names))
	}
	// no orphan symlink left on disk
	entries, _ := os.ReadDir(filepath.Join(cfs.Root, configfs.AccessKeysDir))
	if len(entries) != 0 {
		t.Fatalf("expected no leftover symlinks, found %d", len(entries))
	}
}

func TestBucketCRUD(t *testing.T) {
	cfs := newTestCFS(t)
	b := &bucket.Bucket{ID: bucket.NewID(), Name: "mybucket", OwnerAccount: "acc1", Path: "/tmp", Versioning: bucket.VersioningDisabled}
	if err := cfs.CreateBucket(b); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	got := &bucket.Bucket{}
	if err := cfs.ReadBucket("mybucket", got); err != nil {
		t.Fatalf("ReadBucket: %v", err)
	}
	if got.OwnerAccount != "acc1" {
		t.Fatalf("owner_account = %q, want acc1", got.OwnerAccount)
	}
	if err := cfs.DeleteBucket("mybucket"); err != nil {
		t.Fatalf("DeleteBucket: %v", err)
	}
	if err := cfs.ReadBucket("mybucket", got); errs.KindOf(err) != errs.NotFound {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

func TestSystemConfigRoundTrip(t *testing.T) {
	cfs := newTestCFS(t)
	if cfs.SystemConfigExists() {
		t.Fatalf("system.json should not exist yet")
	}
	type raw map[string]any
	if err := cfs.WriteSystemConfig(raw{"h1": raw{"current_version": "5.18.0"}}); err != nil {
		t.Fatalf("WriteSystemConfig: %v", err)
	}
	if !cfs.SystemConfigExists() {
		t.Fatalf("system.json should exist after write")
	}
	var out raw
	if err := cfs.ReadSystemConfig(&out); err != nil {
		t.Fatalf("ReadSystemConfig: %v", err)
	}
}
