package validate_test

import (
	"testing"
	"time"

	"github.com/red-hat-storage/noobaa-core/internal/account"
	"github.com/red-hat-storage/noobaa-core/internal/bucket"
	"github.com/red-hat-storage/noobaa-core/internal/configfs"
	"github.com/red-hat-storage/noobaa-core/internal/errs"
	"github.com/red-hat-storage/noobaa-core/internal/validate"
)

func newTestCFS(t *testing.T) *configfs.ConfigFS {
	t.Helper()
	cfs := configfs.New(t.TempDir(), configfs.BackendNone)
	if err := cfs.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout: %v", err)
	}
	return cfs
}

// TestCheckDeleteAllowedForbidsWhenBucketReferencesAccount covers spec
// §4.2's cross-entity rule.
func TestCheckDeleteAllowedForbidsWhenBucketReferencesAccount(t *testing.T) {
	cfs := newTestCFS(t)
	acc := &account.Account{ID: "acc-1", Name: "owner", CreationDate: time.Now()}
	if err := cfs.CreateAccount(acc); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	b := &bucket.Bucket{ID: bucket.NewID(), Name: "b1", OwnerAccount: acc.ID, Path: "/tmp"}
	if err := cfs.CreateBucket(b); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}

	err := validate.CheckDeleteAllowed(cfs, acc.ID)
	if errs.KindOf(err) != errs.AccountDeleteForbiddenHasBuckets {
		t.Fatalf("kind = %v, want AccountDeleteForbiddenHasBuckets", err)
	}

	if err := validate.CheckDeleteAllowed(cfs, "some-other-account"); err != nil {
		t.Fatalf("unrelated account should be deletable: %v", err)
	}
}

func TestValidateBucketAddRequiredFields(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		b       *bucket.Bucket
		wantErr errs.Kind
	}{
		{name: "missing name", b: &bucket.Bucket{OwnerAccount: "a", Path: dir}, wantErr: errs.MissingIdentifier},
		{name: "missing owner", b: &bucket.Bucket{Name: "b", Path: dir}, wantErr: errs.InvalidArgument},
		{name: "missing path", b: &bucket.Bucket{Name: "b", OwnerAccount: "a"}, wantErr: errs.InvalidArgument},
		{name: "nonexistent path", b: &bucket.Bucket{Name: "b", OwnerAccount: "a", Path: "/nonexistent/xyz"}, wantErr: errs.InvalidArgument},
		{name: "valid", b: &bucket.Bucket{Name: "b", OwnerAccount: "a", Path: dir}, wantErr: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.ValidateBucketAdd(tt.b)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if errs.KindOf(err) != tt.wantErr {
				t.Fatalf("kind = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
