// Package validate implements the Identity & Validation component
// (spec §4.2): pure validation of proposed account/bucket records plus
// the filesystem probes and cross-entity rules that require ConfigFS.
package validate

import (
	"os"

	"github.com/red-hat-storage/noobaa-core/internal/account"
	"github.com/red-hat-storage/noobaa-core/internal/bucket"
	"github.com/red-hat-storage/noobaa-core/internal/configfs"
	"github.com/red-hat-storage/noobaa-core/internal/errs"
	"github.com/red-hat-storage/noobaa-core/internal/identity"
)

// AccountInput is the option bag ManageAPI passes for account add/update,
// already type-checked against known keys (spec §4.2 rule 4 happens at
// the ManageAPI boundary, before this package is reached).
type AccountInput struct {
	Name                string
	Email               string
	UID                 *int
	GID                 *int
	DistinguishedName   string
	NewBucketsPath      string
	AccessKey           string
	SecretKey           string
	Regenerate          bool
	AllowBucketCreation *bool
}

// ValidateAccountAdd validates a new account and returns the resolved
// uid/gid, failing fast before any ConfigFS mutation (spec §4.5).
func ValidateAccountAdd(in AccountInput) (uid, gid int, err error) {
	if in.Name == "" {
		return 0, 0, errs.New(errs.MissingIdentifier, "name is required")
	}
	uid, gid, err = identity.Resolve(in.UID, in.GID, in.DistinguishedName)
	if err != nil {
		return 0, 0, err
	}
	if err := account.ValidateAccessKeyPair(in.AccessKey, in.SecretKey); err != nil {
		return 0, 0, err
	}
	if err := identity.ProbeReadWrite(in.NewBucketsPath, uid, gid); err != nil {
		return 0, 0, err
	}
	return uid, gid, nil
}

// ValidateAccountUpdate validates a proposed update against the existing
// record, allowing identity or path fields to be omitted (meaning
// "unchanged").
func ValidateAccountUpdate(existing *account.Account, in AccountInput) (uid, gid int, err error) {
	uidIn, gidIn, dnIn := in.UID, in.GID, in.DistinguishedName
	if uidIn == nil && gidIn == nil && dnIn == "" {
		// identity unchanged: reuse existing
		uid, gid, err = identity.Resolve(existing.NSFSAccountConfig.UID, existing.NSFSAccountConfig.GID, existing.NSFSAccountConfig.DistinguishedName)
	} else {
		uid, gid, err = identity.Resolve(uidIn, gidIn, dnIn)
	}
	if err != nil {
		return 0, 0, err
	}
	path := in.NewBucketsPath
	if path == "" {
		path = existing.NSFSAccountConfig.NewBucketsPath
	}
	if !in.Regenerate {
		if err := account.ValidateAccessKeyPair(in.AccessKey, in.SecretKey); err != nil {
			return 0, 0, err
		}
	}
	if err := identity.ProbeReadWrite(path, uid, gid); err != nil {
		return 0, 0, err
	}
	return uid, gid, nil
}

// ValidateBucketAdd checks spec §4.2's bucket rules: name, owner_account,
// and path are required, and path must exist.
func ValidateBucketAdd(b *bucket.Bucket) error {
	if b.Name == "" {
		return errs.New(errs.MissingIdentifier, "name is required")
	}
	if b.OwnerAccount == "" {
		return errs.New(errs.InvalidArgument, "owner_account is required")
	}
	if b.Path == "" {
		return errs.New(errs.InvalidArgument, "path is required")
	}
	if _, err := os.Stat(b.Path); err != nil {
		return errs.Wrap(errs.InvalidArgument, err, "bucket path "+b.Path+" does not exist")
	}
	return nil
}

// CheckAccessKeyUniqueness reports AccessKeyAlreadyExists if accessKey is
// already linked to a different account than accountName.
func CheckAccessKeyUniqueness(cfs *configfs.ConfigFS, accessKey, accountName string) error {
	existing, err := cfs.GetAccountByAccessKey(accessKey)
	if err != nil {
		if errs.KindOf(err) == errs.NotFound {
			return nil
		}
		return err
	}
	if existing.Name != accountName {
		return errs.Newf(errs.AccessKeyAlreadyExists, "access key %s is already in use by account %s", accessKey, existing.Name)
	}
	return nil
}

// CheckBucketCreationAllowed enforces owner.allow_bucket_creation: an
// account whose field is explicitly false cannot own new buckets, even
// though it may keep owning the ones it already has.
func CheckBucketCreationAllowed(owner *account.Account) error {
	if owner.AllowBucketCreation != nil && !*owner.AllowBucketCreation {
		return errs.Newf(errs.BucketCreationForbidden, "account %s is not allowed to create buckets", owner.Name)
	}
	return nil
}

// CheckDeleteAllowed enforces the cross-entity rule: an account cannot be
// deleted while any bucket references its _id (spec §4.2).
func CheckDeleteAllowed(cfs *configfs.ConfigFS, accountID string) error {
	buckets, err := cfs.ListBuckets()
	if err != nil {
		return err
	}
	for _, b := range buckets {
		if b.OwnerAccount == accountID {
			return errs.Newf(errs.AccountDeleteForbiddenHasBuckets, "account %s owns bucket %s", accountID, b.Name)
		}
	}
	return nil
}
