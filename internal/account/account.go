// Package account implements the Account data model and validation rules
// from spec §3 and §4.2.
package account

import (
	"crypto/rand"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/red-hat-storage/noobaa-core/internal/errs"
)

const (
	accessKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	secretKeyAlphabet = accessKeyAlphabet + "+/"
)

// randomString draws n characters from alphabet using crypto/rand,
// matching the access_key/secret_key character classes spec §4.2 rule 2
// requires.
func randomString(n int, alphabet string) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err) // crypto/rand failing is unrecoverable
	}
	out := make([]byte, n)
	for i, v := range b {
		out[i] = alphabet[int(v)%len(alphabet)]
	}
	return string(out)
}

// GenerateAccessKeyPair produces a fresh {access_key, secret_key} pair
// satisfying the regexes ValidateAccessKeyPair enforces, for the
// "generated keys" path of account add (spec §8 scenario 1).
func GenerateAccessKeyPair() AccessKey {
	return AccessKey{
		AccessKey: randomString(20, accessKeyAlphabet),
		SecretKey: randomString(40, secretKeyAlphabet),
	}
}

var (
	accessKeyRe = regexp.MustCompile(`^[A-Za-z0-9]{20}$`)
	secretKeyRe = regexp.MustCompile(`^[A-Za-z0-9+/]{40}$`)
)

// AccessKey is one {access_key, secret_key} pair.
type AccessKey struct {
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// NSFSConfig describes the filesystem identity under which this
// account's operations run, plus the directory new buckets are created
// under by default.
type NSFSConfig struct {
	UID               *int   `json:"uid,omitempty"`
	GID               *int   `json:"gid,omitempty"`
	DistinguishedName string `json:"distinguished_name,omitempty"`
	NewBucketsPath    string `json:"new_buckets_path"`
}

// Account is the on-disk shape of accounts/<name>.json (spec §6).
type Account struct {
	ID                  string      `json:"_id"`
	Name                string      `json:"name"`
	Email               string      `json:"email,omitempty"`
	CreationDate        time.Time   `json:"creation_date"`
	AccessKeys          []AccessKey `json:"access_keys"`
	NSFSAccountConfig   NSFSConfig  `json:"nsfs_account_config"`
	AllowBucketCreation *bool       `json:"allow_bucket_creation,omitempty"`
}

// NewID generates a fresh account identifier.
func NewID() string { return uuid.NewString() }

// ValidateAccessKeyPair checks the §4.2 rule 2 regexes.
func ValidateAccessKeyPair(accessKey, secretKey string) error {
	if accessKey == "" && secretKey == "" {
		return nil
	}
	if accessKey == "" || secretKey == "" {
		return errs.New(errs.InvalidArgument, "access_key and secret_key must both be supplied or both omitted")
	}
	if !accessKeyRe.MatchString(accessKey) {
		return errs.New(errs.AccountAccessKeyFlagComplexity, "access_key must match ^[A-Za-z0-9]{20}$")
	}
	if !secretKeyRe.MatchString(secretKey) {
		return errs.New(errs.AccountSecretKeyFlagComplexity, "secret_key must match ^[A-Za-z0-9+/]{40}$")
	}
	return nil
}

// HasIdentity reports whether exactly one identity form is populated, the
// invariant spec §3 requires for every Account.
func (a *Account) HasExactlyOneIdentityForm() bool {
	hasUIDGID := a.NSFSAccountConfig.UID != nil || a.NSFSAccountConfig.GID != nil
	hasDN := a.NSFSAccountConfig.DistinguishedName != ""
	return hasUIDGID != hasDN
}
