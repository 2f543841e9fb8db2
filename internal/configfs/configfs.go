// Package configfs implements the ConfigFS component (spec §4.1): atomic
// CRUD over JSON config files on a POSIX directory, with a symlink
// secondary index mapping access keys to accounts.
package configfs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/red-hat-storage/noobaa-core/internal/account"
	"github.com/red-hat-storage/noobaa-core/internal/bucket"
	"github.com/red-hat-storage/noobaa-core/internal/cos"
	"github.com/red-hat-storage/noobaa-core/internal/errs"
	"github.com/red-hat-storage/noobaa-core/internal/jsp"
	"github.com/red-hat-storage/noobaa-core/internal/nlog"
)

const (
	AccountsDir   = "accounts"
	BucketsDir    = "buckets"
	AccessKeysDir = "access_keys"
	SystemFile    = "system.json"

	jsonExt    = ".json"
	symlinkExt = ".symlink"
)

// Backend selects the publish primitive used for the atomic write
// contract (spec §4.1).
type Backend string

const (
	BackendNone Backend = "none"
	BackendGPFS Backend = "GPFS"
)

// ConfigFS is the root of the on-disk config directory.
type ConfigFS struct {
	Root    string
	Backend Backend
}

func New(root string, backend Backend) *ConfigFS {
	if backend == "" {
		backend = BackendNone
	}
	return &ConfigFS{Root: root, Backend: backend}
}

func (c *ConfigFS) accountsDir() string   { return filepath.Join(c.Root, AccountsDir) }
func (c *ConfigFS) bucketsDir() string    { return filepath.Join(c.Root, BucketsDir) }
func (c *ConfigFS) accessKeysDir() string { return filepath.Join(c.Root, AccessKeysDir) }
func (c *ConfigFS) systemFile() string    { return filepath.Join(c.Root, SystemFile) }

// EnsureLayout creates the root and its subdirectories if missing.
func (c *ConfigFS) EnsureLayout() error {
	for _, d := range []string{c.Root, c.accountsDir(), c.bucketsDir(), c.accessKeysDir()} {
		if err := cos.CreateDir(d); err != nil {
			return errs.Wrap(errs.IO, err, "create config directory "+d)
		}
	}
	return nil
}

// replacer adapts Backend into a jsp.Replacer for GPFS-style deployments.
type replacer struct{ fs *ConfigFS }

func (r replacer) ReplaceInto(tmp, target string) error {
	if r.fs.Backend != BackendGPFS {
		return cos.Rename(tmp, target)
	}
	if err := linkatReplace(tmp, target); err != nil {
		return errs.Wrap(errs.IO, err, "gpfs linkat-replace "+target)
	}
	return os.Remove(tmp)
}

//
// generic file primitives (operate on a raw filename inside dir)
//

// CreateFile writes a new record at dir/name.json, failing with
// AlreadyExists if the target is already present.
func (c *ConfigFS) CreateFile(dir, name string, v any) error {
	target := filepath.Join(dir, name+jsonExt)
	if _, err := os.Stat(target); err == nil {
		return errs.Newf(errs.AlreadyExists, "%s already exists", target)
	} else if !os.IsNotExist(err) {
		return errs.Wrap(errs.IO, err, "stat "+target)
	}
	if err := cos.CreateDir(dir); err != nil {
		return errs.Wrap(errs.IO, err, "create dir "+dir)
	}
	if err := jsp.Save(target, v, replacer{c}); err != nil {
		return errs.Wrap(errs.IO, err, "create "+target)
	}
	return nil
}

// UpdateFile overwrites an existing record at dir/name.json, failing with
// NotFound if the target does not exist.
func (c *ConfigFS) UpdateFile(dir, name string, v any) error {
	target := filepath.Join(dir, name+jsonExt)
	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return errs.Newf(errs.NotFound, "%s does not exist", target)
		}
		return errs.Wrap(errs.IO, err, "stat "+target)
	}
	if err := jsp.Save(target, v, replacer{c}); err != nil {
		return errs.Wrap(errs.IO, err, "update "+target)
	}
	return nil
}

// DeleteFile removes dir/name.json; idempotent.
func (c *ConfigFS) DeleteFile(dir, name string) error {
	if err := cos.RemoveFile(filepath.Join(dir, name+jsonExt)); err != nil {
		return errs.Wrap(errs.IO, err, "delete "+name)
	}
	return nil
}

// ReadFile parses dir/name.json into v.
func (c *ConfigFS) ReadFile(dir, name string, v any) error {
	target := filepath.Join(dir, name+jsonExt)
	if err := jsp.Load(target, v); err != nil {
		if os.IsNotExist(err) {
			return errs.Newf(errs.NotFound, "%s does not exist", target)
		}
		return errs.Wrap(errs.Malformed, err, "parse "+target)
	}
	return nil
}

// listNames enumerates the base names (without .json) of regular files
// under dir, tolerating concurrent mutation of the directory.
func (c *ConfigFS) listNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.IO, err, "readdir "+dir)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), jsonExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), jsonExt))
	}
	return names, nil
}

//
// accounts
//

func (c *ConfigFS) CreateAccount(a *account.Account) error {
	return c.CreateFile(c.accountsDir(), a.Name, a)
}

func (c *ConfigFS) UpdateAccount(a *account.Account) error {
	return c.UpdateFile(c.accountsDir(), a.Name, a)
}

// DeleteAccount removes the account's access-key symlinks before removing
// its JSON file, per spec §4.1 invariant (iii).
func (c *ConfigFS) DeleteAccount(name string) error {
	a := &account.Account{}
	err := c.ReadAccount(name, a)
	if err == nil {
		for _, k := range a.AccessKeys {
			if uerr := c.UnlinkAccessKey(k.AccessKey); uerr != nil {
				nlog.Warningf("delete account %s: unlink access key %s: %v", name, k.AccessKey, uerr)
			}
		}
	} else if errs.KindOf(err) != errs.NotFound {
		return err
	}
	return c.DeleteFile(c.accountsDir(), name)
}

func (c *ConfigFS) ReadAccount(name string, out *account.Account) error {
	return c.ReadFile(c.accountsDir(), name, out)
}

// ListAccounts parses every accounts/*.json entry, skipping (and logging)
// any that fail to parse or vanish mid-iteration.
func (c *ConfigFS) ListAccounts() ([]*account.Account, error) {
	names, err := c.listNames(c.accountsDir())
	if err != nil {
		return nil, err
	}
	out := make([]*account.Account, 0, len(names))
	for _, n := range names {
		a := &account.Account{}
		if err := c.ReadAccount(n, a); err != nil {
			nlog.Warningf("list accounts: skip %s: %v", n, err)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// GetAccountByID scans accounts/*.json for the one whose _id matches,
// since bucket.owner_account stores the account's _id rather than name.
func (c *ConfigFS) GetAccountByID(id string) (*account.Account, error) {
	all, err := c.ListAccounts()
	if err != nil {
		return nil, err
	}
	for _, a := range all {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, errs.Newf(errs.NotFound, "no account with id %s", id)
}

//
// buckets
//

func (c *ConfigFS) CreateBucket(b *bucket.Bucket) error {
	return c.CreateFile(c.bucketsDir(), b.Name, b)
}

func (c *ConfigFS) UpdateBucket(b *bucket.Bucket) error {
	return c.UpdateFile(c.bucketsDir(), b.Name, b)
}

func (c *ConfigFS) DeleteBucket(name string) error {
	return c.DeleteFile(c.bucketsDir(), name)
}

func (c *ConfigFS) ReadBucket(name string, out *bucket.Bucket) error {
	return c.ReadFile(c.bucketsDir(), name, out)
}

func (c *ConfigFS) ListBuckets() ([]*bucket.Bucket, error) {
	names, err := c.listNames(c.bucketsDir())
	if err != nil {
		return nil, err
	}
	out := make([]*bucket.Bucket, 0, len(names))
	for _, n := range names {
		b := &bucket.Bucket{}
		if err := c.ReadBucket(n, b); err != nil {
			nlog.Warningf("list buckets: skip %s: %v", n, err)
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

//
// access-key secondary index
//

func (c *ConfigFS) accountJSONPath(name string) string {
	return filepath.Join(c.accountsDir(), name+jsonExt)
}

func (c *ConfigFS) symlinkPath(accessKey string) string {
	return filepath.Join(c.accessKeysDir(), accessKey+symlinkExt)
}

// LinkAccessKey creates the access_keys/<key>.symlink -> ../accounts/<name>.json
// secondary index entry. symlink(2) is inherently EEXIST-safe (spec §9
// "Symlink-as-index"), giving cross-process uniqueness for free.
func (c *ConfigFS) LinkAccessKey(accessKey, accountName string) error {
	if err := cos.CreateDir(c.accessKeysDir()); err != nil {
		return errs.Wrap(errs.IO, err, "create access_keys dir")
	}
	link := c.symlinkPath(accessKey)
	rel, err := filepath.Rel(c.accessKeysDir(), c.accountJSONPath(accountName))
	if err != nil {
		return errs.Wrap(errs.IO, err, "relative symlink path")
	}
	if err := os.Symlink(rel, link); err != nil {
		if os.IsExist(err) {
			existing, rerr := os.Readlink(link)
			if rerr == nil && existing == rel {
				return nil // idempotent: same target
			}
			return errs.Newf(errs.AccessKeyAlreadyExists, "access key %s is already linked to a different account", accessKey)
		}
		return errs.Wrap(errs.IO, err, "symlink "+link)
	}
	return nil
}

// UnlinkAccessKey removes the symlink; idempotent.
func (c *ConfigFS) UnlinkAccessKey(accessKey string) error {
	if err := cos.RemoveFile(c.symlinkPath(accessKey)); err != nil {
		return errs.Wrap(errs.IO, err, "unlink access key "+accessKey)
	}
	return nil
}

// GetAccountByAccessKey follows the symlink then reads the target
// account JSON.
func (c *ConfigFS) GetAccountByAccessKey(accessKey string) (*account.Account, error) {
	link := c.symlinkPath(accessKey)
	target, err := os.Readlink(link)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Newf(errs.NotFound, "access key %s not found", accessKey)
		}
		return nil, errs.Wrap(errs.IO, err, "readlink "+link)
	}
	abs := target
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(c.accessKeysDir(), target)
	}
	a := &account.Account{}
	if err := jsp.Load(abs, a); err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.NotFound, err, "access key "+accessKey+" resolves to missing account file")
		}
		return nil, errs.Wrap(errs.Malformed, err, "parse account for access key "+accessKey)
	}
	return a, nil
}

//
// system.json
//

// ReadSystemConfig parses system.json into out. Returns NotFound if the
// file does not exist.
func (c *ConfigFS) ReadSystemConfig(out any) error {
	if err := jsp.Load(c.systemFile(), out); err != nil {
		if os.IsNotExist(err) {
			return errs.New(errs.NotFound, "system.json does not exist")
		}
		return errs.Wrap(errs.Malformed, err, "parse system.json")
	}
	return nil
}

// WriteSystemConfig atomically rewrites system.json (the upgrade
// controller's mutual-exclusion barrier, spec §5).
func (c *ConfigFS) WriteSystemConfig(v any) error {
	if err := jsp.Save(c.systemFile(), v, replacer{c}); err != nil {
		return errs.Wrap(errs.IO, err, "write system.json")
	}
	return nil
}

// SystemConfigExists reports whether system.json is present.
func (c *ConfigFS) SystemConfigExists() bool {
	_, err := os.Stat(c.systemFile())
	return err == nil
}
