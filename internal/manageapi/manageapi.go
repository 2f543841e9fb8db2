// Package manageapi implements the ManageAPI component (spec §4.5): a
// single (type, action, options) dispatcher producing a structured
// response or error, used by the CLI and by test harnesses alike.
package manageapi

import (
	"context"
	"sort"
	"time"

	"github.com/red-hat-storage/noobaa-core/internal/account"
	"github.com/red-hat-storage/noobaa-core/internal/bucket"
	"github.com/red-hat-storage/noobaa-core/internal/cache"
	"github.com/red-hat-storage/noobaa-core/internal/configfs"
	"github.com/red-hat-storage/noobaa-core/internal/errs"
	"github.com/red-hat-storage/noobaa-core/internal/metrics"
	"github.com/red-hat-storage/noobaa-core/internal/upgrade"
	"github.com/red-hat-storage/noobaa-core/internal/validate"
)

// Request is one dispatch call's input.
type Request struct {
	Type    string // "account", "bucket", "upgrade"
	Action  string
	Options map[string]any
}

// ResponseBody is the success shape.
type ResponseBody struct {
	Code  string `json:"code"`
	Reply any    `json:"reply,omitempty"`
}

// ErrorBody is the failure shape.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// Result is ManageAPI's output: exactly one of Response or Error is set,
// never both (spec §4.5).
type Result struct {
	Response *ResponseBody `json:"response,omitempty"`
	Error    *ErrorBody    `json:"error,omitempty"`
}

// Dispatcher wires ConfigFS, the upgrade controller and the supporting
// cache/metrics collaborators into one ManageAPI surface.
type Dispatcher struct {
	CFS        *configfs.ConfigFS
	Upgrade    *upgrade.Controller
	AccountIDs *cache.AccountIDCache // optional
	Metrics    *metrics.Registry     // optional
}

// Dispatch runs one (type, action, options) call and always returns a
// non-nil Result — errors are recovered here, never propagated to the
// caller as a Go error, matching spec §4.5's "never both" contract.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) *Result {
	start := time.Now()
	res := d.dispatch(ctx, req)

	outcome := metrics.Ok
	if res.Error != nil {
		outcome = metrics.Error
	}
	d.Metrics.Observe(req.Type, req.Action, outcome, time.Since(start))
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) *Result {
	var (
		reply any
		err   error
	)
	switch req.Type {
	case "account":
		reply, err = d.dispatchAccount(req.Action, req.Options)
	case "bucket":
		reply, err = d.dispatchBucket(req.Action, req.Options)
	case "upgrade":
		reply, err = d.dispatchUpgrade(ctx, req.Action, req.Options)
	default:
		err = errs.Newf(errs.InvalidArgument, "unknown type %q", req.Type)
	}
	if err != nil {
		return &Result{Error: toErrorBody(err)}
	}
	return &Result{Response: &ResponseBody{Code: "OK", Reply: reply}}
}

func toErrorBody(err error) *ErrorBody {
	e, ok := errs.As(err)
	if !ok {
		return &ErrorBody{Code: string(errs.IO), Message: err.Error()}
	}
	return &ErrorBody{Code: string(e.Kind()), Message: e.Message(), Cause: e.Cause()}
}

//
// account
//

var accountAddSchema = schema{
	"name": kindString, "email": kindString, "uid": kindInt, "gid": kindInt,
	"user": kindString, "new_buckets_path": kindString,
	"access_key": kindString, "secret_key": kindString,
	"allow_bucket_creation": kindBool,
}
var accountUpdateSchema = schema{
	"name": kindString, "email": kindString, "uid": kindInt, "gid": kindInt,
	"user": kindString, "new_buckets_path": kindString,
	"access_key": kindString, "secret_key": kindString, "regenerate": kindBool,
	"allow_bucket_creation": kindBool,
}
var accountListSchema = schema{
	"uid": kindInt, "gid": kindInt, "user": kindString,
	"access_key": kindString, "name": kindString, "wide": kindBool,
}
var nameOnlySchema = schema{"name": kindString}

func toAccountInput(opts map[string]any) validate.AccountInput {
	return validate.AccountInput{
		Name:                optString(opts, "name"),
		Email:               optString(opts, "email"),
		UID:                 optInt(opts, "uid"),
		GID:                 optInt(opts, "gid"),
		DistinguishedName:   optString(opts, "user"),
		NewBucketsPath:      optString(opts, "new_buckets_path"),
		AccessKey:           optString(opts, "access_key"),
		SecretKey:           optString(opts, "secret_key"),
		Regenerate:          optBool(opts, "regenerate"),
		AllowBucketCreation: optBoolPtr(opts, "allow_bucket_creation"),
	}
}

func (d *Dispatcher) dispatchAccount(action string, opts map[string]any) (any, error) {
	switch action {
	case "add":
		if err := accountAddSchema.validate(opts); err != nil {
			return nil, err
		}
		in := toAccountInput(opts)
		uid, gid, err := validate.ValidateAccountAdd(in)
		if err != nil {
			return nil, err
		}
		keys := account.AccessKey{AccessKey: in.AccessKey, SecretKey: in.SecretKey}
		if keys.AccessKey == "" {
			keys = account.GenerateAccessKeyPair()
		}
		if err := validate.CheckAccessKeyUniqueness(d.CFS, keys.AccessKey, in.Name); err != nil {
			return nil, err
		}
		cfg := account.NSFSConfig{
			DistinguishedName: in.DistinguishedName,
			NewBucketsPath:    in.NewBucketsPath,
		}
		if in.DistinguishedName == "" {
			cfg.UID, cfg.GID = &uid, &gid
		}
		a := &account.Account{
			ID:                  account.NewID(),
			Name:                in.Name,
			Email:               in.Email,
			CreationDate:        time.Now().UTC(),
			AccessKeys:          []account.AccessKey{keys},
			NSFSAccountConfig:   cfg,
			AllowBucketCreation: in.AllowBucketCreation,
		}
		if err := d.CFS.CreateAccount(a); err != nil {
			return nil, err
		}
		if err := d.CFS.LinkAccessKey(keys.AccessKey, in.Name); err != nil {
			return nil, err
		}
		d.cachePut(a)
		return a, nil

	case "update":
		if err := accountUpdateSchema.validate(opts); err != nil {
			return nil, err
		}
		name := optString(opts, "name")
		if name == "" {
			return nil, errs.New(errs.MissingIdentifier, "name is required")
		}
		existing := &account.Account{}
		if err := d.CFS.ReadAccount(name, existing); err != nil {
			return nil, err
		}
		in := toAccountInput(opts)
		uid, gid, err := validate.ValidateAccountUpdate(existing, in)
		if err != nil {
			return nil, err
		}
		switch {
		case in.UID != nil || in.GID != nil:
			existing.NSFSAccountConfig.UID, existing.NSFSAccountConfig.GID = &uid, &gid
			existing.NSFSAccountConfig.DistinguishedName = ""
		case in.DistinguishedName != "":
			existing.NSFSAccountConfig.DistinguishedName = in.DistinguishedName
			existing.NSFSAccountConfig.UID, existing.NSFSAccountConfig.GID = nil, nil
		}
		if in.NewBucketsPath != "" {
			existing.NSFSAccountConfig.NewBucketsPath = in.NewBucketsPath
		}
		if in.Email != "" {
			existing.Email = in.Email
		}
		if in.AllowBucketCreation != nil {
			existing.AllowBucketCreation = in.AllowBucketCreation
		}
		if in.Regenerate {
			newKey := account.GenerateAccessKeyPair()
			for _, old := range existing.AccessKeys {
				_ = d.CFS.UnlinkAccessKey(old.AccessKey)
			}
			existing.AccessKeys = []account.AccessKey{newKey}
			if err := d.CFS.LinkAccessKey(newKey.AccessKey, name); err != nil {
				return nil, err
			}
		} else if in.AccessKey != "" {
			if err := validate.CheckAccessKeyUniqueness(d.CFS, in.AccessKey, name); err != nil {
				return nil, err
			}
			existing.AccessKeys = []account.AccessKey{{AccessKey: in.AccessKey, SecretKey: in.SecretKey}}
			if err := d.CFS.LinkAccessKey(in.AccessKey, name); err != nil {
				return nil, err
			}
		}
		if err := d.CFS.UpdateAccount(existing); err != nil {
			return nil, err
		}
		d.cachePut(existing)
		return existing, nil

	case "delete":
		if err := nameOnlySchema.validate(opts); err != nil {
			return nil, err
		}
		name := optString(opts, "name")
		if name == "" {
			return nil, errs.New(errs.MissingIdentifier, "name is required")
		}
		existing := &account.Account{}
		if err := d.CFS.ReadAccount(name, existing); err != nil {
			return nil, err
		}
		if err := validate.CheckDeleteAllowed(d.CFS, existing.ID); err != nil {
			return nil, err
		}
		if err := d.CFS.DeleteAccount(name); err != nil {
			return nil, err
		}
		if d.AccountIDs != nil {
			d.AccountIDs.Invalidate(existing.ID)
		}
		return nil, nil

	case "status":
		if err := nameOnlySchema.validate(opts); err != nil {
			return nil, err
		}
		a := &account.Account{}
		if err := d.CFS.ReadAccount(optString(opts, "name"), a); err != nil {
			return nil, err
		}
		return a, nil

	case "list":
		if err := accountListSchema.validate(opts); err != nil {
			return nil, err
		}
		all, err := d.CFS.ListAccounts()
		if err != nil {
			return nil, err
		}
		filtered := filterAccounts(all, opts)
		if !optBool(opts, "wide") {
			names := make([]string, 0, len(filtered))
			for _, a := range filtered {
				names = append(names, a.Name)
			}
			sort.Strings(names)
			return names, nil
		}
		sort.Slice(filtered, func(i, j int) bool { return filtered[i].Name < filtered[j].Name })
		return filtered, nil

	default:
		return nil, errs.Newf(errs.InvalidArgument, "unknown account action %q", action)
	}
}

func (d *Dispatcher) cachePut(a *account.Account) {
	if d.AccountIDs != nil {
		_ = d.AccountIDs.Put(a.ID, a.Name)
	}
}

func filterAccounts(in []*account.Account, opts map[string]any) []*account.Account {
	uid := optInt(opts, "uid")
	gid := optInt(opts, "gid")
	user := optString(opts, "user")
	accessKey := optString(opts, "access_key")
	name := optString(opts, "name")

	out := make([]*account.Account, 0, len(in))
	for _, a := range in {
		if uid != nil && (a.NSFSAccountConfig.UID == nil || *a.NSFSAccountConfig.UID != *uid) {
			continue
		}
		if gid != nil && (a.NSFSAccountConfig.GID == nil || *a.NSFSAccountConfig.GID != *gid) {
			continue
		}
		if user != "" && a.NSFSAccountConfig.DistinguishedName != user {
			continue
		}
		if name != "" && a.Name != name {
			continue
		}
		if accessKey != "" {
			found := false
			for _, k := range a.AccessKeys {
				if k.AccessKey == accessKey {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

//
// bucket
//

var bucketAddSchema = schema{
	"name": kindString, "owner_account": kindString, "path": kindString,
	"system_owner": kindString, "bucket_owner": kindString,
	"versioning": kindString, "should_create_underlying_storage": kindBool,
}
var bucketUpdateSchema = bucketAddSchema
var bucketListSchema = schema{"name": kindString, "wide": kindBool}

func toBucket(opts map[string]any) *bucket.Bucket {
	v := bucket.Versioning(optString(opts, "versioning"))
	if v == "" {
		v = bucket.VersioningDisabled
	}
	return &bucket.Bucket{
		Name:                          optString(opts, "name"),
		SystemOwner:                   optString(opts, "system_owner"),
		BucketOwner:                   optString(opts, "bucket_owner"),
		OwnerAccount:                  optString(opts, "owner_account"),
		Versioning:                    v,
		Path:                          optString(opts, "path"),
		ShouldCreateUnderlyingStorage: optBool(opts, "should_create_underlying_storage"),
	}
}

func (d *Dispatcher) dispatchBucket(action string, opts map[string]any) (any, error) {
	switch action {
	case "add":
		if err := bucketAddSchema.validate(opts); err != nil {
			return nil, err
		}
		b := toBucket(opts)
		if err := validate.ValidateBucketAdd(b); err != nil {
			return nil, err
		}
		owner, err := d.CFS.GetAccountByID(b.OwnerAccount)
		if err != nil {
			return nil, err
		}
		if err := validate.CheckBucketCreationAllowed(owner); err != nil {
			return nil, err
		}
		b.ID = bucket.NewID()
		b.CreationDate = time.Now().UTC()
		if err := d.CFS.CreateBucket(b); err != nil {
			return nil, err
		}
		return b, nil

	case "update":
		if err := bucketUpdateSchema.validate(opts); err != nil {
			return nil, err
		}
		name := optString(opts, "name")
		if name == "" {
			return nil, errs.New(errs.MissingIdentifier, "name is required")
		}
		existing := &bucket.Bucket{}
		if err := d.CFS.ReadBucket(name, existing); err != nil {
			return nil, err
		}
		if v := optString(opts, "owner_account"); v != "" {
			existing.OwnerAccount = v
		}
		if v := optString(opts, "bucket_owner"); v != "" {
			existing.BucketOwner = v
		}
		if v := optString(opts, "path"); v != "" {
			existing.Path = v
		}
		if v := optString(opts, "versioning"); v != "" {
			existing.Versioning = bucket.Versioning(v)
		}
		if _, ok := opts["should_create_underlying_storage"]; ok {
			existing.ShouldCreateUnderlyingStorage = optBool(opts, "should_create_underlying_storage")
		}
		if err := validate.ValidateBucketAdd(existing); err != nil {
			return nil, err
		}
		if err := d.CFS.UpdateBucket(existing); err != nil {
			return nil, err
		}
		return existing, nil

	case "delete":
		if err := nameOnlySchema.validate(opts); err != nil {
			return nil, err
		}
		return nil, d.CFS.DeleteBucket(optString(opts, "name"))

	case "status":
		if err := nameOnlySchema.validate(opts); err != nil {
			return nil, err
		}
		b := &bucket.Bucket{}
		if err := d.CFS.ReadBucket(optString(opts, "name"), b); err != nil {
			return nil, err
		}
		return b, nil

	case "list":
		if err := bucketListSchema.validate(opts); err != nil {
			return nil, err
		}
		all, err := d.CFS.ListBuckets()
		if err != nil {
			return nil, err
		}
		name := optString(opts, "name")
		filtered := make([]*bucket.Bucket, 0, len(all))
		for _, b := range all {
			if name != "" && b.Name != name {
				continue
			}
			filtered = append(filtered, b)
		}
		if !optBool(opts, "wide") {
			names := make([]string, 0, len(filtered))
			for _, b := range filtered {
				names = append(names, b.Name)
			}
			sort.Strings(names)
			return names, nil
		}
		sort.Slice(filtered, func(i, j int) bool { return filtered[i].Name < filtered[j].Name })
		return filtered, nil

	default:
		return nil, errs.Newf(errs.InvalidArgument, "unknown bucket action %q", action)
	}
}

//
// upgrade
//

var upgradeStartSchema = schema{
	"expected_version": kindString, "expected_hosts": kindString,
	"skip_verification": kindBool, "custom_upgrade_scripts_dir": kindString,
}
var upgradeEmptySchema = schema{}

func (d *Dispatcher) dispatchUpgrade(ctx context.Context, action string, opts map[string]any) (any, error) {
	switch action {
	case "start":
		if err := upgradeStartSchema.validate(opts); err != nil {
			return nil, err
		}
		if dir := optString(opts, "custom_upgrade_scripts_dir"); dir != "" {
			d.Upgrade.ScriptsDir = dir
		}
		res, err := d.Upgrade.Start(ctx, upgrade.StartRequest{
			ExpectedVersion: optString(opts, "expected_version"),
			ExpectedHosts:   splitHosts(optString(opts, "expected_hosts")),
		})
		if err != nil {
			return nil, err
		}
		return res, nil

	case "status":
		if err := upgradeEmptySchema.validate(opts); err != nil {
			return nil, err
		}
		inProg, present, err := d.Upgrade.Status()
		if err != nil {
			return nil, err
		}
		if !present {
			return struct{}{}, nil
		}
		return inProg, nil

	case "history":
		if err := upgradeEmptySchema.validate(opts); err != nil {
			return nil, err
		}
		hist, present, err := d.Upgrade.History()
		if err != nil {
			return nil, err
		}
		if !present {
			return struct{}{}, nil
		}
		return hist, nil

	default:
		return nil, errs.Newf(errs.InvalidUpgradeAction, "unknown upgrade action %q", action)
	}
}
