// Package main implements nsctl, the subcommand-form CLI front end for
// the NSFS control-plane core: `nsctl <type> <action> [--flag value]*`.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/red-hat-storage/noobaa-core/internal/cache"
	"github.com/red-hat-storage/noobaa-core/internal/configfs"
	"github.com/red-hat-storage/noobaa-core/internal/manageapi"
	"github.com/red-hat-storage/noobaa-core/internal/metrics"
	"github.com/red-hat-storage/noobaa-core/internal/nlog"
	"github.com/red-hat-storage/noobaa-core/internal/upgrade"
	_ "github.com/red-hat-storage/noobaa-core/internal/upgrade/scripts"
)

const (
	exitOK    = 0
	exitUsage = 1
	exitError = 2
)

// envConfigRoot is the default config root, overridable by --config_root.
const envConfigRoot = "NSFS_NC_DEFAULT_CONF_DIR"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: nsctl <account|bucket|upgrade> <action> [--flag value]*")
		return exitUsage
	}
	typ, action, rest := args[0], args[1], args[2:]

	fs := flag.NewFlagSet(typ+" "+action, flag.ContinueOnError)
	configRoot := fs.String("config_root", os.Getenv(envConfigRoot), "config directory root")
	configRootBackend := fs.String("config_root_backend", "none", "config_root backend: none|GPFS")
	fromFile := fs.String("from_file", "", "read options from a JSON file instead of flags")
	name := fs.String("name", "", "resource name")
	newBucketsPath := fs.String("new_buckets_path", "", "account new_buckets_path")
	uid := fs.Int("uid", -1, "account uid (-1 means unset)")
	gid := fs.Int("gid", -1, "account gid (-1 means unset)")
	user := fs.String("user", "", "account distinguished name")
	accessKey := fs.String("access_key", "", "access key")
	secretKey := fs.String("secret_key", "", "secret key")
	regenerate := fs.Bool("regenerate", false, "rotate the account's access key pair")
	wide := fs.Bool("wide", false, "list: return full records instead of names")
	expectedVersion := fs.String("expected_version", "", "upgrade start: expected running package version")
	expectedHosts := fs.String("expected_hosts", "", "upgrade start: comma-separated expected hostnames")
	skipVerification := fs.Bool("skip_verification", false, "upgrade start: skip host-version preconditions")
	scriptsDir := fs.String("custom_upgrade_scripts_dir", "", "upgrade start: override the upgrade scripts directory")
	ownerAccount := fs.String("owner_account", "", "bucket owner_account (account _id)")
	bucketOwner := fs.String("bucket_owner", "", "bucket bucket_owner (account name)")
	path := fs.String("path", "", "bucket path")
	versioning := fs.String("versioning", "", "bucket versioning: DISABLED|ENABLED|SUSPENDED")
	packageVersion := fs.String("package_version", "", "this host's own running package version (upgrade start)")
	expectedConfigDirVersion := fs.String("expected_config_dir_version", "", "compiled-in target config_dir_version")
	hostname := fs.String("hostname", "", "this host's name, defaults to os.Hostname()")
	allowBucketCreation := fs.String("allow_bucket_creation", "", "true|false; omit to leave unchanged")

	if err := fs.Parse(rest); err != nil {
		return exitUsage
	}

	opts, err := buildOptions(*fromFile, map[string]any{
		"name": *name, "new_buckets_path": *newBucketsPath, "user": *user,
		"access_key": *accessKey, "secret_key": *secretKey, "regenerate": *regenerate,
		"wide": *wide, "expected_version": *expectedVersion, "expected_hosts": *expectedHosts,
		"skip_verification": *skipVerification, "custom_upgrade_scripts_dir": *scriptsDir,
		"owner_account": *ownerAccount, "bucket_owner": *bucketOwner, "path": *path,
		"versioning": *versioning,
	}, *uid, *gid)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	switch *allowBucketCreation {
	case "":
	case "true":
		opts["allow_bucket_creation"] = true
	case "false":
		opts["allow_bucket_creation"] = false
	default:
		fmt.Fprintln(os.Stderr, "allow_bucket_creation must be true or false")
		return exitUsage
	}

	if *configRoot == "" {
		fmt.Fprintln(os.Stderr, "config_root is required (flag or "+envConfigRoot+")")
		return exitUsage
	}

	cfs := configfs.New(*configRoot, configfs.Backend(*configRootBackend))
	if err := cfs.EnsureLayout(); err != nil {
		nlog.Errorf("nsctl: ensure config layout: %v", err)
		return exitError
	}

	host := *hostname
	if host == "" {
		if h, err := os.Hostname(); err == nil {
			host = h
		}
	}
	ctrl := &upgrade.Controller{
		CFS:                      cfs,
		Hostname:                 host,
		PackageVersion:           *packageVersion,
		ExpectedConfigDirVersion: *expectedConfigDirVersion,
		ScriptsDir:               *scriptsDir,
	}

	acctCache, err := cache.New(cacheTTL)
	if err != nil {
		nlog.Warningf("nsctl: account cache disabled: %v", err)
		acctCache = nil
	} else {
		defer acctCache.Close()
	}

	disp := &manageapi.Dispatcher{
		CFS:        cfs,
		Upgrade:    ctrl,
		AccountIDs: acctCache,
		Metrics:    metrics.NewRegistry(nil),
	}

	result := disp.Dispatch(context.Background(), manageapi.Request{Type: typ, Action: action, Options: opts})
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		nlog.Errorf("nsctl: encode result: %v", err)
		return exitError
	}
	if result.Error != nil {
		return exitError
	}
	return exitOK
}

// buildOptions assembles the ManageAPI options map either from --from_file
// (a JSON object, merged under explicit flags) or from the flags
// themselves; uid/gid are only included when set (sentinel -1 means
// "not supplied", matching spec §4.2's "uid/gid may be omitted").
func buildOptions(fromFile string, strFlags map[string]any, uid, gid int) (map[string]any, error) {
	opts := map[string]any{}
	if fromFile != "" {
		b, err := os.ReadFile(fromFile)
		if err != nil {
			return nil, fmt.Errorf("read from_file %s: %w", fromFile, err)
		}
		if err := json.Unmarshal(b, &opts); err != nil {
			return nil, fmt.Errorf("parse from_file %s: %w", fromFile, err)
		}
	}
	for k, v := range strFlags {
		switch val := v.(type) {
		case string:
			if val != "" {
				opts[k] = val
			}
		case bool:
			if val {
				opts[k] = val
			}
		}
	}
	if uid != -1 {
		opts["uid"] = uid
	}
	if gid != -1 {
		opts["gid"] = gid
	}
	return opts, nil
}

// cacheTTL is the account-by-id cache entry lifetime (SPEC_FULL.md
// ManageAPI module): long enough to help a log-export sweep, short enough
// that a never-invalidated process (e.g. one that misses a delete from a
// peer) does not serve stale data indefinitely.
const cacheTTL = 5 * time.Minute
