// Package upgrade implements the UpgradeController component (spec
// §4.3): multi-host package-version gating, phased config-dir schema
// migration, and history.
package upgrade

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/red-hat-storage/noobaa-core/internal/configfs"
	"github.com/red-hat-storage/noobaa-core/internal/errs"
)

// Controller ties the on-disk system.json (via ConfigFS) to the
// compiled-in expected config_dir_version and the running host's own
// identity.
type Controller struct {
	CFS                      *configfs.ConfigFS
	Hostname                 string
	PackageVersion           string // this host's own running package version
	ExpectedConfigDirVersion string
	ScriptsDir               string
	Now                      func() int64 // injected for deterministic tests
}

// StartRequest is the caller-supplied input to Start (spec §4.3).
type StartRequest struct {
	ExpectedVersion string
	ExpectedHosts   []string
}

// Result mirrors spec §4.3's two terminal shapes.
type Result struct {
	Successful bool
	Message    string
}

// Start runs the phased, resumable config-dir upgrade described in spec
// §4.3. It is the only mutating entry point; Status and History are
// pure reads.
func (c *Controller) Start(ctx context.Context, req StartRequest) (*Result, error) {
	if req.ExpectedVersion == "" || len(req.ExpectedHosts) == 0 {
		return nil, errs.New(errs.InvalidArgument, "expected_version and expected_hosts are both mandatory")
	}
	if !c.CFS.SystemConfigExists() {
		return nil, errs.New(errs.UpgradeFailed, "").WithCause("system does not exist")
	}

	sysCfg := &SystemConfig{}
	if err := c.CFS.ReadSystemConfig(sysCfg); err != nil {
		return nil, errs.Wrap(errs.UpgradeFailed, err, "read system.json")
	}

	if err := c.checkPreconditions(sysCfg, req); err != nil {
		return nil, err
	}

	if sysCfg.ConfigDirectory != nil && versionEqual(sysCfg.ConfigDirectory.ConfigDirVersion, c.ExpectedConfigDirVersion) {
		return &Result{Successful: true, Message: "config_dir_version " + sysCfg.ConfigDirectory.ConfigDirVersion + " and " + c.ExpectedConfigDirVersion + " match, nothing to upgrade"}, nil
	}

	fromVersion := "0.0.0"
	if sysCfg.ConfigDirectory != nil {
		fromVersion = sysCfg.ConfigDirectory.ConfigDirVersion
	}
	toVersion := c.ExpectedConfigDirVersion

	// Phase 1: lock, resuming an already-locked in-progress upgrade
	// belonging to this host rather than starting a second one.
	var inProg *InProgressUpgrade
	if sysCfg.ConfigDirectory != nil && sysCfg.ConfigDirectory.Phase == PhaseLocked {
		if sysCfg.ConfigDirectory.InProgressUpgrade == nil {
			return nil, errs.New(errs.UpgradeFailed, "").WithCause("config directory is locked with no in-progress upgrade recorded; manual intervention required")
		}
		if sysCfg.ConfigDirectory.InProgressUpgrade.RunningHost != c.Hostname {
			return nil, errs.New(errs.UpgradeFailed, "").WithCause("config directory is locked by host " + sysCfg.ConfigDirectory.InProgressUpgrade.RunningHost)
		}
		inProg = sysCfg.ConfigDirectory.InProgressUpgrade
	} else {
		inProg = &InProgressUpgrade{
			StartTimestamp:       c.now(),
			RunningHost:          c.Hostname,
			PackageFromVersion:   req.ExpectedVersion,
			PackageToVersion:     req.ExpectedVersion,
			ConfigDirFromVersion: fromVersion,
			ConfigDirToVersion:   toVersion,
		}
		if sysCfg.ConfigDirectory == nil {
			sysCfg.ConfigDirectory = &ConfigDirectory{}
		}
		sysCfg.ConfigDirectory.Phase = PhaseLocked
		sysCfg.ConfigDirectory.InProgressUpgrade = inProg
		if err := c.CFS.WriteSystemConfig(sysCfg); err != nil {
			return nil, errs.Wrap(errs.UpgradeFailed, err, "lock config directory")
		}
	}

	// Phase 2: discover and run scripts in order, skipping ones already
	// recorded as completed (crash-resume).
	refs, err := DiscoverScripts(c.ScriptsDir, fromVersion, toVersion)
	if err != nil {
		return nil, errs.Wrap(errs.UpgradeFailed, err, "discover upgrade scripts")
	}
	completed := map[string]bool{}
	for _, id := range inProg.CompletedScripts {
		completed[id] = true
	}

	for _, ref := range refs {
		if completed[ref.ID] {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, errs.New(errs.UpgradeFailed, "").WithCause("cancelled before completing all scripts; resumable on next start")
		default:
		}
		script, ok := lookupScript(ref.ID)
		if !ok {
			err := errors.Errorf("no registered implementation for script %s", ref.ID)
			inProg.Error = stackOf(err)
			c.persistFailure(sysCfg)
			return nil, errs.New(errs.UpgradeFailed, "").WithCause(err.Error())
		}
		if err := script.Run(ctx, Options{ConfigRoot: c.CFS.Root, FromVersion: fromVersion, ToVersion: toVersion}); err != nil {
			wrapped := errors.Wrapf(err, "script %s failed", ref.ID)
			inProg.Error = stackOf(wrapped)
			c.persistFailure(sysCfg)
			return nil, errs.New(errs.UpgradeFailed, "").WithCause(wrapped.Error())
		}
		inProg.CompletedScripts = append(inProg.CompletedScripts, ref.ID)
		if err := c.CFS.WriteSystemConfig(sysCfg); err != nil {
			return nil, errs.Wrap(errs.UpgradeFailed, err, "persist script progress")
		}
	}

	// Phase 3: unlock and publish history.
	sysCfg.ConfigDirectory.UpgradeHistory.Record(SuccessfulUpgrade{
		Timestamp:            inProg.StartTimestamp,
		FromVersion:          inProg.PackageFromVersion,
		ToVersion:            inProg.PackageToVersion,
		ConfigDirFromVersion: inProg.ConfigDirFromVersion,
		ConfigDirToVersion:   inProg.ConfigDirToVersion,
	})
	sysCfg.ConfigDirectory.InProgressUpgrade = nil
	sysCfg.ConfigDirectory.Phase = PhaseUnlocked
	sysCfg.ConfigDirectory.ConfigDirVersion = toVersion
	if err := c.CFS.WriteSystemConfig(sysCfg); err != nil {
		return nil, errs.Wrap(errs.UpgradeFailed, err, "unlock config directory")
	}

	return &Result{Successful: true, Message: "config directory upgraded from " + fromVersion + " to " + toVersion}, nil
}

// persistFailure writes back sysCfg with inProg.Error set, leaving phase
// LOCKED for operator intervention (spec §7: "the latch phase remains
// LOCKED"). A write failure here is logged by the caller's wrapped error
// but does not mask the original script failure.
func (c *Controller) persistFailure(sysCfg *SystemConfig) {
	_ = c.CFS.WriteSystemConfig(sysCfg)
}

func stackOf(err error) string {
	return strings.TrimSpace(fmt.Sprintf("%+v", err))
}

func (c *Controller) now() int64 {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UnixNano()
}

// checkPreconditions implements every gate spec §4.3 lists before a
// config-dir migration may begin.
func (c *Controller) checkPreconditions(sysCfg *SystemConfig, req StartRequest) error {
	gotHosts := sysCfg.HostNames()
	wantHosts := append([]string(nil), req.ExpectedHosts...)
	sort.Strings(gotHosts)
	sort.Strings(wantHosts)

	missing := diff(wantHosts, gotHosts)
	extra := diff(gotHosts, wantHosts)
	if len(missing) > 0 {
		return errs.New(errs.UpgradeFailed, "").WithCause("system.json is missing expected_hosts: " + strings.Join(missing, ","))
	}
	if len(extra) > 0 {
		return errs.New(errs.UpgradeFailed, "").WithCause("system.json lists hosts not present in expected_hosts: " + strings.Join(extra, ","))
	}

	if !versionEqual(req.ExpectedVersion, c.PackageVersion) {
		return errs.New(errs.UpgradeFailed, "").WithCause("expected_version " + req.ExpectedVersion + " does not match the user's expected version " + c.PackageVersion)
	}

	oldest := ""
	for _, h := range sysCfg.Hosts {
		if oldest == "" || versionLess(h.CurrentVersion, oldest) {
			oldest = h.CurrentVersion
		}
		if !versionEqual(h.CurrentVersion, req.ExpectedVersion) {
			return errs.New(errs.UpgradeFailed, "").WithCause("cannot upgrade until all nodes have the expected version " + req.ExpectedVersion)
		}
	}
	if oldest != "" && versionLess(c.PackageVersion, oldest) {
		return errs.New(errs.UpgradeFailed, "").WithCause("cannot upgrade until all nodes have the expected version " + req.ExpectedVersion)
	}
	return nil
}

func diff(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, x := range b {
		set[x] = true
	}
	var out []string
	for _, x := range a {
		if !set[x] {
			out = append(out, x)
		}
	}
	return out
}

// Status returns the current in_progress_upgrade, or (nil, false) if
// none is running (the "empty" sentinel, spec §4.3).
func (c *Controller) Status() (*InProgressUpgrade, bool, error) {
	sysCfg := &SystemConfig{}
	if err := c.CFS.ReadSystemConfig(sysCfg); err != nil {
		return nil, false, errs.Wrap(errs.UpgradeStatusFailed, err, "read system.json")
	}
	if sysCfg.ConfigDirectory == nil || sysCfg.ConfigDirectory.InProgressUpgrade == nil {
		return nil, false, nil
	}
	return sysCfg.ConfigDirectory.InProgressUpgrade, true, nil
}

// History returns config_directory.upgrade_history, or (nil, false) if
// there is no config_directory record yet.
func (c *Controller) History() (*UpgradeHistory, bool, error) {
	sysCfg := &SystemConfig{}
	if err := c.CFS.ReadSystemConfig(sysCfg); err != nil {
		return nil, false, errs.Wrap(errs.UpgradeHistoryFailed, err, "read system.json")
	}
	if sysCfg.ConfigDirectory == nil {
		return nil, false, nil
	}
	return &sysCfg.ConfigDirectory.UpgradeHistory, true, nil
}
