package upgrade_test

import (
	"context"
	"strings"
	"testing"

	"github.com/red-hat-storage/noobaa-core/internal/configfs"
	"github.com/red-hat-storage/noobaa-core/internal/errs"
	"github.com/red-hat-storage/noobaa-core/internal/upgrade"
	_ "github.com/red-hat-storage/noobaa-core/internal/upgrade/scripts"
)

func newTestCFS(t *testing.T) *configfs.ConfigFS {
	t.Helper()
	cfs := configfs.New(t.TempDir(), configfs.BackendNone)
	if err := cfs.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout: %v", err)
	}
	return cfs
}

// TestUpgradeRefusesOnLaggingHost covers spec §8 scenario 2: system.json
// lists hosts {h1: 5.18.0, h2: 5.17.0}; the caller runs on h1 with
// package 5.18.0. start must refuse because h2 lags.
func TestUpgradeRefusesOnLaggingHost(t *testing.T) {
	cfs := newTestCFS(t)
	sys := &upgrade.SystemConfig{Hosts: map[string]upgrade.HostRecord{
		"h1": {CurrentVersion: "5.18.0"},
		"h2": {CurrentVersion: "5.17.0"},
	}}
	if err := cfs.WriteSystemConfig(sys); err != nil {
		t.Fatalf("WriteSystemConfig: %v", err)
	}

	ctrl := &upgrade.Controller{
		CFS: cfs, Hostname: "h1", PackageVersion: "5.18.0",
		ExpectedConfigDirVersion: "5.19.0", ScriptsDir: t.TempDir(),
	}
	_, err := ctrl.Start(context.Background(), upgrade.StartRequest{
		ExpectedVersion: "5.18.0", ExpectedHosts: []string{"h1", "h2"},
	})
	if errs.KindOf(err) != errs.UpgradeFailed {
		t.Fatalf("kind = %v, want UpgradeFailed", err)
	}
	e, _ := errs.As(err)
	if !strings.Contains(e.Cause(), "until all nodes have the expected version") {
		t.Fatalf("cause = %q, missing expected substring", e.Cause())
	}
}

// TestUpgradeNoopWhenAlreadyAtTarget covers spec §8's "start with
// config_dir_version already at target is a no-op" round-trip property.
func TestUpgradeNoopWhenAlreadyAtTarget(t *testing.T) {
	cfs := newTestCFS(t)
	sys := &upgrade.SystemConfig{
		Hosts: map[string]upgrade.HostRecord{"h1": {CurrentVersion: "5.19.0"}},
		ConfigDirectory: &upgrade.ConfigDirectory{
			ConfigDirVersion: "5.19.0", Phase: upgrade.PhaseUnlocked,
		},
	}
	if err := cfs.WriteSystemConfig(sys); err != nil {
		t.Fatalf("WriteSystemConfig: %v", err)
	}

	ctrl := &upgrade.Controller{
		CFS: cfs, Hostname: "h1", PackageVersion: "5.19.0",
		ExpectedConfigDirVersion: "5.19.0", ScriptsDir: t.TempDir(),
	}
	res, err := ctrl.Start(context.Background(), upgrade.StartRequest{
		ExpectedVersion: "5.19.0", ExpectedHosts: []string{"h1"},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !res.Successful || !strings.Contains(res.Message, "nothing to upgrade") {
		t.Fatalf("unexpected result: %+v", res)
	}
}

// TestUpgradeRunsDiscoveredScripts runs a real config-dir migration
// across the two built-in demo scripts and checks the phase/version are
// advanced and unlocked on success.
func TestUpgradeRunsDiscoveredScripts(t *testing.T) {
	cfs := newTestCFS(t)
	sys := &upgrade.SystemConfig{
		Hosts: map[string]upgrade.HostRecord{"h1": {CurrentVersion: "5.19.0"}},
		ConfigDirectory: &upgrade.ConfigDirectory{
			ConfigDirVersion: "5.17.0", Phase: upgrade.PhaseUnlocked,
		},
	}
	if err := cfs.WriteSystemConfig(sys); err != nil {
		t.Fatalf("WriteSystemConfig: %v", err)
	}

	ctrl := &upgrade.Controller{
		CFS: cfs, Hostname: "h1", PackageVersion: "5.19.0",
		ExpectedConfigDirVersion: "5.19.0", ScriptsDir: "scripts",
	}
	res, err := ctrl.Start(context.Background(), upgrade.StartRequest{
		ExpectedVersion: "5.19.0", ExpectedHosts: []string{"h1"},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !res.Successful {
		t.Fatalf("expected success, got %+v", res)
	}

	hist, present, err := ctrl.History()
	if err != nil || !present {
		t.Fatalf("History: present=%v err=%v", present, err)
	}
	if len(hist.SuccessfulUpgrades) != 1 {
		t.Fatalf("expected one history entry, got %d", len(hist.SuccessfulUpgrades))
	}

	inProg, present, err := ctrl.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if present {
		t.Fatalf("in_progress_upgrade should be cleared after success, got %+v", inProg)
	}
}
