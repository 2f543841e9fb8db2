package upgrade

import (
	encjson "encoding/json"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Phase is the config directory's upgrade latch (spec §3, §9).
type Phase string

const (
	PhaseLocked   Phase = "CONFIG_DIR_LOCKED"
	PhaseUnlocked Phase = "CONFIG_DIR_UNLOCKED"
)

// SuccessfulUpgrade is one entry of upgrade_history.successful_upgrades.
// Both the package version pair and the config-dir version pair are kept
// verbatim even though they are denormalised in the source format (spec
// §9 open question (b)).
type SuccessfulUpgrade struct {
	Timestamp            int64  `json:"timestamp"`
	FromVersion          string `json:"from_version"`
	ToVersion            string `json:"to_version"`
	ConfigDirFromVersion string `json:"config_dir_from_version,omitempty"`
	ConfigDirToVersion   string `json:"config_dir_to_version,omitempty"`
}

// UpgradeHistory is shared shape for both a host record's and the config
// directory's history.
type UpgradeHistory struct {
	SuccessfulUpgrades []SuccessfulUpgrade `json:"successful_upgrades"`
}

// HistoryLimit bounds how many entries Record keeps (newest first); a
// supplemented feature (SPEC_FULL.md) not named by spec.md.
const HistoryLimit = 32

// Record prepends u to the history, trimming to HistoryLimit.
func (h *UpgradeHistory) Record(u SuccessfulUpgrade) {
	h.SuccessfulUpgrades = append([]SuccessfulUpgrade{u}, h.SuccessfulUpgrades...)
	if len(h.SuccessfulUpgrades) > HistoryLimit {
		h.SuccessfulUpgrades = h.SuccessfulUpgrades[:HistoryLimit]
	}
}

// HostRecord is the per-hostname entry of system.json.
type HostRecord struct {
	CurrentVersion string         `json:"current_version"`
	UpgradeHistory UpgradeHistory `json:"upgrade_history"`
}

// InProgressUpgrade is populated on config_directory while phase is
// CONFIG_DIR_LOCKED and an upgrade is underway.
type InProgressUpgrade struct {
	StartTimestamp       int64    `json:"start_timestamp"`
	RunningHost          string   `json:"running_host"`
	PackageFromVersion   string   `json:"package_from_version"`
	PackageToVersion     string   `json:"package_to_version"`
	ConfigDirFromVersion string   `json:"config_dir_from_version"`
	ConfigDirToVersion   string   `json:"config_dir_to_version"`
	CompletedScripts     []string `json:"completed_scripts,omitempty"`
	Error                string   `json:"error,omitempty"`
}

// ConfigDirectory is the top-level, cluster-wide upgrade state.
type ConfigDirectory struct {
	ConfigDirVersion  string              `json:"config_dir_version"`
	Phase             Phase               `json:"phase"`
	InProgressUpgrade *InProgressUpgrade  `json:"in_progress_upgrade,omitempty"`
	UpgradeHistory    UpgradeHistory      `json:"upgrade_history"`
}

// SystemConfig is the system.json document: a map from hostname to
// HostRecord, plus an optional top-level config_directory record. It is
// marshalled/unmarshalled by hand because its on-disk shape mixes
// caller-defined hostnames with one reserved key at the same level
// (spec §6).
type SystemConfig struct {
	Hosts           map[string]HostRecord
	ConfigDirectory *ConfigDirectory
}

const configDirectoryKey = "config_directory"

func (s SystemConfig) MarshalJSON() ([]byte, error) {
	m := make(map[string]encjson.RawMessage, len(s.Hosts)+1)
	for host, rec := range s.Hosts {
		b, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		m[host] = b
	}
	if s.ConfigDirectory != nil {
		b, err := json.Marshal(s.ConfigDirectory)
		if err != nil {
			return nil, err
		}
		m[configDirectoryKey] = b
	}
	return json.Marshal(m)
}

func (s *SystemConfig) UnmarshalJSON(data []byte) error {
	raw := map[string]encjson.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Hosts = make(map[string]HostRecord, len(raw))
	for key, val := range raw {
		if key == configDirectoryKey {
			cd := &ConfigDirectory{}
			if err := json.Unmarshal(val, cd); err != nil {
				return err
			}
			s.ConfigDirectory = cd
			continue
		}
		var rec HostRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		s.Hosts[key] = rec
	}
	return nil
}

// HostNames returns the set of hostnames system.json currently lists.
func (s *SystemConfig) HostNames() []string {
	names := make([]string, 0, len(s.Hosts))
	for h := range s.Hosts {
		names = append(names, h)
	}
	return names
}
