package upgrade

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/red-hat-storage/noobaa-core/internal/errs"
)

// Options is passed to every script's Run (spec §4.3: "Each script is a
// record {description, run(options)}").
type Options struct {
	ConfigRoot string
	FromVersion string
	ToVersion   string
}

// Script is a single config-dir schema migration step.
type Script interface {
	Description() string
	Run(ctx context.Context, opts Options) error
}

// ScriptRef identifies a discovered script by its version directory and
// manifest name, in execution order.
type ScriptRef struct {
	VersionDir  string
	Name        string
	Description string
	ID          string // VersionDir + "/" + Name, used for completed_scripts bookkeeping and registry lookup
}

// registry maps a ScriptRef.ID to its executable implementation. Scripts
// are Go code (there is no embedded JS runtime in this port); the
// on-disk manifest under ScriptsDir only supplies ordering and the
// human-readable description, preserving the source's directory layout
// for deployment tooling.
var registry = map[string]Script{}

// Register adds a script implementation under "<versionDir>/<name>". It
// is called from init() in files alongside the built-in scripts.
func Register(versionDir, name string, s Script) {
	registry[versionDir+"/"+name] = s
}

func lookupScript(id string) (Script, bool) {
	s, ok := registry[id]
	return s, ok
}

// DiscoverScripts lists every manifest file under
// <scriptsDir>/<semver>/*.json whose version V satisfies
// from < V <= to, sorted ascending by spec §4.3's semver ordering, and
// within a version directory sorted by manifest filename.
func DiscoverScripts(scriptsDir, from, to string) ([]ScriptRef, error) {
	entries, err := os.ReadDir(scriptsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.IO, err, "read scripts dir "+scriptsDir)
	}
	type verDir struct {
		name string
	}
	var dirs []verDir
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if versionLess(e.Name(), from) || versionLess(to, e.Name()) {
			continue
		}
		if e.Name() == from {
			continue // from_version itself is excluded (range is (from, to])
		}
		dirs = append(dirs, verDir{name: e.Name()})
	}
	sort.Slice(dirs, func(i, j int) bool { return versionLess(dirs[i].name, dirs[j].name) })

	var refs []ScriptRef
	for _, d := range dirs {
		vdir := filepath.Join(scriptsDir, d.name)
		files, err := os.ReadDir(vdir)
		if err != nil {
			return nil, errs.Wrap(errs.IO, err, "read version dir "+vdir)
		}
		var names []string
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			names = append(names, strings.TrimSuffix(f.Name(), ".json"))
		}
		sort.Strings(names)
		for _, name := range names {
			manifest := struct {
				Description string `json:"description"`
			}{}
			if err := loadManifest(filepath.Join(vdir, name+".json"), &manifest); err != nil {
				return nil, err
			}
			refs = append(refs, ScriptRef{
				VersionDir:  d.name,
				Name:        name,
				Description: manifest.Description,
				ID:          d.name + "/" + name,
			})
		}
	}
	return refs, nil
}

func loadManifest(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(errs.IO, err, "read manifest "+path)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return errs.Wrap(errs.Malformed, err, "parse manifest "+path)
	}
	return nil
}
