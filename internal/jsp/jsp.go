// Package jsp (JSON persistence) saves and loads JSON-encoded config
// records with the atomic write contract required by spec §4.1: write a
// uniquely named temp file in the same directory, fsync it, then
// atomically rename over the target. Grounded on the teacher's cmn/jsp.
package jsp

import (
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/red-hat-storage/noobaa-core/internal/cos"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Replacer is implemented by backends (e.g. GPFS) that require a
// link-with-replace primitive instead of plain rename for the publish
// step of the atomic write contract.
type Replacer interface {
	// ReplaceInto atomically publishes tmp as filepath, in addition to
	// (or instead of) a plain rename, per the backend's semantics.
	ReplaceInto(tmp, filepath string) error
}

// Save encodes v as JSON and atomically publishes it at filepath. If
// repl is non-nil, its ReplaceInto is used for the publish step instead
// of os.Rename (spec §4.1's "clustered/GPFS-style backend" case).
func Save(filepath string, v any, repl Replacer) (err error) {
	tmp := filepath + ".tmp." + cos.GenTie()
	file, err := cos.CreateFile(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()
	enc := json.NewEncoder(file)
	if err = enc.Encode(v); err != nil {
		file.Close()
		return err
	}
	if err = cos.FlushClose(file); err != nil {
		return err
	}
	if repl != nil {
		return repl.ReplaceInto(tmp, filepath)
	}
	return cos.Rename(tmp, filepath)
}

// Load decodes the JSON file at filepath into v.
func Load(filepath string, v any) error {
	file, err := os.Open(filepath)
	if err != nil {
		return err
	}
	defer file.Close()
	dec := json.NewDecoder(file)
	return dec.Decode(v)
}

// LoadBytes reads filepath's raw bytes (used when callers want to parse
// into a generic map, e.g. ConfigFS.list of heterogeneous records).
func LoadBytes(filepath string) ([]byte, error) {
	return os.ReadFile(filepath)
}
