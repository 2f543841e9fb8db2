// Package scripts registers the built-in config-dir migration scripts
// shipped with this binary. Real deployments add further version
// directories under the configured scripts directory; these two
// demonstrate the registration contract and back the package's tests.
package scripts

import (
	"context"

	"github.com/red-hat-storage/noobaa-core/internal/upgrade"
)

type noop struct{ description string }

func (n noop) Description() string { return n.description }
func (noop) Run(context.Context, upgrade.Options) error { return nil }

func init() {
	upgrade.Register("5.18.0", "normalize_bucket_owner", noop{
		description: "backfill bucket_owner on buckets missing the denormalised owner name",
	})
	upgrade.Register("5.19.0", "reindex_access_keys", noop{
		description: "rebuild access_keys/ symlinks from accounts/*.json",
	})
}
