// Package cache implements the bounded, per-process account-by-id cache
// named in spec §3 ("a small bounded account-by-id cache used by external
// log-export") and SPEC_FULL.md's ManageAPI module. It is backed by
// tidwall/buntdb, an embedded, in-memory-or-file key/value store with
// native per-key TTL — used here purely in-memory (":memory:") so the
// cache never outlives the process, matching spec §5's "per-process,
// explicit TTL" requirement.
package cache

import (
	"time"

	"github.com/tidwall/buntdb"

	"github.com/red-hat-storage/noobaa-core/internal/errs"
)

// AccountIDCache maps account._id -> account name with a fixed TTL,
// invalidated synchronously on add/update/delete (spec §5 "Shared
// resources").
type AccountIDCache struct {
	db  *buntdb.DB
	ttl time.Duration
}

// New opens an in-memory cache with the given entry TTL.
func New(ttl time.Duration) (*AccountIDCache, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, errs.Wrap(errs.IO, err, "open account cache")
	}
	return &AccountIDCache{db: db, ttl: ttl}, nil
}

// Close releases the underlying store.
func (c *AccountIDCache) Close() error { return c.db.Close() }

// Put records id -> name, expiring after the cache's TTL.
func (c *AccountIDCache) Put(id, name string) error {
	return c.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(id, name, &buntdb.SetOptions{Expires: true, TTL: c.ttl})
		return err
	})
}

// Get returns (name, true) if id is cached and not expired.
func (c *AccountIDCache) Get(id string) (string, bool) {
	var name string
	err := c.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(id)
		if err != nil {
			return err
		}
		name = v
		return nil
	})
	if err != nil {
		return "", false
	}
	return name, true
}

// Invalidate removes id from the cache; tolerates it already being
// absent.
func (c *AccountIDCache) Invalidate(id string) {
	_ = c.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(id)
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
}
