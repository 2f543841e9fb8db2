// Package glacier defines the external glacier (tape) backend interface
// consumed by GlacierWAL (spec §6) and the object restore-status model
// persisted alongside it.
package glacier

import "context"

// Backend is implemented by the vendor-specific tape driver; this core
// only ever calls through the interface (spec §1: "the vendor-specific
// tape driver invoked by the glacier backend" is out of scope here).
type Backend interface {
	// ShouldMigrate reports whether path still needs migrating, making a
	// retried migrate() on an at-least-once WAL a no-op (spec §4.4
	// "Failure semantics").
	ShouldMigrate(ctx context.Context, path string) (bool, error)
	// Migrate processes every entry in the segment and returns the
	// subset it failed to migrate.
	Migrate(ctx context.Context, segmentPath string) ([]string, error)
	// Restore processes a restore-request segment, returning true if the
	// whole segment was handled successfully.
	Restore(ctx context.Context, segmentPath string) (bool, error)
	// ProcessExpired is invoked once per object whose restore_status has
	// passed its expiry_time.
	ProcessExpired(ctx context.Context, path string) error
}

// NopBackend is a test double: ShouldMigrate and Restore always succeed,
// Migrate reports nothing failed, ProcessExpired is a no-op.
type NopBackend struct{}

func (NopBackend) ShouldMigrate(context.Context, string) (bool, error) { return true, nil }
func (NopBackend) Migrate(context.Context, string) ([]string, error)  { return nil, nil }
func (NopBackend) Restore(context.Context, string) (bool, error)      { return true, nil }
func (NopBackend) ProcessExpired(context.Context, string) error       { return nil }
