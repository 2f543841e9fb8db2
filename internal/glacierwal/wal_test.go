package glacierwal_test

import (
	"context"
	"testing"

	"github.com/red-hat-storage/noobaa-core/internal/glacier"
	"github.com/red-hat-storage/noobaa-core/internal/glacierwal"
)

// TestAppendSwapReadRoundTrip covers spec §8's WAL invariant: every
// appended record appears in exactly one sealed segment.
func TestAppendSwapReadRoundTrip(t *testing.T) {
	w := glacierwal.New(t.TempDir())
	records := []string{"/data/a", "/data/b", "/data/c"}
	for _, r := range records {
		if err := w.Append(r); err != nil {
			t.Fatalf("Append(%q): %v", r, err)
		}
	}

	seg, err := w.Swap()
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if seg == "" {
		t.Fatalf("expected a sealed segment, got none")
	}

	got, err := glacierwal.ReadRecords(seg)
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	for i, r := range records {
		if got[i] != r {
			t.Errorf("record[%d] = %q, want %q", i, got[i], r)
		}
	}
}

// TestSwapNoopWithoutAppends covers spec §8: "Double _swap with no
// intervening appends produces no new inactive segment."
func TestSwapNoopWithoutAppends(t *testing.T) {
	w := glacierwal.New(t.TempDir())
	if err := w.Append("/data/a"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	first, err := w.Swap()
	if err != nil || first == "" {
		t.Fatalf("first Swap: seg=%q err=%v", first, err)
	}
	second, err := w.Swap()
	if err != nil {
		t.Fatalf("second Swap: %v", err)
	}
	if second != "" {
		t.Fatalf("second Swap should be a no-op, got segment %q", second)
	}
}

// TestProcessInactiveDeletesProcessedSegment covers spec §8: "every
// sealed segment processed with fn -> true is subsequently absent."
func TestProcessInactiveDeletesProcessedSegment(t *testing.T) {
	w := glacierwal.New(t.TempDir())
	if err := w.Append("/data/obj1"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := w.Swap(); err != nil {
		t.Fatalf("Swap: %v", err)
	}

	var processed []string
	err := w.ProcessInactive(func(seg string) (bool, error) {
		processed = append(processed, seg)
		return true, nil
	})
	if err != nil {
		t.Fatalf("ProcessInactive: %v", err)
	}
	if len(processed) != 1 {
		t.Fatalf("expected to process 1 segment, processed %d", len(processed))
	}

	remaining, err := w.ListInactive()
	if err != nil {
		t.Fatalf("ListInactive: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("processed segment should have been deleted, found %d remaining", len(remaining))
	}
}

// TestProcessInactiveRetainsFailedSegment ensures a segment whose
// processing reports incomplete (processed=false) is retained for a
// future pass, per spec §4.4's "retains the segment iff the failed list
// is non-empty".
func TestProcessInactiveRetainsFailedSegment(t *testing.T) {
	w := glacierwal.New(t.TempDir())
	if err := w.Append("/data/obj1"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := w.Swap(); err != nil {
		t.Fatalf("Swap: %v", err)
	}

	if err := w.ProcessInactive(func(string) (bool, error) { return false, nil }); err != nil {
		t.Fatalf("ProcessInactive: %v", err)
	}
	remaining, err := w.ListInactive()
	if err != nil {
		t.Fatalf("ListInactive: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected the failed segment to be retained, found %d", len(remaining))
	}
}

func TestProcessMigrateWithNopBackend(t *testing.T) {
	w := glacierwal.New(t.TempDir())
	if err := glacierwal.RecordMigrate(w, "/data/obj1"); err != nil {
		t.Fatalf("RecordMigrate: %v", err)
	}
	if _, err := w.Swap(); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if err := glacierwal.ProcessMigrate(context.Background(), w, glacier.NopBackend{}); err != nil {
		t.Fatalf("ProcessMigrate: %v", err)
	}
	remaining, err := w.ListInactive()
	if err != nil {
		t.Fatalf("ListInactive: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("NopBackend should let the segment be fully processed, found %d remaining", len(remaining))
	}
}
