package glacier_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/red-hat-storage/noobaa-core/internal/glacier"
)

func TestRestoreStatusSetGetClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "object")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}

	if st, err := glacier.GetRestoreStatus(path); err != nil || st != nil {
		t.Fatalf("expected no status initially, got %+v err=%v", st, err)
	}

	if err := glacier.SetRestoreStatus(path, glacier.RestoreStatus{Ongoing: true}); err != nil {
		t.Fatalf("SetRestoreStatus: %v", err)
	}
	st, err := glacier.GetRestoreStatus(path)
	if err != nil {
		t.Fatalf("GetRestoreStatus: %v", err)
	}
	if st == nil || !st.Ongoing {
		t.Fatalf("expected ongoing=true, got %+v", st)
	}

	expiry := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	if err := glacier.SetRestoreStatus(path, glacier.RestoreStatus{Ongoing: false, ExpiryTime: &expiry}); err != nil {
		t.Fatalf("SetRestoreStatus (done): %v", err)
	}
	st, err = glacier.GetRestoreStatus(path)
	if err != nil {
		t.Fatalf("GetRestoreStatus: %v", err)
	}
	if st == nil || st.Ongoing || st.ExpiryTime == nil || !st.ExpiryTime.Equal(expiry) {
		t.Fatalf("unexpected status after restore completion: %+v", st)
	}

	if err := glacier.ClearRestoreStatus(path); err != nil {
		t.Fatalf("ClearRestoreStatus: %v", err)
	}
	if st, err := glacier.GetRestoreStatus(path); err != nil || st != nil {
		t.Fatalf("expected status cleared, got %+v err=%v", st, err)
	}
	// idempotent
	if err := glacier.ClearRestoreStatus(path); err != nil {
		t.Fatalf("ClearRestoreStatus (idempotent): %v", err)
	}
}

type recordingBackend struct {
	expired []string
}

func (*recordingBackend) ShouldMigrate(context.Context, string) (bool, error) { return true, nil }
func (*recordingBackend) Migrate(context.Context, string) ([]string, error)  { return nil, nil }
func (*recordingBackend) Restore(context.Context, string) (bool, error)      { return true, nil }
func (b *recordingBackend) ProcessExpired(_ context.Context, path string) error {
	b.expired = append(b.expired, path)
	return glacier.ClearRestoreStatus(path)
}

func TestExpirationScanProcessesOnlyExpired(t *testing.T) {
	dir := t.TempDir()
	expired := filepath.Join(dir, "expired")
	fresh := filepath.Join(dir, "fresh")
	ongoing := filepath.Join(dir, "ongoing")
	for _, p := range []string{expired, fresh, ongoing} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	if err := glacier.SetRestoreStatus(expired, glacier.RestoreStatus{ExpiryTime: &past}); err != nil {
		t.Fatalf("set expired: %v", err)
	}
	if err := glacier.SetRestoreStatus(fresh, glacier.RestoreStatus{ExpiryTime: &future}); err != nil {
		t.Fatalf("set fresh: %v", err)
	}
	if err := glacier.SetRestoreStatus(ongoing, glacier.RestoreStatus{Ongoing: true}); err != nil {
		t.Fatalf("set ongoing: %v", err)
	}

	backend := &recordingBackend{}
	if err := glacier.ExpirationScan(context.Background(), backend, dir, time.Now()); err != nil {
		t.Fatalf("ExpirationScan: %v", err)
	}
	if len(backend.expired) != 1 || backend.expired[0] != expired {
		t.Fatalf("expected only %q processed, got %v", expired, backend.expired)
	}
}
