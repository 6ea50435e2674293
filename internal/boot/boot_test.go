package boot

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/sweeney/signal-reset/internal/store"
)

const testPath = "/proc/sys/kernel/random/boot_id"

func writeBootID(t *testing.T, fs afero.Fs, id string) {
	t.Helper()
	if err := afero.WriteFile(fs, testPath, []byte(id+"\n"), 0o444); err != nil {
		t.Fatalf("write boot id: %v", err)
	}
}

func TestFirstStartIsBoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeBootID(t, fs, "1b6c0f9e-8d8c-4a61-9d55-000000000001")
	st := store.NewFake()

	res, err := NewDetector(fs, testPath, st).Detect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Boot {
		t.Error("first start should count as boot")
	}
	id, _ := st.BootID(context.Background())
	if id != "1b6c0f9e-8d8c-4a61-9d55-000000000001" {
		t.Errorf("stored boot id: got %q", id)
	}
}

func TestRestartWithinSameBoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeBootID(t, fs, "same")
	st := store.NewFake()
	st.SetBootID(context.Background(), "same")

	res, err := NewDetector(fs, testPath, st).Detect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Boot {
		t.Error("same boot id should be a plain restart")
	}
	if res.Previous != "same" {
		t.Errorf("Previous: got %q", res.Previous)
	}
}

func TestRebootDetected(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeBootID(t, fs, "new")
	st := store.NewFake()
	st.SetBootID(context.Background(), "old")

	d := NewDetector(fs, testPath, st)
	res, err := d.Detect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Boot || res.Previous != "old" || res.BootID != "new" {
		t.Errorf("unexpected result %+v", res)
	}

	// A second start in the same boot is no longer a boot.
	res, err = d.Detect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Boot {
		t.Error("second detect within the same boot should not be a boot")
	}
}

func TestUnreadableBootIDAssumesBoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	st := store.NewFake()

	res, err := NewDetector(fs, testPath, st).Detect(context.Background())
	if err == nil {
		t.Error("expected a read error")
	}
	if !res.Boot {
		t.Error("unreadable boot id should assume boot")
	}
}

func TestEmptyBootID(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeBootID(t, fs, "   ")
	res, err := NewDetector(fs, testPath, store.NewFake()).Detect(context.Background())
	if err == nil || !res.Boot {
		t.Errorf("expected error and Boot, got %+v %v", res, err)
	}
}

func TestStoreErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeBootID(t, fs, "x")

	st := store.NewFake()
	st.BootIDError = errors.New("locked")
	res, err := NewDetector(fs, testPath, st).Detect(context.Background())
	if err == nil || !res.Boot {
		t.Errorf("read failure: expected error and Boot, got %+v %v", res, err)
	}

	st = store.NewFake()
	st.SetBootIDError = errors.New("read-only")
	res, err = NewDetector(fs, testPath, st).Detect(context.Background())
	if err == nil || !res.Boot {
		t.Errorf("write failure: expected error and Boot, got %+v %v", res, err)
	}
}

func TestDefaultPath(t *testing.T) {
	d := NewDetector(afero.NewMemMapFs(), "", store.NewFake())
	if d.path != DefaultIDPath {
		t.Errorf("path: got %q", d.path)
	}
}
