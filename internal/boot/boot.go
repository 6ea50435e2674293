// Package boot tells a plain process restart apart from the first start
// after a host reboot, by comparing the kernel boot id with the one
// recorded by the previous start.
package boot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/sweeney/signal-reset/internal/store"
)

// DefaultIDPath is where Linux exposes the current boot id.
const DefaultIDPath = "/proc/sys/kernel/random/boot_id"

// IDStore persists the last seen boot id.
type IDStore interface {
	BootID(ctx context.Context) (string, error)
	SetBootID(ctx context.Context, id string) error
}

// Result is the outcome of Detect.
type Result struct {
	// Boot is true for the first start since the host booted (or when
	// that cannot be ruled out).
	Boot     bool
	BootID   string
	Previous string
}

// Detector compares the host boot id with the stored one.
type Detector struct {
	fs    afero.Fs
	path  string
	store IDStore
}

// NewDetector reads the boot id from path on fs.
func NewDetector(fs afero.Fs, path string, st IDStore) *Detector {
	if path == "" {
		path = DefaultIDPath
	}
	return &Detector{fs: fs, path: path, store: st}
}

// Detect reports whether this start follows a reboot and records the
// current boot id for the next start. When the answer is uncertain it
// errs toward Boot: both paths arm the same alarm, only the label differs.
// A non-nil error is informational; Result is always usable.
func (d *Detector) Detect(ctx context.Context) (Result, error) {
	raw, err := afero.ReadFile(d.fs, d.path)
	if err != nil {
		return Result{Boot: true}, fmt.Errorf("boot: read %s: %w", d.path, err)
	}
	current := strings.TrimSpace(string(raw))
	if current == "" {
		return Result{Boot: true}, fmt.Errorf("boot: empty boot id in %s", d.path)
	}

	res := Result{BootID: current}
	prev, err := d.store.BootID(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		res.Boot = true
	case err != nil:
		res.Boot = true
		return res, fmt.Errorf("boot: previous id: %w", err)
	default:
		res.Previous = prev
		res.Boot = prev != current
	}

	if res.Boot {
		if err := d.store.SetBootID(ctx, current); err != nil {
			return res, fmt.Errorf("boot: record id: %w", err)
		}
	}
	return res, nil
}
