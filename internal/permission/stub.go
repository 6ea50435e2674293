//go:build !linux

package permission

import (
	"errors"

	"github.com/charmbracelet/log"
)

// LineChecker is not available on non-Linux platforms.
type LineChecker struct{}

// NewLineChecker returns an error on non-Linux platforms.
func NewLineChecker(chipName string, pin int, activeLow bool, logger *log.Logger) (*LineChecker, error) {
	return nil, errors.New("permission: gpio arm line not supported on this platform (requires Linux)")
}

// IsGranted always denies on non-Linux platforms.
func (c *LineChecker) IsGranted() bool {
	return false
}

// Close is a no-op on non-Linux platforms.
func (c *LineChecker) Close() error {
	return nil
}
