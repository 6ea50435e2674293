// Package permission reports whether precise scheduling is currently allowed.
// The real implementation reads an "arm" switch on a Linux GPIO line.
// Static and Fake cover devices without the switch and tests.
package permission

// Checker answers whether the daily reset may be armed right now.
// Implementations must not cache: the answer can change between calls.
type Checker interface {
	IsGranted() bool
}

// DefaultChip is the GPIO chip the arm switch is wired to.
const DefaultChip = "gpiochip0"

// Static always returns the same answer.
type Static bool

// IsGranted returns the static answer.
func (s Static) IsGranted() bool {
	return bool(s)
}
