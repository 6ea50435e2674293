//go:build linux

package permission

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/warthog618/go-gpiocdev"
)

// LineChecker grants scheduling while the arm switch line is active.
type LineChecker struct {
	chip   *gpiocdev.Chip
	line   *gpiocdev.Line
	pin    int
	logger *log.Logger
}

// NewLineChecker requests pin on chipName as an input with pull-down.
// With activeLow set, a low level means "armed".
func NewLineChecker(chipName string, pin int, activeLow bool, logger *log.Logger) (*LineChecker, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := chip.RequestLine(pin, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request arm pin %d: %w", pin, err)
	}

	return &LineChecker{
		chip:   chip,
		line:   line,
		pin:    pin,
		logger: logger,
	}, nil
}

// IsGranted reads the line fresh on every call. A read failure denies.
func (c *LineChecker) IsGranted() bool {
	v, err := c.line.Value()
	if err != nil {
		c.logger.Warn("arm line read failed, treating as not granted", "pin", c.pin, "err", err)
		return false
	}
	return v == 1
}

// Close returns the line to input with pull-down and releases the chip.
func (c *LineChecker) Close() error {
	var errs []error

	if c.line != nil {
		if err := c.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure arm pin: %w", err))
		}
		if err := c.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close arm pin: %w", err))
		}
	}
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
