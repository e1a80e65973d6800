//go:build !linux

package gpio

import "errors"

var errNotSupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Chip is not available on non-Linux platforms.
type Chip struct{}

// OpenChip returns an error on non-Linux platforms.
func OpenChip(name string) (*Chip, error) {
	return nil, errNotSupported
}

// Close is a no-op.
func (c *Chip) Close() error { return nil }

// RequestInput returns an error on non-Linux platforms.
func (c *Chip) RequestInput(pin int) (Input, error) {
	return nil, errNotSupported
}

// RequestOutput returns an error on non-Linux platforms.
func (c *Chip) RequestOutput(pin int) (Output, error) {
	return nil, errNotSupported
}
