//go:build !linux

package relay

import "errors"

// GPIOCommander is not available on non-Linux platforms.
type GPIOCommander struct{}

// NewGPIOCommander returns an error on non-Linux platforms.
func NewGPIOCommander(chipName string, pins []Pin) (*GPIOCommander, error) {
	return nil, errors.New("relay: gpio not supported on this platform (requires Linux)")
}

// Set is not implemented on non-Linux platforms.
func (c *GPIOCommander) Set(id string, on bool) error {
	return errors.New("relay: gpio not supported")
}

// Close is not implemented on non-Linux platforms.
func (c *GPIOCommander) Close() error {
	return nil
}
