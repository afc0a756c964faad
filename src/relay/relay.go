// Package relay provides heater relay actuation with hardware
// abstraction. The real implementation drives Linux GPIO character
// device lines; the fake implementation allows testing without
// hardware. Heaters exposed as MQTT switch entities are actuated by the
// MQTT layer instead and never reach this package.
package relay

// Commander switches heater relays on and off.
type Commander interface {
	// Set drives the relay for the given heater ID to the requested
	// state.
	Set(id string, on bool) error

	// Close releases relay resources, leaving all relays off.
	Close() error
}

// Pin maps a heater ID to a GPIO line.
type Pin struct {
	HeaterID string
	Offset   int

	// ActiveLow inverts the drive: logical ON writes 0. Common for
	// optocoupler relay boards.
	ActiveLow bool
}
