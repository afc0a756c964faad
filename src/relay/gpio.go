//go:build linux

package relay

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOCommander drives relays through the Linux GPIO character device.
type GPIOCommander struct {
	chip  *gpiocdev.Chip
	lines map[string]*gpiocdev.Line
	pins  map[string]Pin
}

// NewGPIOCommander opens the chip and requests every configured pin as
// an output, driven to the OFF state.
func NewGPIOCommander(chipName string, pins []Pin) (*GPIOCommander, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	c := &GPIOCommander{
		chip:  chip,
		lines: make(map[string]*gpiocdev.Line, len(pins)),
		pins:  make(map[string]Pin, len(pins)),
	}
	for _, p := range pins {
		line, err := chip.RequestLine(p.Offset, gpiocdev.AsOutput(c.level(p, false)))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("request pin %d for %s: %w", p.Offset, p.HeaterID, err)
		}
		c.lines[p.HeaterID] = line
		c.pins[p.HeaterID] = p
	}
	return c, nil
}

func (c *GPIOCommander) level(p Pin, on bool) int {
	if on != p.ActiveLow {
		return 1
	}
	return 0
}

// Set drives the relay for the given heater ID.
func (c *GPIOCommander) Set(id string, on bool) error {
	line, ok := c.lines[id]
	if !ok {
		return fmt.Errorf("no gpio pin configured for heater %s", id)
	}
	if err := line.SetValue(c.level(c.pins[id], on)); err != nil {
		return fmt.Errorf("set pin for %s: %w", id, err)
	}
	return nil
}

// Close drives every relay off and releases GPIO resources.
func (c *GPIOCommander) Close() error {
	var errs []error
	for id, line := range c.lines {
		if err := line.SetValue(c.level(c.pins[id], false)); err != nil {
			errs = append(errs, fmt.Errorf("park pin for %s: %w", id, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin for %s: %w", id, err))
		}
	}
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
