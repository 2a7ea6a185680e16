// Package statusled drives an optional indicator LED on a GPIO pin.
package statusled

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// LED is a heartbeat indicator. A nil *LED is valid and all methods
// are no-ops, so callers never need to branch on whether a pin was
// configured.
type LED struct {
	pin gpio.PinIO
}

// Open looks up the named GPIO pin and configures it as an output,
// initially off. An empty name yields a nil LED.
func Open(name string) (*LED, error) {
	if name == "" {
		return nil, nil
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("status led: pin %q not found", name)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("status led: configure %q: %w", name, err)
	}
	return &LED{pin: pin}, nil
}

// Blink pulses the LED on for d. Errors from the pin are ignored; a
// broken indicator must never disturb sampling.
func (l *LED) Blink(d time.Duration) {
	if l == nil {
		return
	}
	_ = l.pin.Out(gpio.High)
	time.Sleep(d)
	_ = l.pin.Out(gpio.Low)
}

// Close turns the LED off.
func (l *LED) Close() error {
	if l == nil {
		return nil
	}
	return l.pin.Out(gpio.Low)
}
