package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

// Barometer wraps a BMP085/BMP180 class chip behind periph's bmxx80
// driver. It supplies ambient temperature and barometric pressure.
type Barometer struct {
	bus i2c.BusCloser
	dev *bmxx80.Dev
}

// bmpOpts maps the configured oversampling mode onto driver options.
// The names follow the chip datasheet's power modes.
func bmpOpts(mode string) (*bmxx80.Opts, error) {
	opts := bmxx80.DefaultOpts
	switch mode {
	case "ultralow":
		opts.Pressure = bmxx80.O1x
	case "standard":
		opts.Pressure = bmxx80.O2x
	case "high":
		opts.Pressure = bmxx80.O4x
	case "ultrahigh":
		opts.Pressure = bmxx80.O8x
	default:
		return nil, fmt.Errorf("unknown oversampling mode %q", mode)
	}
	return &opts, nil
}

// OpenBarometer opens busName (empty selects the first available bus,
// usually /dev/i2c-1) and probes the chip at addr.
func OpenBarometer(busName string, addr uint16, mode string) (*Barometer, error) {
	opts, err := bmpOpts(mode)
	if err != nil {
		return nil, err
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("i2c open: %w", err)
	}
	dev, err := bmxx80.NewI2C(bus, addr, opts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("bmxx80 at %#x: %w", addr, err)
	}
	return &Barometer{bus: bus, dev: dev}, nil
}

// Read returns ambient temperature in degrees Celsius and pressure in hPa.
func (b *Barometer) Read() (temp, pressure float64, err error) {
	var env physic.Env
	if err := b.dev.Sense(&env); err != nil {
		return 0, 0, fmt.Errorf("bmxx80 sense: %w", err)
	}
	pa := float64(env.Pressure) / float64(physic.Pascal)
	return env.Temperature.Celsius(), pa / 100.0, nil
}

func (b *Barometer) Close() error {
	haltErr := b.dev.Halt()
	if err := b.bus.Close(); err != nil {
		return err
	}
	return haltErr
}
